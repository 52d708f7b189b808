package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHandle is returned when no vault directory was given or stored.
	ErrNoHandle = errors.New("no vault directory configured")

	// ErrPermissionDenied is returned when the vault directory is not
	// writable.
	ErrPermissionDenied = errors.New("vault permission denied")
)

// Failure is one sync unit that could not be written.
type Failure struct {
	Unit string
	Err  error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Unit, f.Err)
}

// Result reports the outcome of a local sync operation. Local operations
// never return errors; problems are logged and recorded here.
type Result struct {
	// Files is the number of files written
	Files int

	// Skipped is set when nothing was attempted, with Reason saying why
	Skipped bool
	Reason  error

	// Failures lists units that failed while the rest continued
	Failures []Failure
}

// OK reports whether the operation ran and every unit succeeded.
func (r Result) OK() bool {
	return !r.Skipped && len(r.Failures) == 0
}

func (r *Result) skip(reason error) {
	r.Skipped = true
	r.Reason = reason
}

func (r *Result) fail(unit string, err error) {
	r.Failures = append(r.Failures, Failure{Unit: unit, Err: err})
}

// Report is the outcome of SyncAll.
type Report struct {
	Result

	// Projects is the number of projects synced; 0 when skipped
	Projects int

	// Commit is the auto-commit hash, empty when none was made
	Commit string
}
