package vcs

import "errors"

// Common errors returned by VCS operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, vcs.ErrAuth) {
//	    // Ask the user to refresh the access token
//	}
var (
	// ErrNotInVCS is returned when the operation requires a repository
	// at the working tree root but none was found.
	ErrNotInVCS = errors.New("not in a VCS repository")

	// ErrVCSNotAvailable is returned when the required VCS binary
	// is not installed or not in PATH.
	ErrVCSNotAvailable = errors.New("VCS binary not available")

	// ErrUnknownType is returned by Open for a backend that was never
	// registered.
	ErrUnknownType = errors.New("unknown VCS type")

	// ErrRefNotFound is returned when the remote does not have the
	// requested branch.
	ErrRefNotFound = errors.New("reference not found")

	// ErrNoRemote is returned when an operation requires a remote
	// but none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrNoCommits is returned when HEAD does not point at a commit yet.
	ErrNoCommits = errors.New("no commits yet")

	// ErrConflicts is returned when an operation cannot complete
	// due to unresolved conflicts.
	ErrConflicts = errors.New("unresolved conflicts")

	// ErrAuth is returned when the remote refused the credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrPushRejected is returned when a push is rejected by the remote,
	// typically due to non-fast-forward updates.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrMergeRequired is returned when a pull results in divergent
	// histories that require a merge.
	ErrMergeRequired = errors.New("merge required")

	// ErrTimeout is returned when a VCS operation exceeds its timeout.
	ErrTimeout = errors.New("operation timed out")
)

// IsRetryable returns true if the error is likely to succeed on retry.
// This is useful for transient network errors or temporary lock conflicts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Timeouts are often transient
	if errors.Is(err, ErrTimeout) {
		return true
	}

	// Push rejections might succeed after a pull
	if errors.Is(err, ErrPushRejected) {
		return true
	}

	// Merge required can be resolved by user action
	if errors.Is(err, ErrMergeRequired) {
		return true
	}

	return false
}

// IsUserActionRequired returns true if the error requires user intervention
// to resolve (credentials, conflicts, divergent history).
func IsUserActionRequired(err error) bool {
	if err == nil {
		return false
	}

	// A bad or expired token never fixes itself
	if errors.Is(err, ErrAuth) {
		return true
	}

	// Conflicts need manual resolution
	if errors.Is(err, ErrConflicts) {
		return true
	}

	// Divergent histories need merge decision
	if errors.Is(err, ErrMergeRequired) {
		return true
	}

	// Push rejected usually means divergent remote
	if errors.Is(err, ErrPushRejected) {
		return true
	}

	return false
}

// IsFatal returns true if the error indicates a non-recoverable state
// that requires manual intervention or re-initialization.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// Binary not available means we can't execute commands
	if errors.Is(err, ErrVCSNotAvailable) {
		return true
	}

	if errors.Is(err, ErrUnknownType) {
		return true
	}

	return false
}
