package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ===================
// Command Execution Utilities
// ===================

// Command describes one VCS binary invocation.
type Command struct {
	// Dir is the working directory
	Dir string

	// Env is appended to the current process environment
	Env []string

	// Timeout bounds the invocation; zero means no extra bound
	Timeout time.Duration
}

// Run executes name with args and returns stdout. On failure the returned
// error carries stderr so callers can classify it.
//
// Example:
//
//	out, err := vcs.Command{Dir: root, Timeout: 30 * time.Second}.Run(ctx, "git", "status", "--porcelain")
func (c Command) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s %s: %w", name, firstArg(args), ErrTimeout)
		}
		return nil, &ExecError{
			Name:   name,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String() + "\n" + stdout.String()),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

// ExecError is a failed VCS invocation.
type ExecError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s %s failed: %v", e.Name, firstArg(e.Args), e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v: %s", e.Name, firstArg(e.Args), e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Output returns the captured stderr of err if it is an ExecError.
func Output(err error) string {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.Stderr
	}
	return ""
}

// firstArg returns the subcommand, skipping "-c key=value" and "-C dir" pairs.
func firstArg(args []string) string {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "-C":
			i++
			continue
		}
		return args[i]
	}
	return ""
}

// ===================
// Output Parsing Utilities
// ===================

// ParseLines splits command output into non-empty lines.
func ParseLines(output []byte) []string {
	if len(output) == 0 {
		return nil
	}

	lines := strings.Split(string(output), "\n")
	result := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}

// TrimOutput trims whitespace and trailing newlines from command output.
func TrimOutput(output []byte) string {
	return strings.TrimSpace(string(output))
}

// ===================
// Error Utilities
// ===================

// GetExitCode returns the exit code from an error, or -1 if not an exit error.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

// IsAvailable reports whether the named binary is on PATH.
func IsAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
