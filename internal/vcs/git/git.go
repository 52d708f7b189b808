// Package git provides a Git implementation of the vcs.Repo interface.
//
// This package shells out to the git binary (git -C <root> ...) for every
// operation. Author identity and credentials are passed per invocation
// through environment variables and -c overrides, so the user's global git
// configuration is never modified.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/workshopops/workshop/internal/vcs"
)

// DefaultTimeout bounds local git invocations.
const DefaultTimeout = 30 * time.Second

// NetworkTimeout bounds push and pull.
const NetworkTimeout = 2 * time.Minute

// Git implements vcs.Repo for a working tree directory.
type Git struct {
	// root is the working tree directory path
	root string
}

// New creates a Git repo handle for dir. dir must exist; it does not need to
// be a repository yet.
func New(dir string) (*Git, error) {
	if !vcs.IsAvailable("git") {
		return nil, fmt.Errorf("git: %w", vcs.ErrVCSNotAvailable)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open working tree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working tree %s is not a directory", abs)
	}

	return &Git{root: abs}, nil
}

// Name returns the VCS type (git)
func (g *Git) Name() vcs.Type {
	return vcs.TypeGit
}

// Root returns the working tree directory
func (g *Git) Root() string {
	return g.root
}

// IsRepo reports whether root has its own .git entry. A directory nested in
// some other repository does not count.
func (g *Git) IsRepo() bool {
	_, err := os.Stat(filepath.Join(g.root, ".git"))
	return err == nil
}

// Version returns the git version string
func (g *Git) Version(ctx context.Context) (string, error) {
	output, err := g.run(ctx, nil, "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get git version: %w", err)
	}

	// Output format: "git version 2.39.0"
	return strings.TrimPrefix(vcs.TrimOutput(output), "git version "), nil
}

// run executes git in root with a local timeout.
func (g *Git) run(ctx context.Context, env []string, args ...string) ([]byte, error) {
	return vcs.Command{Dir: g.root, Env: env, Timeout: DefaultTimeout}.Run(ctx, "git", args...)
}

// identityEnv sets author and committer so commits never depend on the
// user's git config.
func identityEnv(id vcs.Identity) []string {
	if id.IsZero() {
		return nil
	}
	return []string{
		"GIT_AUTHOR_NAME=" + id.Name,
		"GIT_AUTHOR_EMAIL=" + id.Email,
		"GIT_COMMITTER_NAME=" + id.Name,
		"GIT_COMMITTER_EMAIL=" + id.Email,
	}
}
