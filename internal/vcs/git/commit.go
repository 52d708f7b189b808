package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/workshopops/workshop/internal/vcs"
)

// AddAll stages every change in the working tree, deletions included
func (g *Git) AddAll(ctx context.Context) error {
	if _, err := g.run(ctx, nil, "add", "--all", "."); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// HasChanges returns true if there are uncommitted changes
func (g *Git) HasChanges(ctx context.Context) (bool, error) {
	output, err := g.run(ctx, nil, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// hasStaged reports whether the index differs from HEAD (or holds anything
// at all before the first commit).
func (g *Git) hasStaged(ctx context.Context) (bool, error) {
	if _, err := g.Head(ctx); err != nil {
		output, lsErr := g.run(ctx, nil, "ls-files", "--cached")
		if lsErr != nil {
			return false, fmt.Errorf("git ls-files failed: %w", lsErr)
		}
		return len(vcs.ParseLines(output)) > 0, nil
	}

	// diff --cached --quiet exits 1 when there are staged changes
	_, err := g.run(ctx, nil, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	if vcs.GetExitCode(err) == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff failed: %w", err)
}

// Commit creates a commit with the specified options and returns its hash
func (g *Git) Commit(ctx context.Context, opts vcs.CommitOptions) (string, error) {
	if opts.Message == "" {
		return "", fmt.Errorf("commit message is required")
	}

	if !opts.AllowEmpty {
		staged, err := g.hasStaged(ctx)
		if err != nil {
			return "", err
		}
		if !staged {
			return g.Head(ctx)
		}
	}

	// Build commit arguments
	args := []string{"-c", "commit.gpgsign=false", "commit", "--quiet", "--no-verify", "-m", opts.Message}

	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}

	if _, err := g.run(ctx, identityEnv(opts.Author), args...); err != nil {
		return "", fmt.Errorf("git commit failed: %w", err)
	}

	return g.Head(ctx)
}

// Head returns the commit hash of HEAD
func (g *Git) Head(ctx context.Context) (string, error) {
	output, err := g.run(ctx, nil, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil {
		if !g.IsRepo() {
			return "", vcs.ErrNotInVCS
		}
		return "", vcs.ErrNoCommits
	}
	return vcs.TrimOutput(output), nil
}
