package git

import (
	"context"
	"fmt"

	"github.com/workshopops/workshop/internal/vcs"
)

// init registers the git implementation with the vcs registry.
// Import the package for its side effect:
//
//	import _ "github.com/workshopops/workshop/internal/vcs/git"
func init() {
	vcs.Register(vcs.TypeGit, func(dir string) (vcs.Repo, error) {
		return New(dir)
	})
}

// Init creates a repository at root whose unborn HEAD points at branch.
// An existing repository is left as is.
func (g *Git) Init(ctx context.Context, branch string) error {
	if g.IsRepo() {
		return nil
	}
	if branch == "" {
		branch = vcs.DefaultBranch
	}

	if _, err := g.run(ctx, nil, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init failed: %w", err)
	}

	// symbolic-ref instead of "init -b" keeps older git versions working
	if _, err := g.run(ctx, nil, "symbolic-ref", "HEAD", "refs/heads/"+branch); err != nil {
		return fmt.Errorf("failed to set initial branch %s: %w", branch, err)
	}

	return nil
}
