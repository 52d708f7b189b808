// Package vcs provides the version-control interface behind vault snapshots.
//
// The vault keeps a local history of its mirrored file tree and can push and
// pull that history to a single remote. This package defines the operations
// the vault needs and leaves the mechanics to a registered backend.
//
// # Usage
//
//	import _ "github.com/workshopops/workshop/internal/vcs/git" // registers TypeGit
//
//	repo, err := vcs.Open(vcs.TypeGit, vaultRoot)
//	if err != nil {
//	    return err
//	}
//	if !repo.IsRepo() {
//	    if err := repo.Init(ctx, vcs.DefaultBranch); err != nil {
//	        return err
//	    }
//	}
//
// # Implementations
//
//   - internal/vcs/git: git CLI implementation
package vcs

import "context"

// Type represents the VCS backend type
type Type string

const (
	// TypeGit is the git CLI backend
	TypeGit Type = "git"
)

// String returns the string representation of the VCS type
func (t Type) String() string {
	return string(t)
}

// Repo is a working tree rooted at one directory. The directory does not need
// to be a repository yet; Init creates one in place.
type Repo interface {
	// Name returns the backend type
	Name() Type

	// Root returns the working tree directory
	Root() string

	// IsRepo reports whether Root already holds a repository of its own
	// (not merely a directory nested inside another repository).
	IsRepo() bool

	// Init creates a repository at Root with branch as the initial branch.
	// Calling Init on an existing repository leaves it untouched.
	Init(ctx context.Context, branch string) error

	// AddAll stages every change under Root, including deletions.
	AddAll(ctx context.Context) error

	// HasChanges reports whether the working tree differs from HEAD.
	HasChanges(ctx context.Context) (bool, error)

	// Commit records the staged tree and returns the new commit hash.
	// With nothing staged and AllowEmpty unset, it returns the current HEAD.
	Commit(ctx context.Context, opts CommitOptions) (string, error)

	// Head returns the commit hash HEAD points at.
	Head(ctx context.Context) (string, error)

	// SetRemote creates or repoints the named remote.
	SetRemote(ctx context.Context, name, url string) error

	// Push publishes the current HEAD to opts.Ref on the remote.
	Push(ctx context.Context, opts PushOptions) error

	// Pull fetches opts.Ref from the remote and merges it into HEAD.
	Pull(ctx context.Context, opts PullOptions) error
}

// Identity is the author recorded on commits.
type Identity struct {
	Name  string
	Email string
}

// IsZero reports whether no identity was given.
func (id Identity) IsZero() bool {
	return id.Name == "" && id.Email == ""
}

// CommitOptions configures a commit operation
type CommitOptions struct {
	// Message is the commit message (required)
	Message string

	// Author overrides both author and committer (optional)
	Author Identity

	// AllowEmpty allows creating an empty commit
	AllowEmpty bool
}

// PushOptions configures a push operation
type PushOptions struct {
	// Remote is the remote name. Empty uses DefaultRemote.
	Remote string

	// Ref is the branch to push to. Empty uses DefaultBranch.
	Ref string

	// Token is a personal access token sent as HTTP basic auth (optional)
	Token string

	// Force enables force push (use with caution!)
	Force bool
}

// PullOptions configures a pull operation
type PullOptions struct {
	// Remote is the remote name. Empty uses DefaultRemote.
	Remote string

	// Ref is the branch to pull. Empty uses DefaultBranch.
	Ref string

	// Token is a personal access token sent as HTTP basic auth (optional)
	Token string

	// Author is recorded on any merge commit the pull creates (optional)
	Author Identity

	// AllowUnrelated merges histories that share no common ancestor, which
	// happens when a vault was committed locally before the remote existed.
	AllowUnrelated bool
}

const (
	// DefaultRemote is the single remote the vault syncs with
	DefaultRemote = "origin"

	// DefaultBranch is used when no branch is configured
	DefaultBranch = "main"
)
