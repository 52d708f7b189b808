package git

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/workshopops/workshop/internal/vcs"
)

// SetRemote creates the named remote or repoints it at url
func (g *Git) SetRemote(ctx context.Context, name, url string) error {
	if name == "" {
		name = vcs.DefaultRemote
	}

	output, err := g.run(ctx, nil, "remote")
	if err != nil {
		return fmt.Errorf("git remote failed: %w", err)
	}

	verb := "add"
	for _, existing := range vcs.ParseLines(output) {
		if existing == name {
			verb = "set-url"
			break
		}
	}

	if _, err := g.run(ctx, nil, "remote", verb, name, url); err != nil {
		return fmt.Errorf("git remote %s failed: %w", verb, err)
	}
	return nil
}

// Push pushes HEAD to the remote branch
func (g *Git) Push(ctx context.Context, opts vcs.PushOptions) error {
	remote, ref := remoteAndRef(opts.Remote, opts.Ref)

	args := authArgs(opts.Token)
	args = append(args, "push", "--porcelain")
	if opts.Force {
		args = append(args, "--force")
	}
	args = append(args, remote, "HEAD:refs/heads/"+ref)

	if _, err := g.runNetwork(ctx, nil, args...); err != nil {
		return classify("push", err)
	}
	return nil
}

// Pull fetches the remote branch and merges it into HEAD
func (g *Git) Pull(ctx context.Context, opts vcs.PullOptions) error {
	remote, ref := remoteAndRef(opts.Remote, opts.Ref)

	args := authArgs(opts.Token)
	args = append(args, "-c", "pull.rebase=false", "pull", "--no-edit", "--quiet")
	if opts.AllowUnrelated {
		args = append(args, "--allow-unrelated-histories")
	}
	args = append(args, remote, ref)

	if _, err := g.runNetwork(ctx, identityEnv(opts.Author), args...); err != nil {
		return classify("pull", err)
	}
	return nil
}

// runNetwork runs git with the network timeout and prompts disabled, so a
// missing credential fails instead of hanging on a terminal prompt.
func (g *Git) runNetwork(ctx context.Context, env []string, args ...string) ([]byte, error) {
	env = append(env, "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=")
	return vcs.Command{Dir: g.root, Env: env, Timeout: NetworkTimeout}.Run(ctx, "git", args...)
}

func remoteAndRef(remote, ref string) (string, string) {
	if remote == "" {
		remote = vcs.DefaultRemote
	}
	if ref == "" {
		ref = vcs.DefaultBranch
	}
	return remote, ref
}

// authArgs sends token as HTTP basic auth on every request of this
// invocation. Hosting providers accept any user name with a token password.
func authArgs(token string) []string {
	if token == "" {
		return nil
	}
	creds := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	return []string{"-c", "http.extraHeader=Authorization: Basic " + creds}
}

// classify maps git's stderr onto vcs sentinel errors
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	out := vcs.Output(err)
	lower := strings.ToLower(out)

	var sentinel error
	switch {
	case strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "could not read username"),
		strings.Contains(lower, "could not read password"),
		strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "403"),
		strings.Contains(lower, "401"):
		sentinel = vcs.ErrAuth
	case strings.Contains(lower, "couldn't find remote ref"):
		sentinel = vcs.ErrRefNotFound
	case strings.Contains(lower, "conflict"):
		sentinel = vcs.ErrConflicts
	case op == "push" && (strings.Contains(lower, "rejected") || strings.Contains(lower, "non-fast-forward")):
		sentinel = vcs.ErrPushRejected
	case strings.Contains(lower, "refusing to merge unrelated histories"),
		strings.Contains(lower, "divergent branches"),
		strings.Contains(lower, "non-fast-forward"):
		sentinel = vcs.ErrMergeRequired
	case strings.Contains(lower, "no such remote"),
		strings.Contains(lower, "does not appear to be a git repository"):
		sentinel = vcs.ErrNoRemote
	default:
		return fmt.Errorf("git %s failed: %w", op, err)
	}

	if out == "" {
		return fmt.Errorf("git %s: %w", op, sentinel)
	}
	return fmt.Errorf("git %s: %w: %s", op, sentinel, out)
}
