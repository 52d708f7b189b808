package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/workshopops/workshop/internal/store"
	"github.com/workshopops/workshop/internal/vcs"
)

// Remote is the stored push/pull configuration.
type Remote struct {
	Token     string
	URL       string
	Branch    string
	CORSProxy string
}

// Configured reports whether both a token and a URL are set.
func (r Remote) Configured() bool {
	return r.Token != "" && r.URL != ""
}

// FetchURL returns the URL git should talk to. With a CORS proxy configured
// the scheme is dropped and the rest appended to the proxy:
// https://cors.example/github.com/me/vault.git
func (r Remote) FetchURL() string {
	if r.CORSProxy == "" {
		return r.URL
	}
	rest := r.URL
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(rest, scheme) {
			rest = strings.TrimPrefix(rest, scheme)
			break
		}
	}
	return strings.TrimRight(r.CORSProxy, "/") + "/" + rest
}

// LoadRemote reads the remote configuration from settings.
func LoadRemote(ctx context.Context, s SettingsReader) (Remote, error) {
	var r Remote
	fields := []struct {
		key string
		dst *string
	}{
		{store.SettingGitToken, &r.Token},
		{store.SettingGitRepoURL, &r.URL},
		{store.SettingGitBranch, &r.Branch},
		{store.SettingGitCORSProxy, &r.CORSProxy},
	}
	for _, f := range fields {
		v, _, err := s.Setting(ctx, f.key)
		if err != nil {
			return Remote{}, err
		}
		*f.dst = strings.TrimSpace(v)
	}
	if r.Branch == "" {
		r.Branch = vcs.DefaultBranch
	}
	return r, nil
}

func (e *Engine) branch(ctx context.Context) string {
	if e.settings == nil {
		return vcs.DefaultBranch
	}
	r, err := LoadRemote(ctx, e.settings)
	if err != nil {
		return vcs.DefaultBranch
	}
	return r.Branch
}

// Push publishes the vault history to the configured remote. It returns nil
// without any network access when no token or URL is configured.
func (e *Engine) Push(ctx context.Context, h Handle) error {
	remote, repo, err := e.prepareRemote(ctx, h, false)
	if err != nil || repo == nil {
		return err
	}

	if err := repo.Push(ctx, vcs.PushOptions{
		Remote: vcs.DefaultRemote,
		Ref:    remote.Branch,
		Token:  remote.Token,
	}); err != nil {
		return fmt.Errorf("push to %s: %w", remote.URL, err)
	}
	e.logger.Printf("Pushed vault to %s (%s)", remote.URL, remote.Branch)
	return nil
}

// Pull merges the remote history into the vault. It returns nil without any
// network access when no token or URL is configured.
func (e *Engine) Pull(ctx context.Context, h Handle) error {
	remote, repo, err := e.prepareRemote(ctx, h, true)
	if err != nil || repo == nil {
		return err
	}

	if err := repo.Pull(ctx, vcs.PullOptions{
		Remote:         vcs.DefaultRemote,
		Ref:            remote.Branch,
		Token:          remote.Token,
		Author:         Author,
		AllowUnrelated: true,
	}); err != nil {
		return fmt.Errorf("pull from %s: %w", remote.URL, err)
	}
	e.logger.Printf("Pulled vault from %s (%s)", remote.URL, remote.Branch)
	return nil
}

// prepareRemote loads the remote config, resolves the vault and points the
// single remote at the configured URL. A nil repo with a nil error means the
// remote is not configured.
func (e *Engine) prepareRemote(ctx context.Context, h Handle, write bool) (Remote, vcs.Repo, error) {
	if e.settings == nil {
		return Remote{}, nil, nil
	}
	remote, err := LoadRemote(ctx, e.settings)
	if err != nil {
		return Remote{}, nil, fmt.Errorf("failed to read remote config: %w", err)
	}
	if !remote.Configured() {
		return remote, nil, nil
	}

	h, err = e.resolve(ctx, h)
	if err != nil {
		return remote, nil, err
	}
	if err := e.authorize(ctx, h, write); err != nil {
		return remote, nil, err
	}

	repo, err := e.repo(ctx, h)
	if err != nil {
		return remote, nil, fmt.Errorf("failed to open vault history: %w", err)
	}
	if err := repo.SetRemote(ctx, vcs.DefaultRemote, remote.FetchURL()); err != nil {
		return remote, nil, fmt.Errorf("failed to configure remote: %w", err)
	}
	return remote, repo, nil
}
