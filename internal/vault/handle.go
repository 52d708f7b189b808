package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/workshopops/workshop/internal/store"
)

// Handle is a capability on the vault directory.
type Handle interface {
	Root() string
}

// Dir is a Handle for a local directory path.
type Dir string

// Root returns the directory path.
func (d Dir) Root() string { return string(d) }

// PermissionState is the result of a permission check.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	// PermissionPrompt means access has not been granted yet and could be
	// requested.
	PermissionPrompt PermissionState = "prompt"
)

// HandleProvider stores the vault handle and checks access to it.
type HandleProvider interface {
	// Persisted returns the stored handle, or nil when none was set.
	Persisted(ctx context.Context) (Handle, error)

	// Persist stores h as the default handle.
	Persist(ctx context.Context, h Handle) error

	// Permission checks read-write access to h. With request set, the
	// provider may try to obtain access it does not have yet.
	Permission(ctx context.Context, h Handle, request bool) (PermissionState, error)
}

// VaultHandleKey is the system_config key that stores the vault directory.
// System/config.json leaves this entry out.
const VaultHandleKey = "vault_directory"

// RecordStore is the slice of the datastore DirProvider needs.
type RecordStore interface {
	All(ctx context.Context, table store.Table) ([]store.Row, error)
	Put(ctx context.Context, table store.Table, row store.Row) (int64, error)
}

// DirProvider persists the vault directory as a system_config entry and
// checks access by probing the file system.
type DirProvider struct {
	Store RecordStore
}

// NewDirProvider returns a provider backed by s.
func NewDirProvider(s RecordStore) *DirProvider {
	return &DirProvider{Store: s}
}

// Persisted returns the stored vault directory.
func (p *DirProvider) Persisted(ctx context.Context) (Handle, error) {
	row, err := p.find(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	path := row.String("value")
	if path == "" {
		return nil, nil
	}
	return Dir(path), nil
}

// Persist stores h, replacing any earlier directory.
func (p *DirProvider) Persist(ctx context.Context, h Handle) error {
	if h == nil {
		return fmt.Errorf("persist vault handle: %w", ErrNoHandle)
	}
	abs, err := filepath.Abs(h.Root())
	if err != nil {
		return fmt.Errorf("failed to resolve vault path: %w", err)
	}

	row, err := p.find(ctx)
	if err != nil {
		return err
	}
	if row == nil {
		row = store.Row{"key": VaultHandleKey}
	}
	row["value"] = abs

	if _, err := p.Store.Put(ctx, store.SystemConfig, row); err != nil {
		return fmt.Errorf("failed to persist vault handle: %w", err)
	}
	return nil
}

// Permission reports granted when the directory exists and a scratch file can
// be created and removed in it. A missing directory is created when request
// is set, otherwise it reports prompt.
func (p *DirProvider) Permission(ctx context.Context, h Handle, request bool) (PermissionState, error) {
	root := h.Root()
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !request {
			return PermissionPrompt, nil
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return PermissionDenied, nil
		}
	case err != nil:
		return PermissionDenied, nil
	case !info.IsDir():
		return PermissionDenied, nil
	}

	tmp, err := os.CreateTemp(root, ".wsop-check-*")
	if err != nil {
		return PermissionDenied, nil
	}
	name := tmp.Name()
	_ = tmp.Close()
	if err := os.Remove(name); err != nil {
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

func (p *DirProvider) find(ctx context.Context) (store.Row, error) {
	rows, err := p.Store.All(ctx, store.SystemConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to read system config: %w", err)
	}
	for _, row := range rows {
		if row.String("key") == VaultHandleKey {
			return row, nil
		}
	}
	return nil, nil
}
