// Package vault mirrors the workshop datastore into a folder tree.
//
// The vault is a plain directory the user picks once. Every sync rewrites
// JSON files for the live data, moves binary fields (photos, recordings,
// attachments) out into sibling files referenced as file://<path>, and can
// snapshot the tree into a local git history that is pushed to and pulled
// from one remote.
//
// Local operations (SyncProject, SyncAll, Commit) never return errors: a
// missing directory, revoked access or a failing table is logged and
// reported in the returned Result, and the remaining units still run.
// Remote operations (Push, Pull) return errors because the user asked for
// them explicitly and must see why they failed.
//
// Layout, relative to the vault root:
//
//	Projects/<id> - <title>/project.json
//	Projects/<id> - <title>/scripts/<name>.<ext>
//	Projects/<id> - <title>/notebook/<date>_<id>.json
//	Projects/<id> - <title>/assets/<table>/<table>.json
//	Inventory/items.json, Inbox/inbox.json, Notes/global_notes.json
//	Global/purchasing.json, Global/<table>.json
//	System/config.json, System/logs.json, System/local_settings.json
//	Music/Songs/<id> - <title>/, Music/Albums/<id> - <title>/
//	LLM Instructions/<category>/<name>.md
package vault

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/workshopops/workshop/internal/logging"
	"github.com/workshopops/workshop/internal/store"
	"github.com/workshopops/workshop/internal/vcs"
)

// Author is the identity recorded on vault commits.
var Author = vcs.Identity{Name: "Workshop Vault", Email: "vault@workshop.local"}

// TableReader is the read side of the datastore.
type TableReader interface {
	All(ctx context.Context, table store.Table) ([]store.Row, error)
	ByForeignKey(ctx context.Context, table store.Table, key string, value any) ([]store.Row, error)
	Get(ctx context.Context, table store.Table, id int64) (store.Row, error)
	Tables(ctx context.Context) ([]store.Table, error)
}

// SettingsReader reads remote configuration and local preferences.
type SettingsReader interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	SettingsWithPrefix(ctx context.Context, prefix string) (map[string]string, error)
}

// Options configures an Engine.
type Options struct {
	Tables   TableReader
	Settings SettingsReader
	Handles  HandleProvider

	// OpenRepo opens the version-control working tree at the vault root.
	// Defaults to the registered git backend.
	OpenRepo func(root string) (vcs.Repo, error)

	// NewWriter returns the file writer for a vault root. Defaults to a
	// DirWriter.
	NewWriter func(root string) Writer

	Logger *log.Logger
	Now    func() time.Time
}

// Engine runs vault syncs.
type Engine struct {
	tables    TableReader
	settings  SettingsReader
	handles   HandleProvider
	openRepo  func(root string) (vcs.Repo, error)
	newWriter func(root string) Writer
	logger    *log.Logger
	now       func() time.Time
}

// New creates an engine.
func New(opts Options) *Engine {
	e := &Engine{
		tables:    opts.Tables,
		settings:  opts.Settings,
		handles:   opts.Handles,
		openRepo:  opts.OpenRepo,
		newWriter: opts.NewWriter,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if e.openRepo == nil {
		e.openRepo = func(root string) (vcs.Repo, error) { return vcs.Open(vcs.TypeGit, root) }
	}
	if e.newWriter == nil {
		e.newWriter = func(root string) Writer { return NewDirWriter(root) }
	}
	if e.logger == nil {
		e.logger = logging.Default("vault")
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// resolve returns h if given, else the persisted handle.
func (e *Engine) resolve(ctx context.Context, h Handle) (Handle, error) {
	if h != nil {
		return h, nil
	}
	if e.handles == nil {
		return nil, ErrNoHandle
	}
	persisted, err := e.handles.Persisted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vault handle: %w", err)
	}
	if persisted == nil {
		return nil, ErrNoHandle
	}
	return persisted, nil
}

// authorize checks access to h before a batch of writes. It is called on
// every operation; access is never assumed to persist between calls.
func (e *Engine) authorize(ctx context.Context, h Handle, request bool) error {
	if e.handles == nil {
		return nil
	}
	state, err := e.handles.Permission(ctx, h, request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if state != PermissionGranted {
		return fmt.Errorf("%w: %s is %s", ErrPermissionDenied, h.Root(), state)
	}
	return nil
}

// open resolves and authorizes a handle for a local operation. Failures are
// logged as warnings.
func (e *Engine) open(ctx context.Context, h Handle, op string) (Handle, error) {
	h, err := e.resolve(ctx, h)
	if err != nil {
		e.logger.Printf("WARNING: %s skipped: %v", op, err)
		return nil, err
	}
	if err := e.authorize(ctx, h, true); err != nil {
		e.logger.Printf("WARNING: %s skipped: %v", op, err)
		return nil, err
	}
	return h, nil
}

// SyncProject writes one project and its project-scoped tables.
func (e *Engine) SyncProject(ctx context.Context, projectID int64, h Handle) Result {
	var res Result

	h, err := e.open(ctx, h, "project sync")
	if err != nil {
		res.skip(err)
		return res
	}

	w := &countingWriter{Writer: e.newWriter(h.Root())}
	project, err := e.tables.Get(ctx, store.Projects, projectID)
	if err != nil {
		e.logger.Printf("WARNING: Failed to load project %d: %v", projectID, err)
		res.fail(fmt.Sprintf("project %d", projectID), err)
		return res
	}

	if err := e.syncProject(ctx, w, project, &res); err != nil {
		e.logger.Printf("WARNING: Failed to sync project %d: %v", projectID, err)
		res.fail(fmt.Sprintf("project %d", projectID), err)
	}
	res.Files = int(w.n.Load())
	return res
}

// SyncAll writes every project and every global table, then commits once if
// any project was synced.
func (e *Engine) SyncAll(ctx context.Context, h Handle) Report {
	var rep Report

	h, err := e.open(ctx, h, "vault sync")
	if err != nil {
		rep.skip(err)
		return rep
	}

	e.logger.Printf("Starting vault sync into %s", h.Root())
	w := &countingWriter{Writer: e.newWriter(h.Root())}

	projects, err := e.tables.All(ctx, store.Projects)
	if err != nil {
		e.logger.Printf("WARNING: Failed to list projects: %v", err)
		rep.fail(string(store.Projects), err)
	}
	for _, project := range projects {
		if err := e.syncProject(ctx, w, project, &rep.Result); err != nil {
			e.logger.Printf("WARNING: Failed to sync project %d: %v", project.ID(), err)
			rep.fail(fmt.Sprintf("project %d", project.ID()), err)
			continue
		}
		rep.Projects++
	}

	e.syncGlobals(ctx, w, &rep.Result)
	rep.Files = int(w.n.Load())

	e.logger.Printf("Vault sync complete: projects=%d/%d files=%d failed=%d",
		rep.Projects, len(projects), rep.Files, len(rep.Failures))

	if rep.Projects > 0 {
		msg := fmt.Sprintf("Vault sync %s (%d projects)", e.now().UTC().Format(time.RFC3339), rep.Projects)
		if id, err := e.commit(ctx, h, msg); err != nil {
			e.logger.Printf("WARNING: Auto-commit failed: %v", err)
		} else {
			rep.Commit = id
		}
	}
	return rep
}

// Commit snapshots the vault into its local history and returns the commit
// hash. ok is false when there is no vault or the commit failed; the cause is
// logged.
func (e *Engine) Commit(ctx context.Context, message string, h Handle) (string, bool) {
	h, err := e.resolve(ctx, h)
	if err != nil {
		e.logger.Printf("WARNING: commit skipped: %v", err)
		return "", false
	}
	if err := e.authorize(ctx, h, false); err != nil {
		e.logger.Printf("WARNING: commit skipped: %v", err)
		return "", false
	}

	id, err := e.commit(ctx, h, message)
	if err != nil {
		e.logger.Printf("WARNING: Commit failed: %v", err)
		return "", false
	}
	return id, true
}

func (e *Engine) commit(ctx context.Context, h Handle, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		message = "Vault sync " + e.now().UTC().Format(time.RFC3339)
	}

	repo, err := e.repo(ctx, h)
	if err != nil {
		return "", err
	}
	changed, err := repo.HasChanges(ctx)
	if err != nil {
		return "", err
	}
	if !changed {
		if head, err := repo.Head(ctx); err == nil {
			e.logger.Printf("No vault changes since %s", shortHash(head))
			return head, nil
		}
	}
	if err := repo.AddAll(ctx); err != nil {
		return "", err
	}
	id, err := repo.Commit(ctx, vcs.CommitOptions{Message: message, Author: Author})
	if err != nil {
		return "", err
	}
	e.logger.Printf("Committed vault snapshot %s", shortHash(id))
	return id, nil
}

// repo opens the working tree and initializes it if needed.
func (e *Engine) repo(ctx context.Context, h Handle) (vcs.Repo, error) {
	repo, err := e.openRepo(h.Root())
	if err != nil {
		return nil, err
	}
	if !repo.IsRepo() {
		if err := repo.Init(ctx, e.branch(ctx)); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func shortHash(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
