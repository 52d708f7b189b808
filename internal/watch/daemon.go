// Package watch keeps the vault in step with the datastore.
//
// The daemon:
//  1. Watches the database file for writes
//  2. Debounces bursts of writes into one pending batch
//  3. Runs a full vault sync through a Sync session machine
//  4. Retries failed syncs a bounded number of times
//
// Only one sync runs at a time: the event loop is sequential and events that
// arrive during a sync are queued behind it.
package watch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/workshopops/workshop/internal/lifecycle"
	"github.com/workshopops/workshop/internal/logging"
	"github.com/workshopops/workshop/internal/vault"
	"github.com/workshopops/workshop/internal/vcs"
)

// Syncer runs vault operations. *vault.Engine implements it.
type Syncer interface {
	SyncAll(ctx context.Context, h vault.Handle) vault.Report
	Push(ctx context.Context, h vault.Handle) error
}

// Config holds configuration for the daemon.
type Config struct {
	// Debounce is how long the database must stay quiet before a sync runs
	Debounce time.Duration

	// MaxRetries bounds the RETRY events sent after a failed sync
	MaxRetries int

	// RetryWait is the pause before each retry
	RetryWait time.Duration

	// InitialSync runs one sync as soon as the daemon starts
	InitialSync bool

	// AutoPush pushes the vault after every successful sync
	AutoPush bool

	// Handle is the vault to sync into; nil means the persisted one
	Handle vault.Handle

	// Publisher receives session snapshots; may be nil
	Publisher Publisher

	// Logger for daemon activity
	Logger *log.Logger

	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce:    2 * time.Second,
		MaxRetries:  3,
		RetryWait:   5 * time.Second,
		InitialSync: true,
		Logger:      logging.Default("watch"),
		Now:         time.Now,
	}
}

// Daemon watches the database and syncs the vault after changes.
type Daemon struct {
	syncer  Syncer
	dbPath  string
	config  *Config
	session *Session
	watcher *FileWatcher
	trigger chan string

	// pushOff is set once a push fails in a way no retry can fix
	pushOff bool
}

// New creates a daemon with the default configuration.
func New(syncer Syncer, dbPath string) (*Daemon, error) {
	return NewWithConfig(syncer, dbPath, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration. Zero fields of
// config take their defaults.
func NewWithConfig(syncer Syncer, dbPath string, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}

	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.Debounce <= 0 {
		config.Debounce = defaults.Debounce
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryWait <= 0 {
		config.RetryWait = defaults.RetryWait
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	return &Daemon{
		syncer:  syncer,
		dbPath:  dbPath,
		config:  config,
		session: NewSession(config.Publisher, config.Now),
		watcher: watcher,
		trigger: make(chan string, 1),
	}, nil
}

// Session returns the daemon's sync session.
func (d *Daemon) Session() *Session {
	return d.session
}

// Trigger queues a change as if the database had been written. It never
// blocks; a trigger already waiting absorbs this one.
func (d *Daemon) Trigger(reason string) {
	select {
	case d.trigger <- reason:
	default:
	}
}

// Run watches the database until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	logger := d.config.Logger
	logger.Println("Starting daemon")

	if err := d.watcher.Start(d.dbPath); err != nil {
		_ = d.watcher.Stop()
		return err
	}
	defer func() {
		if err := d.watcher.Stop(); err != nil {
			logger.Printf("Error closing watcher: %v", err)
		}
		logger.Println("Daemon stopped")
	}()
	logger.Printf("Watching: %s", d.dbPath)

	if d.config.InitialSync {
		d.runSync(ctx)
	}

	debounce := time.NewTimer(d.config.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Println("Shutdown signal received")
			return nil

		case ev, ok := <-d.watcher.Events():
			if !ok {
				return nil
			}
			d.queue(fmt.Sprintf("%s %s", ev.Op, ev.Path))
			debounce.Reset(d.config.Debounce)

		case reason := <-d.trigger:
			d.queue(reason)
			debounce.Reset(d.config.Debounce)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return nil
			}
			logger.Printf("Watcher error: %v", err)

		case <-debounce.C:
			d.runSync(ctx)
		}
	}
}

func (d *Daemon) queue(what string) {
	d.config.Logger.Printf("Change: %s", what)
	d.session.Send(lifecycle.SyncEvent{Type: lifecycle.SyncQueue})
}

// runSync drives one session through SYNC, then SYNC_SUCCESS or SYNC_ERROR
// followed by up to MaxRetries RETRY attempts.
func (d *Daemon) runSync(ctx context.Context) {
	logger := d.config.Logger

	switch d.session.State() {
	case lifecycle.SyncError:
		d.session.Send(lifecycle.SyncEvent{Type: lifecycle.SyncReset})
	case lifecycle.SyncSynced:
		d.session.Renew()
	}
	if !d.session.Send(lifecycle.SyncEvent{Type: lifecycle.SyncStart}) {
		logger.Printf("WARNING: sync not started from %s", d.session.State())
		return
	}

	for {
		rep := d.syncer.SyncAll(ctx, d.config.Handle)
		err := reportError(rep)
		if err == nil {
			d.session.Send(lifecycle.Succeeded(d.config.Now()))
			d.session.ClearPending()
			logger.Printf("Synced %d projects, %d files", rep.Projects, rep.Files)
			d.push(ctx)
			return
		}

		d.session.Send(lifecycle.Failed(err.Error()))
		retries := d.session.Snapshot().RetryCount
		if retries > d.config.MaxRetries || ctx.Err() != nil {
			logger.Printf("WARNING: Sync failed, giving up after %d attempts: %v", retries, err)
			return
		}
		logger.Printf("WARNING: Sync failed (attempt %d), retrying in %s: %v", retries, d.config.RetryWait, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.config.RetryWait):
		}
		d.session.Send(lifecycle.SyncEvent{Type: lifecycle.SyncRetry})
	}
}

func (d *Daemon) push(ctx context.Context) {
	if !d.config.AutoPush || d.pushOff {
		return
	}
	logger := d.config.Logger
	for attempt := 1; ; attempt++ {
		err := d.syncer.Push(ctx, d.config.Handle)
		switch {
		case err == nil:
			return
		case vcs.IsFatal(err):
			d.pushOff = true
			logger.Printf("WARNING: Auto-push disabled: %v", err)
			return
		case vcs.IsUserActionRequired(err):
			logger.Printf("WARNING: Auto-push needs attention, pull or update the token: %v", err)
			return
		case vcs.IsRetryable(err) && attempt == 1:
			logger.Printf("WARNING: Auto-push failed, retrying in %s: %v", d.config.RetryWait, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.config.RetryWait):
			}
		default:
			logger.Printf("WARNING: Auto-push failed: %v", err)
			return
		}
	}
}

// reportError turns a sync report into the error recorded by SYNC_ERROR.
// A skipped run and a run with failed units both count as failed.
func reportError(rep vault.Report) error {
	if rep.Skipped {
		if rep.Reason != nil {
			return rep.Reason
		}
		return fmt.Errorf("sync skipped")
	}
	switch n := len(rep.Failures); n {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", rep.Failures[0])
	default:
		return fmt.Errorf("%s (and %d more)", rep.Failures[0], n-1)
	}
}
