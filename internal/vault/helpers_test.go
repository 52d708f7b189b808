package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/workshopops/workshop/internal/logging"
	"github.com/workshopops/workshop/internal/store"
	"github.com/workshopops/workshop/internal/vcs"
)

var testNow = time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

// setupTestDB opens a fresh datastore in a temp dir.
func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "workshop.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func put(t *testing.T, db *store.DB, table store.Table, row store.Row) int64 {
	t.Helper()
	id, err := db.Put(context.Background(), table, row)
	if err != nil {
		t.Fatalf("Put(%s) failed: %v", table, err)
	}
	return id
}

// staticHandles is a HandleProvider with a fixed answer.
type staticHandles struct {
	handle Handle
	state  PermissionState
	checks int
}

func (s *staticHandles) Persisted(ctx context.Context) (Handle, error) { return s.handle, nil }
func (s *staticHandles) Persist(ctx context.Context, h Handle) error   { s.handle = h; return nil }
func (s *staticHandles) Permission(ctx context.Context, h Handle, request bool) (PermissionState, error) {
	s.checks++
	if s.state == "" {
		return PermissionGranted, nil
	}
	return s.state, nil
}

// memWriter keeps written files in memory.
type memWriter struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemWriter() *memWriter {
	return &memWriter{files: make(map[string][]byte)}
}

func (m *memWriter) WriteFile(ctx context.Context, rel string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[rel] = append([]byte(nil), data...)
	return nil
}

// failingWriter fails every write whose path starts with prefix.
type failingWriter struct {
	Writer
	prefix string
}

func (f *failingWriter) WriteFile(ctx context.Context, rel string, data []byte) error {
	if strings.HasPrefix(rel, f.prefix) {
		return errors.New("disk full")
	}
	return f.Writer.WriteFile(ctx, rel, data)
}

// fakeRepo records version-control calls.
type fakeRepo struct {
	root      string
	isRepo    bool
	commits   []vcs.CommitOptions
	remoteURL string
	pushes    []vcs.PushOptions
	pulls     []vcs.PullOptions
	pushErr   error
	pullErr   error
	clean     bool
}

func (f *fakeRepo) Name() vcs.Type { return vcs.TypeGit }
func (f *fakeRepo) Root() string   { return f.root }
func (f *fakeRepo) IsRepo() bool   { return f.isRepo }
func (f *fakeRepo) Init(ctx context.Context, branch string) error {
	f.isRepo = true
	return nil
}
func (f *fakeRepo) AddAll(ctx context.Context) error             { return nil }
func (f *fakeRepo) HasChanges(ctx context.Context) (bool, error) { return !f.clean, nil }
func (f *fakeRepo) Commit(ctx context.Context, opts vcs.CommitOptions) (string, error) {
	f.commits = append(f.commits, opts)
	return "0123456789abcdef", nil
}
func (f *fakeRepo) Head(ctx context.Context) (string, error) { return "0123456789abcdef", nil }
func (f *fakeRepo) SetRemote(ctx context.Context, name, url string) error {
	f.remoteURL = url
	return nil
}
func (f *fakeRepo) Push(ctx context.Context, opts vcs.PushOptions) error {
	f.pushes = append(f.pushes, opts)
	return f.pushErr
}
func (f *fakeRepo) Pull(ctx context.Context, opts vcs.PullOptions) error {
	f.pulls = append(f.pulls, opts)
	return f.pullErr
}

type testEngine struct {
	*Engine
	db      *store.DB
	dir     string
	handles *staticHandles
	repo    *fakeRepo
	opened  int
}

// newTestEngine wires an engine to a temp database and a temp vault
// directory. wrap, if non-nil, decorates the directory writer.
func newTestEngine(t *testing.T, wrap func(Writer) Writer) *testEngine {
	t.Helper()
	te := &testEngine{
		db:  setupTestDB(t),
		dir: t.TempDir(),
	}
	te.handles = &staticHandles{handle: Dir(te.dir)}
	te.repo = &fakeRepo{root: te.dir}
	te.Engine = New(Options{
		Tables:   te.db,
		Settings: te.db,
		Handles:  te.handles,
		OpenRepo: func(root string) (vcs.Repo, error) {
			te.opened++
			return te.repo, nil
		},
		NewWriter: func(root string) Writer {
			var w Writer = NewDirWriter(root)
			if wrap != nil {
				w = wrap(w)
			}
			return w
		},
		Logger: logging.Discard(),
		Now:    func() time.Time { return testNow },
	})
	return te
}

func (te *testEngine) read(t *testing.T, rel string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(te.dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("expected vault file %s: %v", rel, err)
	}
	return data
}

func (te *testEngine) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(te.dir, filepath.FromSlash(rel)))
	return err == nil
}

// files lists every file in the vault, slash-separated.
func (te *testEngine) files(t *testing.T) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(te.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(te.dir, path)
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walk vault: %v", err)
	}
	return out
}
