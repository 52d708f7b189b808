package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/workshopops/workshop/internal/store"
	"github.com/workshopops/workshop/internal/vcs"
)

func TestSyncProject_NoHandle(t *testing.T) {
	te := newTestEngine(t, nil)
	te.handles.handle = nil
	put(t, te.db, store.Projects, store.Row{"title": "Lamp"})

	res := te.SyncProject(context.Background(), 1, nil)

	if !res.Skipped {
		t.Fatal("expected the sync to be skipped")
	}
	if !errors.Is(res.Reason, ErrNoHandle) {
		t.Errorf("Reason = %v, want ErrNoHandle", res.Reason)
	}
	if res.Files != 0 {
		t.Errorf("Files = %d, want 0", res.Files)
	}
	if files := te.files(t); len(files) != 0 {
		t.Errorf("vault should be empty, got %v", files)
	}
}

func TestSyncProject_PermissionDenied(t *testing.T) {
	te := newTestEngine(t, nil)
	te.handles.state = PermissionDenied
	put(t, te.db, store.Projects, store.Row{"title": "Lamp"})

	res := te.SyncProject(context.Background(), 1, nil)

	if !res.Skipped || !errors.Is(res.Reason, ErrPermissionDenied) {
		t.Errorf("got skipped=%v reason=%v, want permission denied", res.Skipped, res.Reason)
	}
	if files := te.files(t); len(files) != 0 {
		t.Errorf("vault should be empty, got %v", files)
	}
}

func TestSyncProject_ChecksPermissionEveryCall(t *testing.T) {
	te := newTestEngine(t, nil)
	put(t, te.db, store.Projects, store.Row{"title": "Lamp"})
	ctx := context.Background()

	te.SyncProject(ctx, 1, nil)
	te.SyncProject(ctx, 1, nil)

	if te.handles.checks != 2 {
		t.Errorf("permission checked %d times, want 2", te.handles.checks)
	}
}

func TestSyncProject_MissingProject(t *testing.T) {
	te := newTestEngine(t, nil)

	res := te.SyncProject(context.Background(), 42, nil)

	if res.Skipped {
		t.Fatal("a missing project is a failure, not a skip")
	}
	if len(res.Failures) != 1 || !store.IsNotFound(res.Failures[0].Err) {
		t.Errorf("Failures = %v, want one not-found", res.Failures)
	}
}

func TestSyncProject_Layout(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	id := put(t, te.db, store.Projects, store.Row{
		"title": "My/Cool:Project!",
		"cover": &store.Blob{MIME: "image/jpeg", Data: []byte("jpg")},
	})
	put(t, te.db, store.ProjectTasks, store.Row{"project_id": id, "title": "solder"})
	put(t, te.db, store.ProjectScripts, store.Row{"project_id": id, "name": "blink.ino", "language": "Arduino", "content": "void loop() {}"})
	put(t, te.db, store.ProjectScripts, store.Row{"project_id": id, "name": "", "language": "cobol", "content": "x"})
	put(t, te.db, store.NotebookEntries, store.Row{
		"project_id": id,
		"date":       "2024-02-01T09:00:00Z",
		"text":       "wired it up",
		"images": []*store.Blob{
			{MIME: "image/jpeg", Data: []byte("i0")},
			{Data: []byte("i1")},
		},
	})
	put(t, te.db, store.ProjectFiles, store.Row{"project_id": id, "name": "wiring.pdf", "data": &store.Blob{MIME: "application/pdf", Data: []byte("%PDF")}})
	put(t, te.db, store.ProjectBOM, store.Row{"project_id": id, "part": "LED", "photo": &store.Blob{MIME: "image/png", Data: []byte("png")}})
	// another project's rows stay out
	put(t, te.db, store.ProjectTasks, store.Row{"project_id": id + 1, "title": "elsewhere"})

	res := te.SyncProject(ctx, id, nil)
	if !res.OK() {
		t.Fatalf("SyncProject() failed: %+v", res)
	}

	dir := "Projects/1 - My_Cool_Project_/"
	want := []string{
		dir + "1_cover.jpeg",
		dir + "assets/bom/1_photo.png",
		dir + "assets/bom/bom.json",
		dir + "assets/tasks/tasks.json",
		dir + "assets/wiring.pdf",
		dir + "notebook/2024-02-01_1.json",
		dir + "notebook/2024-02-01_1_img0.jpeg",
		dir + "notebook/2024-02-01_1_img1.png",
		dir + "project.json",
		dir + "scripts/blink.ino",
		dir + "scripts/script_2.txt",
	}
	got := te.files(t)
	slices.Sort(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("vault files mismatch (-want +got):\n%s", diff)
	}
	if res.Files != len(want) {
		t.Errorf("Files = %d, want %d", res.Files, len(want))
	}

	var project map[string]any
	if err := json.Unmarshal(te.read(t, dir+"project.json"), &project); err != nil {
		t.Fatal(err)
	}
	if project["cover"] != FileRef+dir+"1_cover.jpeg" {
		t.Errorf("cover = %v", project["cover"])
	}

	var tasks []map[string]any
	if err := json.Unmarshal(te.read(t, dir+"assets/tasks/tasks.json"), &tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0]["title"] != "solder" {
		t.Errorf("tasks.json = %v, want only this project's task", tasks)
	}

	if got := string(te.read(t, dir+"scripts/blink.ino")); got != "void loop() {}" {
		t.Errorf("script content = %q", got)
	}

	var entry map[string]any
	if err := json.Unmarshal(te.read(t, dir+"notebook/2024-02-01_1.json"), &entry); err != nil {
		t.Fatal(err)
	}
	wantImages := []any{
		FileRef + dir + "notebook/2024-02-01_1_img0.jpeg",
		FileRef + dir + "notebook/2024-02-01_1_img1.png",
	}
	if diff := cmp.Diff(wantImages, entry["images"]); diff != "" {
		t.Errorf("notebook images mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncProject_Idempotent(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	id := put(t, te.db, store.Projects, store.Row{"title": "Lamp", "photo": &store.Blob{MIME: "image/png", Data: []byte("p")}})
	put(t, te.db, store.ProjectBOM, store.Row{"project_id": id, "part": "LED"})

	te.SyncProject(ctx, id, nil)
	first := te.files(t)
	snapshot := make(map[string][]byte)
	for _, f := range first {
		snapshot[f] = te.read(t, f)
	}

	te.SyncProject(ctx, id, nil)
	second := te.files(t)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("file set changed (-first +second):\n%s", diff)
	}
	for _, f := range second {
		if !bytes.Equal(snapshot[f], te.read(t, f)) {
			t.Errorf("%s changed between syncs", f)
		}
	}
}

func TestSyncAll_PartialFailure(t *testing.T) {
	te := newTestEngine(t, func(w Writer) Writer {
		return &failingWriter{Writer: w, prefix: "Projects/1 - A/"}
	})
	for _, title := range []string{"A", "B", "C"} {
		put(t, te.db, store.Projects, store.Row{"title": title})
	}

	rep := te.SyncAll(context.Background(), nil)

	if rep.Skipped {
		t.Fatalf("SyncAll() skipped: %v", rep.Reason)
	}
	if rep.Projects != 2 {
		t.Errorf("Projects = %d, want 2", rep.Projects)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].Unit != "project 1" {
		t.Errorf("Failures = %v, want project 1 only", rep.Failures)
	}
	for _, rel := range []string{"Projects/2 - B/project.json", "Projects/3 - C/project.json"} {
		if !te.exists(rel) {
			t.Errorf("%s was not written", rel)
		}
	}
	if te.exists("Projects/1 - A/project.json") {
		t.Error("project A should not exist")
	}
	if len(te.repo.commits) != 1 {
		t.Errorf("auto-commits = %d, want 1", len(te.repo.commits))
	}
	if rep.Commit == "" {
		t.Error("Report.Commit should carry the commit hash")
	}
}

func TestSyncAll_CommitMessage(t *testing.T) {
	te := newTestEngine(t, nil)
	put(t, te.db, store.Projects, store.Row{"title": "A"})
	put(t, te.db, store.Projects, store.Row{"title": "B"})

	te.SyncAll(context.Background(), nil)

	if len(te.repo.commits) != 1 {
		t.Fatalf("commits = %d, want 1", len(te.repo.commits))
	}
	c := te.repo.commits[0]
	if c.Message != "Vault sync 2024-03-05T10:30:00Z (2 projects)" {
		t.Errorf("message = %q", c.Message)
	}
	if c.Author != Author {
		t.Errorf("author = %+v, want %+v", c.Author, Author)
	}
	if !te.repo.isRepo {
		t.Error("vault history should have been initialized")
	}
}

func TestSyncAll_NoProjectsNoCommit(t *testing.T) {
	te := newTestEngine(t, nil)
	put(t, te.db, store.InventoryItems, store.Row{"name": "M3 screws"})

	rep := te.SyncAll(context.Background(), nil)

	if rep.Projects != 0 || rep.Commit != "" {
		t.Errorf("got projects=%d commit=%q, want none", rep.Projects, rep.Commit)
	}
	if te.opened != 0 {
		t.Error("history should not be opened without synced projects")
	}
	if !te.exists("Inventory/items.json") {
		t.Error("globals should still be written")
	}
}

func TestSyncAll_NoHandle(t *testing.T) {
	te := newTestEngine(t, nil)
	te.handles.handle = nil
	put(t, te.db, store.Projects, store.Row{"title": "A"})

	rep := te.SyncAll(context.Background(), nil)

	if !rep.Skipped || rep.Projects != 0 {
		t.Errorf("got skipped=%v projects=%d, want skipped with 0", rep.Skipped, rep.Projects)
	}
	if te.opened != 0 {
		t.Error("no commit should be attempted")
	}
}

func TestSyncAll_ExplicitHandle(t *testing.T) {
	te := newTestEngine(t, nil)
	te.handles.handle = nil
	put(t, te.db, store.Projects, store.Row{"title": "A"})

	rep := te.SyncAll(context.Background(), Dir(te.dir))

	if rep.Projects != 1 {
		t.Errorf("Projects = %d, want 1", rep.Projects)
	}
}

func TestSyncAll_GlobalLayout(t *testing.T) {
	te := newTestEngine(t, nil)
	db := te.db
	ctx := context.Background()

	put(t, db, store.InventoryItems, store.Row{"name": "caliper", "photo": &store.Blob{MIME: "image/png", Data: []byte("c")}})
	put(t, db, store.InboxItems, store.Row{"text": "buy flux"})
	put(t, db, store.GlobalNotes, store.Row{"text": "note"})
	put(t, db, store.Vendors, store.Row{"name": "Digikey"})
	put(t, db, store.Reminders, store.Row{"text": "oil the lathe"})
	put(t, db, store.Templates, store.Row{"name": "basic"})
	put(t, db, store.Goals, store.Row{"name": "ship"})
	put(t, db, store.SystemConfig, store.Row{"key": VaultHandleKey, "value": te.dir})
	put(t, db, store.SystemConfig, store.Row{"key": "theme", "value": "dark"})
	put(t, db, store.Logs, store.Row{"message": "started"})
	put(t, db, store.PartCache, store.Row{"mpn": "NE555"})
	put(t, db, store.Assets, store.Row{"name": "logo", "file": &store.Blob{MIME: "image/svg+xml", Data: []byte("<svg/>")}})
	put(t, db, store.LLMInstructions, store.Row{"name": "Shop safety", "category": "Rules", "tags": []any{"safety"}, "content": "Wear goggles."})
	put(t, db, store.Table("widgets"), store.Row{"name": "gizmo"})
	if err := db.SetSetting(ctx, "pref.theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSetting(ctx, store.SettingGitToken, "secret"); err != nil {
		t.Fatal(err)
	}

	rep := te.SyncAll(ctx, nil)
	if !rep.OK() {
		t.Fatalf("SyncAll() failed: %+v", rep)
	}

	want := []string{
		"Assets/1_file.svg",
		"Assets/assets.json",
		"Global/goals.json",
		"Global/purchasing.json",
		"Global/reminders.json",
		"Global/templates.json",
		"Global/widgets.json",
		"Inbox/inbox.json",
		"Inventory/1_photo.png",
		"Inventory/items.json",
		"LLM Instructions/Rules/Shop_safety.md",
		"Notes/global_notes.json",
		"System/config.json",
		"System/local_settings.json",
		"System/logs.json",
		"System/part_cache.json",
	}
	got := te.files(t)
	slices.Sort(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("vault files mismatch (-want +got):\n%s", diff)
	}

	if strings.Contains(string(te.read(t, "System/config.json")), VaultHandleKey) {
		t.Error("config.json must not contain the vault handle")
	}

	var prefs map[string]string
	if err := json.Unmarshal(te.read(t, "System/local_settings.json"), &prefs); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]string{"theme": "dark"}, prefs); diff != "" {
		t.Errorf("local settings mismatch (-want +got):\n%s", diff)
	}

	var purchasing struct {
		Items   []map[string]any `json:"items"`
		Vendors []map[string]any `json:"vendors"`
	}
	if err := json.Unmarshal(te.read(t, "Global/purchasing.json"), &purchasing); err != nil {
		t.Fatal(err)
	}
	if len(purchasing.Items) != 0 || len(purchasing.Vendors) != 1 {
		t.Errorf("purchasing = %+v, want no items and one vendor", purchasing)
	}
}

func TestSyncAll_Music(t *testing.T) {
	te := newTestEngine(t, nil)
	db := te.db

	song := put(t, db, store.Songs, store.Row{"title": "Night Drive"})
	put(t, db, store.SongDocuments, store.Row{"song_id": song, "title": "lyrics", "scan": &store.Blob{MIME: "application/pdf", Data: []byte("pdf")}})
	put(t, db, store.SongRecordings, store.Row{"song_id": song, "name": "demo take", "audio": &store.Blob{MIME: "audio/mpeg", Data: []byte("mp3")}})
	put(t, db, store.SongFiles, store.Row{"song_id": song, "name": "chords.txt", "category": "sheets", "content": &store.Blob{MIME: "text/plain", Data: []byte("Am F C G")}})
	album := put(t, db, store.Albums, store.Row{"title": "Demos"})
	put(t, db, store.AlbumFiles, store.Row{"album_id": album, "name": "cover.png", "data": &store.Blob{MIME: "image/png", Data: []byte("png")}})

	rep := te.SyncAll(context.Background(), nil)
	if !rep.OK() {
		t.Fatalf("SyncAll() failed: %+v", rep)
	}

	want := []string{
		"Music/Albums/1 - Demos/album.json",
		"Music/Albums/1 - Demos/files/general/cover.png",
		"Music/Songs/1 - Night_Drive/documents.json",
		"Music/Songs/1 - Night_Drive/documents/1_scan.pdf",
		"Music/Songs/1 - Night_Drive/files/sheets/chords.txt",
		"Music/Songs/1 - Night_Drive/recordings/1_demo_take.mpeg",
		"Music/Songs/1 - Night_Drive/recordings/recordings.json",
		"Music/Songs/1 - Night_Drive/song.json",
	}
	got := te.files(t)
	slices.Sort(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("vault files mismatch (-want +got):\n%s", diff)
	}

	var recordings []map[string]any
	if err := json.Unmarshal(te.read(t, "Music/Songs/1 - Night_Drive/recordings/recordings.json"), &recordings); err != nil {
		t.Fatal(err)
	}
	if len(recordings) != 1 || recordings[0]["audio"] != FileRef+"Music/Songs/1 - Night_Drive/recordings/1_demo_take.mpeg" {
		t.Errorf("recordings.json = %v", recordings)
	}
}

func TestRenderInstruction(t *testing.T) {
	rel, data, err := renderInstruction(store.Row{
		"id":         int64(3),
		"name":       "Shop safety",
		"category":   "",
		"tags":       "safety, tools",
		"updated_at": "2024-01-01",
		"content":    "Wear goggles.",
	})
	if err != nil {
		t.Fatalf("renderInstruction() failed: %v", err)
	}
	if rel != "LLM Instructions/General/Shop_safety.md" {
		t.Errorf("path = %q", rel)
	}

	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		t.Fatalf("missing front matter: %q", text)
	}
	front, body, ok := strings.Cut(strings.TrimPrefix(text, "---\n"), "---\n\n")
	if !ok {
		t.Fatalf("unterminated front matter: %q", text)
	}
	if body != "Wear goggles.\n" {
		t.Errorf("body = %q", body)
	}

	var meta instructionMeta
	if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
		t.Fatalf("front matter is not YAML: %v", err)
	}
	want := instructionMeta{ID: 3, Name: "Shop safety", Tags: []string{"safety", "tools"}, UpdatedAt: "2024-01-01"}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Errorf("front matter mismatch (-want +got):\n%s", diff)
	}
}

func TestScriptExt(t *testing.T) {
	tests := map[string]string{
		"Python":   "py",
		" bash ":   "sh",
		"openscad": "scad",
		"":         "txt",
		"cobol":    "txt",
	}
	for lang, want := range tests {
		if got := ScriptExt(lang); got != want {
			t.Errorf("ScriptExt(%q) = %q, want %q", lang, got, want)
		}
	}
}

func TestEntryDate(t *testing.T) {
	tests := []struct {
		row  store.Row
		want string
	}{
		{store.Row{"date": "2024-02-01T09:00:00Z"}, "2024-02-01"},
		{store.Row{"created_at": "2023-12-31"}, "2023-12-31"},
		{store.Row{"createdAt": "2023/05/06"}, "2023-05-06"},
		{store.Row{"date": "2024/02/01 10:00"}, "2024-02-01"},
		{store.Row{}, "undated"},
	}
	for _, tt := range tests {
		if got := entryDate(tt.row); got != tt.want {
			t.Errorf("entryDate(%v) = %q, want %q", tt.row, got, tt.want)
		}
	}
}

func TestCommit_NoHandle(t *testing.T) {
	te := newTestEngine(t, nil)
	te.handles.handle = nil

	id, ok := te.Commit(context.Background(), "snapshot", nil)

	if ok || id != "" {
		t.Errorf("Commit() = (%q, %v), want (\"\", false)", id, ok)
	}
	if te.opened != 0 {
		t.Error("history should not be opened")
	}
}

func TestCommit_DefaultMessage(t *testing.T) {
	te := newTestEngine(t, nil)

	id, ok := te.Commit(context.Background(), "  ", nil)

	if !ok || id == "" {
		t.Fatalf("Commit() = (%q, %v)", id, ok)
	}
	if got := te.repo.commits[0].Message; got != "Vault sync 2024-03-05T10:30:00Z" {
		t.Errorf("message = %q", got)
	}
}

func TestCommit_NoChanges(t *testing.T) {
	te := newTestEngine(t, nil)
	te.repo.isRepo = true
	te.repo.clean = true

	id, ok := te.Commit(context.Background(), "snapshot", nil)

	if !ok || id != "0123456789abcdef" {
		t.Fatalf("Commit() = (%q, %v), want HEAD", id, ok)
	}
	if len(te.repo.commits) != 0 {
		t.Errorf("commits = %d, want 0 for a clean tree", len(te.repo.commits))
	}
}

func TestPushPull_NotConfigured(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	if err := te.db.SetSetting(ctx, store.SettingGitRepoURL, "https://example.com/vault.git"); err != nil {
		t.Fatal(err)
	}

	if err := te.Push(ctx, nil); err != nil {
		t.Errorf("Push() without a token = %v, want nil", err)
	}
	if err := te.Pull(ctx, nil); err != nil {
		t.Errorf("Pull() without a token = %v, want nil", err)
	}
	if te.opened != 0 {
		t.Error("nothing should be opened when the remote is not configured")
	}
}

func configureRemote(t *testing.T, te *testEngine, settings map[string]string) {
	t.Helper()
	for k, v := range settings {
		if err := te.db.SetSetting(context.Background(), k, v); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPush_Configured(t *testing.T) {
	te := newTestEngine(t, nil)
	configureRemote(t, te, map[string]string{
		store.SettingGitToken:     "tok",
		store.SettingGitRepoURL:   "https://github.com/me/vault.git",
		store.SettingGitBranch:    "backup",
		store.SettingGitCORSProxy: "https://cors.example/",
	})

	if err := te.Push(context.Background(), nil); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	if te.repo.remoteURL != "https://cors.example/github.com/me/vault.git" {
		t.Errorf("remote URL = %q", te.repo.remoteURL)
	}
	want := []vcs.PushOptions{{Remote: "origin", Ref: "backup", Token: "tok"}}
	if diff := cmp.Diff(want, te.repo.pushes); diff != "" {
		t.Errorf("push options mismatch (-want +got):\n%s", diff)
	}
}

func TestPull_Configured(t *testing.T) {
	te := newTestEngine(t, nil)
	configureRemote(t, te, map[string]string{
		store.SettingGitToken:   "tok",
		store.SettingGitRepoURL: "https://github.com/me/vault.git",
	})

	if err := te.Pull(context.Background(), nil); err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}

	want := []vcs.PullOptions{{Remote: "origin", Ref: "main", Token: "tok", Author: Author, AllowUnrelated: true}}
	if diff := cmp.Diff(want, te.repo.pulls); diff != "" {
		t.Errorf("pull options mismatch (-want +got):\n%s", diff)
	}
}

func TestPush_Errors(t *testing.T) {
	te := newTestEngine(t, nil)
	configureRemote(t, te, map[string]string{
		store.SettingGitToken:   "tok",
		store.SettingGitRepoURL: "https://github.com/me/vault.git",
	})
	te.repo.pushErr = vcs.ErrAuth

	if err := te.Push(context.Background(), nil); !errors.Is(err, vcs.ErrAuth) {
		t.Errorf("Push() = %v, want ErrAuth", err)
	}

	te.handles.handle = nil
	if err := te.Push(context.Background(), nil); !errors.Is(err, ErrNoHandle) {
		t.Errorf("Push() without a vault = %v, want ErrNoHandle", err)
	}
}

func TestRemote_FetchURL(t *testing.T) {
	tests := []struct {
		remote Remote
		want   string
	}{
		{Remote{URL: "https://github.com/me/v.git"}, "https://github.com/me/v.git"},
		{Remote{URL: "https://github.com/me/v.git", CORSProxy: "https://proxy.dev"}, "https://proxy.dev/github.com/me/v.git"},
		{Remote{URL: "http://host/v.git", CORSProxy: "https://proxy.dev//"}, "https://proxy.dev/host/v.git"},
	}
	for _, tt := range tests {
		if got := tt.remote.FetchURL(); got != tt.want {
			t.Errorf("FetchURL(%+v) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
