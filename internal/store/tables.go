package store

import "strings"

// Table names a workshop table.
type Table string

// Project-scoped tables carry a project_id foreign key.
const (
	Projects        Table = "projects"
	ProjectTasks    Table = "project_tasks"
	ProjectScripts  Table = "project_scripts"
	NotebookEntries Table = "notebook_entries"
	ProjectFiles    Table = "project_files"
	ProjectBOM      Table = "project_bom"
	ProjectLinks    Table = "project_links"
)

// Global tables hold one logical collection each.
const (
	InventoryItems  Table = "inventory_items"
	InboxItems      Table = "inbox_items"
	GlobalNotes     Table = "global_notes"
	PurchaseItems   Table = "purchase_items"
	Vendors         Table = "vendors"
	Reminders       Table = "reminders"
	Templates       Table = "templates"
	Goals           Table = "goals"
	SystemConfig    Table = "system_config"
	Logs            Table = "logs"
	PartCache       Table = "part_cache"
	Assets          Table = "assets"
	Songs           Table = "songs"
	Albums          Table = "albums"
	LLMInstructions Table = "llm_instructions"
)

// Child tables belong to a global parent row and are exported with it.
const (
	SongDocuments  Table = "song_documents"
	SongRecordings Table = "song_recordings"
	SongFiles      Table = "song_files"
	AlbumFiles     Table = "album_files"
)

// Scope says how a table is partitioned when mirrored.
type Scope int

const (
	// ScopeUnknown marks a table this build has no descriptor for.
	ScopeUnknown Scope = iota
	// ScopeGlobal tables are synced once per run.
	ScopeGlobal
	// ScopeProject tables are synced once per owning project.
	ScopeProject
	// ScopeChild tables are synced by their parent's handler.
	ScopeChild
)

// Descriptor describes a known table.
type Descriptor struct {
	Name       Table
	Scope      Scope
	ForeignKey string // project_id, song_id, album_id; empty for global tables
	Parent     Table  // for ScopeChild
}

var descriptors = []Descriptor{
	{Name: Projects, Scope: ScopeProject},
	{Name: ProjectTasks, Scope: ScopeProject, ForeignKey: "project_id"},
	{Name: ProjectScripts, Scope: ScopeProject, ForeignKey: "project_id"},
	{Name: NotebookEntries, Scope: ScopeProject, ForeignKey: "project_id"},
	{Name: ProjectFiles, Scope: ScopeProject, ForeignKey: "project_id"},
	{Name: ProjectBOM, Scope: ScopeProject, ForeignKey: "project_id"},
	{Name: ProjectLinks, Scope: ScopeProject, ForeignKey: "project_id"},

	{Name: InventoryItems, Scope: ScopeGlobal},
	{Name: InboxItems, Scope: ScopeGlobal},
	{Name: GlobalNotes, Scope: ScopeGlobal},
	{Name: PurchaseItems, Scope: ScopeGlobal},
	{Name: Vendors, Scope: ScopeGlobal},
	{Name: Reminders, Scope: ScopeGlobal},
	{Name: Templates, Scope: ScopeGlobal},
	{Name: Goals, Scope: ScopeGlobal},
	{Name: SystemConfig, Scope: ScopeGlobal},
	{Name: Logs, Scope: ScopeGlobal},
	{Name: PartCache, Scope: ScopeGlobal},
	{Name: Assets, Scope: ScopeGlobal},
	{Name: Songs, Scope: ScopeGlobal},
	{Name: Albums, Scope: ScopeGlobal},
	{Name: LLMInstructions, Scope: ScopeGlobal},

	{Name: SongDocuments, Scope: ScopeChild, ForeignKey: "song_id", Parent: Songs},
	{Name: SongRecordings, Scope: ScopeChild, ForeignKey: "song_id", Parent: Songs},
	{Name: SongFiles, Scope: ScopeChild, ForeignKey: "song_id", Parent: Songs},
	{Name: AlbumFiles, Scope: ScopeChild, ForeignKey: "album_id", Parent: Albums},
}

// Describe returns the descriptor for t. Unknown tables get ScopeUnknown.
func Describe(t Table) Descriptor {
	for _, d := range descriptors {
		if d.Name == t {
			return d
		}
	}
	return Descriptor{Name: t, Scope: ScopeUnknown}
}

// Known returns every table descriptor, in declaration order.
func Known() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// ProjectScoped returns the project-scoped tables other than Projects itself.
func ProjectScoped() []Table {
	var out []Table
	for _, d := range descriptors {
		if d.Scope == ScopeProject && d.Name != Projects {
			out = append(out, d.Name)
		}
	}
	return out
}

// SimpleName strips the "project_" prefix: project_bom -> bom.
func (t Table) SimpleName() string {
	return strings.TrimPrefix(string(t), "project_")
}
