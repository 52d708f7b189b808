package lifecycle

// ProjectStatus is the lifecycle status of a project.
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// ProjectEvent drives the project machine.
type ProjectEvent string

const (
	ProjectStart    ProjectEvent = "START"
	ProjectPause    ProjectEvent = "PAUSE"
	ProjectResume   ProjectEvent = "RESUME"
	ProjectComplete ProjectEvent = "COMPLETE"
	ProjectReopen   ProjectEvent = "REOPEN"
	ProjectArchive  ProjectEvent = "ARCHIVE"
	ProjectRestore  ProjectEvent = "RESTORE"
)

// ProjectContext is carried alongside a project's status.
//
// TransitionCount grows by one on every accepted transition. PreviousStatus is
// nil until the first transition and afterwards always names the state the
// project left most recently.
type ProjectContext struct {
	PreviousStatus  *ProjectStatus `json:"previous_status,omitempty"`
	TransitionCount int            `json:"transition_count"`
}

var projectTransitions = map[ProjectStatus]map[ProjectEvent]ProjectStatus{
	ProjectPlanning: {
		ProjectStart: ProjectActive,
	},
	ProjectActive: {
		ProjectPause:    ProjectOnHold,
		ProjectComplete: ProjectCompleted,
		ProjectArchive:  ProjectArchived,
	},
	ProjectOnHold: {
		ProjectResume:  ProjectActive,
		ProjectArchive: ProjectArchived,
	},
	ProjectCompleted: {
		ProjectReopen:  ProjectActive,
		ProjectArchive: ProjectArchived,
	},
	ProjectArchived: {
		ProjectRestore: ProjectPlanning,
	},
}

// TransitionProject applies event to a project in state. Unwired events return
// the inputs unchanged with ok=false.
func TransitionProject(state ProjectStatus, ctx ProjectContext, event ProjectEvent) (ProjectStatus, ProjectContext, bool) {
	next, ok := projectTransitions[state][event]
	if !ok {
		return state, ctx, false
	}
	prev := state
	ctx.PreviousStatus = &prev
	ctx.TransitionCount++
	return next, ctx, true
}

// NewProjectMachine returns a machine for a project currently in state.
func NewProjectMachine(state ProjectStatus, ctx ProjectContext) *Machine[ProjectStatus, ProjectContext, ProjectEvent] {
	return NewMachine(state, ctx, TransitionProject)
}

// ProjectEvents lists the events accepted in state.
func ProjectEvents(state ProjectStatus) []ProjectEvent {
	return eventsFor(projectTransitions, state)
}

// ParseProjectStatus validates a persisted status value.
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	st := ProjectStatus(s)
	return st, st.IsValid()
}

// IsValid reports whether s is a known project status.
func (s ProjectStatus) IsValid() bool {
	_, ok := projectTransitions[s]
	return ok
}

// IsTerminal reports whether the project is finished or shelved.
func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectCompleted || s == ProjectArchived
}

func (s ProjectStatus) String() string { return string(s) }

// Label returns the human-facing name of the status.
func (s ProjectStatus) Label() string {
	switch s {
	case ProjectPlanning:
		return "Planning"
	case ProjectActive:
		return "Active"
	case ProjectOnHold:
		return "On Hold"
	case ProjectCompleted:
		return "Completed"
	case ProjectArchived:
		return "Archived"
	default:
		return "Unknown"
	}
}

// Color returns the hex color used to render the status.
func (s ProjectStatus) Color() string {
	switch s {
	case ProjectPlanning:
		return "#8B5CF6"
	case ProjectActive:
		return "#22C55E"
	case ProjectOnHold:
		return "#F59E0B"
	case ProjectCompleted:
		return "#3B82F6"
	case ProjectArchived:
		return "#6B7280"
	default:
		return "#9CA3AF"
	}
}
