package lifecycle

// TaskStatus is the lifecycle status of a project task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskDone       TaskStatus = "done"
)

// TaskEventType names a task machine event.
type TaskEventType string

const (
	TaskStart    TaskEventType = "START"
	TaskComplete TaskEventType = "COMPLETE"
	TaskBlock    TaskEventType = "BLOCK"
	TaskUnblock  TaskEventType = "UNBLOCK"
	TaskReset    TaskEventType = "RESET"
	TaskReopen   TaskEventType = "REOPEN"
)

// TaskEvent is a task machine event. Reason is only read for BLOCK.
type TaskEvent struct {
	Type   TaskEventType
	Reason string
}

// Block builds a BLOCK event carrying reason.
func Block(reason string) TaskEvent {
	return TaskEvent{Type: TaskBlock, Reason: reason}
}

// TaskContext is carried alongside a task's status. BlockedReason is non-empty
// only while the task is blocked.
type TaskContext struct {
	PreviousStatus *TaskStatus `json:"previous_status,omitempty"`
	BlockedReason  string      `json:"blocked_reason,omitempty"`
}

// BLOCK is wired from in_progress only. A task has to be started before it
// can be blocked.
var taskTransitions = map[TaskStatus]map[TaskEventType]TaskStatus{
	TaskTodo: {
		TaskStart: TaskInProgress,
	},
	TaskInProgress: {
		TaskComplete: TaskDone,
		TaskBlock:    TaskBlocked,
		TaskReset:    TaskTodo,
	},
	TaskBlocked: {
		TaskUnblock:  TaskInProgress,
		TaskComplete: TaskDone,
	},
	TaskDone: {
		TaskReopen: TaskTodo,
	},
}

// TransitionTask applies event to a task in state.
func TransitionTask(state TaskStatus, ctx TaskContext, event TaskEvent) (TaskStatus, TaskContext, bool) {
	next, ok := taskTransitions[state][event.Type]
	if !ok {
		return state, ctx, false
	}
	prev := state
	ctx.PreviousStatus = &prev
	if next == TaskBlocked {
		ctx.BlockedReason = event.Reason
	} else {
		ctx.BlockedReason = ""
	}
	return next, ctx, true
}

// NewTaskMachine returns a machine for a task currently in state.
func NewTaskMachine(state TaskStatus, ctx TaskContext) *Machine[TaskStatus, TaskContext, TaskEvent] {
	return NewMachine(state, ctx, TransitionTask)
}

// TaskEvents lists the event types accepted in state.
func TaskEvents(state TaskStatus) []TaskEventType {
	return eventsFor(taskTransitions, state)
}

// ParseTaskStatus validates a persisted status value.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(s)
	return st, st.IsValid()
}

func (s TaskStatus) IsValid() bool {
	_, ok := taskTransitions[s]
	return ok
}

func (s TaskStatus) IsTerminal() bool { return s == TaskDone }

func (s TaskStatus) String() string { return string(s) }

func (s TaskStatus) Label() string {
	switch s {
	case TaskTodo:
		return "To Do"
	case TaskInProgress:
		return "In Progress"
	case TaskBlocked:
		return "Blocked"
	case TaskDone:
		return "Done"
	default:
		return "Unknown"
	}
}

func (s TaskStatus) Color() string {
	switch s {
	case TaskTodo:
		return "#6B7280"
	case TaskInProgress:
		return "#3B82F6"
	case TaskBlocked:
		return "#EF4444"
	case TaskDone:
		return "#22C55E"
	default:
		return "#9CA3AF"
	}
}
