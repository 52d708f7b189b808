package lifecycle

import "time"

// SyncStatus is the state of one vault sync session.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// SyncEventType names a sync machine event.
type SyncEventType string

const (
	SyncStart   SyncEventType = "SYNC"
	SyncSuccess SyncEventType = "SYNC_SUCCESS"
	SyncFailure SyncEventType = "SYNC_ERROR"
	SyncRetry   SyncEventType = "RETRY"
	SyncReset   SyncEventType = "RESET"
	SyncQueue   SyncEventType = "QUEUE_CHANGE"
)

// SyncEvent is a sync machine event. Timestamp is read for SYNC_SUCCESS and
// Err for SYNC_ERROR.
type SyncEvent struct {
	Type      SyncEventType
	Timestamp time.Time
	Err       string
}

// Succeeded builds a SYNC_SUCCESS event.
func Succeeded(at time.Time) SyncEvent {
	return SyncEvent{Type: SyncSuccess, Timestamp: at}
}

// Failed builds a SYNC_ERROR event.
func Failed(err string) SyncEvent {
	return SyncEvent{Type: SyncFailure, Err: err}
}

// SyncContext is carried alongside a sync session's status.
//
// RetryCount is zeroed by success or RESET and bumped by every error.
// PendingChanges only grows through QUEUE_CHANGE; nothing in the transition
// table lowers it. Use ClearPending from outside the machine.
type SyncContext struct {
	PendingChanges int        `json:"pending_changes"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	RetryCount     int        `json:"retry_count"`
}

// synced is final for a session: only QUEUE_CHANGE is accepted there. The
// next run starts a new session.
var syncTransitions = map[SyncStatus]map[SyncEventType]SyncStatus{
	SyncIdle: {
		SyncStart: SyncSyncing,
	},
	SyncSyncing: {
		SyncSuccess: SyncSynced,
		SyncFailure: SyncError,
	},
	SyncSynced: {},
	SyncError: {
		SyncRetry: SyncSyncing,
		SyncReset: SyncIdle,
	},
}

// TransitionSync applies event to a sync session in state. QUEUE_CHANGE is
// accepted in every state and never moves the machine.
func TransitionSync(state SyncStatus, ctx SyncContext, event SyncEvent) (SyncStatus, SyncContext, bool) {
	if event.Type == SyncQueue {
		if !state.IsValid() {
			return state, ctx, false
		}
		ctx.PendingChanges++
		return state, ctx, true
	}
	next, ok := syncTransitions[state][event.Type]
	if !ok {
		return state, ctx, false
	}
	switch event.Type {
	case SyncSuccess:
		at := event.Timestamp
		ctx.LastSyncAt = &at
		ctx.RetryCount = 0
	case SyncFailure:
		ctx.LastError = event.Err
		ctx.RetryCount++
	case SyncReset:
		ctx.LastError = ""
		ctx.RetryCount = 0
	}
	return next, ctx, true
}

// ClearPending zeroes the pending change counter.
func ClearPending(ctx SyncContext) SyncContext {
	ctx.PendingChanges = 0
	return ctx
}

// NewSyncMachine returns an idle sync session.
func NewSyncMachine() *Machine[SyncStatus, SyncContext, SyncEvent] {
	return NewMachine(SyncIdle, SyncContext{}, TransitionSync)
}

// SyncEvents lists the event types accepted in state, QUEUE_CHANGE included.
func SyncEvents(state SyncStatus) []SyncEventType {
	if !state.IsValid() {
		return nil
	}
	events := eventsFor(syncTransitions, state)
	return append(events, SyncQueue)
}

func (s SyncStatus) IsValid() bool {
	_, ok := syncTransitions[s]
	return ok
}

func (s SyncStatus) String() string { return string(s) }

func (s SyncStatus) Label() string {
	switch s {
	case SyncIdle:
		return "Idle"
	case SyncSyncing:
		return "Syncing"
	case SyncSynced:
		return "Synced"
	case SyncError:
		return "Sync Error"
	default:
		return "Unknown"
	}
}

func (s SyncStatus) Color() string {
	switch s {
	case SyncIdle:
		return "#6B7280"
	case SyncSyncing:
		return "#3B82F6"
	case SyncSynced:
		return "#22C55E"
	case SyncError:
		return "#EF4444"
	default:
		return "#9CA3AF"
	}
}
