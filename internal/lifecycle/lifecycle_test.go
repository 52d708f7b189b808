package lifecycle

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestProjectTransitions(t *testing.T) {
	tests := []struct {
		name  string
		from  ProjectStatus
		event ProjectEvent
		want  ProjectStatus
		ok    bool
	}{
		{"start planning", ProjectPlanning, ProjectStart, ProjectActive, true},
		{"pause active", ProjectActive, ProjectPause, ProjectOnHold, true},
		{"complete active", ProjectActive, ProjectComplete, ProjectCompleted, true},
		{"archive active", ProjectActive, ProjectArchive, ProjectArchived, true},
		{"resume on hold", ProjectOnHold, ProjectResume, ProjectActive, true},
		{"archive on hold", ProjectOnHold, ProjectArchive, ProjectArchived, true},
		{"reopen completed", ProjectCompleted, ProjectReopen, ProjectActive, true},
		{"archive completed", ProjectCompleted, ProjectArchive, ProjectArchived, true},
		{"restore archived", ProjectArchived, ProjectRestore, ProjectPlanning, true},
		{"complete planning rejected", ProjectPlanning, ProjectComplete, ProjectPlanning, false},
		{"pause on hold rejected", ProjectOnHold, ProjectPause, ProjectOnHold, false},
		{"start archived rejected", ProjectArchived, ProjectStart, ProjectArchived, false},
		{"unknown state rejected", ProjectStatus("bogus"), ProjectStart, ProjectStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok := TransitionProject(tt.from, ProjectContext{}, tt.event)
			if ok != tt.ok {
				t.Errorf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("state = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProjectContextInvariants(t *testing.T) {
	m := NewProjectMachine(ProjectPlanning, ProjectContext{})
	if m.Context().PreviousStatus != nil {
		t.Fatalf("PreviousStatus should be nil before the first transition")
	}

	events := []ProjectEvent{ProjectStart, ProjectPause, ProjectResume, ProjectComplete, ProjectReopen, ProjectArchive, ProjectRestore}
	for i, ev := range events {
		before := m.State()
		if !m.Send(ev) {
			t.Fatalf("event %s rejected from %s", ev, before)
		}
		ctx := m.Context()
		if ctx.TransitionCount != i+1 {
			t.Errorf("after %d transitions TransitionCount = %d", i+1, ctx.TransitionCount)
		}
		if ctx.PreviousStatus == nil || *ctx.PreviousStatus != before {
			t.Errorf("after %s PreviousStatus = %v, want %s", ev, ctx.PreviousStatus, before)
		}
	}
	if m.State() != ProjectPlanning {
		t.Errorf("final state = %s, want planning", m.State())
	}
}

func TestProjectRejectedEventLeavesContext(t *testing.T) {
	prev := ProjectPlanning
	ctx := ProjectContext{PreviousStatus: &prev, TransitionCount: 3}
	state, got, ok := TransitionProject(ProjectActive, ctx, ProjectRestore)
	if ok {
		t.Fatal("RESTORE from active should be rejected")
	}
	if state != ProjectActive {
		t.Errorf("state = %s, want active", state)
	}
	if diff := cmp.Diff(ctx, got); diff != "" {
		t.Errorf("context changed (-want +got):\n%s", diff)
	}
}

func TestTaskBlockReason(t *testing.T) {
	for _, exit := range []TaskEvent{{Type: TaskUnblock}, {Type: TaskComplete}} {
		t.Run(string(exit.Type), func(t *testing.T) {
			m := NewTaskMachine(TaskTodo, TaskContext{})
			if !m.Send(TaskEvent{Type: TaskStart}) {
				t.Fatal("START rejected")
			}
			if !m.Send(Block("x")) {
				t.Fatal("BLOCK rejected from in_progress")
			}
			if m.State() != TaskBlocked {
				t.Fatalf("state = %s, want blocked", m.State())
			}
			if m.Context().BlockedReason != "x" {
				t.Errorf("BlockedReason = %q, want x", m.Context().BlockedReason)
			}

			if !m.Send(exit) {
				t.Fatalf("%s rejected from blocked", exit.Type)
			}
			if m.Context().BlockedReason != "" {
				t.Errorf("BlockedReason = %q after %s, want empty", m.Context().BlockedReason, exit.Type)
			}
			if prev := m.Context().PreviousStatus; prev == nil || *prev != TaskBlocked {
				t.Errorf("PreviousStatus = %v, want blocked", prev)
			}
		})
	}
}

// A task must be started before it can be blocked.
func TestTaskBlockFromTodoRejected(t *testing.T) {
	state, ctx, ok := TransitionTask(TaskTodo, TaskContext{}, Block("waiting on parts"))
	if ok {
		t.Fatal("BLOCK from todo should be rejected")
	}
	if state != TaskTodo {
		t.Errorf("state = %s, want todo", state)
	}
	if ctx.BlockedReason != "" {
		t.Errorf("BlockedReason = %q, want empty", ctx.BlockedReason)
	}
}

func TestTaskTransitions(t *testing.T) {
	tests := []struct {
		from  TaskStatus
		event TaskEventType
		want  TaskStatus
		ok    bool
	}{
		{TaskTodo, TaskStart, TaskInProgress, true},
		{TaskInProgress, TaskComplete, TaskDone, true},
		{TaskInProgress, TaskReset, TaskTodo, true},
		{TaskBlocked, TaskUnblock, TaskInProgress, true},
		{TaskBlocked, TaskComplete, TaskDone, true},
		{TaskDone, TaskReopen, TaskTodo, true},
		{TaskTodo, TaskComplete, TaskTodo, false},
		{TaskBlocked, TaskReset, TaskBlocked, false},
		{TaskDone, TaskStart, TaskDone, false},
	}

	for _, tt := range tests {
		got, _, ok := TransitionTask(tt.from, TaskContext{}, TaskEvent{Type: tt.event})
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s --%s--> (%s, %v), want (%s, %v)", tt.from, tt.event, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPurchaseReorderCycle(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	m := NewPurchaseMachine(PurchaseWishlist, PurchaseContext{}, clock)
	sequence := []PurchaseEvent{PurchaseConsider, PurchaseApprove, PurchaseOrder, PurchaseReceive, PurchaseReturn}
	for _, ev := range sequence {
		if !m.Send(ev) {
			t.Fatalf("%s rejected from %s", ev, m.State())
		}
	}
	firstOrder := *m.Context().OrderedAt
	if m.Context().ReceivedAt == nil {
		t.Fatal("ReceivedAt should be set after RECEIVE")
	}

	if !m.Send(PurchaseReorder) {
		t.Fatalf("REORDER rejected from %s", m.State())
	}

	ctx := m.Context()
	if m.State() != PurchaseOrdered {
		t.Errorf("state = %s, want ordered", m.State())
	}
	if ctx.ReceivedAt != nil {
		t.Errorf("ReceivedAt = %v, want nil after REORDER", ctx.ReceivedAt)
	}
	if ctx.OrderedAt == nil || !ctx.OrderedAt.After(firstOrder) {
		t.Errorf("OrderedAt = %v, want the REORDER timestamp (after %v)", ctx.OrderedAt, firstOrder)
	}
	if want := base.Add(time.Duration(tick) * time.Hour); !ctx.OrderedAt.Equal(want) {
		t.Errorf("OrderedAt = %v, want %v", ctx.OrderedAt, want)
	}
}

func TestPurchaseRejectedEvents(t *testing.T) {
	now := time.Now()
	tests := []struct {
		from  PurchaseStatus
		event PurchaseEvent
	}{
		{PurchaseWishlist, PurchaseOrder},
		{PurchaseConsidering, PurchaseRemove},
		{PurchaseOrdered, PurchaseReorder},
		{PurchaseReceived, PurchaseReceive},
		{PurchaseRemoved, PurchaseConsider},
	}
	for _, tt := range tests {
		state, ctx, ok := TransitionPurchase(tt.from, PurchaseContext{}, tt.event, now)
		if ok || state != tt.from {
			t.Errorf("%s --%s--> (%s, %v), want rejection", tt.from, tt.event, state, ok)
		}
		if ctx.OrderedAt != nil || ctx.ReceivedAt != nil {
			t.Errorf("%s --%s--> context changed: %+v", tt.from, tt.event, ctx)
		}
	}
}

func TestPurchaseRemoveRestore(t *testing.T) {
	m := NewPurchaseMachine(PurchaseWishlist, PurchaseContext{}, nil)
	if !m.Send(PurchaseRemove) || m.State() != PurchaseRemoved {
		t.Fatalf("REMOVE: state = %s", m.State())
	}
	if !m.Send(PurchaseRestore) || m.State() != PurchaseWishlist {
		t.Fatalf("RESTORE: state = %s", m.State())
	}
}

func TestSyncRetryCount(t *testing.T) {
	m := NewSyncMachine()

	if !m.Send(SyncEvent{Type: SyncStart}) {
		t.Fatal("SYNC rejected from idle")
	}
	if !m.Send(Failed("x")) {
		t.Fatal("SYNC_ERROR rejected from syncing")
	}
	if !m.Send(SyncEvent{Type: SyncRetry}) {
		t.Fatal("RETRY rejected from error")
	}
	if !m.Send(Failed("y")) {
		t.Fatal("second SYNC_ERROR rejected")
	}

	ctx := m.Context()
	if ctx.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", ctx.RetryCount)
	}
	if ctx.LastError != "y" {
		t.Errorf("LastError = %q, want y", ctx.LastError)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.Send(SyncEvent{Type: SyncRetry})
	if !m.Send(Succeeded(at)) {
		t.Fatal("SYNC_SUCCESS rejected")
	}
	ctx = m.Context()
	if ctx.RetryCount != 0 {
		t.Errorf("RetryCount = %d after success, want 0", ctx.RetryCount)
	}
	if ctx.LastSyncAt == nil || !ctx.LastSyncAt.Equal(at) {
		t.Errorf("LastSyncAt = %v, want %v", ctx.LastSyncAt, at)
	}
	if m.State() != SyncSynced {
		t.Errorf("state = %s, want synced", m.State())
	}
}

func TestSyncResetClearsError(t *testing.T) {
	m := NewSyncMachine()
	m.Send(SyncEvent{Type: SyncStart})
	m.Send(Failed("disk full"))

	if !m.Send(SyncEvent{Type: SyncReset}) {
		t.Fatal("RESET rejected from error")
	}
	ctx := m.Context()
	if m.State() != SyncIdle || ctx.LastError != "" || ctx.RetryCount != 0 {
		t.Errorf("after RESET: state=%s ctx=%+v", m.State(), ctx)
	}
}

func TestSyncQueueChange(t *testing.T) {
	for _, state := range []SyncStatus{SyncIdle, SyncSyncing, SyncSynced, SyncError} {
		next, ctx, ok := TransitionSync(state, SyncContext{PendingChanges: 2}, SyncEvent{Type: SyncQueue})
		if !ok || next != state {
			t.Errorf("QUEUE_CHANGE in %s: (%s, %v)", state, next, ok)
		}
		if ctx.PendingChanges != 3 {
			t.Errorf("QUEUE_CHANGE in %s: PendingChanges = %d, want 3", state, ctx.PendingChanges)
		}
	}

	// Transitions never touch the counter.
	m := NewSyncMachine()
	m.Send(SyncEvent{Type: SyncQueue})
	m.Send(SyncEvent{Type: SyncStart})
	m.Send(Succeeded(time.Now()))
	if m.Context().PendingChanges != 1 {
		t.Errorf("PendingChanges = %d, want 1", m.Context().PendingChanges)
	}
	m.Update(ClearPending)
	if m.Context().PendingChanges != 0 {
		t.Errorf("PendingChanges = %d after ClearPending, want 0", m.Context().PendingChanges)
	}
}

func TestSyncRejectedEvents(t *testing.T) {
	tests := []struct {
		from  SyncStatus
		event SyncEvent
	}{
		{SyncIdle, Succeeded(time.Now())},
		{SyncIdle, Failed("x")},
		{SyncSyncing, SyncEvent{Type: SyncStart}},
		{SyncSynced, SyncEvent{Type: SyncRetry}},
		{SyncSynced, SyncEvent{Type: SyncStart}},
		{SyncSynced, SyncEvent{Type: SyncReset}},
		{SyncError, SyncEvent{Type: SyncStart}},
	}
	ctx := SyncContext{PendingChanges: 4, RetryCount: 1, LastError: "old"}
	for _, tt := range tests {
		state, got, ok := TransitionSync(tt.from, ctx, tt.event)
		if ok || state != tt.from {
			t.Errorf("%s --%s--> (%s, %v), want rejection", tt.from, tt.event.Type, state, ok)
		}
		if diff := cmp.Diff(ctx, got); diff != "" {
			t.Errorf("%s --%s--> context changed (-want +got):\n%s", tt.from, tt.event.Type, diff)
		}
	}
}

func TestEventsForState(t *testing.T) {
	got := ProjectEvents(ProjectActive)
	want := []ProjectEvent{ProjectArchive, ProjectComplete, ProjectPause}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProjectEvents(active) (-want +got):\n%s", diff)
	}

	if events := TaskEvents(TaskTodo); len(events) != 1 || events[0] != TaskStart {
		t.Errorf("TaskEvents(todo) = %v, want [START]", events)
	}

	if diff := cmp.Diff([]SyncEventType{SyncQueue}, SyncEvents(SyncSynced)); diff != "" {
		t.Errorf("SyncEvents(synced) (-want +got):\n%s", diff)
	}

	syncEvents := SyncEvents(SyncError)
	if diff := cmp.Diff([]SyncEventType{SyncReset, SyncRetry, SyncQueue}, syncEvents); diff != "" {
		t.Errorf("SyncEvents(error) (-want +got):\n%s", diff)
	}
}

func TestParseStatus(t *testing.T) {
	if _, ok := ParseProjectStatus("on_hold"); !ok {
		t.Error("on_hold should parse")
	}
	if _, ok := ParseTaskStatus("blocked"); !ok {
		t.Error("blocked should parse")
	}
	if _, ok := ParsePurchaseStatus("shipped"); ok {
		t.Error("shipped should not parse")
	}
	if ProjectArchived.Label() != "Archived" || TaskInProgress.Label() != "In Progress" {
		t.Error("unexpected labels")
	}
	if !PurchaseRemoved.IsTerminal() || PurchaseOrdered.IsTerminal() {
		t.Error("unexpected purchase terminal states")
	}
}
