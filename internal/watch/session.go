package watch

import (
	"sync"
	"time"

	"github.com/workshopops/workshop/internal/lifecycle"
)

// Snapshot is the observable state of a sync session.
type Snapshot struct {
	Status         lifecycle.SyncStatus `json:"status"`
	Label          string               `json:"label"`
	Color          string               `json:"color"`
	PendingChanges int                  `json:"pending_changes"`
	RetryCount     int                  `json:"retry_count"`
	LastError      string               `json:"last_error,omitempty"`
	LastSyncAt     *time.Time           `json:"last_sync_at,omitempty"`

	// Event is the event that produced this snapshot
	Event lifecycle.SyncEventType `json:"event,omitempty"`
	At    time.Time               `json:"at"`
}

// Publisher receives a snapshot after every accepted event.
type Publisher interface {
	Publish(Snapshot)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Snapshot)

func (f PublisherFunc) Publish(s Snapshot) { f(s) }

// Session serializes access to one sync machine and publishes its state.
type Session struct {
	mu      sync.Mutex
	machine *lifecycle.Machine[lifecycle.SyncStatus, lifecycle.SyncContext, lifecycle.SyncEvent]
	pub     Publisher
	now     func() time.Time
}

// NewSession returns an idle session. pub may be nil.
func NewSession(pub Publisher, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		machine: lifecycle.NewSyncMachine(),
		pub:     pub,
		now:     now,
	}
}

// Send feeds ev to the machine. Accepted events are published.
func (s *Session) Send(ev lifecycle.SyncEvent) bool {
	s.mu.Lock()
	ok := s.machine.Send(ev)
	snap := s.snapshotLocked(ev.Type)
	s.mu.Unlock()

	if ok && s.pub != nil {
		s.pub.Publish(snap)
	}
	return ok
}

// ClearPending zeroes the pending change counter and publishes the result.
func (s *Session) ClearPending() {
	s.mu.Lock()
	s.machine.Update(lifecycle.ClearPending)
	snap := s.snapshotLocked("")
	s.mu.Unlock()

	if s.pub != nil {
		s.pub.Publish(snap)
	}
}

// Renew replaces a finished (synced) session with a fresh idle one that keeps
// the pending change count and the last sync time. It reports whether the
// session was renewed. Nothing is published; the next event does that.
func (s *Session) Renew() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.State() != lifecycle.SyncSynced {
		return false
	}
	c := s.machine.Context()
	s.machine = lifecycle.NewMachine(lifecycle.SyncIdle, lifecycle.SyncContext{
		PendingChanges: c.PendingChanges,
		LastSyncAt:     c.LastSyncAt,
	}, lifecycle.TransitionSync)
	return true
}

// State returns the current status.
func (s *Session) State() lifecycle.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked("")
}

func (s *Session) snapshotLocked(ev lifecycle.SyncEventType) Snapshot {
	st := s.machine.State()
	c := s.machine.Context()
	return Snapshot{
		Status:         st,
		Label:          st.Label(),
		Color:          st.Color(),
		PendingChanges: c.PendingChanges,
		RetryCount:     c.RetryCount,
		LastError:      c.LastError,
		LastSyncAt:     c.LastSyncAt,
		Event:          ev,
		At:             s.now().UTC(),
	}
}
