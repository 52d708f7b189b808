// Package transition applies lifecycle events to persisted entities.
//
// The machines in package lifecycle are pure and silently drop events that
// are not wired for the current state. This package is the application
// boundary: it loads the entity, rebuilds the machine context from the stored
// fields, runs the transition and writes the result back. A dropped event is
// reported as lifecycle.ErrInvalidTransition.
package transition

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/workshopops/workshop/internal/lifecycle"
	"github.com/workshopops/workshop/internal/logging"
	"github.com/workshopops/workshop/internal/store"
)

// Field names of the persisted machine context.
const (
	FieldStatus          = "status"
	FieldPreviousStatus  = "previous_status"
	FieldTransitionCount = "transition_count"
	FieldBlockedReason   = "blocked_reason"
	FieldOrderedAt       = "ordered_at"
	FieldReceivedAt      = "received_at"
	FieldStatusChangedAt = "status_changed_at"
)

// Store is the slice of the datastore the service needs.
type Store interface {
	Get(ctx context.Context, table store.Table, id int64) (store.Row, error)
	Update(ctx context.Context, table store.Table, id int64, fields map[string]any) error
}

// Change describes an applied transition.
type Change struct {
	Table store.Table
	ID    int64
	Event string
	From  string
	To    string
}

func (c Change) String() string {
	return fmt.Sprintf("%s %d: %s -> %s (%s)", c.Table, c.ID, c.From, c.To, c.Event)
}

// Service applies events to stored projects, tasks and purchase items.
type Service struct {
	store  Store
	now    func() time.Time
	logger *log.Logger
}

// New creates a service. now defaults to time.Now and logger to a stderr
// logger.
func New(s Store, now func() time.Time, logger *log.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default("lifecycle")
	}
	return &Service{store: s, now: now, logger: logger}
}

// ApplyProject sends event to project id.
func (s *Service) ApplyProject(ctx context.Context, id int64, event lifecycle.ProjectEvent) (Change, error) {
	row, err := s.store.Get(ctx, store.Projects, id)
	if err != nil {
		return Change{}, err
	}

	state, err := status(row, store.Projects, id, lifecycle.ProjectPlanning, lifecycle.ParseProjectStatus)
	if err != nil {
		return Change{}, err
	}
	mctx := lifecycle.ProjectContext{}
	if prev, ok := lifecycle.ParseProjectStatus(row.String(FieldPreviousStatus)); ok {
		mctx.PreviousStatus = &prev
	}
	if n, ok := row.Int(FieldTransitionCount); ok {
		mctx.TransitionCount = int(n)
	}

	next, mctx, ok := lifecycle.TransitionProject(state, mctx, event)
	if !ok {
		return Change{}, rejected(store.Projects, id, string(event), string(state), lifecycle.ProjectEvents(state))
	}

	fields := map[string]any{
		FieldStatus:          string(next),
		FieldPreviousStatus:  string(*mctx.PreviousStatus),
		FieldTransitionCount: mctx.TransitionCount,
		FieldStatusChangedAt: s.stamp(),
	}
	return s.save(ctx, store.Projects, id, string(event), string(state), string(next), fields)
}

// ApplyTask sends event to task id. The reason is stored for BLOCK and
// cleared by every other transition.
func (s *Service) ApplyTask(ctx context.Context, id int64, event lifecycle.TaskEvent) (Change, error) {
	row, err := s.store.Get(ctx, store.ProjectTasks, id)
	if err != nil {
		return Change{}, err
	}

	state, err := status(row, store.ProjectTasks, id, lifecycle.TaskTodo, lifecycle.ParseTaskStatus)
	if err != nil {
		return Change{}, err
	}
	mctx := lifecycle.TaskContext{BlockedReason: row.String(FieldBlockedReason)}
	if prev, ok := lifecycle.ParseTaskStatus(row.String(FieldPreviousStatus)); ok {
		mctx.PreviousStatus = &prev
	}

	next, mctx, ok := lifecycle.TransitionTask(state, mctx, event)
	if !ok {
		return Change{}, rejected(store.ProjectTasks, id, string(event.Type), string(state), lifecycle.TaskEvents(state))
	}

	fields := map[string]any{
		FieldStatus:          string(next),
		FieldPreviousStatus:  string(*mctx.PreviousStatus),
		FieldBlockedReason:   nilIfEmpty(mctx.BlockedReason),
		FieldStatusChangedAt: s.stamp(),
	}
	return s.save(ctx, store.ProjectTasks, id, string(event.Type), string(state), string(next), fields)
}

// ApplyPurchase sends event to purchase item id.
func (s *Service) ApplyPurchase(ctx context.Context, id int64, event lifecycle.PurchaseEvent) (Change, error) {
	row, err := s.store.Get(ctx, store.PurchaseItems, id)
	if err != nil {
		return Change{}, err
	}

	state, err := status(row, store.PurchaseItems, id, lifecycle.PurchaseWishlist, lifecycle.ParsePurchaseStatus)
	if err != nil {
		return Change{}, err
	}
	mctx := lifecycle.PurchaseContext{
		OrderedAt:  timeField(row, FieldOrderedAt),
		ReceivedAt: timeField(row, FieldReceivedAt),
	}

	now := s.now().UTC()
	next, mctx, ok := lifecycle.TransitionPurchase(state, mctx, event, now)
	if !ok {
		return Change{}, rejected(store.PurchaseItems, id, string(event), string(state), lifecycle.PurchaseEvents(state))
	}

	fields := map[string]any{
		FieldStatus:          string(next),
		FieldOrderedAt:       formatTime(mctx.OrderedAt),
		FieldReceivedAt:      formatTime(mctx.ReceivedAt),
		FieldStatusChangedAt: now.Format(time.RFC3339),
	}
	return s.save(ctx, store.PurchaseItems, id, string(event), string(state), string(next), fields)
}

func (s *Service) save(ctx context.Context, table store.Table, id int64, event, from, to string, fields map[string]any) (Change, error) {
	if err := s.store.Update(ctx, table, id, fields); err != nil {
		return Change{}, fmt.Errorf("failed to save %s %d: %w", table, id, err)
	}
	c := Change{Table: table, ID: id, Event: event, From: from, To: to}
	s.logger.Printf("%s", c)
	return c, nil
}

func (s *Service) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// status reads the stored status. A row without one is in the machine's
// initial state; an unrecognized value is an error.
func status[S ~string](row store.Row, table store.Table, id int64, initial S, parse func(string) (S, bool)) (S, error) {
	raw := row.String(FieldStatus)
	if raw == "" {
		return initial, nil
	}
	st, ok := parse(raw)
	if !ok {
		return st, fmt.Errorf("%s %d has unknown status %q", table, id, raw)
	}
	return st, nil
}

func rejected[E ~string](table store.Table, id int64, event, state string, allowed []E) error {
	names := make([]string, len(allowed))
	for i, e := range allowed {
		names[i] = string(e)
	}
	hint := "none"
	if len(names) > 0 {
		hint = strings.Join(names, ", ")
	}
	return fmt.Errorf("%s %d: cannot %s from %s (allowed: %s): %w",
		table, id, event, state, hint, lifecycle.ErrInvalidTransition)
}

func timeField(row store.Row, key string) *time.Time {
	s := row.String(key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// formatTime returns nil for a nil time so Update drops the field.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
