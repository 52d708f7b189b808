// Package lifecycle implements the status machines for workshop entities.
//
// Each machine is a pure function of (state, context, event) and returns the
// next state and context. Events that are not wired for the current state are
// dropped: the machine stays where it is and reports ok=false. Nothing in this
// package performs I/O, returns errors, or panics on unknown input.
//
// # Machines
//
//	Project   planning -> active -> on_hold / completed -> archived -> planning
//	Task      todo -> in_progress -> blocked / done
//	Purchase  wishlist -> considering -> approved -> ordered -> received -> returned
//	Sync      idle -> syncing -> synced / error
//
// A machine is a transient projection over an entity's persisted status field;
// it holds no state of its own beyond what the caller hands in.
package lifecycle

import (
	"errors"
	"slices"
)

// ErrInvalidTransition is returned by application-level callers that want to
// surface a dropped event. The machines themselves never return it.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionFunc is the shape shared by every machine in this package.
type TransitionFunc[S ~string, C any, E any] func(state S, ctx C, event E) (S, C, bool)

// Machine binds a transition function to a current state and context.
//
// Machine is not safe for concurrent use; callers that share one across
// goroutines must serialize access.
type Machine[S ~string, C any, E any] struct {
	state      S
	ctx        C
	transition TransitionFunc[S, C, E]
}

// NewMachine returns a machine positioned at state with the given context.
func NewMachine[S ~string, C any, E any](state S, ctx C, fn TransitionFunc[S, C, E]) *Machine[S, C, E] {
	return &Machine[S, C, E]{state: state, ctx: ctx, transition: fn}
}

// Send feeds an event to the machine and reports whether it was accepted.
func (m *Machine[S, C, E]) Send(event E) bool {
	next, ctx, ok := m.transition(m.state, m.ctx, event)
	if !ok {
		return false
	}
	m.state = next
	m.ctx = ctx
	return true
}

// State returns the current state.
func (m *Machine[S, C, E]) State() S {
	return m.state
}

// Context returns a copy of the current context.
func (m *Machine[S, C, E]) Context() C {
	return m.ctx
}

// Update replaces the context using f without changing state. It is the
// escape hatch for mechanisms that live outside the transition table, such
// as clearing a sync session's pending change counter.
func (m *Machine[S, C, E]) Update(f func(C) C) {
	m.ctx = f(m.ctx)
}

// eventsFor returns the events wired for state in table, sorted.
func eventsFor[S ~string, E ~string, V any](table map[S]map[E]V, state S) []E {
	wired := table[state]
	events := make([]E, 0, len(wired))
	for e := range wired {
		events = append(events, e)
	}
	slices.Sort(events)
	return events
}
