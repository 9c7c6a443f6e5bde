// Package lifecycle models an order's fulfillment state and the
// edge-triggered "order ready" notification.
package lifecycle

import (
	"errors"
	"fmt"
)

// State is the fulfillment state of an order.
type State string

const (
	Placed     State = "PLACED"
	InProgress State = "IN_PROGRESS"
	Ready      State = "READY"
)

var (
	// ErrInvalidFlags is returned when the stored flags describe no valid state
	// (completed without having been started).
	ErrInvalidFlags = errors.New("invalid lifecycle flags: completed without started")

	// ErrInvalidTransition is returned for backward, skipping or no-op transitions.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrUnknownState is returned when parsing an unrecognized state name.
	ErrUnknownState = errors.New("unknown lifecycle state")
)

// Derive maps the two persisted flags onto a State.
func Derive(started, completed bool) (State, error) {
	switch {
	case !started && !completed:
		return Placed, nil
	case started && !completed:
		return InProgress, nil
	case started && completed:
		return Ready, nil
	default:
		return "", ErrInvalidFlags
	}
}

// Flags returns the persisted representation of s.
func (s State) Flags() (started, completed bool) {
	switch s {
	case InProgress:
		return true, false
	case Ready:
		return true, true
	default:
		return false, false
	}
}

// Next returns the single state that may follow s.
func (s State) Next() (State, bool) {
	switch s {
	case Placed:
		return InProgress, true
	case InProgress:
		return Ready, true
	default:
		return "", false
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Ready
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case Placed, InProgress, Ready:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// Transition validates a staff-initiated move from one state to another.
// Only single forward steps are allowed.
func Transition(from, to State) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %s -> %s", ErrUnknownState, from, to)
	}
	next, ok := from.Next()
	if !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ParseState parses a state name as produced by State.String.
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, raw)
	}
	return s, nil
}
