package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine and its storage collaborators.
// Callers match with errors.Is to distinguish "you can't do that yet"
// from "the system ran out of backlog".
var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrTerminalState       = errors.New("idea routing is in a terminal state")
	ErrNoScoresProvided    = errors.New("no scores provided")
	ErrPrematurePublish    = errors.New("calendar date is in the future")
	ErrSlotAlreadyFilled   = errors.New("slot instance already filled")
	ErrQueueExhausted      = errors.New("evergreen queue exhausted")
	ErrUnknownPublication  = errors.New("unknown publication")
	ErrInactivePublication = errors.New("publication is deactivated")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("concurrent modification")
)

// TransitionError reports a rejected status change. It unwraps to
// ErrTerminalState when the source status is terminal, otherwise to
// ErrInvalidTransition, so both errors.Is checks and the concrete
// from/to pair are available to callers.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition idea routing from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	if e.From.Terminal() {
		return ErrTerminalState
	}
	return ErrInvalidTransition
}
