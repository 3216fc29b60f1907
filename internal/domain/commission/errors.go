package commission

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is matched by every illegal lifecycle move.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError records the rejected move.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: commission %s cannot move from %s to %s", ErrInvalidTransition, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
