// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"fmt"

	"github.com/ManuGH/genplay/internal/domain/session/model"
)

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrTerminal          = errors.New("session is terminal")
)

// TransitionError describes a rejected event.
type TransitionError struct {
	From   model.Status
	Event  EventKind
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s + %s (%s)", e.From, e.Event, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	if e.Reason == ForbiddenTerminalAbsorbing {
		return ErrTerminal
	}
	return ErrIllegalTransition
}
