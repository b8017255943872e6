// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build debug

package lifecycle

import (
	"fmt"

	"github.com/ManuGH/genplay/internal/domain/session/model"
)

func illegalTransition(from model.Status, ev EventKind, reason string) (Transition, error) {
	if reason == ForbiddenTerminalAbsorbing || reason == ForbiddenAlreadyInState {
		return Transition{}, &TransitionError{From: from, Event: ev, Reason: reason}
	}
	panic(fmt.Sprintf("illegal transition: %s + %s (%s)", from, ev, reason))
}
