// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/ManuGH/genplay/internal/domain/session/model"
)

// ApplyTransition mutates the session according to the transition.
func ApplyTransition(sess *model.GenerationSession, tr Transition, ev Event, now time.Time) {
	sess.Status = tr.To
	switch tr.To {
	case model.StatusFailed:
		kind := ev.FailureKind
		if kind == model.FailureNone {
			kind = model.FailureGeneric
		}
		sess.Failure = &model.Failure{Kind: kind, Message: ev.Message}
	case model.StatusTimedOut:
		sess.Failure = &model.Failure{Kind: model.FailureTimeout, Message: ev.Message}
	}
	if tr.To.IsTerminal() {
		t := now
		sess.FinishedAt = &t
	}
}
