// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/ManuGH/genplay/internal/domain/session/model"
)

// Dispatch resolves the next transition from the tables and applies it.
// A rejected event leaves the session untouched.
func Dispatch(sess *model.GenerationSession, ev Event, now time.Time) (Transition, error) {
	decision, ok := DecisionFor(sess.Status, ev.Kind)
	if !ok {
		return illegalTransition(sess.Status, ev.Kind, ForbiddenOutOfOrder)
	}
	if !decision.Allowed {
		return illegalTransition(sess.Status, ev.Kind, decision.Reason)
	}
	tr, ok := TransitionFor(sess.Status, ev.Kind)
	if !ok {
		return illegalTransition(sess.Status, ev.Kind, ForbiddenOutOfOrder)
	}
	ApplyTransition(sess, tr, ev, now)
	return tr, nil
}
