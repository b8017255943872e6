// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/genplay/internal/domain/session/model"

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From  model.Status
	To    model.Status
	Event EventKind
}

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

var transitionsTable = []Transition{
	{From: model.StatusAwaitingID, To: model.StatusAwaitingArtifact, Event: EvAccepted},
	{From: model.StatusAwaitingArtifact, To: model.StatusReady, Event: EvArtifactReady},

	{From: model.StatusAwaitingID, To: model.StatusFailed, Event: EvFailed},
	{From: model.StatusAwaitingArtifact, To: model.StatusFailed, Event: EvFailed},

	{From: model.StatusAwaitingID, To: model.StatusTimedOut, Event: EvTimedOut},
	{From: model.StatusAwaitingArtifact, To: model.StatusTimedOut, Event: EvTimedOut},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from model.Status, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
