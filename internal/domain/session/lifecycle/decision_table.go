// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/genplay/internal/domain/session/model"

const (
	ForbiddenTerminalAbsorbing = "terminal_absorbing"
	ForbiddenOutOfOrder        = "out_of_order"
	ForbiddenAlreadyInState    = "already_in_state"
)

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Allowed: false, Reason: r} }

// terminalRow is shared by every terminal status.
func terminalRow() map[EventKind]Decision {
	return map[EventKind]Decision{
		EvAccepted:      forbid(ForbiddenTerminalAbsorbing),
		EvArtifactReady: forbid(ForbiddenTerminalAbsorbing),
		EvFailed:        forbid(ForbiddenTerminalAbsorbing),
		EvTimedOut:      forbid(ForbiddenTerminalAbsorbing),
	}
}

// decisionTable defines an explicit decision for every Status×Event combination.
var decisionTable = map[model.Status]map[EventKind]Decision{
	model.StatusAwaitingID: {
		EvAccepted:      allowed(),
		EvArtifactReady: forbid(ForbiddenOutOfOrder),
		EvFailed:        allowed(),
		EvTimedOut:      allowed(),
	},
	model.StatusAwaitingArtifact: {
		EvAccepted:      forbid(ForbiddenAlreadyInState),
		EvArtifactReady: allowed(),
		EvFailed:        allowed(),
		EvTimedOut:      allowed(),
	},
	model.StatusReady:    terminalRow(),
	model.StatusFailed:   terminalRow(),
	model.StatusTimedOut: terminalRow(),
}

// DecisionFor returns the explicit decision for a state+event pair.
func DecisionFor(from model.Status, ev EventKind) (Decision, bool) {
	row, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := row[ev]
	return d, ok
}
