// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/genplay/internal/domain/session/model"

// EventKind is a domain event in the generation lifecycle.
type EventKind int

const (
	EvUnknown EventKind = iota
	// EvAccepted means the backend has taken the job.
	EvAccepted
	EvArtifactReady
	EvFailed
	EvTimedOut
)

func (k EventKind) String() string {
	switch k {
	case EvAccepted:
		return "accepted"
	case EvArtifactReady:
		return "artifact_ready"
	case EvFailed:
		return "failed"
	case EvTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Event carries optional domain metadata for a transition.
type Event struct {
	Kind        EventKind
	FailureKind model.FailureKind
	Message     string
}
