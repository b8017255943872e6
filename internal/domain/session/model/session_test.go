// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerationSession_InitialStatus(t *testing.T) {
	now := time.Unix(1700000000, 0)

	fresh := NewGenerationSession("", now)
	assert.Equal(t, StatusAwaitingID, fresh.Status)
	assert.Equal(t, now, fresh.CreatedAt)
	assert.NotNil(t, fresh.ProgressLog)

	resumed := NewGenerationSession("abc", now)
	assert.Equal(t, StatusAwaitingArtifact, resumed.Status)
	assert.Equal(t, "abc", resumed.ID)

	_, err := uuid.Parse(fresh.LocalID)
	require.NoError(t, err)
	assert.NotEqual(t, fresh.LocalID, resumed.LocalID)
}

func TestGenerationSession_CloneIsDeep(t *testing.T) {
	s := NewGenerationSession("abc", time.Now())
	hb := time.Now()
	own := hb
	s.LastHeartbeatAt = &own
	s.ProgressLog = append(s.ProgressLog, "one")
	s.Artifact.TranscriptLines = []string{"a"}
	s.Failure = &Failure{Kind: FailureGeneric, Message: "x"}

	c := s.Clone()
	s.ProgressLog[0] = "mutated"
	s.Artifact.TranscriptLines[0] = "mutated"
	s.Failure.Message = "mutated"
	*s.LastHeartbeatAt = hb.Add(time.Hour)

	assert.Equal(t, []string{"one"}, c.ProgressLog)
	assert.Equal(t, []string{"a"}, c.Artifact.TranscriptLines)
	assert.Equal(t, "x", c.Failure.Message)
	assert.Equal(t, hb, *c.LastHeartbeatAt)
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []Status{StatusReady, StatusFailed, StatusTimedOut} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.IsAwaiting(), s)
	}
	for _, s := range []Status{StatusAwaitingID, StatusAwaitingArtifact} {
		assert.False(t, s.IsTerminal(), s)
		assert.True(t, s.IsAwaiting(), s)
	}
}
