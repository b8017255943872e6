// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"slices"
	"time"
)

// Artifact holds everything the backend produced for a job.
// PlaybackURL is first-write-wins; every other field is last-write-wins.
type Artifact struct {
	PlaybackURL     string         `json:"playback_url,omitempty"`
	Source          ArtifactSource `json:"source,omitempty"`
	DownloadURL     string         `json:"download_url,omitempty"`
	CoverURL        string         `json:"cover_url,omitempty"`
	Title           string         `json:"title,omitempty"`
	AnswerText      string         `json:"answer_text,omitempty"`
	TranscriptLines []string       `json:"transcript_lines,omitempty"`
}

// Failure explains a failed or timed out session.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// GenerationSession is the in-memory record of one generation request.
type GenerationSession struct {
	ID              string     `json:"id,omitempty"`
	LocalID         string     `json:"local_id"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ElapsedSeconds  int        `json:"elapsed_seconds"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	ProgressLog     []string   `json:"progress_log"`
	Artifact        Artifact   `json:"artifact"`
	Failure         *Failure   `json:"failure,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`

	StreamStarted bool `json:"stream_started"`
	StreamDone    bool `json:"stream_done"`
	StreamFailed  bool `json:"stream_failed"`
}

// NewGenerationSession starts a session. A known job id skips awaiting_id.
func NewGenerationSession(jobID string, now time.Time) *GenerationSession {
	status := StatusAwaitingID
	if jobID != "" {
		status = StatusAwaitingArtifact
	}
	return &GenerationSession{
		ID:          jobID,
		LocalID:     NewLocalID(),
		Status:      status,
		CreatedAt:   now,
		ProgressLog: []string{},
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *GenerationSession) Clone() GenerationSession {
	out := *s
	out.ProgressLog = slices.Clone(s.ProgressLog)
	out.Artifact.TranscriptLines = slices.Clone(s.Artifact.TranscriptLines)
	if s.LastHeartbeatAt != nil {
		t := *s.LastHeartbeatAt
		out.LastHeartbeatAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	return out
}
