// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Status is the lifecycle of a generation session.
type Status string

const (
	StatusAwaitingID       Status = "awaiting_id"
	StatusAwaitingArtifact Status = "awaiting_artifact"
	StatusReady            Status = "ready"
	StatusFailed           Status = "failed"
	StatusTimedOut         Status = "timed_out"
)

// IsTerminal returns true if the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusReady, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// IsAwaiting returns true while the session still waits for the backend.
func (s Status) IsAwaiting() bool {
	return s == StatusAwaitingID || s == StatusAwaitingArtifact
}

// FailureKind distinguishes failures that need a different remediation.
type FailureKind string

const (
	FailureNone    FailureKind = ""
	FailureGeneric FailureKind = "generic"
	// FailureQuota means the account ran out of credits; the UI offers a top-up.
	FailureQuota FailureKind = "quota"
	// FailureTimeout is recorded for timed_out sessions.
	FailureTimeout FailureKind = "timeout"
)

// ArtifactSource records where the playback URL came from.
type ArtifactSource string

const (
	SourceNone        ArtifactSource = ""
	SourceStreamMain  ArtifactSource = "stream_main"
	SourceStreamVideo ArtifactSource = "stream_video"
	SourcePoll        ArtifactSource = "poll"
)
