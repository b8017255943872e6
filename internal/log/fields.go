// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldJobID         = "job_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStep      = "step"

	// Stream fields
	FieldEventType = "event_type"
	FieldSource    = "source"

	// Playback fields
	FieldPlaybackURL = "playback_url"
	FieldMediaKind   = "media_kind"
	FieldRetry       = "retry"
	FieldDelay       = "delay"
	FieldErrorType   = "error_type"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// URL fields
	FieldBaseURL = "base_url"
	FieldURL     = "url"
)
