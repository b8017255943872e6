// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by genplay spans.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPURLKey        = "http.url"

	// Generation attributes
	JobIDKey      = "genplay.job_id"
	SessionIDKey  = "genplay.session_id"
	ProviderKey   = "genplay.provider"
	LanguageKey   = "genplay.language"
	EventCountKey = "genplay.stream.events"
	PollResultKey = "genplay.poll.result"

	// Playback attributes
	MediaKindKey = "playback.media_kind"
	RetryKey     = "playback.retry"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// GenerationAttributes describes a generation request. Empty values are omitted.
func GenerationAttributes(sessionID, provider, language string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(ProviderKey, provider))
	}
	if language != "" {
		attrs = append(attrs, attribute.String(LanguageKey, language))
	}
	return attrs
}

// PollAttributes describes one detail poll attempt.
func PollAttributes(jobID, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, jobID),
		attribute.String(PollResultKey, result),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
