// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"net/url"
	"strings"
	"time"
)

// Kind selects the playback pipeline for a source URL.
type Kind string

const (
	KindProgressive Kind = "progressive"
	KindAdaptive    Kind = "adaptive"
)

// KindOf decides the pipeline from the URL path suffix. Query strings and
// fragments are ignored.
func KindOf(rawURL string) Kind {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	if strings.HasSuffix(strings.ToLower(path), ".m3u8") {
		return KindAdaptive
	}
	return KindProgressive
}

// Session is the engine's view of one playback URL.
type Session struct {
	SourceURL            string     `json:"source_url"`
	Kind                 Kind       `json:"media_kind"`
	RetryCount           int        `json:"retry_count"`
	PendingRetryDeadline *time.Time `json:"pending_retry_deadline,omitempty"`
	UserIntentPaused     bool       `json:"user_intent_paused"`
	Exhausted            bool       `json:"recovery_exhausted"`
}
