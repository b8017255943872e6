// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event types emitted by the generation stream.
const (
	EventHeartbeat = "heartbeat"
	EventProgress  = "progress"
	EventTask      = "task"
	EventMetadata  = "metadata"
	EventTitle     = "title"
	EventMain      = "main"
	EventVideo     = "video"
	EventError     = "error"
	EventQuota     = "401"
	EventDone      = "done"

	// EventMessage is the SSE default when a frame carries no event field.
	EventMessage = "message"
)

// Event is one decoded server-sent event.
type Event struct {
	Type string
	Data string
	ID   string
}

// IDPayload is carried by task and metadata events.
type IDPayload struct {
	ID string `json:"id"`
}

// URLPayload is carried by main and video events.
type URLPayload struct {
	URL string `json:"url"`
}

// PayloadError reports a structured event whose data could not be decoded.
type PayloadError struct {
	Type string
	Data string
	Err  error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("stream: malformed %s payload: %v", e.Type, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

func decodePayload[T any](ev Event, dst *T) error {
	if err := json.Unmarshal([]byte(ev.Data), dst); err != nil {
		return &PayloadError{Type: ev.Type, Data: ev.Data, Err: err}
	}
	return nil
}

// ProgressText returns the progress line. Payloads that are not
// {"info": "..."} objects degrade to the raw data.
func ProgressText(ev Event) string {
	var p struct {
		Info *string `json:"info"`
	}
	if err := json.Unmarshal([]byte(ev.Data), &p); err != nil || p.Info == nil {
		return strings.TrimSpace(ev.Data)
	}
	return *p.Info
}

// JobID decodes a task or metadata payload.
func JobID(ev Event) (string, error) {
	var p IDPayload
	if err := decodePayload(ev, &p); err != nil {
		return "", err
	}
	return p.ID, nil
}

// ArtifactURL decodes a main or video payload.
func ArtifactURL(ev Event) (string, error) {
	var p URLPayload
	if err := decodePayload(ev, &p); err != nil {
		return "", err
	}
	return p.URL, nil
}

// Title decodes a title payload.
func Title(ev Event) (string, error) {
	var p struct {
		Title string `json:"title"`
	}
	if err := decodePayload(ev, &p); err != nil {
		return "", err
	}
	return p.Title, nil
}

// FailureMessage decodes an error payload ({"error": ...}) or a quota
// payload ({"msg": ...}).
func FailureMessage(ev Event) (string, error) {
	var p struct {
		Error string `json:"error"`
		Msg   string `json:"msg"`
	}
	if err := decodePayload(ev, &p); err != nil {
		return "", err
	}
	if ev.Type == EventQuota {
		return p.Msg, nil
	}
	return p.Error, nil
}
