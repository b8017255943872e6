// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrClosedBeforeDone means the body ended without a done event.
	ErrClosedBeforeDone = errors.New("stream: closed before done")
	// ErrTransport wraps connection level failures.
	ErrTransport = errors.New("stream: transport failure")
)

// StatusError reports a non-2xx response from the stream endpoint.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("stream: unexpected HTTP %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("stream: unexpected HTTP %d", e.Status)
}

// Unwrap classifies every status failure as a transport failure.
func (e *StatusError) Unwrap() error { return ErrTransport }
