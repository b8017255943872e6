// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package detail

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound      = errors.New("detail: job not found")
	ErrUpstreamError = errors.New("detail: upstream reported failure")
	ErrBadResponse   = errors.New("detail: invalid response format or malformed data")
	ErrUnavailable   = errors.New("detail: host unreachable or transport failure")
)

// Error wraps a sentinel with request context.
type Error struct {
	Sentinel error
	JobID    string
	Status   int
	Message  string
	Err      error // lower-level cause, e.g. net.Error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("detail %s: %v", e.JobID, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// breakerFailure reports whether err says the detail endpoint itself is unhealthy.
func breakerFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUpstreamError) || errors.Is(err, ErrBadResponse)
}
