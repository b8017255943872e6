// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"errors"
	"fmt"

	"github.com/ManuGH/genplay/internal/hls"
)

var (
	// ErrRecoveryExhausted is reported once when fatal errors outlast the retry budget.
	ErrRecoveryExhausted = errors.New("playback: recovery budget exhausted")
	// ErrDestroyed is returned by operations on a destroyed engine.
	ErrDestroyed = errors.New("playback: engine destroyed")
	// ErrUnsupportedRate is returned for playback rates outside the speed list.
	ErrUnsupportedRate = errors.New("playback: unsupported playback rate")
	// ErrNoSession is returned when an operation needs a loaded source.
	ErrNoSession = errors.New("playback: no source loaded")
)

// RecoveryError carries the fatal error that exhausted the retry budget.
type RecoveryError struct {
	SourceURL string
	Attempts  int
	Last      *hls.Error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("playback of %s unrecoverable after %d recoveries: %v", e.SourceURL, e.Attempts, e.Last)
}

func (e *RecoveryError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrRecoveryExhausted}
	}
	return []error{ErrRecoveryExhausted, e.Last}
}

// MediaError reports a non-benign media element error. It is never fatal.
type MediaError struct {
	SourceURL string
	Err       error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media error on %s: %v", e.SourceURL, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }
