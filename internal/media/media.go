// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media defines the media element abstraction the playback engine
// drives, plus a headless implementation that writes played bytes to a writer.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventType names a media element event.
type EventType string

const (
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
	EventStalled        EventType = "stalled"
	EventWaiting        EventType = "waiting"
	EventError          EventType = "error"
	EventLoadedMetadata EventType = "loadedmetadata"
	EventEnded          EventType = "ended"
)

// Event is delivered to subscribers. Err is set for EventError.
type Event struct {
	Type EventType
	Err  *Error
}

// ErrorCode mirrors the standard media error codes.
type ErrorCode int

const (
	CodeAborted            ErrorCode = 1
	CodeNetwork            ErrorCode = 2
	CodeDecode             ErrorCode = 3
	CodeSourceNotSupported ErrorCode = 4
)

func (c ErrorCode) String() string {
	switch c {
	case CodeAborted:
		return "aborted"
	case CodeNetwork:
		return "network"
	case CodeDecode:
		return "decode"
	case CodeSourceNotSupported:
		return "src_not_supported"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

var (
	// ErrNotAllowed is returned by Play when the autoplay policy requires a
	// user gesture first.
	ErrNotAllowed = errors.New("media: play not allowed without user gesture")
	// ErrInterrupted is returned by Play when a pause, source change or
	// release interrupted the request.
	ErrInterrupted = errors.New("media: play request interrupted")
	// ErrNotSupported is the sentinel for CodeSourceNotSupported errors.
	ErrNotSupported = errors.New("media: source not supported")
	// ErrBufferAttached is returned by Buffer.Attach when a controller already owns the buffer.
	ErrBufferAttached = errors.New("media: buffer already attached")
	// ErrReleased is returned by operations on a released element.
	ErrReleased = errors.New("media: element released")
)

// Error is a media element error.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("media error %d (%s)", int(e.Code), e.Code)
	}
	return fmt.Sprintf("media error %d (%s): %s", int(e.Code), e.Code, e.Message)
}

// Is maps the source-not-supported code onto ErrNotSupported.
func (e *Error) Is(target error) bool {
	return target == ErrNotSupported && e.Code == CodeSourceNotSupported
}

// Media is the element a playback engine drives.
type Media interface {
	// SetSource loads a progressive URL. An empty URL unloads.
	SetSource(url string)
	Source() string
	Play(ctx context.Context) error
	Pause()
	Paused() bool
	Ended() bool
	CurrentTime() time.Duration
	Seek(pos time.Duration)
	SetPlaybackRate(rate float64)
	PlaybackRate() float64
	// Buffer exposes the segment buffer adaptive controllers feed.
	Buffer() Buffer
	// Subscribe registers fn for every event and returns its cancel func.
	Subscribe(fn func(Event)) (unsubscribe func())
	LastError() *Error
	// Release stops all activity. The element is unusable afterwards.
	Release()
}

// Buffer is the segment sink an adaptive controller attaches to.
type Buffer interface {
	// Attach switches the element to buffer-fed playback and clears Source.
	Attach() error
	Detach()
	Append(data []byte, duration time.Duration) error
	EndOfStream()
	Reset()
	Attached() bool
}
