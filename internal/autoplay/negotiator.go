// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package autoplay starts playback on behalf of the user and classifies
// refusals by the media element.
package autoplay

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/genplay/internal/config"
	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/media"
	"github.com/ManuGH/genplay/internal/metrics"
)

// BlockedNotice is shown when autoplay stays blocked past the grace period.
const BlockedNotice = "autoplay was blocked, tap to play"

// Outcome is the result of one attempt.
type Outcome string

const (
	OutcomeSkipped     Outcome = "skipped"
	OutcomePlaying     Outcome = "playing"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeRecovered   Outcome = "blocked_recovered" // blocked, but playing when the grace period ended
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeFailed      Outcome = "failed"
)

// Notice is a transient user-facing message.
type Notice struct {
	Text     string
	Duration time.Duration
}

// Config controls the negotiator.
type Config struct {
	Enabled        bool
	Grace          time.Duration
	NoticeDuration time.Duration
}

// ConfigFrom maps the playback section of the application config.
func ConfigFrom(cfg config.PlaybackConfig) Config {
	return Config{
		Enabled:        cfg.Autoplay,
		Grace:          cfg.AutoplayGrace,
		NoticeDuration: cfg.NoticeDuration,
	}
}

// Negotiator performs autoplay attempts against one media element.
type Negotiator struct {
	media   media.Media
	cfg     Config
	notify  func(Notice)
	onError func(error)
	logger  zerolog.Logger
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithNotice sets the sink for user notices.
func WithNotice(fn func(Notice)) Option { return func(n *Negotiator) { n.notify = fn } }

// WithOnError sets the sink for unexpected play failures.
func WithOnError(fn func(error)) Option { return func(n *Negotiator) { n.onError = fn } }

// New creates a negotiator.
func New(m media.Media, cfg Config, opts ...Option) *Negotiator {
	n := &Negotiator{
		media:   m,
		cfg:     cfg,
		notify:  func(Notice) {},
		onError: func(error) {},
		logger:  xglog.WithComponent("autoplay"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Enabled reports whether attempts may call Play.
func (n *Negotiator) Enabled() bool { return n.cfg.Enabled }

// Attempt calls Play once. A policy refusal is never an error: after the
// grace period a notice is shown if the element is still paused. Attempt
// blocks for at most the grace period.
func (n *Negotiator) Attempt(ctx context.Context) Outcome {
	outcome := n.attempt(ctx)
	metrics.RecordAutoplay(string(outcome))
	n.logger.Debug().Str(xglog.FieldEvent, "autoplay."+string(outcome)).Msg("autoplay attempt")
	return outcome
}

func (n *Negotiator) attempt(ctx context.Context) Outcome {
	if !n.cfg.Enabled || !n.media.Paused() {
		return OutcomeSkipped
	}

	err := n.media.Play(ctx)
	switch {
	case err == nil:
		return OutcomePlaying
	case errors.Is(err, media.ErrNotAllowed):
		return n.blocked(ctx)
	case errors.Is(err, media.ErrInterrupted), errors.Is(err, context.Canceled):
		return OutcomeInterrupted
	default:
		n.onError(err)
		return OutcomeFailed
	}
}

func (n *Negotiator) blocked(ctx context.Context) Outcome {
	if n.cfg.Grace > 0 {
		timer := time.NewTimer(n.cfg.Grace)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return OutcomeInterrupted
		case <-timer.C:
		}
	}
	if !n.media.Paused() {
		return OutcomeRecovered
	}
	n.notify(Notice{Text: BlockedNotice, Duration: n.cfg.NoticeDuration})
	return OutcomeBlocked
}
