// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"time"

	"github.com/ManuGH/genplay/internal/hls"
	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/media"
	"github.com/ManuGH/genplay/internal/metrics"
)

func (e *Engine) onControllerEvent(ev hls.Event) {
	s := e.session
	switch ev.Kind {
	case hls.EventManifestParsed:
		if !s.UserIntentPaused {
			e.autoplay()
		}
	case hls.EventFragmentBuffered:
		// Progress after a recovery restores the full budget.
		if s.RetryCount > 0 && !e.retryPending && !s.Exhausted {
			e.logger.Info().
				Str(xglog.FieldEvent, "playback.recovered").
				Int(xglog.FieldRetry, s.RetryCount).
				Msg("playback recovered")
			s.RetryCount = 0
		}
	case hls.EventError:
		if ev.Error == nil || !ev.Error.Fatal {
			return
		}
		e.onFatal(ev.Error)
	}
}

func (e *Engine) onFatal(herr *hls.Error) {
	s := e.session
	logger := e.logger.With().
		Str(xglog.FieldErrorType, string(herr.Type)).
		Int(xglog.FieldRetry, s.RetryCount).
		Logger()

	switch {
	case e.retryPending:
		logger.Debug().Msg("fatal error during pending recovery ignored")
		return
	case s.UserIntentPaused:
		logger.Debug().Msg("fatal error while user-paused ignored")
		return
	case s.Exhausted:
		return
	}

	if s.RetryCount >= e.cfg.MaxRetry {
		s.Exhausted = true
		metrics.RecordPlaybackRecoveryExhausted()
		e.report(&RecoveryError{SourceURL: s.SourceURL, Attempts: s.RetryCount, Last: herr})
		return
	}

	delay := e.cfg.BaseDelay * time.Duration(1<<s.RetryCount)
	deadline := e.sched.Now().Add(delay)
	s.PendingRetryDeadline = &deadline
	s.RetryCount++
	e.retryPending = true

	b := e.binding
	kind := herr.Type
	e.retry = e.sched.AfterFunc(delay, func() {
		e.relay(b, func() { e.recover(kind) })
	})
	logger.Warn().
		Err(herr).
		Str(xglog.FieldEvent, "playback.recovery.scheduled").
		Dur(xglog.FieldDelay, delay).
		Msg("scheduling recovery")
}

func (e *Engine) recover(kind hls.ErrorType) {
	s := e.session
	e.retryPending = false
	e.retry = nil
	s.PendingRetryDeadline = nil
	if e.ctrl == nil {
		return
	}

	action := "rebuild"
	switch kind {
	case hls.ErrorNetwork:
		action = "restart_load"
		e.ctrl.StopLoad()
		if !s.UserIntentPaused {
			e.ctrl.StartLoad()
		}
	case hls.ErrorMedia:
		action = "recover_media"
		e.ctrl.RecoverMediaError()
	default:
		e.teardown(false)
		if err := e.bind(); err != nil {
			e.report(err)
		}
	}
	metrics.RecordPlaybackRecovery(action)
	e.logger.Info().
		Str(xglog.FieldEvent, "playback.recovery."+action).
		Int(xglog.FieldRetry, s.RetryCount).
		Msg("recovery attempted")
}

func (e *Engine) onMediaEvent(ev media.Event) {
	s := e.session
	switch ev.Type {
	case media.EventError:
		e.onMediaError(ev.Err)
	case media.EventStalled, media.EventWaiting:
		e.nudge(string(ev.Type))
	case media.EventPause:
		if !s.UserIntentPaused && !e.media.Ended() {
			e.nudge("involuntary_pause")
		}
	}
}

func (e *Engine) onMediaError(merr *media.Error) {
	if merr == nil {
		return
	}
	switch {
	case merr.Code == media.CodeAborted:
		return
	case merr.Code == media.CodeSourceNotSupported && e.session.Kind == KindAdaptive && e.media.Source() == "":
		// The element reports an empty source while the controller owns its buffer.
		return
	}
	e.report(e.mediaError(merr))
}

func (e *Engine) nudge(trigger string) {
	s := e.session
	if s.Kind != KindAdaptive || e.ctrl == nil {
		return
	}
	if s.UserIntentPaused {
		metrics.RecordNudge(trigger, "suppressed")
		return
	}
	if s.Exhausted {
		metrics.RecordNudge(trigger, "exhausted")
		return
	}
	if !e.nudges.AllowN(e.sched.Now(), 1) {
		metrics.RecordNudge(trigger, "rate_limited")
		return
	}

	e.ctrl.StartLoad()
	pos := e.media.CurrentTime() - e.cfg.NudgeBack
	if pos < 0 {
		pos = 0
	}
	e.media.Seek(pos)
	e.autoplay()
	metrics.RecordNudge(trigger, "nudged")
	e.logger.Debug().Str(xglog.FieldEvent, "playback.nudge").Str("trigger", trigger).Dur("position", pos).Msg("stall nudge")
}
