// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manager drives a generation session from stream events, detail
// polls and the session clock.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/genplay/internal/config"
	"github.com/ManuGH/genplay/internal/detail"
	"github.com/ManuGH/genplay/internal/domain/session/lifecycle"
	"github.com/ManuGH/genplay/internal/domain/session/model"
	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/metrics"
	"github.com/ManuGH/genplay/internal/stream"
)

// Config holds the session timers.
type Config struct {
	PollInterval   time.Duration
	Timeout        time.Duration
	Countdown      time.Duration
	Tick           time.Duration
	SupportContact string
}

// ConfigFrom maps the session section of the application config.
func ConfigFrom(cfg config.SessionConfig) Config {
	return Config{
		PollInterval:   cfg.PollInterval,
		Timeout:        cfg.Timeout,
		Countdown:      cfg.Countdown,
		Tick:           cfg.Tick,
		SupportContact: cfg.SupportContact,
	}
}

// Effects tells the runner what to do after a Machine step.
type Effects struct {
	StartPolling bool
	StopPolling  bool
	PollNow      bool
	CloseStream  bool
}

func (e Effects) merge(o Effects) Effects {
	return Effects{
		StartPolling: e.StartPolling || o.StartPolling,
		StopPolling:  e.StopPolling || o.StopPolling,
		PollNow:      e.PollNow || o.PollNow,
		CloseStream:  e.CloseStream || o.CloseStream,
	}
}

// Snapshot is a read-only view of the session for rendering.
type Snapshot struct {
	Session model.GenerationSession `json:"session"`
	// SecondsSinceHeartbeat is -1 until the first heartbeat.
	SecondsSinceHeartbeat int  `json:"seconds_since_heartbeat"`
	Countdown             int  `json:"countdown"`
	BackgroundWaiting     bool `json:"background_waiting"`
	ShowTopUp             bool `json:"show_top_up"`
	ProviderLocked        bool `json:"provider_locked"`
	Polling               bool `json:"polling"`
}

// Machine is the single-writer session reducer. It performs no I/O and is not
// safe for concurrent use; the Runner serializes every call.
type Machine struct {
	cfg            Config
	sess           *model.GenerationSession
	polling        bool
	providerLocked bool
	logger         zerolog.Logger
}

// NewMachine creates a machine. A non-empty jobID resumes an existing job and
// starts in awaiting_artifact.
func NewMachine(cfg Config, jobID string, now time.Time) *Machine {
	sess := model.NewGenerationSession(jobID, now)
	return &Machine{
		cfg:  cfg,
		sess: sess,
		logger: xglog.WithComponentFromContext(
			xglog.ContextWithSessionID(context.Background(), sess.LocalID), "session"),
	}
}

// Session returns a copy of the current session.
func (m *Machine) Session() model.GenerationSession { return m.sess.Clone() }

// Status returns the current status.
func (m *Machine) Status() model.Status { return m.sess.Status }

// Polling reports whether the poll timer should be running.
func (m *Machine) Polling() bool { return m.polling }

// Start evaluates the initial poll eligibility. streamStarted records whether
// a stream connection is being opened for this session.
func (m *Machine) Start(streamStarted bool, now time.Time) Effects {
	m.sess.StreamStarted = streamStarted
	return m.advance(now).merge(m.reconcilePolling())
}

// HandleEvent applies one stream event.
func (m *Machine) HandleEvent(ev stream.Event, now time.Time) Effects {
	eff := m.advance(now)
	logger := m.logger.With().Str(xglog.FieldEventType, ev.Type).Logger()

	switch ev.Type {
	case stream.EventHeartbeat:
		t := now
		m.sess.LastHeartbeatAt = &t

	case stream.EventProgress:
		m.sess.ProgressLog = append(m.sess.ProgressLog, stream.ProgressText(ev))

	case stream.EventTask, stream.EventMetadata:
		id, err := stream.JobID(ev)
		if err != nil {
			m.malformed(logger, ev, err)
			break
		}
		m.identify(logger, id, now)

	case stream.EventTitle:
		title, err := stream.Title(ev)
		if err != nil {
			m.malformed(logger, ev, err)
			break
		}
		if title != "" {
			m.sess.Artifact.Title = title
		}

	case stream.EventMain, stream.EventVideo:
		u, err := stream.ArtifactURL(ev)
		if err != nil {
			m.malformed(logger, ev, err)
			break
		}
		if u == "" {
			logger.Debug().Msg("artifact event without url ignored")
			break
		}
		eff = eff.merge(m.adoptStreamURL(logger, ev.Type, u, now))

	case stream.EventError, stream.EventQuota:
		msg, err := stream.FailureMessage(ev)
		if err != nil {
			m.malformed(logger, ev, err)
			msg = ev.Data
		}
		kind := model.FailureGeneric
		if ev.Type == stream.EventQuota {
			kind = model.FailureQuota
		}
		eff = eff.merge(m.fail(logger, kind, msg, now))

	case stream.EventDone:
		m.sess.StreamDone = true
		m.providerLocked = true
		logger.Info().Str(xglog.FieldEvent, "session.stream_done").Msg("generation stream finished")

	default:
		logger.Debug().Msg("ignoring unknown stream event")
	}

	return eff.merge(m.reconcilePolling())
}

// HandleStreamEnd records how the stream connection ended. A nil error means
// done was received.
func (m *Machine) HandleStreamEnd(err error, now time.Time) Effects {
	eff := m.advance(now)
	switch {
	case err == nil:
		m.sess.StreamDone = true
	case errors.Is(err, context.Canceled):
		// closed by us
	default:
		m.sess.StreamFailed = true
		m.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "session.stream_failed").
			Bool("job_known", m.sess.ID != "").
			Msg("generation stream ended early, falling back to polling")
	}
	return eff.merge(m.reconcilePolling())
}

// HandlePoll applies one successful detail poll.
func (m *Machine) HandlePoll(res detail.Result, now time.Time) Effects {
	eff := m.advance(now)
	if m.sess.Status.IsTerminal() && m.sess.Status != model.StatusReady {
		return eff
	}

	a := &m.sess.Artifact
	setIfPresent(&a.Title, res.Title)
	setIfPresent(&a.CoverURL, res.CoverURL)
	setIfPresent(&a.AnswerText, res.AnswerText)
	setIfPresent(&a.DownloadURL, res.DownloadURL)
	if len(res.TranscriptLines) > 0 {
		a.TranscriptLines = append([]string(nil), res.TranscriptLines...)
	}

	if res.PlaybackURL != "" {
		eff = eff.merge(m.adopt(m.logger, res.PlaybackURL, model.SourcePoll, now))
	}
	return eff.merge(m.reconcilePolling())
}

// Tick advances the session clock.
func (m *Machine) Tick(now time.Time) Effects {
	return m.advance(now).merge(m.reconcilePolling())
}

// Snapshot derives the display state at now.
func (m *Machine) Snapshot(now time.Time) Snapshot {
	elapsed := m.elapsed(now)
	s := Snapshot{
		Session:               m.sess.Clone(),
		SecondsSinceHeartbeat: -1,
		ProviderLocked:        m.providerLocked,
		Polling:               m.polling,
	}
	if m.sess.LastHeartbeatAt != nil {
		s.SecondsSinceHeartbeat = int(now.Sub(*m.sess.LastHeartbeatAt) / time.Second)
	}
	if remaining := m.cfg.Countdown - elapsed; remaining > 0 {
		s.Countdown = int((remaining + time.Second - 1) / time.Second)
	}
	s.BackgroundWaiting = m.sess.Status.IsAwaiting() && elapsed >= m.cfg.Countdown
	s.ShowTopUp = m.sess.Failure != nil && m.sess.Failure.Kind == model.FailureQuota
	return s
}

func (m *Machine) elapsed(now time.Time) time.Duration {
	d := now.Sub(m.sess.CreatedAt)
	if d < 0 {
		return 0
	}
	return d
}

// advance updates the monotonic elapsed counter and enforces the absolute
// timeout. Polling is cleared before the status changes.
func (m *Machine) advance(now time.Time) Effects {
	elapsed := m.elapsed(now)
	if secs := int(elapsed / time.Second); secs > m.sess.ElapsedSeconds {
		m.sess.ElapsedSeconds = secs
	}
	if !m.sess.Status.IsAwaiting() || elapsed < m.cfg.Timeout {
		return Effects{}
	}

	var eff Effects
	if m.polling {
		m.polling = false
		eff.StopPolling = true
	}
	msg := fmt.Sprintf("Generation did not finish within %d minutes. Please contact %s for support.",
		int(m.cfg.Timeout/time.Minute), m.cfg.SupportContact)
	m.dispatch(m.logger, lifecycle.Event{Kind: lifecycle.EvTimedOut, Message: msg}, now)
	metrics.IncSessionOutcome(string(model.StatusTimedOut), string(model.FailureTimeout))
	eff.CloseStream = true
	return eff
}

func (m *Machine) identify(logger zerolog.Logger, id string, now time.Time) {
	if id == "" {
		logger.Debug().Msg("task event without id ignored")
		return
	}
	switch m.sess.ID {
	case id:
		return
	case "":
		m.sess.ID = id
		logger.Info().Str(xglog.FieldEvent, "session.job_identified").Str(xglog.FieldJobID, id).Msg("job id received")
		if m.sess.Status == model.StatusAwaitingID {
			m.dispatch(logger, lifecycle.Event{Kind: lifecycle.EvAccepted}, now)
		}
	default:
		logger.Warn().
			Str(xglog.FieldJobID, m.sess.ID).
			Str("ignored_job_id", id).
			Msg("different job id after one was known, ignoring")
	}
}

func (m *Machine) adoptStreamURL(logger zerolog.Logger, typ, u string, now time.Time) Effects {
	if m.sess.Artifact.PlaybackURL != "" {
		if typ == stream.EventVideo {
			m.sess.Artifact.DownloadURL = u
			return Effects{}
		}
		if u != m.sess.Artifact.PlaybackURL {
			logger.Debug().Str(xglog.FieldURL, u).Msg("playback url already set, ignoring")
		}
		return Effects{}
	}
	source := model.SourceStreamMain
	if typ == stream.EventVideo {
		source = model.SourceStreamVideo
		m.sess.Artifact.DownloadURL = u
	}
	return m.adopt(logger, u, source, now)
}

// adopt sets the playback URL once and moves the session to ready.
func (m *Machine) adopt(logger zerolog.Logger, u string, source model.ArtifactSource, now time.Time) Effects {
	if m.sess.Artifact.PlaybackURL != "" || !m.sess.Status.IsAwaiting() {
		return Effects{}
	}
	if m.sess.Status == model.StatusAwaitingID {
		m.dispatch(logger, lifecycle.Event{Kind: lifecycle.EvAccepted}, now)
	}
	if !m.dispatch(logger, lifecycle.Event{Kind: lifecycle.EvArtifactReady}, now) {
		return Effects{}
	}
	m.sess.Artifact.PlaybackURL = u
	m.sess.Artifact.Source = source
	metrics.ObserveTimeToArtifact(string(source), m.elapsed(now))
	metrics.IncSessionOutcome(string(model.StatusReady), "")
	logger.Info().
		Str(xglog.FieldEvent, "session.ready").
		Str(xglog.FieldPlaybackURL, u).
		Str(xglog.FieldSource, string(source)).
		Msg("playback url available")
	return Effects{}
}

func (m *Machine) fail(logger zerolog.Logger, kind model.FailureKind, msg string, now time.Time) Effects {
	if !m.dispatch(logger, lifecycle.Event{Kind: lifecycle.EvFailed, FailureKind: kind, Message: msg}, now) {
		return Effects{}
	}
	metrics.IncSessionOutcome(string(model.StatusFailed), string(kind))
	logger.Warn().
		Str(xglog.FieldEvent, "session.failed").
		Str("failure_kind", string(kind)).
		Str("message", msg).
		Msg("generation failed")
	return Effects{CloseStream: true}
}

func (m *Machine) dispatch(logger zerolog.Logger, ev lifecycle.Event, now time.Time) bool {
	from := m.sess.Status
	tr, err := lifecycle.Dispatch(m.sess, ev, now)
	if err != nil {
		logger.Debug().Err(err).Msg("event rejected by lifecycle")
		return false
	}
	logger.Debug().
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(tr.To)).
		Msg("session transition")
	return true
}

func (m *Machine) malformed(logger zerolog.Logger, ev stream.Event, err error) {
	metrics.IncMalformedPayload(ev.Type)
	logger.Warn().Err(err).Str("data", ev.Data).Msg("dropping malformed stream payload")
}

// pollEligible: job known, no playback URL, not terminal, and the stream has
// ended or was never started.
func (m *Machine) pollEligible() bool {
	s := m.sess
	return s.ID != "" &&
		s.Artifact.PlaybackURL == "" &&
		!s.Status.IsTerminal() &&
		(s.StreamDone || s.StreamFailed || !s.StreamStarted)
}

func (m *Machine) reconcilePolling() Effects {
	eligible := m.pollEligible()
	switch {
	case eligible && !m.polling:
		m.polling = true
		m.logger.Info().Str(xglog.FieldEvent, "session.polling_started").Str(xglog.FieldJobID, m.sess.ID).Msg("starting detail polling")
		return Effects{StartPolling: true, PollNow: true}
	case !eligible && m.polling:
		m.polling = false
		return Effects{StopPolling: true}
	}
	return Effects{}
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
