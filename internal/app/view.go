// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package app composes a generation session with playback and derives the
// single view shown to the user.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/genplay/internal/autoplay"
	"github.com/ManuGH/genplay/internal/bus"
	"github.com/ManuGH/genplay/internal/domain/session/manager"
	"github.com/ManuGH/genplay/internal/domain/session/model"
	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/playback"
)

// ViewKind is exactly one of the user-visible screens.
type ViewKind string

const (
	ViewGenerating        ViewKind = "generating"
	ViewBackgroundWaiting ViewKind = "background_waiting"
	ViewError             ViewKind = "error"
	ViewTimeout           ViewKind = "timeout"
	ViewPlayback          ViewKind = "playback"
)

// SelectView picks the screen from the session snapshot and whether a
// playback session exists. A ready session without playback keeps the
// generating screen until the player is built.
func SelectView(s manager.Snapshot, hasPlayback bool) ViewKind {
	switch s.Session.Status {
	case model.StatusFailed:
		return ViewError
	case model.StatusTimedOut:
		return ViewTimeout
	case model.StatusReady:
		if hasPlayback {
			return ViewPlayback
		}
		return ViewGenerating
	}
	if s.BackgroundWaiting {
		return ViewBackgroundWaiting
	}
	return ViewGenerating
}

// Player is the playback side of a view. *playback.Engine satisfies it.
type Player interface {
	Load(url string) error
	Session() playback.Session
	Handle() playback.Handle
	Destroy()
}

// PlayerFactory builds a player wired to the view's error and notice sinks.
type PlayerFactory func(onError func(error), onNotice func(autoplay.Notice)) Player

// State is the JSON view model served by the status server.
type State struct {
	View          ViewKind          `json:"view"`
	Session       manager.Snapshot  `json:"session"`
	Playback      *playback.Session `json:"playback,omitempty"`
	Notice        string            `json:"notice,omitempty"`
	PlaybackError string            `json:"playback_error,omitempty"`
}

// View runs one session and owns the player built for its artifact.
type View struct {
	runner    *manager.Runner
	bus       bus.Bus[manager.Snapshot]
	newPlayer PlayerFactory
	now       func() time.Time
	logger    zerolog.Logger

	mu          sync.Mutex
	snap        manager.Snapshot
	player      Player
	notice      string
	noticeUntil time.Time
	playErr     string
	closed      bool
}

// NewView prepares a view. The bus must be the one the runner publishes to.
func NewView(runner *manager.Runner, b bus.Bus[manager.Snapshot], newPlayer PlayerFactory) *View {
	return &View{
		runner:    runner,
		bus:       b,
		newPlayer: newPlayer,
		now:       time.Now,
		logger:    xglog.WithComponent("view"),
		snap:      manager.Snapshot{SecondsSinceHeartbeat: -1},
	}
}

type runResult struct {
	session model.GenerationSession
	err     error
}

// Run drives the session to its end. Playback starts as soon as a snapshot
// reports a ready artifact and keeps running after Run returns, until Close.
func (v *View) Run(ctx context.Context) (model.GenerationSession, error) {
	sub, err := v.bus.Subscribe(ctx, manager.TopicSnapshots)
	if err != nil {
		return model.GenerationSession{}, err
	}
	defer func() { _ = sub.Close() }()

	done := make(chan runResult, 1)
	go func() {
		s, err := v.runner.Run(ctx)
		done <- runResult{session: s, err: err}
	}()

	snaps := sub.C()
	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			v.observe(snap)
		case res := <-done:
			v.finish(ctx, res.session)
			return res.session, res.err
		}
	}
}

// State returns the current view model.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := State{
		View:          SelectView(v.snap, v.player != nil),
		Session:       v.snap,
		PlaybackError: v.playErr,
	}
	if v.player != nil {
		ps := v.player.Session()
		st.Playback = &ps
	}
	if v.notice != "" && v.now().Before(v.noticeUntil) {
		st.Notice = v.notice
	}
	return st
}

// Playback returns the player's narrow handle, or nil before playback starts.
func (v *View) Playback() playback.Handle {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.player == nil {
		return nil
	}
	return v.player.Handle()
}

// Close destroys the player. The view cannot start playback afterwards.
func (v *View) Close() {
	v.mu.Lock()
	p := v.player
	v.closed = true
	v.mu.Unlock()
	if p != nil {
		p.Destroy()
	}
}

func (v *View) observe(snap manager.Snapshot) {
	v.mu.Lock()
	v.snap = snap
	p, url := v.claimLocked(snap.Session)
	v.mu.Unlock()
	v.load(p, url)
}

// finish folds the final session in; its snapshot may have been dropped by the bus.
func (v *View) finish(ctx context.Context, s model.GenerationSession) {
	v.mu.Lock()
	v.snap.Session = s
	v.snap.Polling = false
	v.snap.BackgroundWaiting = false
	var (
		p   Player
		url string
	)
	if ctx.Err() == nil {
		p, url = v.claimLocked(s)
	}
	v.mu.Unlock()
	v.load(p, url)
}

// claimLocked creates the player for a ready session exactly once.
func (v *View) claimLocked(s model.GenerationSession) (Player, string) {
	if v.player != nil || v.closed || s.Status != model.StatusReady || s.Artifact.PlaybackURL == "" {
		return nil, ""
	}
	v.player = v.newPlayer(v.recordError, v.recordNotice)
	return v.player, s.Artifact.PlaybackURL
}

func (v *View) load(p Player, url string) {
	if p == nil {
		return
	}
	if err := p.Load(url); err != nil {
		v.recordError(err)
		v.logger.Error().Err(err).Str(xglog.FieldPlaybackURL, url).Msg("playback load failed")
		return
	}
	v.logger.Info().
		Str(xglog.FieldEvent, "view.playback.started").
		Str(xglog.FieldPlaybackURL, url).
		Str(xglog.FieldMediaKind, string(playback.KindOf(url))).
		Msg("playback started")
}

func (v *View) recordError(err error) {
	v.mu.Lock()
	v.playErr = err.Error()
	v.mu.Unlock()
}

func (v *View) recordNotice(n autoplay.Notice) {
	v.mu.Lock()
	v.notice = n.Text
	v.noticeUntil = v.now().Add(n.Duration)
	v.mu.Unlock()
}
