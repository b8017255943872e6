// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/genplay/internal/bus"
	"github.com/ManuGH/genplay/internal/detail"
	"github.com/ManuGH/genplay/internal/domain/session/model"
	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/stream"
)

// TopicSnapshots is the bus topic carrying session snapshots.
const TopicSnapshots = "session.snapshot"

// StreamOpener opens the generation event stream.
type StreamOpener interface {
	Open(ctx context.Context, req stream.Request, onEvent func(stream.Event)) error
}

// DetailPoller performs a single detail lookup.
type DetailPoller interface {
	Poll(ctx context.Context, id string) (detail.Result, bool, error)
}

// Deps are the collaborators of a Runner.
type Deps struct {
	// Stream may be nil when resuming a known job.
	Stream StreamOpener
	Poller DetailPoller
	Bus    bus.Bus[Snapshot]
	Now    func() time.Time
}

type msgKind int

const (
	msgEvent msgKind = iota
	msgStreamEnd
	msgPoll
)

type message struct {
	kind   msgKind
	event  stream.Event
	err    error
	result detail.Result
}

// Runner owns one session: the stream goroutine, the poll ticker, the session
// clock and in-flight polls. All results funnel into a single inbox.
type Runner struct {
	cfg     Config
	deps    Deps
	req     stream.Request
	jobID   string
	machine *Machine
}

// NewRunner prepares a session. With a non-empty jobID no stream is opened
// and the session resumes by polling.
func NewRunner(cfg Config, deps Deps, req stream.Request, jobID string) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if jobID != "" {
		deps.Stream = nil
	}
	return &Runner{
		cfg:     cfg,
		deps:    deps,
		req:     req,
		jobID:   jobID,
		machine: NewMachine(cfg, jobID, deps.Now()),
	}
}

// LocalID is the correlation id of the session this runner drives.
func (r *Runner) LocalID() string { return r.machine.sess.LocalID }

// Run drives the session until it is terminal and the stream has closed, or
// until ctx is cancelled. It returns the final session and ctx.Err() on
// cancellation. Every goroutine it starts has exited when Run returns.
func (r *Runner) Run(ctx context.Context) (model.GenerationSession, error) {
	ctx = xglog.ContextWithSessionID(ctx, r.LocalID())
	if r.jobID != "" {
		ctx = xglog.ContextWithJobID(ctx, r.jobID)
	}
	logger := xglog.WithComponentFromContext(ctx, "session")

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	inbox := make(chan message, 64)
	send := func(m message) {
		select {
		case inbox <- m:
		case <-ctx.Done():
		}
	}

	streamRunning := r.deps.Stream != nil
	closeStream := func() {}
	if streamRunning {
		streamCtx, streamCancel := context.WithCancel(ctx)
		closeStream = streamCancel
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.deps.Stream.Open(streamCtx, r.req, func(ev stream.Event) {
				send(message{kind: msgEvent, event: ev})
			})
			send(message{kind: msgStreamEnd, err: err})
		}()
	}
	defer closeStream()

	tick := time.NewTicker(r.cfg.Tick)
	defer tick.Stop()

	var (
		pollTicker *time.Ticker
		pollC      <-chan time.Time
		pollCtx    context.Context
		pollCancel context.CancelFunc = func() {}
	)
	stopPolling := func() {
		if pollTicker != nil {
			pollTicker.Stop()
			pollTicker, pollC = nil, nil
		}
		pollCancel()
	}
	defer stopPolling()

	pollOnce := func() {
		id := r.machine.sess.ID
		if id == "" || r.deps.Poller == nil {
			return
		}
		wg.Add(1)
		go func(pctx context.Context) {
			defer wg.Done()
			res, _, err := r.deps.Poller.Poll(pctx, id)
			if err != nil {
				// logged by the poller; the next tick retries
				return
			}
			send(message{kind: msgPoll, result: res})
		}(pollCtx)
	}

	apply := func(eff Effects) {
		if eff.StopPolling {
			stopPolling()
		}
		if eff.StartPolling && pollTicker == nil {
			pollCtx, pollCancel = context.WithCancel(ctx)
			pollTicker = time.NewTicker(r.cfg.PollInterval)
			pollC = pollTicker.C
		}
		if eff.PollNow && pollTicker != nil {
			pollOnce()
		}
		if eff.CloseStream {
			closeStream()
		}
		r.publish(ctx)
	}

	apply(r.machine.Start(streamRunning, r.deps.Now()))

	for {
		if r.machine.Status().IsTerminal() && !streamRunning {
			logger.Info().
				Str(xglog.FieldEvent, "session.finished").
				Str("status", string(r.machine.Status())).
				Msg("session finished")
			return r.machine.Session(), nil
		}

		select {
		case <-ctx.Done():
			err := ctx.Err()
			logger.Debug().Err(err).Msg("session runner cancelled")
			return r.machine.Session(), err

		case m := <-inbox:
			now := r.deps.Now()
			switch m.kind {
			case msgEvent:
				apply(r.machine.HandleEvent(m.event, now))
			case msgStreamEnd:
				streamRunning = false
				apply(r.machine.HandleStreamEnd(m.err, now))
			case msgPoll:
				apply(r.machine.HandlePoll(m.result, now))
			}

		case <-tick.C:
			apply(r.machine.Tick(r.deps.Now()))

		case <-pollC:
			if r.machine.Polling() {
				pollOnce()
			}
		}
	}
}

func (r *Runner) publish(ctx context.Context) {
	if r.deps.Bus == nil {
		return
	}
	_ = r.deps.Bus.Publish(ctx, TopicSnapshots, r.machine.Snapshot(r.deps.Now()))
}
