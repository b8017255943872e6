// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/genplay/internal/bus"
	"github.com/ManuGH/genplay/internal/detail"
	"github.com/ManuGH/genplay/internal/domain/session/model"
	"github.com/ManuGH/genplay/internal/stream"
)

type scriptedStream struct {
	events []stream.Event
	end    error
	hold   bool
	opened atomic.Int32
}

func (s *scriptedStream) Open(ctx context.Context, _ stream.Request, onEvent func(stream.Event)) error {
	s.opened.Add(1)
	for _, ev := range s.events {
		if err := ctx.Err(); err != nil {
			return err
		}
		onEvent(ev)
	}
	if s.hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.end
}

type scriptedPoller struct {
	mu      sync.Mutex
	results []detail.Result
	calls   atomic.Int32
}

func (p *scriptedPoller) Poll(ctx context.Context, _ string) (detail.Result, bool, error) {
	p.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return detail.Result{}, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return detail.Result{Status: "processing"}, false, nil
	}
	res := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return res, res.Ready(), nil
}

func fastConfig() Config {
	return Config{
		PollInterval:   10 * time.Millisecond,
		Timeout:        5 * time.Second,
		Countdown:      time.Second,
		Tick:           5 * time.Millisecond,
		SupportContact: "support@example.com",
	}
}

func runWithTimeout(t *testing.T, r *Runner, ctx context.Context) (model.GenerationSession, error) {
	t.Helper()
	type result struct {
		sess model.GenerationSession
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := r.Run(ctx)
		done <- result{s, err}
	}()
	select {
	case res := <-done:
		return res.sess, res.err
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not finish")
		return model.GenerationSession{}, nil
	}
}

func TestRunner_StreamDeliversURL(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := &scriptedStream{events: []stream.Event{
		ev(stream.EventTask, `{"id":"abc"}`),
		ev(stream.EventProgress, `{"info":"rendering"}`),
		ev(stream.EventMain, `{"url":"https://x/playlist.m3u8"}`),
		ev(stream.EventDone, ``),
	}}
	p := &scriptedPoller{}
	r := NewRunner(fastConfig(), Deps{Stream: s, Poller: p}, stream.Request{Prompt: "p"}, "")

	sess, err := runWithTimeout(t, r, context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, sess.Status)
	assert.Equal(t, "https://x/playlist.m3u8", sess.Artifact.PlaybackURL)
	assert.Equal(t, []string{"rendering"}, sess.ProgressLog)
	assert.True(t, sess.StreamDone)
	assert.Equal(t, int32(0), p.calls.Load(), "no polling when the stream produced the URL")
}

func TestRunner_DoneWithoutURLFallsBackToPolling(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := &scriptedStream{events: []stream.Event{
		ev(stream.EventTask, `{"id":"abc"}`),
		ev(stream.EventDone, ``),
	}}
	p := &scriptedPoller{results: []detail.Result{
		{Status: "processing"},
		{Status: "processing"},
		{PlaybackURL: "https://x/v.mp4", Title: "Waves"},
	}}
	r := NewRunner(fastConfig(), Deps{Stream: s, Poller: p}, stream.Request{}, "")

	sess, err := runWithTimeout(t, r, context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, sess.Status)
	assert.Equal(t, "https://x/v.mp4", sess.Artifact.PlaybackURL)
	assert.Equal(t, model.SourcePoll, sess.Artifact.Source)
	assert.Equal(t, "Waves", sess.Artifact.Title)
	assert.GreaterOrEqual(t, p.calls.Load(), int32(3))
}

func TestRunner_DeepLinkPollsWithoutStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := &scriptedStream{}
	p := &scriptedPoller{results: []detail.Result{{PlaybackURL: "https://x/v.mp4"}}}
	r := NewRunner(fastConfig(), Deps{Stream: s, Poller: p}, stream.Request{}, "abc")

	sess, err := runWithTimeout(t, r, context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, sess.Status)
	assert.Equal(t, "abc", sess.ID)
	assert.Equal(t, int32(0), s.opened.Load())
}

func TestRunner_ErrorClosesStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := &scriptedStream{
		events: []stream.Event{ev(stream.EventError, `{"error":"LLM failure"}`)},
		hold:   true,
	}
	r := NewRunner(fastConfig(), Deps{Stream: s, Poller: &scriptedPoller{}}, stream.Request{}, "")

	sess, err := runWithTimeout(t, r, context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, sess.Status)
	assert.Equal(t, "LLM failure", sess.Failure.Message)
	assert.False(t, sess.StreamFailed, "closing the stream ourselves is not a stream failure")
}

func TestRunner_TimeoutStopsPolling(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := fastConfig()
	cfg.Timeout = 100 * time.Millisecond
	p := &scriptedPoller{}
	r := NewRunner(cfg, Deps{Poller: p}, stream.Request{}, "abc")

	sess, err := runWithTimeout(t, r, context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusTimedOut, sess.Status)
	assert.Contains(t, sess.Failure.Message, "support@example.com")

	calls := p.calls.Load()
	assert.Positive(t, calls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, p.calls.Load(), "no polls after timeout")
}

func TestRunner_CancelReturnsContextError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := &scriptedStream{hold: true}
	r := NewRunner(fastConfig(), Deps{Stream: s, Poller: &scriptedPoller{}}, stream.Request{}, "")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	sess, err := runWithTimeout(t, r, ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.StatusAwaitingID, sess.Status)
}

func TestRunner_PublishesSnapshots(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.NewMemoryBus[Snapshot](256)
	sub, err := b.Subscribe(context.Background(), TopicSnapshots)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	s := &scriptedStream{events: []stream.Event{
		ev(stream.EventTask, `{"id":"abc"}`),
		ev(stream.EventMain, `{"url":"https://x/playlist.m3u8"}`),
		ev(stream.EventDone, ``),
	}}
	r := NewRunner(fastConfig(), Deps{Stream: s, Poller: &scriptedPoller{}, Bus: b}, stream.Request{}, "")
	_, err = runWithTimeout(t, r, context.Background())
	require.NoError(t, err)

	var last Snapshot
	n := 0
	for len(sub.C()) > 0 {
		last = <-sub.C()
		n++
	}
	assert.GreaterOrEqual(t, n, 3)
	assert.Equal(t, model.StatusReady, last.Session.Status)
	assert.Equal(t, r.LocalID(), last.Session.LocalID)
}
