// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/genplay/internal/hls"
	"github.com/ManuGH/genplay/internal/media"
)

// callLog records calls across fakes so tests can assert ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Time
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.log.add("timer.stop")
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	log    *callLog
}

func newFakeScheduler(log *callLog) *fakeScheduler {
	return &fakeScheduler{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), log: log}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, at: s.now.Add(d), delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// pending returns the delays of timers that have neither fired nor stopped.
func (s *fakeScheduler) pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.delay)
		}
	}
	return out
}

// delays returns the delay of every timer ever scheduled, in order.
func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, t.delay)
	}
	return out
}

// Advance moves the clock and fires due timers outside the lock.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && !t.at.After(s.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type fakeMedia struct {
	mu       sync.Mutex
	log      *callLog
	src      string
	paused   bool
	ended    bool
	pos      time.Duration
	rate     float64
	attached bool
	released bool
	playErr  error
	plays    int
	seeks    []time.Duration
	subs     map[int]func(media.Event)
	nextSub  int
}

func newFakeMedia(log *callLog) *fakeMedia {
	return &fakeMedia{log: log, paused: true, rate: 1, subs: make(map[int]func(media.Event))}
}

func (m *fakeMedia) SetSource(url string) {
	m.mu.Lock()
	m.src = url
	m.paused = true
	m.mu.Unlock()
	m.log.add("media.source:" + url)
}

func (m *fakeMedia) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src
}

func (m *fakeMedia) Play(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays++
	if m.released {
		return media.ErrInterrupted
	}
	if m.playErr != nil {
		return m.playErr
	}
	m.paused = false
	return nil
}

func (m *fakeMedia) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *fakeMedia) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *fakeMedia) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

func (m *fakeMedia) CurrentTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *fakeMedia) Seek(pos time.Duration) {
	m.mu.Lock()
	m.pos = pos
	m.seeks = append(m.seeks, pos)
	m.mu.Unlock()
}

func (m *fakeMedia) SetPlaybackRate(r float64) {
	m.mu.Lock()
	m.rate = r
	m.mu.Unlock()
}

func (m *fakeMedia) PlaybackRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *fakeMedia) Buffer() media.Buffer { return fakeBuffer{m} }

func (m *fakeMedia) Subscribe(fn func(media.Event)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		m.log.add("media.unsubscribe")
	}
}

func (m *fakeMedia) LastError() *media.Error { return nil }

func (m *fakeMedia) Release() {
	m.mu.Lock()
	m.released = true
	m.mu.Unlock()
	m.log.add("media.release")
}

func (m *fakeMedia) emit(ev media.Event) {
	m.mu.Lock()
	fns := make([]func(media.Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (m *fakeMedia) state() (plays int, seeks []time.Duration, released bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plays, append([]time.Duration(nil), m.seeks...), m.released
}

type fakeBuffer struct{ m *fakeMedia }

func (b fakeBuffer) Attach() error {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	if b.m.attached {
		return media.ErrBufferAttached
	}
	b.m.attached = true
	return nil
}

func (b fakeBuffer) Detach() {
	b.m.mu.Lock()
	b.m.attached = false
	b.m.mu.Unlock()
}

func (b fakeBuffer) Append([]byte, time.Duration) error { return nil }
func (b fakeBuffer) EndOfStream()                       {}
func (b fakeBuffer) Reset()                             {}

func (b fakeBuffer) Attached() bool {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	return b.m.attached
}

type fakeController struct {
	id  int
	log *callLog

	mu           sync.Mutex
	media        media.Media
	subs         map[int]func(hls.Event)
	nextSub      int
	loaded       string
	starts       int
	stops        int
	recovers     int
	destroyed    bool
	panicDestroy bool
}

func (c *fakeController) Subscribe(fn func(hls.Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	c.log.add("ctrl.subscribe")
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		c.log.add("ctrl.unsubscribe")
	}
}

func (c *fakeController) AttachMedia(m media.Media) error {
	if err := m.Buffer().Attach(); err != nil {
		return err
	}
	c.mu.Lock()
	c.media = m
	c.mu.Unlock()
	c.log.add("ctrl.attach")
	return nil
}

func (c *fakeController) DetachMedia() {
	c.mu.Lock()
	m := c.media
	c.media = nil
	c.mu.Unlock()
	if m != nil {
		m.Buffer().Detach()
	}
	c.log.add("ctrl.detach")
}

func (c *fakeController) LoadSource(url string) {
	c.mu.Lock()
	c.loaded = url
	c.mu.Unlock()
	c.log.add("ctrl.load:" + url)
}

func (c *fakeController) StartLoad() {
	c.mu.Lock()
	c.starts++
	c.mu.Unlock()
}

func (c *fakeController) StopLoad() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	c.log.add("ctrl.stop")
}

func (c *fakeController) RecoverMediaError() {
	c.mu.Lock()
	c.recovers++
	c.mu.Unlock()
}

func (c *fakeController) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	panicking := c.panicDestroy
	c.mu.Unlock()
	c.log.add("ctrl.destroy")
	if panicking {
		panic("destroy exploded")
	}
}

func (c *fakeController) emit(ev hls.Event) {
	c.mu.Lock()
	fns := make([]func(hls.Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (c *fakeController) fatal(t hls.ErrorType) {
	c.emit(hls.Event{Kind: hls.EventError, Error: &hls.Error{Type: t, Fatal: true, Details: "boom"}})
}

func (c *fakeController) counts() (starts, stops, recovers int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts, c.stops, c.recovers
}

func (c *fakeController) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// fakeFactory builds fakeControllers and remembers each one.
type fakeFactory struct {
	mu           sync.Mutex
	log          *callLog
	built        []*fakeController
	panicDestroy bool
}

func (f *fakeFactory) build() Controller {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeController{id: len(f.built), log: f.log, subs: make(map[int]func(hls.Event)), panicDestroy: f.panicDestroy}
	f.built = append(f.built, c)
	f.log.add("factory.build")
	return c
}

func (f *fakeFactory) all() []*fakeController {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeController(nil), f.built...)
}

func (f *fakeFactory) last() *fakeController {
	all := f.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}
