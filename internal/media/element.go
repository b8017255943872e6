// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/platform/httpx"
)

// Policy decides whether Play may start without a user gesture.
type Policy int

const (
	PolicyAllow Policy = iota
	PolicyGesture
)

// ParsePolicy maps "allow" and "gesture".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "allow":
		return PolicyAllow, nil
	case "gesture":
		return PolicyGesture, nil
	default:
		return PolicyAllow, fmt.Errorf("unknown autoplay policy %q", s)
	}
}

const copyChunk = 32 << 10

type segment struct {
	data []byte
	dur  time.Duration
}

// Element is a headless Media. Played bytes go to the output writer: segment
// payloads for buffer-fed playback, the response body for progressive URLs.
type Element struct {
	mu   sync.Mutex
	cond *sync.Cond

	out    io.Writer
	client *http.Client
	policy Policy
	logger zerolog.Logger

	gestured bool
	src      string
	paused   bool
	ended    bool
	pos      time.Duration
	rate     float64
	lastErr  *Error
	released bool

	// buffer-fed state
	attached bool
	queue    []segment
	eos      bool
	waiting  bool

	generation int // bumped on every source change to retire stale workers
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	subs    map[int]func(Event)
	nextSub int
}

// ElementOption configures an Element.
type ElementOption func(*Element)

// WithPolicy sets the autoplay policy.
func WithPolicy(p Policy) ElementOption { return func(e *Element) { e.policy = p } }

// WithHTTPClient sets the client used for progressive sources.
func WithHTTPClient(c *http.Client) ElementOption { return func(e *Element) { e.client = c } }

// NewElement creates an element writing to out.
func NewElement(out io.Writer, opts ...ElementOption) *Element {
	e := &Element{
		out:    out,
		client: httpx.Instrument(httpx.NewStreamingClient(), "media.progressive"),
		paused: true,
		rate:   1,
		subs:   make(map[int]func(Event)),
		logger: xglog.WithComponent("media"),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Gesture records a user activation, lifting a gesture policy.
func (e *Element) Gesture() {
	e.mu.Lock()
	e.gestured = true
	e.mu.Unlock()
}

// SetSource implements Media.
func (e *Element) SetSource(url string) {
	e.mu.Lock()
	e.stopWorkerLocked()
	e.src = url
	e.attached = false
	e.queue = nil
	e.eos = false
	e.ended = false
	e.pos = 0
	e.paused = true
	e.lastErr = nil
	e.mu.Unlock()
}

// Source implements Media.
func (e *Element) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Play implements Media.
func (e *Element) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ErrInterrupted
	}
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return ErrInterrupted
	}
	if e.policy == PolicyGesture && !e.gestured {
		e.mu.Unlock()
		return ErrNotAllowed
	}
	if e.src == "" && !e.attached {
		merr := &Error{Code: CodeSourceNotSupported, Message: "no source"}
		e.lastErr = merr
		e.mu.Unlock()
		e.emit(Event{Type: EventError, Err: merr})
		return merr
	}
	if !e.paused {
		e.mu.Unlock()
		return nil
	}
	e.paused = false
	if e.ended {
		e.ended = false
		e.pos = 0
	}
	e.startWorkerLocked()
	e.cond.Broadcast()
	e.mu.Unlock()

	e.emit(Event{Type: EventPlay})
	return nil
}

// Pause implements Media.
func (e *Element) Pause() {
	e.mu.Lock()
	if e.paused || e.released {
		e.mu.Unlock()
		return
	}
	e.paused = true
	e.cond.Broadcast()
	e.mu.Unlock()
	e.emit(Event{Type: EventPause})
}

// Paused implements Media.
func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Ended implements Media.
func (e *Element) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

// CurrentTime implements Media.
func (e *Element) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// Seek implements Media. Positions are clamped at zero.
func (e *Element) Seek(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}
	e.mu.Lock()
	e.pos = pos
	e.mu.Unlock()
}

// SetPlaybackRate implements Media.
func (e *Element) SetPlaybackRate(rate float64) {
	e.mu.Lock()
	e.rate = rate
	e.mu.Unlock()
}

// PlaybackRate implements Media.
func (e *Element) PlaybackRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// LastError implements Media.
func (e *Element) LastError() *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Subscribe implements Media.
func (e *Element) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// Release implements Media. It waits for the playback worker to exit.
func (e *Element) Release() {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	e.released = true
	e.stopWorkerLocked()
	e.subs = make(map[int]func(Event))
	e.mu.Unlock()
	e.wg.Wait()
}

// Buffer implements Media.
func (e *Element) Buffer() Buffer { return (*elementBuffer)(e) }

func (e *Element) emit(ev Event) {
	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (e *Element) startWorkerLocked() {
	if e.running {
		return
	}
	e.running = true
	gen := e.generation
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	if e.attached {
		go e.pumpSegments(ctx, gen)
		return
	}
	go e.fetchProgressive(ctx, gen, e.src)
}

func (e *Element) stopWorkerLocked() {
	e.generation++
	e.running = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.cond.Broadcast()
}

// live reports whether the worker of generation gen may continue.
// Caller must hold e.mu.
func (e *Element) live(ctx context.Context, gen int) bool {
	return ctx.Err() == nil && !e.released && e.generation == gen
}

func (e *Element) pumpSegments(ctx context.Context, gen int) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for e.live(ctx, gen) && (e.paused || (len(e.queue) == 0 && !e.eos)) {
			if !e.paused && len(e.queue) == 0 && !e.waiting {
				e.waiting = true
				e.mu.Unlock()
				e.emit(Event{Type: EventWaiting})
				e.mu.Lock()
				continue
			}
			e.cond.Wait()
		}
		if !e.live(ctx, gen) {
			e.mu.Unlock()
			return
		}
		if len(e.queue) == 0 && e.eos {
			e.ended = true
			e.paused = true
			e.running = false
			e.mu.Unlock()
			e.emit(Event{Type: EventEnded})
			return
		}
		seg := e.queue[0]
		e.queue = e.queue[1:]
		e.waiting = false
		e.mu.Unlock()

		if _, err := e.out.Write(seg.data); err != nil {
			e.fail(gen, &Error{Code: CodeDecode, Message: err.Error()})
			return
		}

		e.mu.Lock()
		if e.generation == gen {
			e.pos += seg.dur
		}
		e.mu.Unlock()
	}
}

func (e *Element) fetchProgressive(ctx context.Context, gen int, url string) {
	defer e.wg.Done()
	logger := e.logger.With().Str(xglog.FieldURL, url).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		e.fail(gen, &Error{Code: CodeSourceNotSupported, Message: err.Error()})
		return
	}
	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.fail(gen, &Error{Code: CodeNetwork, Message: err.Error()})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnsupportedMediaType:
		e.fail(gen, &Error{Code: CodeSourceNotSupported, Message: resp.Status})
		return
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		e.fail(gen, &Error{Code: CodeNetwork, Message: resp.Status})
		return
	}
	e.emit(Event{Type: EventLoadedMetadata})

	buf := make([]byte, copyChunk)
	for {
		e.mu.Lock()
		for e.live(ctx, gen) && e.paused {
			e.cond.Wait()
		}
		if !e.live(ctx, gen) {
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := e.out.Write(buf[:n]); err != nil {
				e.fail(gen, &Error{Code: CodeDecode, Message: err.Error()})
				return
			}
		}
		if errors.Is(rerr, io.EOF) {
			e.mu.Lock()
			if e.generation != gen {
				e.mu.Unlock()
				return
			}
			e.ended = true
			e.paused = true
			e.running = false
			e.mu.Unlock()
			logger.Debug().Msg("progressive source fully played")
			e.emit(Event{Type: EventEnded})
			return
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return
			}
			e.fail(gen, &Error{Code: CodeNetwork, Message: rerr.Error()})
			return
		}
	}
}

func (e *Element) fail(gen int, merr *Error) {
	e.mu.Lock()
	if e.generation != gen || e.released {
		e.mu.Unlock()
		return
	}
	e.lastErr = merr
	e.running = false
	e.mu.Unlock()
	e.emit(Event{Type: EventError, Err: merr})
}

type elementBuffer Element

func (b *elementBuffer) el() *Element { return (*Element)(b) }

func (b *elementBuffer) Attach() error {
	e := b.el()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	if e.attached {
		return ErrBufferAttached
	}
	e.stopWorkerLocked()
	e.attached = true
	e.src = ""
	e.queue = nil
	e.eos = false
	e.ended = false
	e.pos = 0
	if !e.paused {
		e.startWorkerLocked()
	}
	return nil
}

func (b *elementBuffer) Detach() {
	e := b.el()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.attached {
		return
	}
	e.stopWorkerLocked()
	e.attached = false
	e.queue = nil
	e.eos = false
}

func (b *elementBuffer) Append(data []byte, dur time.Duration) error {
	e := b.el()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	if !e.attached {
		return errors.New("media: buffer not attached")
	}
	e.queue = append(e.queue, segment{data: data, dur: dur})
	e.cond.Broadcast()
	return nil
}

func (b *elementBuffer) EndOfStream() {
	e := b.el()
	e.mu.Lock()
	e.eos = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

func (b *elementBuffer) Reset() {
	e := b.el()
	e.mu.Lock()
	e.queue = nil
	e.eos = false
	e.mu.Unlock()
}

func (b *elementBuffer) Attached() bool {
	e := b.el()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached
}

var _ Media = (*Element)(nil)
