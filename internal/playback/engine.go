// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback owns a media element and keeps one source playing on it:
// progressive URLs are bound directly, adaptive URLs go through a segmented
// streaming controller with bounded exponential-backoff recovery.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/genplay/internal/autoplay"
	"github.com/ManuGH/genplay/internal/config"
	"github.com/ManuGH/genplay/internal/hls"
	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/media"
	"github.com/ManuGH/genplay/internal/metrics"
)

// Config controls recovery, nudging and autoplay.
type Config struct {
	MaxRetry      int
	BaseDelay     time.Duration
	NudgeBack     time.Duration
	NudgeInterval time.Duration
	Speeds        []float64
	Autoplay      autoplay.Config
}

// ConfigFrom maps the playback section of the application config.
func ConfigFrom(cfg config.PlaybackConfig) Config {
	return Config{
		MaxRetry:      cfg.MaxRetry,
		BaseDelay:     cfg.BaseDelay,
		NudgeBack:     cfg.NudgeBack,
		NudgeInterval: cfg.NudgeInterval,
		Speeds:        append([]float64(nil), cfg.PlaybackSpeeds...),
		Autoplay:      autoplay.ConfigFrom(cfg),
	}
}

// Handle is the capability handed to callers outside the engine.
type Handle interface {
	SetPlaybackRate(rate float64) error
	Destroy()
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler replaces the wall-clock scheduler used for retry backoff and
// nudge rate limiting.
func WithScheduler(s Scheduler) Option { return func(e *Engine) { e.sched = s } }

// WithOnError sets the error sink. It is called on the engine goroutine and
// must not call back into the engine synchronously.
func WithOnError(fn func(error)) Option { return func(e *Engine) { e.onError = fn } }

// WithNotice sets the sink for autoplay notices. It may be called from any goroutine.
func WithNotice(fn func(autoplay.Notice)) Option { return func(e *Engine) { e.onNotice = fn } }

type binding struct {
	unsubs []func()
}

// Engine is an actor: every state change runs on its loop goroutine.
type Engine struct {
	media      media.Media
	factory    ControllerFactory
	cfg        Config
	sched      Scheduler
	logger     zerolog.Logger
	onError    func(error)
	onNotice   func(autoplay.Notice)
	negotiator *autoplay.Negotiator
	nudges     *rate.Limiter

	inboxMu     sync.Mutex
	inbox       []func()
	signal      chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	workers     sync.WaitGroup
	destroyOnce sync.Once

	// loop-owned
	session      *Session
	ctrl         Controller
	binding      *binding
	retry        Timer
	retryPending bool

	mu   sync.Mutex
	snap Session
}

// New starts an engine that owns m. Destroy releases it.
func New(m media.Media, factory ControllerFactory, cfg Config, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		media:    m,
		factory:  factory,
		cfg:      cfg,
		sched:    realScheduler{},
		logger:   xglog.WithComponent("playback"),
		onError:  func(error) {},
		onNotice: func(autoplay.Notice) {},
		signal:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	limit := rate.Inf
	if cfg.NudgeInterval > 0 {
		limit = rate.Every(cfg.NudgeInterval)
	}
	e.nudges = rate.NewLimiter(limit, 1)
	e.negotiator = autoplay.New(m, cfg.Autoplay,
		autoplay.WithNotice(func(n autoplay.Notice) { e.onNotice(n) }),
		autoplay.WithOnError(func(err error) {
			e.post(func() { e.report(e.mediaError(err)) })
		}),
	)

	go e.loop()
	return e
}

// Handle returns the narrow capability for this engine.
func (e *Engine) Handle() Handle { return handle{e: e} }

type handle struct{ e *Engine }

func (h handle) SetPlaybackRate(rate float64) error { return h.e.SetPlaybackRate(rate) }
func (h handle) Destroy()                           { h.e.Destroy() }

// Load switches the engine to url. The previous pipeline is torn down first.
// Loading the current URL again is a no-op.
func (e *Engine) Load(url string) error {
	if url == "" {
		return errors.New("playback: empty source url")
	}
	return e.call(func() error { return e.load(url) })
}

// UserPlay records an explicit play: it clears the user pause, restarts the
// loader and starts the element.
func (e *Engine) UserPlay() {
	_ = e.call(func() error {
		if e.session == nil {
			return ErrNoSession
		}
		e.session.UserIntentPaused = false
		if g, ok := e.media.(interface{ Gesture() }); ok {
			g.Gesture()
		}
		if e.ctrl != nil {
			e.ctrl.StartLoad()
		}
		if err := e.media.Play(e.ctx); err != nil && !benignPlayError(err) {
			e.report(e.mediaError(err))
		}
		return nil
	})
}

// UserPause records an explicit pause. Nudges and fatal-error recovery stay
// suppressed until UserPlay.
func (e *Engine) UserPause() {
	_ = e.call(func() error {
		if e.session == nil {
			return ErrNoSession
		}
		e.session.UserIntentPaused = true
		e.media.Pause()
		if e.ctrl != nil {
			e.ctrl.StopLoad()
		}
		return nil
	})
}

// SetPlaybackRate applies rate if it is one of the configured speeds.
func (e *Engine) SetPlaybackRate(r float64) error {
	if !e.supportedRate(r) {
		return fmt.Errorf("%w: %v", ErrUnsupportedRate, r)
	}
	return e.call(func() error {
		e.media.SetPlaybackRate(r)
		return nil
	})
}

// Session returns a copy of the current playback session. The zero value
// means nothing is loaded.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.snap
	if out.PendingRetryDeadline != nil {
		d := *out.PendingRetryDeadline
		out.PendingRetryDeadline = &d
	}
	return out
}

// Destroy tears everything down and waits for the engine goroutines to exit.
func (e *Engine) Destroy() {
	e.destroyOnce.Do(func() {
		e.cancel()
		<-e.done
		e.workers.Wait()
	})
}

func (e *Engine) supportedRate(r float64) bool {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return false
	}
	if len(e.cfg.Speeds) == 0 {
		return true
	}
	for _, s := range e.cfg.Speeds {
		if math.Abs(s-r) < 1e-9 {
			return true
		}
	}
	return false
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.ctx.Done():
			e.teardown(true)
			e.session = nil
			e.publish()
			return
		case <-e.signal:
			e.drain()
		}
	}
}

func (e *Engine) drain() {
	for e.ctx.Err() == nil {
		e.inboxMu.Lock()
		if len(e.inbox) == 0 {
			e.inboxMu.Unlock()
			return
		}
		fn := e.inbox[0]
		e.inbox[0] = nil
		e.inbox = e.inbox[1:]
		e.inboxMu.Unlock()

		fn()
		e.publish()
	}
}

// post enqueues fn for the loop. It never blocks, so element and controller
// callbacks fired from the loop itself cannot deadlock it.
func (e *Engine) post(fn func()) bool {
	if e.ctx.Err() != nil {
		return false
	}
	e.inboxMu.Lock()
	e.inbox = append(e.inbox, fn)
	e.inboxMu.Unlock()
	select {
	case e.signal <- struct{}{}:
	default:
	}
	return true
}

func (e *Engine) call(fn func() error) error {
	reply := make(chan error, 1)
	if !e.post(func() { reply <- fn() }) {
		return ErrDestroyed
	}
	select {
	case err := <-reply:
		return err
	case <-e.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrDestroyed
		}
	}
}

// relay forwards a callback into the loop. It is dropped if b is no longer
// the live binding by the time the loop runs it.
func (e *Engine) relay(b *binding, fn func()) {
	e.post(func() {
		if e.binding == b {
			fn()
		}
	})
}

func (e *Engine) publish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		e.snap = Session{}
		return
	}
	e.snap = *e.session
}

func (e *Engine) load(url string) error {
	if e.session != nil && e.session.SourceURL == url {
		return nil
	}
	e.teardown(false)

	kind := KindOf(url)
	e.session = &Session{SourceURL: url, Kind: kind}
	metrics.RecordPlaybackSession(string(kind))
	e.logger.Info().
		Str(xglog.FieldEvent, "playback.session.created").
		Str(xglog.FieldPlaybackURL, url).
		Str(xglog.FieldMediaKind, string(kind)).
		Msg("playback session created")
	return e.bind()
}

// bind subscribes to the element and builds the pipeline for the current session.
func (e *Engine) bind() error {
	b := &binding{}
	e.binding = b
	b.unsubs = append(b.unsubs, e.media.Subscribe(func(ev media.Event) {
		e.relay(b, func() { e.onMediaEvent(ev) })
	}))

	if e.session.Kind == KindProgressive {
		e.media.SetSource(e.session.SourceURL)
		e.autoplay()
		return nil
	}

	ctrl := e.factory()
	b.unsubs = append(b.unsubs, ctrl.Subscribe(func(ev hls.Event) {
		e.relay(b, func() { e.onControllerEvent(ev) })
	}))
	e.ctrl = ctrl
	if err := ctrl.AttachMedia(e.media); err != nil {
		e.teardown(false)
		return fmt.Errorf("attach controller: %w", err)
	}
	ctrl.LoadSource(e.session.SourceURL)
	return nil
}

func (e *Engine) autoplay() {
	if !e.negotiator.Enabled() {
		return
	}
	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		e.negotiator.Attempt(e.ctx)
	}()
}

func (e *Engine) report(err error) {
	e.logger.Warn().Err(err).Str(xglog.FieldEvent, "playback.error").Msg("playback error")
	e.onError(err)
}

func (e *Engine) mediaError(err error) error {
	src := ""
	if e.session != nil {
		src = e.session.SourceURL
	}
	return &MediaError{SourceURL: src, Err: err}
}

func benignPlayError(err error) bool {
	return errors.Is(err, media.ErrInterrupted) || errors.Is(err, context.Canceled)
}
