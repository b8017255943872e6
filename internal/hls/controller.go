// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hls implements a segmented-streaming controller: it resolves a
// master playlist to one rendition, fetches its fragments and appends them to
// a media element's buffer.
package hls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/genplay/internal/config"
	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/media"
	"github.com/ManuGH/genplay/internal/metrics"
	"github.com/ManuGH/genplay/internal/platform/httpx"
)

// ErrMediaAttached is returned by AttachMedia when a media element is already attached.
var ErrMediaAttached = errors.New("hls: media already attached")

// ErrDestroyed is returned by operations on a destroyed controller.
var ErrDestroyed = errors.New("hls: controller destroyed")

// EventKind identifies a controller event.
type EventKind int

const (
	EventManifestParsed EventKind = iota + 1
	EventFragmentBuffered
	EventError
	EventEndOfStream
)

func (k EventKind) String() string {
	switch k {
	case EventManifestParsed:
		return "manifest_parsed"
	case EventFragmentBuffered:
		return "fragment_buffered"
	case EventError:
		return "error"
	case EventEndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

// ErrorType classifies controller errors for recovery.
type ErrorType string

const (
	ErrorNetwork ErrorType = "network"
	ErrorMedia   ErrorType = "media"
	ErrorOther   ErrorType = "other"
)

// Error describes a controller failure. Fatal errors stop the loader.
type Error struct {
	Type    ErrorType
	Fatal   bool
	Details string
	Err     error
}

func (e *Error) Error() string {
	sev := "non-fatal"
	if e.Fatal {
		sev = "fatal"
	}
	if e.Err != nil {
		return fmt.Sprintf("hls %s %s error: %s: %v", sev, e.Type, e.Details, e.Err)
	}
	return fmt.Sprintf("hls %s %s error: %s", sev, e.Type, e.Details)
}

func (e *Error) Unwrap() error { return e.Err }

// Event is delivered to subscribers from the loader goroutine.
type Event struct {
	Kind     EventKind
	Variant  Variant       // EventManifestParsed, zero for a direct media playlist
	Duration time.Duration // EventManifestParsed
	Fragment int           // EventFragmentBuffered
	Error    *Error        // EventError
}

// Config controls fragment loading.
type Config struct {
	FragmentRetries int
	MaxFragmentRate float64 // fragments per second, 0 = unlimited
	RequestTimeout  time.Duration
	RetryDelay      time.Duration
}

// ConfigFrom maps the HLS section of the application config.
func ConfigFrom(cfg config.HLSConfig) Config {
	return Config{
		FragmentRetries: cfg.FragmentRetries,
		MaxFragmentRate: cfg.MaxFragmentRate,
		RequestTimeout:  cfg.RequestTimeout,
		RetryDelay:      500 * time.Millisecond,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithHTTPClient overrides the client used for playlists and fragments.
func WithHTTPClient(c *http.Client) Option { return func(ctl *Controller) { ctl.client = c } }

// Controller loads one source into one media element.
type Controller struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu        sync.Mutex
	media     media.Media
	src       string
	playlist  *MediaPlaylist
	variant   Variant
	next      int // index into playlist.Segments of the next fragment to load
	gen       int
	running   bool
	cancel    context.CancelFunc
	destroyed bool
	wg        sync.WaitGroup

	subs    map[int]func(Event)
	nextSub int
}

// New creates a controller.
func New(cfg Config, opts ...Option) *Controller {
	limit := rate.Inf
	if cfg.MaxFragmentRate > 0 {
		limit = rate.Limit(cfg.MaxFragmentRate)
	}
	c := &Controller{
		cfg:     cfg,
		client:  httpx.Instrument(httpx.NewClient(cfg.RequestTimeout), "hls.fetch"),
		limiter: rate.NewLimiter(limit, 1),
		logger:  xglog.WithComponent("hls"),
		subs:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn for controller events. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// AttachMedia binds the controller to m and claims its buffer.
func (c *Controller) AttachMedia(m media.Media) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrDestroyed
	}
	if c.media != nil {
		return ErrMediaAttached
	}
	if err := m.Buffer().Attach(); err != nil {
		return fmt.Errorf("attach media buffer: %w", err)
	}
	c.media = m
	c.next = 0
	if c.src != "" {
		c.startLocked()
	}
	return nil
}

// DetachMedia stops loading and releases the media buffer.
func (c *Controller) DetachMedia() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	if c.media != nil {
		c.media.Buffer().Detach()
		c.media = nil
	}
}

// LoadSource replaces the source and starts loading when media is attached.
func (c *Controller) LoadSource(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.stopLocked()
	c.src = url
	c.playlist = nil
	c.variant = Variant{}
	c.next = 0
	if c.media != nil {
		c.media.Buffer().Reset()
		c.startLocked()
	}
}

// StartLoad resumes loading from the next unbuffered fragment.
func (c *Controller) StartLoad() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || c.media == nil || c.src == "" {
		return
	}
	c.startLocked()
}

// StopLoad stops the loader. Already buffered fragments stay buffered.
func (c *Controller) StopLoad() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

// RecoverMediaError rebuilds the media buffer and reloads from the current fragment.
func (c *Controller) RecoverMediaError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || c.media == nil {
		return
	}
	c.stopLocked()
	buf := c.media.Buffer()
	buf.Detach()
	if err := buf.Attach(); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "hls.recover_media.failed").Msg("re-attach media buffer failed")
		return
	}
	if c.src != "" {
		c.startLocked()
	}
}

// Destroy stops loading, detaches media and waits for the loader to exit.
// Subscribers must not block on the caller of Destroy.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.stopLocked()
	if c.media != nil {
		c.media.Buffer().Detach()
		c.media = nil
	}
	c.subs = make(map[int]func(Event))
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) startLocked() {
	if c.running {
		return
	}
	c.running = true
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx, c.gen)
}

func (c *Controller) stopLocked() {
	c.gen++
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) emit(gen int, ev Event) {
	c.mu.Lock()
	if c.gen != gen || c.destroyed {
		c.mu.Unlock()
		return
	}
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// finish marks the loader of gen as stopped and reports a fatal error.
func (c *Controller) finish(gen int, herr *Error) {
	if herr != nil {
		c.logger.Warn().Err(herr).Str(xglog.FieldErrorType, string(herr.Type)).Str(xglog.FieldEvent, "hls.fatal").Msg("loader stopped")
		c.emit(gen, Event{Kind: EventError, Error: herr})
	}
	c.mu.Lock()
	if c.gen == gen {
		c.running = false
	}
	c.mu.Unlock()
}

func (c *Controller) run(ctx context.Context, gen int) {
	defer c.wg.Done()

	c.mu.Lock()
	src := c.src
	playlist := c.playlist
	c.mu.Unlock()

	if playlist == nil {
		pl, variant, herr := c.loadManifest(ctx, src)
		if ctx.Err() != nil {
			return
		}
		if herr != nil {
			c.finish(gen, herr)
			return
		}
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.playlist = pl
		c.variant = variant
		c.mu.Unlock()
		playlist = pl
		c.logger.Debug().
			Str(xglog.FieldURL, pl.URL).
			Int("segments", len(pl.Segments)).
			Dur("duration", pl.TotalDuration).
			Bool("vod", pl.IsVOD).
			Msg("manifest parsed")
		c.emit(gen, Event{Kind: EventManifestParsed, Variant: variant, Duration: pl.TotalDuration})
	}

	for {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		idx := c.next
		playlist = c.playlist
		c.mu.Unlock()

		if idx >= len(playlist.Segments) {
			if playlist.IsVOD {
				c.endOfStream(gen)
				return
			}
			if herr := c.refresh(ctx, gen); herr != nil {
				if ctx.Err() == nil {
					c.finish(gen, herr)
				}
				return
			}
			continue
		}

		seg := playlist.Segments[idx]
		data, herr := c.fetchFragment(ctx, gen, seg)
		if ctx.Err() != nil {
			return
		}
		if herr != nil {
			c.finish(gen, herr)
			return
		}

		c.mu.Lock()
		if c.gen != gen || c.media == nil {
			c.mu.Unlock()
			return
		}
		err := c.media.Buffer().Append(data, seg.Duration)
		if err == nil {
			c.next = idx + 1
		}
		c.mu.Unlock()
		if err != nil {
			c.finish(gen, &Error{Type: ErrorMedia, Fatal: true, Details: "buffer append failed", Err: err})
			return
		}
		metrics.RecordFragmentBuffered()
		c.emit(gen, Event{Kind: EventFragmentBuffered, Fragment: idx})
	}
}

func (c *Controller) endOfStream(gen int) {
	c.mu.Lock()
	if c.gen != gen || c.media == nil {
		c.mu.Unlock()
		return
	}
	c.media.Buffer().EndOfStream()
	c.running = false
	c.mu.Unlock()
	c.emit(gen, Event{Kind: EventEndOfStream})
}

func (c *Controller) loadManifest(ctx context.Context, src string) (*MediaPlaylist, Variant, *Error) {
	decoded, herr := c.fetchPlaylist(ctx, src)
	if herr != nil {
		return nil, Variant{}, herr
	}
	if decoded.Media != nil {
		return decoded.Media, Variant{}, nil
	}

	variant := SelectVariant(decoded.Variants)
	decoded, herr = c.fetchPlaylist(ctx, variant.URL)
	if herr != nil {
		return nil, Variant{}, herr
	}
	if decoded.Media == nil {
		return nil, Variant{}, &Error{Type: ErrorOther, Fatal: true, Details: "variant is not a media playlist: " + variant.URL}
	}
	return decoded.Media, variant, nil
}

// refresh reloads a live media playlist after one target duration and
// appends segments newer than the last known sequence number.
func (c *Controller) refresh(ctx context.Context, gen int) *Error {
	c.mu.Lock()
	pl := c.playlist
	c.mu.Unlock()

	wait := pl.TargetDuration
	if wait <= 0 {
		wait = time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}

	decoded, herr := c.fetchPlaylist(ctx, pl.URL)
	if herr != nil {
		return herr
	}
	if decoded.Media == nil {
		return &Error{Type: ErrorOther, Fatal: true, Details: "live refresh returned a master playlist"}
	}

	var lastSeq uint64
	hasLast := len(pl.Segments) > 0
	if hasLast {
		lastSeq = pl.Segments[len(pl.Segments)-1].Seq
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}
	merged := *c.playlist
	merged.Segments = append([]Segment(nil), c.playlist.Segments...)
	for _, seg := range decoded.Media.Segments {
		if hasLast && seg.Seq <= lastSeq {
			continue
		}
		merged.Segments = append(merged.Segments, seg)
		merged.TotalDuration += seg.Duration
	}
	merged.IsVOD = decoded.Media.IsVOD
	merged.TargetDuration = decoded.Media.TargetDuration
	c.playlist = &merged
	return nil
}

func (c *Controller) fetchPlaylist(ctx context.Context, url string) (Decoded, *Error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return Decoded{}, &Error{Type: ErrorNetwork, Fatal: true, Details: "manifest load failed", Err: err}
	}
	decoded, err := Decode(bytes.NewReader(body), url)
	if err != nil {
		return Decoded{}, &Error{Type: ErrorOther, Fatal: true, Details: "manifest parse failed", Err: err}
	}
	return decoded, nil
}

// fetchFragment retries up to FragmentRetries times, reporting each failed
// attempt as a non-fatal network error.
func (c *Controller) fetchFragment(ctx context.Context, gen int, seg Segment) ([]byte, *Error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.FragmentRetries; attempt++ {
		if attempt > 0 {
			c.emit(gen, Event{Kind: EventError, Error: &Error{
				Type: ErrorNetwork, Details: "fragment load retry", Err: lastErr,
			}})
			if c.cfg.RetryDelay > 0 {
				timer := time.NewTimer(c.cfg.RetryDelay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, nil
				case <-timer.C:
				}
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Type: ErrorOther, Fatal: true, Details: "fragment pacing", Err: err}
		}
		data, err := c.get(ctx, seg.URL)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		lastErr = err
		c.logger.Debug().Err(err).Str(xglog.FieldURL, seg.URL).Int(xglog.FieldRetry, attempt).Msg("fragment load failed")
	}
	return nil, &Error{Type: ErrorNetwork, Fatal: true, Details: "fragment load failed", Err: lastErr}
}

func (c *Controller) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
