// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stream consumes the generation service's server-sent event stream.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/metrics"
	"github.com/ManuGH/genplay/internal/platform/httpx"
	"github.com/ManuGH/genplay/internal/telemetry"
)

const maxErrorBody = 4 << 10

// Client opens generation streams against one backend.
type Client struct {
	base string
	path string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. It must not set a Timeout, since
// streams are long-lived.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New creates a client for {base}{path}.
func New(base, path string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		path: path,
		http: httpx.Instrument(httpx.NewStreamingClient(), "stream.open"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open posts req and delivers every decoded event to onEvent, in order, on the
// calling goroutine. It returns nil once a done event has been delivered,
// ErrClosedBeforeDone if the body ends first, and ctx.Err() after
// cancellation. No event is delivered once ctx is done.
func (c *Client) Open(ctx context.Context, req Request, onEvent func(Event)) (err error) {
	logger := xglog.WithComponentFromContext(ctx, "stream")
	ctx, span := telemetry.Tracer("genplay.stream").Start(ctx, "stream.open",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.GenerationAttributes(xglog.SessionIDFromContext(ctx), req.Provider, req.Language)...),
	)
	events := 0
	defer func() {
		span.SetAttributes(attribute.Int(telemetry.EventCountKey, events))
		if err != nil && !errors.Is(err, context.Canceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("stream: encode request: %w", err)
	}
	url := c.base + c.path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("stream: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.IncStreamOpen("canceled")
			return ctxErr
		}
		metrics.IncStreamOpen("transport_error")
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.IncStreamOpen("http_error")
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	metrics.IncStreamOpen("ok")
	logger.Debug().Str(xglog.FieldEvent, "stream.opened").Str(xglog.FieldURL, url).Msg("event stream opened")

	dec := NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrClosedBeforeDone
			}
			return fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
		events++
		metrics.IncStreamEvent(ev.Type)
		onEvent(ev)
		if ev.Type == EventDone {
			return nil
		}
	}
}
