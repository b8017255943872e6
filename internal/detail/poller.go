// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package detail

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/metrics"
	"github.com/ManuGH/genplay/internal/resilience"
	"github.com/ManuGH/genplay/internal/telemetry"
)

// Fetcher is the single-attempt lookup used by the Poller.
type Fetcher interface {
	Detail(ctx context.Context, id string) (Result, error)
}

// Poller performs stateless poll attempts. Cadence belongs to the caller.
type Poller struct {
	fetcher Fetcher
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
}

// NewPoller wraps fetcher. A nil breaker disables shedding.
func NewPoller(fetcher Fetcher, breaker *resilience.CircuitBreaker) *Poller {
	return &Poller{fetcher: fetcher, breaker: breaker}
}

// Poll makes one attempt for id and reports whether a playable URL is present.
// Concurrent polls for the same id share one request. While the breaker is
// open the attempt is shed and resilience.ErrCircuitOpen is returned.
func (p *Poller) Poll(ctx context.Context, id string) (Result, bool, error) {
	logger := xglog.WithComponentFromContext(ctx, "detail")
	ctx, span := telemetry.Tracer("genplay.detail").Start(ctx, "detail.poll",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	v, err, shared := p.group.Do(id, func() (any, error) {
		return p.attempt(ctx, id)
	})
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			result = "shed"
			logger.Warn().Str(xglog.FieldEvent, "detail.poll_shed").Str(xglog.FieldJobID, id).Msg("detail poll shed by circuit breaker")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			result = "canceled"
		default:
			logger.Warn().Err(err).Str(xglog.FieldEvent, "detail.poll_failed").Str(xglog.FieldJobID, id).Msg("detail poll failed")
		}
		metrics.IncPollAttempt(result)
		span.SetAttributes(telemetry.PollAttributes(id, result)...)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, false, err
	}

	res := v.(Result)
	result := "pending"
	if res.Ready() {
		result = "ready"
	}
	metrics.IncPollAttempt(result)
	span.SetAttributes(telemetry.PollAttributes(id, result)...)
	logger.Debug().
		Str(xglog.FieldJobID, id).
		Str("result", result).
		Bool("shared", shared).
		Msg("detail poll completed")
	return res, res.Ready(), nil
}

func (p *Poller) attempt(ctx context.Context, id string) (Result, error) {
	if p.breaker != nil && !p.breaker.Allow() {
		return Result{}, resilience.ErrCircuitOpen
	}
	res, err := p.fetcher.Detail(ctx, id)
	if p.breaker != nil {
		switch {
		case err == nil:
			p.breaker.RecordSuccess()
		case breakerFailure(err):
			p.breaker.RecordFailure()
		default:
			// not found or canceled says nothing about endpoint health
			p.breaker.RecordSuccess()
		}
	}
	return res, err
}
