// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"

	"github.com/ManuGH/genplay/internal/app"
	"github.com/ManuGH/genplay/internal/resilience"
)

// BreakerState is the part of a circuit breaker a checker reads.
type BreakerState interface {
	State() resilience.State
}

// BreakerChecker reports a tripped breaker as degraded: polls are shed but
// the session keeps its clock running.
type BreakerChecker struct {
	name    string
	breaker BreakerState
}

// NewBreakerChecker creates a checker named name over b.
func NewBreakerChecker(name string, b BreakerState) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: b}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch st := c.breaker.State(); st {
	case resilience.StateClosed:
		return CheckResult{Status: StatusHealthy, Message: "closed"}
	default:
		return CheckResult{Status: StatusDegraded, Message: string(st)}
	}
}

// StateSource exposes the view state.
type StateSource interface {
	State() app.State
}

// SessionChecker maps the visible screen to a health status.
type SessionChecker struct {
	src StateSource
}

// NewSessionChecker creates the "session" checker.
func NewSessionChecker(src StateSource) *SessionChecker {
	return &SessionChecker{src: src}
}

func (c *SessionChecker) Name() string { return "session" }

func (c *SessionChecker) Check(context.Context) CheckResult {
	st := c.src.State()
	switch st.View {
	case app.ViewError, app.ViewTimeout:
		res := CheckResult{Status: StatusUnhealthy, Message: string(st.View)}
		if f := st.Session.Session.Failure; f != nil {
			res.Error = f.Message
		}
		return res
	case app.ViewPlayback:
		if st.Playback != nil && st.Playback.Exhausted {
			return CheckResult{Status: StatusUnhealthy, Message: "playback recovery exhausted", Error: st.PlaybackError}
		}
		if st.PlaybackError != "" {
			return CheckResult{Status: StatusDegraded, Message: "playback error", Error: st.PlaybackError}
		}
	}
	return CheckResult{Status: StatusHealthy, Message: string(st.View)}
}
