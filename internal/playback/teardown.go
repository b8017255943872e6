// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	xglog "github.com/ManuGH/genplay/internal/log"
)

// teardown unbinds subscriptions, destroys the controller, cancels the retry
// timer and then resets the element, in that order. With final set the
// element is released instead of reset.
func (e *Engine) teardown(final bool) {
	if b := e.binding; b != nil {
		for _, unsub := range b.unsubs {
			e.guard("unbind", unsub)
		}
		e.binding = nil
	}

	if c := e.ctrl; c != nil {
		e.ctrl = nil
		e.guard("controller.stop", c.StopLoad)
		e.guard("controller.detach", c.DetachMedia)
		e.guard("controller.destroy", c.Destroy)
	}

	if e.retry != nil {
		e.guard("retry.cancel", func() { e.retry.Stop() })
		e.retry = nil
	}
	e.retryPending = false
	if e.session != nil {
		e.session.PendingRetryDeadline = nil
	}

	if final {
		e.guard("media.release", e.media.Release)
		return
	}
	e.guard("media.reset", func() { e.media.SetSource("") })
}

func (e *Engine) guard(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str(xglog.FieldStep, step).
				Interface("panic", r).
				Msg("teardown step panicked")
		}
	}()
	fn()
}
