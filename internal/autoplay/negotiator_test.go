// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package autoplay

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/genplay/internal/media"
)

func attachedElement(t *testing.T, opts ...media.ElementOption) *media.Element {
	t.Helper()
	el := media.NewElement(io.Discard, opts...)
	require.NoError(t, el.Buffer().Attach())
	return el
}

func TestAttempt_Disabled(t *testing.T) {
	el := attachedElement(t)
	defer el.Release()

	n := New(el, Config{Enabled: false})
	assert.Equal(t, OutcomeSkipped, n.Attempt(context.Background()))
	assert.True(t, el.Paused())
}

func TestAttempt_Playing(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	el := attachedElement(t)
	defer el.Release()

	n := New(el, Config{Enabled: true, Grace: time.Millisecond})
	assert.Equal(t, OutcomePlaying, n.Attempt(context.Background()))
	assert.False(t, el.Paused())

	// Already playing: nothing to do.
	assert.Equal(t, OutcomeSkipped, n.Attempt(context.Background()))
}

func TestAttempt_BlockedShowsNoticeAfterGrace(t *testing.T) {
	el := attachedElement(t, media.WithPolicy(media.PolicyGesture))
	defer el.Release()

	var notices []Notice
	var errs []error
	n := New(el, Config{Enabled: true, Grace: 10 * time.Millisecond, NoticeDuration: 3 * time.Second},
		WithNotice(func(nt Notice) { notices = append(notices, nt) }),
		WithOnError(func(err error) { errs = append(errs, err) }),
	)

	assert.Equal(t, OutcomeBlocked, n.Attempt(context.Background()))
	require.Len(t, notices, 1)
	assert.Equal(t, Notice{Text: BlockedNotice, Duration: 3 * time.Second}, notices[0])
	assert.Empty(t, errs)
}

func TestAttempt_BlockedButPlayingWithinGrace(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	el := attachedElement(t, media.WithPolicy(media.PolicyGesture))
	defer el.Release()

	var notices int
	n := New(el, Config{Enabled: true, Grace: 200 * time.Millisecond},
		WithNotice(func(Notice) { notices++ }))

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(20 * time.Millisecond)
		el.Gesture()
		_ = el.Play(context.Background())
	}()

	assert.Equal(t, OutcomeRecovered, n.Attempt(context.Background()))
	<-done
	assert.Zero(t, notices)
}

func TestAttempt_InterruptedIsSilent(t *testing.T) {
	el := attachedElement(t)
	el.Release()

	var errs []error
	n := New(el, Config{Enabled: true}, WithOnError(func(err error) { errs = append(errs, err) }))
	assert.Equal(t, OutcomeInterrupted, n.Attempt(context.Background()))
	assert.Empty(t, errs)
}

func TestAttempt_CanceledDuringGrace(t *testing.T) {
	el := attachedElement(t, media.WithPolicy(media.PolicyGesture))
	defer el.Release()

	var notices int
	n := New(el, Config{Enabled: true, Grace: time.Hour}, WithNotice(func(Notice) { notices++ }))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	assert.Equal(t, OutcomeInterrupted, n.Attempt(ctx))
	assert.Zero(t, notices)
}

func TestAttempt_OtherErrorsReported(t *testing.T) {
	// No source and no attached buffer: the element rejects play with code 4.
	el := media.NewElement(io.Discard)
	defer el.Release()

	var errs []error
	n := New(el, Config{Enabled: true}, WithOnError(func(err error) { errs = append(errs, err) }))
	assert.Equal(t, OutcomeFailed, n.Attempt(context.Background()))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], media.ErrNotSupported)
}
