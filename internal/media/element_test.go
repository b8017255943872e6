// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) has(t EventType) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Type == t {
			return true
		}
	}
	return false
}

func (l *eventLog) firstError() *Error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Type == EventError {
			return ev.Err
		}
	}
	return nil
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("gesture")
	require.NoError(t, err)
	assert.Equal(t, PolicyGesture, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAllow, p)

	_, err = ParsePolicy("never")
	assert.Error(t, err)
}

func TestElement_GesturePolicyBlocksUntilGesture(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	el := NewElement(&syncBuffer{}, WithPolicy(PolicyGesture))
	defer el.Release()
	require.NoError(t, el.Buffer().Attach())

	err := el.Play(context.Background())
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.True(t, el.Paused())

	el.Gesture()
	require.NoError(t, el.Play(context.Background()))
	assert.False(t, el.Paused())
}

func TestElement_PlayWithoutSourceReportsNotSupported(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	el := NewElement(&syncBuffer{})
	defer el.Release()
	var log eventLog
	el.Subscribe(log.add)

	err := el.Play(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotSupported)

	merr := el.LastError()
	require.NotNil(t, merr)
	assert.Equal(t, CodeSourceNotSupported, merr.Code)
	assert.True(t, log.has(EventError))
}

func TestElement_PlayAfterReleaseIsInterrupted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	el := NewElement(&syncBuffer{})
	el.SetSource("http://example.invalid/a.mp4")
	el.Release()

	assert.ErrorIs(t, el.Play(context.Background()), ErrInterrupted)
}

func TestElement_BufferPlaysSegmentsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	out := &syncBuffer{}
	el := NewElement(out)
	defer el.Release()
	var log eventLog
	el.Subscribe(log.add)

	buf := el.Buffer()
	require.NoError(t, buf.Attach())
	require.NoError(t, el.Play(context.Background()))

	require.NoError(t, buf.Append([]byte("seg1|"), 2*time.Second))
	require.NoError(t, buf.Append([]byte("seg2|"), 3*time.Second))
	buf.EndOfStream()

	require.Eventually(t, el.Ended, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "seg1|seg2|", out.String())
	assert.Equal(t, 5*time.Second, el.CurrentTime())
	assert.True(t, log.has(EventEnded))
	assert.True(t, el.Paused())
}

func TestElement_EmptyBufferEmitsWaiting(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	el := NewElement(&syncBuffer{})
	defer el.Release()
	var log eventLog
	el.Subscribe(log.add)

	require.NoError(t, el.Buffer().Attach())
	require.NoError(t, el.Play(context.Background()))

	require.Eventually(t, func() bool { return log.has(EventWaiting) }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, el.Ended())
}

func TestElement_SecondAttachFails(t *testing.T) {
	el := NewElement(&syncBuffer{})
	defer el.Release()

	require.NoError(t, el.Buffer().Attach())
	assert.ErrorIs(t, el.Buffer().Attach(), ErrBufferAttached)

	el.Buffer().Detach()
	assert.False(t, el.Buffer().Attached())
	assert.NoError(t, el.Buffer().Attach())
}

func TestElement_AppendRequiresAttach(t *testing.T) {
	el := NewElement(&syncBuffer{})
	defer el.Release()
	assert.Error(t, el.Buffer().Append([]byte("x"), time.Second))
}

func TestElement_ProgressiveSourceCopiesBody(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("progressive-bytes"))
	}))
	defer srv.Close()
	client := srv.Client()
	defer client.CloseIdleConnections()

	out := &syncBuffer{}
	el := NewElement(out, WithHTTPClient(client))
	defer el.Release()
	var log eventLog
	el.Subscribe(log.add)

	el.SetSource(srv.URL + "/a.mp4")
	require.NoError(t, el.Play(context.Background()))

	require.Eventually(t, el.Ended, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "progressive-bytes", out.String())
	assert.True(t, log.has(EventLoadedMetadata))
}

func TestElement_ProgressiveErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorCode
	}{
		{"not found", http.StatusNotFound, CodeSourceNotSupported},
		{"server error", http.StatusBadGateway, CodeNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()
			client := srv.Client()
			defer client.CloseIdleConnections()

			el := NewElement(&syncBuffer{}, WithHTTPClient(client))
			defer el.Release()
			var log eventLog
			el.Subscribe(log.add)

			el.SetSource(srv.URL + "/a.mp4")
			require.NoError(t, el.Play(context.Background()))

			require.Eventually(t, func() bool { return log.firstError() != nil }, 2*time.Second, 5*time.Millisecond)
			assert.Equal(t, tt.want, log.firstError().Code)
		})
	}
}

func TestElement_ReleaseStopsBlockedFetch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("head"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)
	client := srv.Client()
	defer client.CloseIdleConnections()

	out := &syncBuffer{}
	el := NewElement(out, WithHTTPClient(client))
	el.SetSource(srv.URL + "/slow.mp4")
	require.NoError(t, el.Play(context.Background()))
	require.Eventually(t, func() bool { return out.String() == "head" }, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		el.Release()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("release did not return")
	}
	assert.Nil(t, el.LastError())
}

func TestElement_SubscribeCancel(t *testing.T) {
	el := NewElement(&syncBuffer{})
	defer el.Release()
	var log eventLog
	cancel := el.Subscribe(log.add)
	cancel()
	cancel()

	_ = el.Play(context.Background())
	assert.False(t, log.has(EventError))
}

func TestError_IsNotSupported(t *testing.T) {
	var err error = &Error{Code: CodeSourceNotSupported}
	assert.True(t, errors.Is(err, ErrNotSupported))
	err = &Error{Code: CodeNetwork}
	assert.False(t, errors.Is(err, ErrNotSupported))
}
