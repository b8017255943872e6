// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/genplay/internal/media"
)

const vodPlaylist = `#EXTM3U
#EXT-X-PLAYLIST-TYPE:VOD
#EXT-X-TARGETDURATION:2
#EXTINF:2.0,
seg0.ts
#EXTINF:2.0,
seg1.ts
#EXT-X-ENDLIST
`

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=400000
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1600000
high/index.m3u8
`

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

type recorder struct {
	ch chan Event
}

func newRecorder() *recorder { return &recorder{ch: make(chan Event, 128)} }

func (r *recorder) record(ev Event) { r.ch <- ev }

// waitFor returns the events seen up to and including the first of kind k.
func (r *recorder) waitFor(t *testing.T, k EventKind) []Event {
	t.Helper()
	var seen []Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			seen = append(seen, ev)
			if ev.Kind == k {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, saw %v", k, seen)
			return nil
		}
	}
}

func testConfig() Config {
	return Config{FragmentRetries: 2, RequestTimeout: time.Second, RetryDelay: time.Millisecond}
}

func newTestController(t *testing.T, srv *httptest.Server) *Controller {
	t.Helper()
	return New(testConfig(), WithHTTPClient(srv.Client()))
}

func TestController_MasterLoadsHighestVariant(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var lowHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(masterPlaylist)) })
	mux.HandleFunc("/high/index.m3u8", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(vodPlaylist)) })
	mux.HandleFunc("/low/index.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		lowHits.Add(1)
		_, _ = w.Write([]byte(vodPlaylist))
	})
	mux.HandleFunc("/high/seg0.ts", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("A")) })
	mux.HandleFunc("/high/seg1.ts", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("B")) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := &syncBuffer{}
	el := media.NewElement(out)
	defer el.Release()
	ctl := newTestController(t, srv)
	defer ctl.Destroy()

	rec := newRecorder()
	ctl.Subscribe(rec.record)
	require.NoError(t, ctl.AttachMedia(el))
	require.NoError(t, el.Play(context.Background()))
	ctl.LoadSource(srv.URL + "/master.m3u8")

	events := rec.waitFor(t, EventEndOfStream)
	require.Equal(t, EventManifestParsed, events[0].Kind)
	assert.Equal(t, srv.URL+"/high/index.m3u8", events[0].Variant.URL)
	assert.Equal(t, 4*time.Second, events[0].Duration)

	var fragments []int
	for _, ev := range events {
		if ev.Kind == EventFragmentBuffered {
			fragments = append(fragments, ev.Fragment)
		}
	}
	assert.Equal(t, []int{0, 1}, fragments)
	assert.Zero(t, lowHits.Load())

	require.Eventually(t, el.Ended, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "AB", out.String())
}

func TestController_FragmentRetriesAreNonFatal(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var failures atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/index.m3u8", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(vodPlaylist)) })
	mux.HandleFunc("/seg0.ts", func(w http.ResponseWriter, _ *http.Request) {
		if failures.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("A"))
	})
	mux.HandleFunc("/seg1.ts", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("B")) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	el := media.NewElement(&syncBuffer{})
	defer el.Release()
	ctl := newTestController(t, srv)
	defer ctl.Destroy()

	rec := newRecorder()
	ctl.Subscribe(rec.record)
	require.NoError(t, ctl.AttachMedia(el))
	ctl.LoadSource(srv.URL + "/index.m3u8")

	events := rec.waitFor(t, EventEndOfStream)
	var nonFatal int
	for _, ev := range events {
		if ev.Kind == EventError {
			require.NotNil(t, ev.Error)
			assert.False(t, ev.Error.Fatal)
			assert.Equal(t, ErrorNetwork, ev.Error.Type)
			nonFatal++
		}
	}
	assert.Equal(t, 2, nonFatal)
}

func TestController_FatalNetworkErrorThenResume(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var healthy atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/index.m3u8", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(vodPlaylist)) })
	mux.HandleFunc("/seg0.ts", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("A")) })
	mux.HandleFunc("/seg1.ts", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("B"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := &syncBuffer{}
	el := media.NewElement(out)
	defer el.Release()
	ctl := newTestController(t, srv)
	defer ctl.Destroy()

	rec := newRecorder()
	ctl.Subscribe(rec.record)
	require.NoError(t, ctl.AttachMedia(el))
	require.NoError(t, el.Play(context.Background()))
	ctl.LoadSource(srv.URL + "/index.m3u8")

	var fatal *Error
	for fatal == nil {
		events := rec.waitFor(t, EventError)
		last := events[len(events)-1]
		if last.Error.Fatal {
			fatal = last.Error
		}
	}
	assert.Equal(t, ErrorNetwork, fatal.Type)

	healthy.Store(true)
	ctl.StopLoad()
	ctl.StartLoad()

	events := rec.waitFor(t, EventEndOfStream)
	var fragments []int
	for _, ev := range events {
		if ev.Kind == EventFragmentBuffered {
			fragments = append(fragments, ev.Fragment)
		}
	}
	assert.Equal(t, []int{1}, fragments)
	require.Eventually(t, func() bool { return out.String() == "AB" }, 2*time.Second, 5*time.Millisecond)
}

func TestController_BadManifestIsFatalOther(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	el := media.NewElement(&syncBuffer{})
	defer el.Release()
	ctl := newTestController(t, srv)
	defer ctl.Destroy()

	rec := newRecorder()
	ctl.Subscribe(rec.record)
	require.NoError(t, ctl.AttachMedia(el))
	ctl.LoadSource(srv.URL + "/index.m3u8")

	events := rec.waitFor(t, EventError)
	herr := events[len(events)-1].Error
	assert.True(t, herr.Fatal)
	assert.Equal(t, ErrorOther, herr.Type)
}

func TestController_ManifestNotFoundIsFatalNetwork(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	el := media.NewElement(&syncBuffer{})
	defer el.Release()
	ctl := newTestController(t, srv)
	defer ctl.Destroy()

	rec := newRecorder()
	ctl.Subscribe(rec.record)
	require.NoError(t, ctl.AttachMedia(el))
	ctl.LoadSource(srv.URL + "/missing.m3u8")

	events := rec.waitFor(t, EventError)
	herr := events[len(events)-1].Error
	assert.True(t, herr.Fatal)
	assert.Equal(t, ErrorNetwork, herr.Type)
}

func TestController_SingleAttachment(t *testing.T) {
	el := media.NewElement(&syncBuffer{})
	defer el.Release()

	first := New(testConfig())
	defer first.Destroy()
	require.NoError(t, first.AttachMedia(el))
	assert.ErrorIs(t, first.AttachMedia(el), ErrMediaAttached)

	second := New(testConfig())
	defer second.Destroy()
	err := second.AttachMedia(el)
	require.Error(t, err)
	assert.True(t, errors.Is(err, media.ErrBufferAttached))

	first.DetachMedia()
	assert.NoError(t, second.AttachMedia(el))
}

func TestController_DestroyIsIdempotentAndFinal(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	el := media.NewElement(&syncBuffer{})
	defer el.Release()
	ctl := New(testConfig())
	require.NoError(t, ctl.AttachMedia(el))

	ctl.Destroy()
	ctl.Destroy()
	assert.False(t, el.Buffer().Attached())
	assert.ErrorIs(t, ctl.AttachMedia(el), ErrDestroyed)
}

func TestController_RecoverMediaErrorReattachesBuffer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mux := http.NewServeMux()
	mux.HandleFunc("/index.m3u8", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(vodPlaylist)) })
	mux.HandleFunc("/seg0.ts", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("A")) })
	mux.HandleFunc("/seg1.ts", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("B")) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	el := media.NewElement(&syncBuffer{})
	defer el.Release()
	ctl := newTestController(t, srv)
	defer ctl.Destroy()

	rec := newRecorder()
	ctl.Subscribe(rec.record)
	require.NoError(t, ctl.AttachMedia(el))
	ctl.LoadSource(srv.URL + "/index.m3u8")
	rec.waitFor(t, EventEndOfStream)

	ctl.RecoverMediaError()
	assert.True(t, el.Buffer().Attached())
	rec.waitFor(t, EventEndOfStream)
}
