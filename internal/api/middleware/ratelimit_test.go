// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func serveFrom(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_EnforcesLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestLimit: 3, WindowSize: time.Minute})(okHandler())

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.1").Code, "request %d", i+1)
	}

	w := serveFrom(h, "192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestRateLimit_DifferentIPsIndependent(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestLimit: 2, WindowSize: time.Minute})(okHandler())

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(h, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.2").Code)
}

func TestRateLimit_SubSecondWindowStillAdvertisesRetry(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestLimit: 1, WindowSize: 500 * time.Millisecond})(okHandler())

	require.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.3").Code)
	w := serveFrom(h, "10.0.0.3")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
