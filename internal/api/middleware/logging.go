// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/genplay/internal/log"
)

// Logging emits one structured line per request after it completes.
func Logging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sw, r)

			logger := xglog.WithComponent("api")
			level := zerolog.DebugLevel
			if sw.statusCode >= http.StatusInternalServerError {
				level = zerolog.WarnLevel
			}
			ev := logger.WithLevel(level).
				Str(xglog.FieldEvent, "http.request").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.statusCode).
				Dur("latency", time.Since(start))
			if id := chimw.GetReqID(r.Context()); id != "" {
				ev = ev.Str(xglog.FieldRequestID, id)
			}
			if traceID, _ := TraceIDs(r); traceID != "" {
				ev = ev.Str("trace_id", traceID)
			}
			ev.Msg("request served")
		})
	}
}
