// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamEventsTotal counts server-sent events received from the generation stream.
	StreamEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genplay_stream_events_total",
		Help: "Generation stream events received by type",
	}, []string{"type"})

	// StreamOpenTotal tracks how each stream connection ended.
	StreamOpenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genplay_stream_open_total",
		Help: "Generation stream connections by result (done, closed_early, transport_error, canceled)",
	}, []string{"result"})

	// StreamMalformedPayloadsTotal counts payloads that failed to decode.
	StreamMalformedPayloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genplay_stream_malformed_payloads_total",
		Help: "Stream payloads that could not be decoded, by event type",
	}, []string{"type"})

	// PollAttemptsTotal counts detail poll attempts by result.
	PollAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genplay_poll_attempts_total",
		Help: "Detail poll attempts by result (ready, pending, error, shed)",
	}, []string{"result"})

	// TimeToArtifact tracks the time from submission until a playable URL was adopted.
	TimeToArtifact = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genplay_time_to_artifact_seconds",
		Help:    "Time from session start to first playable URL, by source",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	}, []string{"source"})

	// SessionOutcomesTotal counts sessions reaching a terminal status.
	SessionOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genplay_session_outcomes_total",
		Help: "Generation sessions by terminal status and failure kind",
	}, []string{"status", "kind"})
)

// IncStreamEvent records one received stream event.
func IncStreamEvent(eventType string) {
	StreamEventsTotal.WithLabelValues(eventType).Inc()
}

// IncStreamOpen records how a stream connection ended.
func IncStreamOpen(result string) {
	StreamOpenTotal.WithLabelValues(result).Inc()
}

// IncMalformedPayload records an undecodable payload.
func IncMalformedPayload(eventType string) {
	StreamMalformedPayloadsTotal.WithLabelValues(eventType).Inc()
}

// IncPollAttempt records a detail poll outcome.
func IncPollAttempt(result string) {
	PollAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveTimeToArtifact records how long it took to obtain a playable URL.
func ObserveTimeToArtifact(source string, d time.Duration) {
	TimeToArtifact.WithLabelValues(source).Observe(d.Seconds())
}

// IncSessionOutcome records a terminal session status.
func IncSessionOutcome(status, kind string) {
	SessionOutcomesTotal.WithLabelValues(status, kind).Inc()
}
