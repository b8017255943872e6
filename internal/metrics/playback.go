// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playbackRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genplay_playback_recoveries_total",
		Help: "Adaptive playback recovery actions by kind (reload, media, rebuild)",
	}, []string{"kind"})

	playbackRecoveryExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genplay_playback_recovery_exhausted_total",
		Help: "Playback sessions whose recovery budget was exhausted",
	})

	playbackNudges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genplay_playback_nudges_total",
		Help: "Stall recovery nudges by trigger and outcome (applied, suppressed, limited)",
	}, []string{"trigger", "outcome"})

	autoplayOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genplay_autoplay_outcomes_total",
		Help: "Autoplay attempts by outcome (started, blocked, interrupted, failed, skipped)",
	}, []string{"outcome"})

	playbackSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genplay_playback_sessions_total",
		Help: "Playback sessions constructed by media kind",
	}, []string{"kind"})

	fragmentsBuffered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genplay_hls_fragments_buffered_total",
		Help: "HLS fragments appended to the media buffer",
	})
)

// RecordPlaybackRecovery increments the recovery counter for the given action.
func RecordPlaybackRecovery(kind string) {
	playbackRecoveries.WithLabelValues(kind).Inc()
}

// RecordPlaybackRecoveryExhausted increments the exhausted-budget counter.
func RecordPlaybackRecoveryExhausted() {
	playbackRecoveryExhausted.Inc()
}

// RecordNudge records a stall nudge decision.
func RecordNudge(trigger, outcome string) {
	playbackNudges.WithLabelValues(trigger, outcome).Inc()
}

// RecordAutoplay records an autoplay attempt outcome.
func RecordAutoplay(outcome string) {
	autoplayOutcomes.WithLabelValues(outcome).Inc()
}

// RecordPlaybackSession records a newly constructed playback session.
func RecordPlaybackSession(kind string) {
	playbackSessions.WithLabelValues(kind).Inc()
}

// RecordFragmentBuffered records one appended HLS fragment.
func RecordFragmentBuffered() {
	fragmentsBuffered.Inc()
}
