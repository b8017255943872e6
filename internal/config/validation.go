// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/genplay/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("LogLevel", cfg.LogLevel)
	v.ListenAddr("StatusAddr", cfg.StatusAddr)

	v.URL("Backend.BaseURL", cfg.Backend.BaseURL, []string{"http", "https"})
	v.PathPrefix("Backend.StreamPath", cfg.Backend.StreamPath)
	v.PathPrefix("Backend.DetailPath", cfg.Backend.DetailPath)
	v.DurationRange("Backend.Timeout", cfg.Backend.Timeout, 100*time.Millisecond, 5*time.Minute)

	v.NotEmpty("Generation.Provider", cfg.Generation.Provider)
	v.NotEmpty("Generation.Language", cfg.Generation.Language)

	v.DurationRange("Session.PollInterval", cfg.Session.PollInterval, time.Millisecond, 10*time.Minute)
	v.DurationRange("Session.Tick", cfg.Session.Tick, time.Millisecond, time.Minute)
	v.DurationRange("Session.Timeout", cfg.Session.Timeout, cfg.Session.Tick, 24*time.Hour)
	v.DurationRange("Session.Countdown", cfg.Session.Countdown, 0, cfg.Session.Timeout)

	v.Range("Playback.MaxRetry", cfg.Playback.MaxRetry, 0, 10)
	v.DurationRange("Playback.BaseDelay", cfg.Playback.BaseDelay, time.Millisecond, time.Minute)
	v.DurationRange("Playback.NudgeBack", cfg.Playback.NudgeBack, 0, 10*time.Second)
	v.DurationRange("Playback.AutoplayGrace", cfg.Playback.AutoplayGrace, 0, 10*time.Second)
	v.OneOf("Playback.AutoplayPolicy", cfg.Playback.AutoplayPolicy, []string{"allow", "gesture"})
	if len(cfg.Playback.PlaybackSpeeds) == 0 {
		v.AddError("Playback.PlaybackSpeeds", "at least one playback speed is required", cfg.Playback.PlaybackSpeeds)
	}
	for _, s := range cfg.Playback.PlaybackSpeeds {
		v.FloatRange("Playback.PlaybackSpeeds", s, 0.1, 16)
	}

	v.Range("HLS.FragmentRetries", cfg.HLS.FragmentRetries, 0, 10)
	v.FloatRange("HLS.MaxFragmentRate", cfg.HLS.MaxFragmentRate, 0, 1000)

	v.Positive("Resilience.BreakerThreshold", cfg.Resilience.BreakerThreshold)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
