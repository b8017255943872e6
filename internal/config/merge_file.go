// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"
)

// mergeFileConfig overlays every field that is set in the file onto dst.
func mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	if src == nil {
		return nil
	}
	setString(&dst.LogLevel, src.LogLevel)
	setString(&dst.LogService, src.LogService)
	setString(&dst.StatusAddr, src.StatusAddr)

	setString(&dst.Backend.BaseURL, src.Backend.BaseURL)
	setString(&dst.Backend.StreamPath, src.Backend.StreamPath)
	setString(&dst.Backend.DetailPath, src.Backend.DetailPath)

	setString(&dst.Generation.Provider, src.Generation.Provider)
	setString(&dst.Generation.VoiceProvider, src.Generation.VoiceProvider)
	setString(&dst.Generation.VoiceID, src.Generation.VoiceID)
	setString(&dst.Generation.Language, src.Generation.Language)
	setString(&dst.Generation.UserID, src.Generation.UserID)

	setString(&dst.Session.SupportContact, src.Session.SupportContact)

	setInt(&dst.Playback.MaxRetry, src.Playback.MaxRetry)
	setBool(&dst.Playback.Autoplay, src.Playback.Autoplay)
	setString(&dst.Playback.AutoplayPolicy, src.Playback.AutoplayPolicy)
	if len(src.Playback.PlaybackSpeeds) > 0 {
		dst.Playback.PlaybackSpeeds = append([]float64(nil), src.Playback.PlaybackSpeeds...)
	}

	setInt(&dst.HLS.FragmentRetries, src.HLS.FragmentRetries)
	if src.HLS.MaxFragmentRate != nil {
		dst.HLS.MaxFragmentRate = *src.HLS.MaxFragmentRate
	}

	setInt(&dst.Resilience.BreakerThreshold, src.Resilience.BreakerThreshold)

	setBool(&dst.Telemetry.Enabled, src.Telemetry.Enabled)
	setString(&dst.Telemetry.Exporter, src.Telemetry.Exporter)
	setString(&dst.Telemetry.Endpoint, src.Telemetry.Endpoint)
	setString(&dst.Telemetry.Environment, src.Telemetry.Environment)
	if src.Telemetry.SamplingRate != nil {
		dst.Telemetry.SamplingRate = *src.Telemetry.SamplingRate
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"backend.timeout", src.Backend.Timeout, &dst.Backend.Timeout},
		{"session.poll_interval", src.Session.PollInterval, &dst.Session.PollInterval},
		{"session.timeout", src.Session.Timeout, &dst.Session.Timeout},
		{"session.countdown", src.Session.Countdown, &dst.Session.Countdown},
		{"session.tick", src.Session.Tick, &dst.Session.Tick},
		{"playback.base_delay", src.Playback.BaseDelay, &dst.Playback.BaseDelay},
		{"playback.nudge_back", src.Playback.NudgeBack, &dst.Playback.NudgeBack},
		{"playback.nudge_interval", src.Playback.NudgeInterval, &dst.Playback.NudgeInterval},
		{"playback.autoplay_grace", src.Playback.AutoplayGrace, &dst.Playback.AutoplayGrace},
		{"playback.notice_duration", src.Playback.NoticeDuration, &dst.Playback.NoticeDuration},
		{"hls.request_timeout", src.HLS.RequestTimeout, &dst.HLS.RequestTimeout},
		{"resilience.breaker_reset", src.Resilience.BreakerReset, &dst.Resilience.BreakerReset},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.field, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
