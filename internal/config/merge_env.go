// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// mergeEnvConfig merges environment variables into cfg.
// ENV variables have the highest precedence.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	l.mergeEnvCore(cfg)
	l.mergeEnvBackend(cfg)
	l.mergeEnvGeneration(cfg)
	l.mergeEnvSession(cfg)
	l.mergeEnvPlayback(cfg)
	l.mergeEnvHLS(cfg)
	l.mergeEnvResilience(cfg)
	l.mergeEnvTelemetry(cfg)
}

func (l *Loader) mergeEnvCore(cfg *AppConfig) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)
	cfg.StatusAddr = l.envString("STATUS_ADDR", cfg.StatusAddr)
}

func (l *Loader) mergeEnvBackend(cfg *AppConfig) {
	cfg.Backend.BaseURL = l.envString("BACKEND_BASE_URL", cfg.Backend.BaseURL)
	cfg.Backend.StreamPath = l.envString("BACKEND_STREAM_PATH", cfg.Backend.StreamPath)
	cfg.Backend.DetailPath = l.envString("BACKEND_DETAIL_PATH", cfg.Backend.DetailPath)
	cfg.Backend.Timeout = l.envDuration("BACKEND_TIMEOUT", cfg.Backend.Timeout)
}

func (l *Loader) mergeEnvGeneration(cfg *AppConfig) {
	cfg.Generation.Provider = l.envString("PROVIDER", cfg.Generation.Provider)
	cfg.Generation.VoiceProvider = l.envString("VOICE_PROVIDER", cfg.Generation.VoiceProvider)
	cfg.Generation.VoiceID = l.envString("VOICE_ID", cfg.Generation.VoiceID)
	cfg.Generation.Language = l.envString("LANGUAGE", cfg.Generation.Language)
	cfg.Generation.UserID = l.envString("USER_ID", cfg.Generation.UserID)
}

func (l *Loader) mergeEnvSession(cfg *AppConfig) {
	cfg.Session.PollInterval = l.envDuration("POLL_INTERVAL", cfg.Session.PollInterval)
	cfg.Session.Timeout = l.envDuration("SESSION_TIMEOUT", cfg.Session.Timeout)
	cfg.Session.Countdown = l.envDuration("COUNTDOWN", cfg.Session.Countdown)
	cfg.Session.Tick = l.envDuration("TICK", cfg.Session.Tick)
	cfg.Session.SupportContact = l.envString("SUPPORT_CONTACT", cfg.Session.SupportContact)
}

func (l *Loader) mergeEnvPlayback(cfg *AppConfig) {
	cfg.Playback.MaxRetry = l.envInt("MAX_RETRY", cfg.Playback.MaxRetry)
	cfg.Playback.BaseDelay = l.envDuration("BASE_DELAY", cfg.Playback.BaseDelay)
	cfg.Playback.NudgeBack = l.envDuration("NUDGE_BACK", cfg.Playback.NudgeBack)
	cfg.Playback.NudgeInterval = l.envDuration("NUDGE_INTERVAL", cfg.Playback.NudgeInterval)
	cfg.Playback.Autoplay = l.envBool("AUTOPLAY", cfg.Playback.Autoplay)
	cfg.Playback.AutoplayPolicy = l.envString("AUTOPLAY_POLICY", cfg.Playback.AutoplayPolicy)
	cfg.Playback.AutoplayGrace = l.envDuration("AUTOPLAY_GRACE", cfg.Playback.AutoplayGrace)
	cfg.Playback.NoticeDuration = l.envDuration("NOTICE_DURATION", cfg.Playback.NoticeDuration)
}

func (l *Loader) mergeEnvHLS(cfg *AppConfig) {
	cfg.HLS.FragmentRetries = l.envInt("HLS_FRAGMENT_RETRIES", cfg.HLS.FragmentRetries)
	cfg.HLS.MaxFragmentRate = l.envFloat("HLS_MAX_FRAGMENT_RATE", cfg.HLS.MaxFragmentRate)
	cfg.HLS.RequestTimeout = l.envDuration("HLS_REQUEST_TIMEOUT", cfg.HLS.RequestTimeout)
}

func (l *Loader) mergeEnvResilience(cfg *AppConfig) {
	cfg.Resilience.BreakerThreshold = l.envInt("BREAKER_THRESHOLD", cfg.Resilience.BreakerThreshold)
	cfg.Resilience.BreakerReset = l.envDuration("BREAKER_RESET", cfg.Resilience.BreakerReset)
}

func (l *Loader) mergeEnvTelemetry(cfg *AppConfig) {
	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)
}
