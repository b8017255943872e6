// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string
	LogLevel   string
	LogService string
	StatusAddr string

	Backend    BackendConfig
	Generation GenerationConfig
	Session    SessionConfig
	Playback   PlaybackConfig
	HLS        HLSConfig
	Resilience ResilienceConfig
	Telemetry  TelemetryConfig
}

// BackendConfig locates the generation service.
type BackendConfig struct {
	BaseURL    string
	StreamPath string
	DetailPath string
	Timeout    time.Duration // per-request timeout for detail polls
}

// GenerationConfig carries the default request parameters sent with a topic.
type GenerationConfig struct {
	Provider      string
	VoiceProvider string
	VoiceID       string
	Language      string
	UserID        string
}

// SessionConfig controls the generation session timers.
type SessionConfig struct {
	PollInterval   time.Duration
	Timeout        time.Duration
	Countdown      time.Duration
	Tick           time.Duration
	SupportContact string
}

// PlaybackConfig controls the adaptive playback engine and autoplay.
type PlaybackConfig struct {
	MaxRetry       int
	BaseDelay      time.Duration
	NudgeBack      time.Duration
	NudgeInterval  time.Duration
	Autoplay       bool
	AutoplayPolicy string // "allow" or "gesture"
	AutoplayGrace  time.Duration
	NoticeDuration time.Duration
	PlaybackSpeeds []float64
}

// HLSConfig controls the segmented-streaming controller.
type HLSConfig struct {
	FragmentRetries int
	MaxFragmentRate float64 // fragments per second, 0 = unlimited
	RequestTimeout  time.Duration
}

// ResilienceConfig controls the detail endpoint circuit breaker.
type ResilienceConfig struct {
	BreakerThreshold int
	BreakerReset     time.Duration
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// FileConfig mirrors the YAML layout. Pointer and zero values mean "not set".
type FileConfig struct {
	LogLevel   string `yaml:"log_level,omitempty"`
	LogService string `yaml:"log_service,omitempty"`
	StatusAddr string `yaml:"status_addr,omitempty"`

	Backend struct {
		BaseURL    string `yaml:"base_url,omitempty"`
		StreamPath string `yaml:"stream_path,omitempty"`
		DetailPath string `yaml:"detail_path,omitempty"`
		Timeout    string `yaml:"timeout,omitempty"`
	} `yaml:"backend,omitempty"`

	Generation struct {
		Provider      string `yaml:"provider,omitempty"`
		VoiceProvider string `yaml:"voice_provider,omitempty"`
		VoiceID       string `yaml:"voice_id,omitempty"`
		Language      string `yaml:"language,omitempty"`
		UserID        string `yaml:"user_id,omitempty"`
	} `yaml:"generation,omitempty"`

	Session struct {
		PollInterval   string `yaml:"poll_interval,omitempty"`
		Timeout        string `yaml:"timeout,omitempty"`
		Countdown      string `yaml:"countdown,omitempty"`
		Tick           string `yaml:"tick,omitempty"`
		SupportContact string `yaml:"support_contact,omitempty"`
	} `yaml:"session,omitempty"`

	Playback struct {
		MaxRetry       *int      `yaml:"max_retry,omitempty"`
		BaseDelay      string    `yaml:"base_delay,omitempty"`
		NudgeBack      string    `yaml:"nudge_back,omitempty"`
		NudgeInterval  string    `yaml:"nudge_interval,omitempty"`
		Autoplay       *bool     `yaml:"autoplay,omitempty"`
		AutoplayPolicy string    `yaml:"autoplay_policy,omitempty"`
		AutoplayGrace  string    `yaml:"autoplay_grace,omitempty"`
		NoticeDuration string    `yaml:"notice_duration,omitempty"`
		PlaybackSpeeds []float64 `yaml:"playback_speeds,omitempty"`
	} `yaml:"playback,omitempty"`

	HLS struct {
		FragmentRetries *int     `yaml:"fragment_retries,omitempty"`
		MaxFragmentRate *float64 `yaml:"max_fragment_rate,omitempty"`
		RequestTimeout  string   `yaml:"request_timeout,omitempty"`
	} `yaml:"hls,omitempty"`

	Resilience struct {
		BreakerThreshold *int   `yaml:"breaker_threshold,omitempty"`
		BreakerReset     string `yaml:"breaker_reset,omitempty"`
	} `yaml:"resilience,omitempty"`

	Telemetry struct {
		Enabled      *bool    `yaml:"enabled,omitempty"`
		Exporter     string   `yaml:"exporter,omitempty"`
		Endpoint     string   `yaml:"endpoint,omitempty"`
		SamplingRate *float64 `yaml:"sampling_rate,omitempty"`
		Environment  string   `yaml:"environment,omitempty"`
	} `yaml:"telemetry,omitempty"`
}
