// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for genplay.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment variable read by the loader.
const EnvPrefix = "GENPLAY_"

// Defaults observed from the production service.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultStreamPath     = "/api/v1/video/stream"
	DefaultDetailPath     = "/api/v1/video/detail"
	DefaultPollInterval   = 5 * time.Second
	DefaultSessionTimeout = 1800 * time.Second
	DefaultCountdown      = 120 * time.Second
	DefaultMaxRetry       = 4
	DefaultBaseDelay      = time.Second
	DefaultAutoplayGrace  = 120 * time.Millisecond
	DefaultNoticeDuration = 3 * time.Second
)

// DefaultPlaybackSpeeds is the selectable playback rate list.
var DefaultPlaybackSpeeds = []float64{0.5, 0.75, 1, 1.25, 1.5, 2}

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: Defaults -> Parse File (Strict) -> Apply Env -> Validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "genplay",
		Backend: BackendConfig{
			BaseURL:    DefaultBaseURL,
			StreamPath: DefaultStreamPath,
			DetailPath: DefaultDetailPath,
			Timeout:    10 * time.Second,
		},
		Generation: GenerationConfig{
			Provider:      "openrouter",
			VoiceProvider: "openai",
			VoiceID:       "shimmer",
			Language:      "zh-CN",
		},
		Session: SessionConfig{
			PollInterval:   DefaultPollInterval,
			Timeout:        DefaultSessionTimeout,
			Countdown:      DefaultCountdown,
			Tick:           time.Second,
			SupportContact: "the service operator",
		},
		Playback: PlaybackConfig{
			MaxRetry:       DefaultMaxRetry,
			BaseDelay:      DefaultBaseDelay,
			NudgeBack:      100 * time.Millisecond,
			NudgeInterval:  time.Second,
			Autoplay:       true,
			AutoplayPolicy: "allow",
			AutoplayGrace:  DefaultAutoplayGrace,
			NoticeDuration: DefaultNoticeDuration,
			PlaybackSpeeds: append([]float64(nil), DefaultPlaybackSpeeds...),
		},
		HLS: HLSConfig{
			FragmentRetries: 2,
			MaxFragmentRate: 0,
			RequestTimeout:  15 * time.Second,
		},
		Resilience: ResilienceConfig{
			BreakerThreshold: 5,
			BreakerReset:     15 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	return NewLoader(path, "").loadFile(path)
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, ErrMultipleDocuments
	}

	return &fileCfg, nil
}
