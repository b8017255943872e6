// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bootstrap is the composition root: it loads configuration and wires
// the generation session, the playback stack and the status server.
package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/genplay/internal/api"
	"github.com/ManuGH/genplay/internal/app"
	"github.com/ManuGH/genplay/internal/autoplay"
	"github.com/ManuGH/genplay/internal/bus"
	"github.com/ManuGH/genplay/internal/config"
	"github.com/ManuGH/genplay/internal/detail"
	"github.com/ManuGH/genplay/internal/domain/session/manager"
	"github.com/ManuGH/genplay/internal/health"
	"github.com/ManuGH/genplay/internal/hls"
	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/media"
	"github.com/ManuGH/genplay/internal/playback"
	"github.com/ManuGH/genplay/internal/resilience"
	"github.com/ManuGH/genplay/internal/stream"
	"github.com/ManuGH/genplay/internal/telemetry"
)

// snapshotBuffer bounds how far a slow view can lag before snapshots drop.
const snapshotBuffer = 16

// Container is the composition root output.
type Container struct {
	Config    config.AppConfig
	Logger    zerolog.Logger
	Telemetry *telemetry.Provider

	stream  *stream.Client
	poller  *detail.Poller
	breaker *resilience.CircuitBreaker

	closeOnce sync.Once
}

// WireServices loads configuration and builds the long-lived dependencies.
func WireServices(ctx context.Context, version, explicitConfigPath string) (*Container, error) {
	if ctx == nil {
		return nil, fmt.Errorf("wire services context is nil")
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "genplay", Version: version})
	logger := xglog.WithComponent("bootstrap")

	configPath, explicitMode, err := resolveConfigPath(strings.TrimSpace(explicitConfigPath))
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg, err := config.NewLoader(configPath, version).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: cfg.Version})
	logger = xglog.WithComponent("bootstrap")

	switch {
	case explicitMode:
		logger.Info().Str(xglog.FieldEvent, "config.loaded").Str(xglog.FieldSource, "file").Str("path", configPath).
			Msg("loaded configuration from file")
	case configPath != "":
		logger.Info().Str(xglog.FieldEvent, "config.loaded").Str(xglog.FieldSource, "file(auto)").Str("path", configPath).
			Msg("loaded configuration from file")
	default:
		logger.Info().Str(xglog.FieldEvent, "config.loaded").Str(xglog.FieldSource, "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if configBytes, marshalErr := json.Marshal(cfg); marshalErr == nil {
		hash := sha256.Sum256(configBytes)
		logger.Info().
			Str(xglog.FieldEvent, "config.snapshot").
			Str("sha256", fmt.Sprintf("%x", hash)).
			Msg("configuration snapshot fingerprint")
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	breaker := resilience.NewCircuitBreaker("detail", cfg.Resilience.BreakerThreshold, cfg.Resilience.BreakerReset)
	detailClient := detail.New(cfg.Backend.BaseURL, cfg.Backend.DetailPath, cfg.Backend.Timeout)

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version).
		Str(xglog.FieldBaseURL, maskURL(cfg.Backend.BaseURL)).
		Str("autoplay_policy", cfg.Playback.AutoplayPolicy).
		Bool("telemetry", cfg.Telemetry.Enabled).
		Msg("starting genplay")

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Telemetry: tp,
		stream:    stream.New(cfg.Backend.BaseURL, cfg.Backend.StreamPath),
		poller:    detail.NewPoller(detailClient, breaker),
		breaker:   breaker,
	}, nil
}

// SessionParams selects what a session generates or resumes.
type SessionParams struct {
	// Prompt starts a new generation. Ignored when JobID is set.
	Prompt string
	// JobID resumes an existing job by polling only.
	JobID string
	// Output receives the played media bytes.
	Output io.Writer
	// AutoplayPolicy overrides the configured policy when non-empty.
	AutoplayPolicy string
}

// Session is one wired generation-and-playback run.
type Session struct {
	View    *app.View
	Element *media.Element
	Status  *api.Server // nil without a status address

	bus *bus.MemoryBus[manager.Snapshot]

	mu     sync.Mutex
	engine *playback.Engine
}

// NewSession wires a view over a fresh runner, media element and player factory.
func (c *Container) NewSession(p SessionParams) (*Session, error) {
	if p.JobID == "" && strings.TrimSpace(p.Prompt) == "" {
		return nil, errors.New("a prompt or a job id is required")
	}
	out := p.Output
	if out == nil {
		out = io.Discard
	}
	policyName := c.Config.Playback.AutoplayPolicy
	if p.AutoplayPolicy != "" {
		policyName = p.AutoplayPolicy
	}
	policy, err := media.ParsePolicy(policyName)
	if err != nil {
		return nil, err
	}

	b := bus.NewMemoryBus[manager.Snapshot](snapshotBuffer)
	runner := manager.NewRunner(
		manager.ConfigFrom(c.Config.Session),
		manager.Deps{Stream: c.stream, Poller: c.poller, Bus: b},
		stream.NewRequest(p.Prompt, c.Config.Generation),
		p.JobID,
	)

	s := &Session{
		Element: media.NewElement(out, media.WithPolicy(policy)),
		bus:     b,
	}
	pbCfg := playback.ConfigFrom(c.Config.Playback)
	factory := playback.HLSFactory(hls.ConfigFrom(c.Config.HLS))
	s.View = app.NewView(runner, b, func(onError func(error), onNotice func(autoplay.Notice)) app.Player {
		e := playback.New(s.Element, factory, pbCfg,
			playback.WithOnError(onError),
			playback.WithNotice(onNotice),
		)
		s.mu.Lock()
		s.engine = e
		s.mu.Unlock()
		return e
	})

	if c.Config.StatusAddr != "" {
		tracing := ""
		if c.Config.Telemetry.Enabled {
			tracing = "genplay.status"
		}
		hm := health.NewManager(c.Config.Version)
		hm.RegisterChecker(health.NewBreakerChecker("detail_breaker", c.breaker))
		hm.RegisterChecker(health.NewSessionChecker(s.View))
		s.Status = api.New(api.Config{Addr: c.Config.StatusAddr, TracingService: tracing, Health: hm}, s.View)
	}

	c.Logger.Info().
		Str(xglog.FieldEvent, "session.wired").
		Str(xglog.FieldSessionID, runner.LocalID()).
		Str(xglog.FieldJobID, p.JobID).
		Str("autoplay_policy", policyName).
		Msg("session wired")
	return s, nil
}

// Engine returns the playback engine once playback has started, or nil.
func (s *Session) Engine() *playback.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Close destroys the player and releases the bus.
func (s *Session) Close() {
	s.View.Close()
	s.Element.Release()
	s.bus.Close()
}

// Shutdown flushes telemetry.
func (c *Container) Shutdown(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		if c.Telemetry != nil {
			err = c.Telemetry.Shutdown(ctx)
		}
	})
	return err
}

func resolveConfigPath(explicit string) (path string, explicitMode bool, err error) {
	if explicit != "" {
		absPath, err := filepath.Abs(explicit)
		if err != nil {
			return "", true, fmt.Errorf("resolve absolute path for explicit config %q: %w", explicit, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return "", true, fmt.Errorf("explicit config file not found %q: %w", absPath, err)
		}
		if info.IsDir() {
			return "", true, fmt.Errorf("explicit config path %q is a directory", absPath)
		}
		return absPath, true, nil
	}

	home := strings.TrimSpace(config.ParseString(config.EnvPrefix+"HOME", ""))
	if home == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", false, nil
		}
		home = filepath.Join(dir, "genplay")
	}
	autoPath := filepath.Join(home, "config.yaml")
	if info, err := os.Stat(autoPath); err == nil && !info.IsDir() {
		if absPath, absErr := filepath.Abs(autoPath); absErr == nil {
			return absPath, false, nil
		}
	}
	return "", false, nil
}

func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "[invalid_url]"
	}
	parsedURL.User = nil
	return parsedURL.String()
}
