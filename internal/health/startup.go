// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/genplay/internal/config"
	"github.com/ManuGH/genplay/internal/log"
)

// PerformStartupChecks validates the environment before a session starts.
// outputPath may be empty when the played bytes are discarded.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig, outputPath string) error {
	logger := log.WithComponentFromContext(ctx, "startup-check")
	logger.Debug().Msg("running pre-flight startup checks")

	if outputPath != "" {
		if err := checkOutputDir(logger, filepath.Dir(outputPath)); err != nil {
			return fmt.Errorf("output directory check failed: %w", err)
		}
	}

	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Debug().Msg("all startup checks passed")
	return nil
}

func checkOutputDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	f, err := os.CreateTemp(path, ".genplay-write-test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	logger.Debug().Str("path", path).Msg("output directory is writable")
	return nil
}

// checkTargetedValidations re-checks the settings a session cannot recover from.
func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.StatusAddr != "" {
		_, port, err := net.SplitHostPort(cfg.StatusAddr)
		if err != nil {
			return fmt.Errorf("invalid status listen address %q: %w", cfg.StatusAddr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid status listen port %q in %q", port, cfg.StatusAddr)
		}
	}

	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid backend base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend base URL scheme must be http or https, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("backend base URL has no host: %s", cfg.Backend.BaseURL)
	}
	if u.Scheme == "http" && !isLoopback(u.Hostname()) {
		logger.Warn().Str(log.FieldBaseURL, u.Redacted()).Msg("backend is reached over plain http")
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
