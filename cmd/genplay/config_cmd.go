// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/genplay/internal/config"
)

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  genplay config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  genplay config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("genplay config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(file)
	if _, err := config.NewLoader(configPath, version).Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describePath(configPath), err)
		return 1
	}
	fmt.Fprintf(stdout, "%s is valid\n", describePath(configPath))
	return 0
}

// runConfigDump prints the effective configuration (defaults, file, env).
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("genplay config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file, format string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(file)
	cfg, err := config.NewLoader(configPath, version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describePath(configPath), err)
		return 1
	}
	fileCfg := fileConfigFromAppConfig(cfg)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
}

func describePath(p string) string {
	if p == "" {
		return "environment and defaults"
	}
	return p
}

// fileConfigFromAppConfig renders cfg in the file layout so a dump can be
// loaded back as a config file.
func fileConfigFromAppConfig(cfg config.AppConfig) config.FileConfig {
	var fc config.FileConfig
	fc.LogLevel = cfg.LogLevel
	fc.LogService = cfg.LogService
	fc.StatusAddr = cfg.StatusAddr

	fc.Backend.BaseURL = redactUserInfo(cfg.Backend.BaseURL)
	fc.Backend.StreamPath = cfg.Backend.StreamPath
	fc.Backend.DetailPath = cfg.Backend.DetailPath
	fc.Backend.Timeout = cfg.Backend.Timeout.String()

	fc.Generation.Provider = cfg.Generation.Provider
	fc.Generation.VoiceProvider = cfg.Generation.VoiceProvider
	fc.Generation.VoiceID = cfg.Generation.VoiceID
	fc.Generation.Language = cfg.Generation.Language
	fc.Generation.UserID = cfg.Generation.UserID

	fc.Session.PollInterval = cfg.Session.PollInterval.String()
	fc.Session.Timeout = cfg.Session.Timeout.String()
	fc.Session.Countdown = cfg.Session.Countdown.String()
	fc.Session.Tick = cfg.Session.Tick.String()
	fc.Session.SupportContact = cfg.Session.SupportContact

	maxRetry, autoplay := cfg.Playback.MaxRetry, cfg.Playback.Autoplay
	fc.Playback.MaxRetry = &maxRetry
	fc.Playback.BaseDelay = cfg.Playback.BaseDelay.String()
	fc.Playback.NudgeBack = cfg.Playback.NudgeBack.String()
	fc.Playback.NudgeInterval = cfg.Playback.NudgeInterval.String()
	fc.Playback.Autoplay = &autoplay
	fc.Playback.AutoplayPolicy = cfg.Playback.AutoplayPolicy
	fc.Playback.AutoplayGrace = cfg.Playback.AutoplayGrace.String()
	fc.Playback.NoticeDuration = cfg.Playback.NoticeDuration.String()
	fc.Playback.PlaybackSpeeds = append([]float64(nil), cfg.Playback.PlaybackSpeeds...)

	retries, rate := cfg.HLS.FragmentRetries, cfg.HLS.MaxFragmentRate
	fc.HLS.FragmentRetries = &retries
	fc.HLS.MaxFragmentRate = &rate
	fc.HLS.RequestTimeout = cfg.HLS.RequestTimeout.String()

	threshold := cfg.Resilience.BreakerThreshold
	fc.Resilience.BreakerThreshold = &threshold
	fc.Resilience.BreakerReset = cfg.Resilience.BreakerReset.String()

	enabled, sampling := cfg.Telemetry.Enabled, cfg.Telemetry.SamplingRate
	fc.Telemetry.Enabled = &enabled
	fc.Telemetry.Exporter = cfg.Telemetry.Exporter
	fc.Telemetry.Endpoint = cfg.Telemetry.Endpoint
	fc.Telemetry.SamplingRate = &sampling
	fc.Telemetry.Environment = cfg.Telemetry.Environment
	return fc
}

func redactUserInfo(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("REDACTED")
	return u.String()
}
