// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// genplay requests a generated video for a topic, follows its progress and
// plays the result.
//
// Usage:
//
//	genplay [flags] <topic>
//	genplay -id <job> [flags]
//	genplay config validate|dump [--file|-f config.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/genplay/internal/validate"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

// options are the parsed command line flags.
type options struct {
	configPath     string
	jobID          string
	output         string
	autoplayPolicy string
	statusAddr     string
	showVersion    bool
	topic          string
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "config" {
		os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
	}

	opts, code := parseFlags(os.Args[1:], os.Stderr)
	if code >= 0 {
		os.Exit(code)
	}
	if opts.showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, opts, os.Stdin, os.Stderr))
}

// parseFlags returns the options and -1, or an exit code when the process
// should stop.
func parseFlags(args []string, stderr io.Writer) (options, int) {
	var o options
	fs := flag.NewFlagSet("genplay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to config file (YAML)")
	fs.StringVar(&o.jobID, "id", "", "resume an existing job instead of starting a new one")
	fs.StringVar(&o.output, "output", "", "file receiving the played media (written atomically)")
	fs.StringVar(&o.autoplayPolicy, "autoplay-policy", "", "allow or gesture (overrides config)")
	fs.StringVar(&o.statusAddr, "status-addr", "", "listen address of the local status server")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage:")
		fmt.Fprintln(stderr, "  genplay [flags] <topic>")
		fmt.Fprintln(stderr, "  genplay -id <job> [flags]")
		fmt.Fprintln(stderr, "  genplay config validate|dump [--file|-f config.yaml]")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return o, 0
		}
		return o, 2
	}
	if o.showVersion {
		return o, -1
	}

	o.jobID = strings.TrimSpace(o.jobID)
	o.topic = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if o.jobID == "" && o.topic == "" {
		fmt.Fprintln(stderr, "Error: a topic or -id is required")
		fs.Usage()
		return o, 2
	}
	if o.jobID != "" && o.topic != "" {
		fmt.Fprintln(stderr, "Error: a topic and -id are mutually exclusive")
		return o, 2
	}

	v := validate.New()
	v.OneOf("autoplay-policy", o.autoplayPolicy, []string{"", "allow", "gesture"})
	v.ListenAddr("status-addr", o.statusAddr)
	if err := v.Err(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return o, 2
	}
	return o, -1
}
