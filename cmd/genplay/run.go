// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/genplay/internal/app"
	"github.com/ManuGH/genplay/internal/app/bootstrap"
	"github.com/ManuGH/genplay/internal/domain/session/model"
	"github.com/ManuGH/genplay/internal/health"
	xglog "github.com/ManuGH/genplay/internal/log"
	"github.com/ManuGH/genplay/internal/media"
)

const (
	progressInterval = 250 * time.Millisecond
	shutdownTimeout  = 5 * time.Second
)

var errPlaybackFailed = errors.New("playback failed")

// sink is where played bytes go. Commit publishes them, Abort discards them.
type sink interface {
	io.Writer
	Commit() error
	Abort()
}

type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }
func (discardSink) Commit() error               { return nil }
func (discardSink) Abort()                      {}

// fileSink writes to a temporary file that replaces path on Commit.
type fileSink struct {
	f *renameio.PendingFile
}

func newFileSink(path string) (*fileSink, error) {
	f, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", path, err)
	}
	return &fileSink{f: f}, nil
}

func (s *fileSink) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *fileSink) Commit() error                { return s.f.CloseAtomicallyReplace() }
func (s *fileSink) Abort()                       { _ = s.f.Cleanup() }

func openSink(path string) (sink, error) {
	if path == "" {
		return discardSink{}, nil
	}
	return newFileSink(path)
}

// run executes one session and returns the process exit code.
func run(ctx context.Context, o options, stdin io.Reader, stderr io.Writer) int {
	c, err := bootstrap.WireServices(ctx, version, o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := c.Shutdown(shutdownCtx); err != nil {
			c.Logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()
	if o.statusAddr != "" {
		c.Config.StatusAddr = o.statusAddr
	}
	if err := health.PerformStartupChecks(ctx, c.Config, o.output); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	out, err := openSink(o.output)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	s, err := c.NewSession(bootstrap.SessionParams{
		Prompt:         o.topic,
		JobID:          o.jobID,
		Output:         out,
		AutoplayPolicy: o.autoplayPolicy,
	})
	if err != nil {
		out.Abort()
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if err := play(ctx, s, stdin, stderr); err != nil {
		s.Close()
		out.Abort()
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "interrupted")
			return 130
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	s.Close()
	if err := out.Commit(); err != nil {
		fmt.Fprintf(stderr, "Error: write output: %v\n", err)
		return 1
	}
	if o.output != "" {
		fmt.Fprintf(stderr, "saved %s\n", o.output)
	}
	return 0
}

// play drives the session, the status server and the progress reporter until
// playback ends or fails. The media ending finishes play even while the
// backend keeps the event stream open.
func play(ctx context.Context, s *bootstrap.Session, stdin io.Reader, stderr io.Writer) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	ended := make(chan struct{}, 1)
	unsub := s.Element.Subscribe(func(ev media.Event) {
		if ev.Type == media.EventEnded {
			select {
			case ended <- struct{}{}:
			default:
			}
		}
	})
	defer unsub()

	var readyOnce sync.Once
	printReady := func(title string) {
		readyOnce.Do(func() {
			if title != "" {
				fmt.Fprintf(stderr, "ready: %s\n", title)
			}
		})
	}

	if s.Status != nil {
		g.Go(func() error { return s.Status.Run(gctx) })
	}
	g.Go(func() error {
		reportProgress(gctx, s.View, stderr)
		return nil
	})
	go watchGestures(stdin, s, stderr)

	g.Go(func() error {
		final, err := s.View.Run(gctx)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				return nil
			}
			return err
		}
		if final.Status != model.StatusReady {
			return sessionError(final)
		}
		printReady(final.Artifact.Title)
		return nil
	})
	g.Go(func() error {
		if err := waitPlayback(gctx, s.View, ended); err != nil {
			return err
		}
		printReady(s.View.State().Session.Session.Artifact.Title)
		cancel()
		return nil
	})

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return err
}

// waitPlayback returns nil once the media ends, or the first reported playback error.
func waitPlayback(ctx context.Context, v *app.View, ended <-chan struct{}) error {
	t := time.NewTicker(progressInterval)
	defer t.Stop()
	for {
		select {
		case <-ended:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if msg := v.State().PlaybackError; msg != "" {
				return fmt.Errorf("%w: %s", errPlaybackFailed, msg)
			}
		}
	}
}

func sessionError(s model.GenerationSession) error {
	if s.Failure != nil {
		return fmt.Errorf("generation %s: %s", s.Status, s.Failure.Message)
	}
	return fmt.Errorf("generation ended in %s", s.Status)
}

// reportProgress prints new progress lines, view changes and notices.
func reportProgress(ctx context.Context, v *app.View, w io.Writer) {
	t := time.NewTicker(progressInterval)
	defer t.Stop()

	var (
		printed    int
		lastView   app.ViewKind
		lastNotice string
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		st := v.State()
		for _, line := range st.Session.Session.ProgressLog[min(printed, len(st.Session.Session.ProgressLog)):] {
			fmt.Fprintf(w, "  %s\n", line)
		}
		printed = max(printed, len(st.Session.Session.ProgressLog))

		if st.View != lastView {
			lastView = st.View
			fmt.Fprintln(w, viewLine(st))
		}
		if st.Notice != "" && st.Notice != lastNotice {
			fmt.Fprintln(w, st.Notice)
		}
		lastNotice = st.Notice
	}
}

func viewLine(st app.State) string {
	switch st.View {
	case app.ViewBackgroundWaiting:
		return "still working in the background, you can leave and resume later with -id " + st.Session.Session.ID
	case app.ViewPlayback:
		return "playing"
	case app.ViewError:
		return "generation failed"
	case app.ViewTimeout:
		return "generation timed out"
	default:
		if st.Session.Countdown > 0 {
			return fmt.Sprintf("generating (about %ds left)", st.Session.Countdown)
		}
		return "generating"
	}
}

// watchGestures treats each line on stdin as a user gesture that starts playback.
func watchGestures(stdin io.Reader, s *bootstrap.Session, w io.Writer) {
	if stdin == nil {
		return
	}
	logger := xglog.WithComponent("cli")
	sc := bufio.NewScanner(stdin)
	for sc.Scan() {
		e := s.Engine()
		if e == nil {
			fmt.Fprintln(w, "nothing to play yet")
			continue
		}
		logger.Debug().Str(xglog.FieldEvent, "cli.gesture").Msg("user requested play")
		e.UserPlay()
	}
}
