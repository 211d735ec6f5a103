package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saaga0h/sleep-tracker/internal/accel"
	"github.com/saaga0h/sleep-tracker/internal/motion"
	"github.com/saaga0h/sleep-tracker/internal/sleep"
	"github.com/saaga0h/sleep-tracker/internal/tracker"
	"github.com/spf13/pflag"
)

type options struct {
	file               string
	location           string
	jsonOutput         bool
	realtime           bool
	threshold          float64
	veryRestfulBelow   int64
	fairlyRestfulBelow int64
	logLevel           string
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	fs := pflag.NewFlagSet("sleep-replay", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.file, "file", "f", "", "Path to YAML replay file (required)")
	fs.StringVar(&opts.location, "location", "bedroom", "Location reported in the summary")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print the summary as JSON")
	fs.BoolVar(&opts.realtime, "realtime", false, "Honour interval_ms between samples instead of replaying instantly")
	fs.Float64Var(&opts.threshold, "movement-threshold", motion.DefaultThreshold, "Deviation from 1g that counts as a movement")
	fs.Int64Var(&opts.veryRestfulBelow, "very-restful-below", sleep.DefaultThresholds.VeryRestfulBelow, "Movement count below which a session is very restful")
	fs.Int64Var(&opts.fairlyRestfulBelow, "fairly-restful-below", sleep.DefaultThresholds.FairlyRestfulBelow, "Movement count below which a session is fairly restful")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.file == "" && fs.NArg() > 0 {
		opts.file = fs.Arg(0)
	}
	if opts.file == "" {
		fmt.Fprintln(stderr, "Usage: sleep-replay [flags] <replay.yaml>")
		fs.PrintDefaults()
		return nil, errors.New("--file is required")
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: parseLogLevel(opts.logLevel),
	}))

	replay, err := accel.LoadReplay(opts.file)
	if err != nil {
		return err
	}

	thresholds := sleep.QualityThresholds{
		VeryRestfulBelow:   opts.veryRestfulBelow,
		FairlyRestfulBelow: opts.fairlyRestfulBelow,
	}

	var completed *tracker.Completed
	if opts.realtime {
		completed, err = replayRealtime(replay, opts.threshold, thresholds, logger)
	} else {
		completed, err = replayInstant(replay, opts.threshold, thresholds, logger)
	}
	if err != nil {
		return err
	}

	summary := completed.Session.Summary(completed.ID, opts.location)
	if opts.jsonOutput {
		payload, err := summary.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(payload))
		return nil
	}

	if replay.Name != "" {
		fmt.Fprintf(stdout, "Replay: %s\n", replay.Name)
	}
	fmt.Fprintf(stdout, "Samples: %d\n", replay.TotalSamples())
	if completed.RejectedSamples > 0 {
		fmt.Fprintf(stdout, "Rejected samples: %d\n", completed.RejectedSamples)
	}
	fmt.Fprintln(stdout, summary.Text())
	return nil
}

// replayInstant pushes every sample synchronously on a manual clock that
// advances by the replay interval per sample
func replayInstant(replay *accel.Replay, threshold float64, thresholds sleep.QualityThresholds, logger *slog.Logger) (*tracker.Completed, error) {
	clock := tracker.NewManualClock(time.Now().UTC().Truncate(time.Second))
	feed := accel.NewFeedSource()

	t, err := tracker.New(feed, tracker.Options{
		Threshold:  threshold,
		Thresholds: &thresholds,
		Clock:      clock,
	}, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if _, err := t.Start(ctx); err != nil {
		return nil, err
	}

	for pass := 0; pass < replay.Repeat; pass++ {
		for _, sample := range replay.Samples {
			clock.Advance(replay.Interval())
			feed.Push(sample)
		}
	}

	return t.Stop(ctx)
}

// replayRealtime plays the replay on its own goroutine until it finishes or
// the process is interrupted
func replayRealtime(replay *accel.Replay, threshold float64, thresholds sleep.QualityThresholds, logger *slog.Logger) (*tracker.Completed, error) {
	source := accel.NewReplaySource(replay, logger)

	t, err := tracker.New(source, tracker.Options{
		Threshold:  threshold,
		Thresholds: &thresholds,
	}, logger)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionID, err := t.Start(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Replaying in real time", "session_id", sessionID, "samples", replay.TotalSamples())

	select {
	case <-source.Done():
	case <-ctx.Done():
		logger.Info("Replay interrupted")
	}

	return t.Stop(context.Background())
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
