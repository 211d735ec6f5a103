package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/saaga0h/sleep-tracker/e2e/internal/observer"
	"github.com/saaga0h/sleep-tracker/pkg/config"
	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
	"github.com/spf13/pflag"
)

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "sleep-observer"
	cfg.LoadFromEnv()
	cfg.RegisterFlags(pflag.CommandLine)

	outputDir := pflag.String("output-dir", "./test-output/captures", "Output directory for captures")
	snapshotInterval := pflag.Duration("snapshot-interval", 30*time.Second, "Snapshot interval")
	topics := pflag.StringSlice("topic", nil, "Topic filters to capture (default sleep/# and accelerometer samples)")
	pflag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mqttClient := mqtt.NewClient(cfg, logger)
	if err := mqttClient.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to MQTT: %v\n", err)
		os.Exit(1)
	}
	defer mqttClient.Disconnect()

	obs := observer.NewObserver(mqttClient, *topics, logger)

	logger.Info("Starting MQTT observer")
	if err := obs.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start observer: %v\n", err)
		os.Exit(1)
	}
	defer obs.Stop()

	logger.Info("Observer running. Press Ctrl+C to stop.")

	ticker := time.NewTicker(*snapshotInterval)
	defer ticker.Stop()

	snapshotCount := 0

	for {
		select {
		case <-ticker.C:
			snapshotCount++
			timestamp := time.Now().Format("20060102-150405")
			filename := filepath.Join(*outputDir, fmt.Sprintf("snapshot-%s-%03d.json", timestamp, snapshotCount))

			if err := obs.SaveCapture(filename); err != nil {
				logger.Warn("Failed to save snapshot", "error", err)
			}

		case <-ctx.Done():
			logger.Info("Shutting down")
			timestamp := time.Now().Format("20060102-150405")
			filename := filepath.Join(*outputDir, fmt.Sprintf("final-%s.json", timestamp))

			if err := obs.SaveCapture(filename); err != nil {
				logger.Warn("Failed to save final capture", "error", err)
			}

			return
		}
	}
}
