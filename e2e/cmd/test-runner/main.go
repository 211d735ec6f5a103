package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/saaga0h/sleep-tracker/e2e/internal/executor"
	"github.com/saaga0h/sleep-tracker/e2e/internal/reporter"
	"github.com/saaga0h/sleep-tracker/e2e/internal/scenario"
	"github.com/saaga0h/sleep-tracker/pkg/config"
	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
	"github.com/saaga0h/sleep-tracker/pkg/redis"
	"github.com/spf13/pflag"
)

func main() {
	// Broker and Redis settings share the agent's env and flags
	cfg := config.NewConfig()
	cfg.ServiceName = "sleep-e2e-runner"
	cfg.LoadFromEnv()
	cfg.RegisterFlags(pflag.CommandLine)

	scenarioPath := pflag.String("scenario", "", "Path to YAML scenario file (required)")
	outputDir := pflag.String("output-dir", "./test-output", "Output directory for test artifacts")
	startupDelay := pflag.Duration("startup-delay", executor.DefaultStartupDelay, "Time given to agents after publishing test mode")
	verbose := pflag.Bool("verbose", false, "Log every captured message")
	pflag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		pflag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	logger.Info("Loading scenario", "path", *scenarioPath)
	scen, err := scenario.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mqttClient := mqtt.NewClient(cfg, logger)
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = mqttClient.Connect(connectCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to MQTT: %v\n", err)
		os.Exit(1)
	}
	defer mqttClient.Disconnect()

	redisClient := redis.NewClient(cfg, logger)
	defer redisClient.Close()

	runner := executor.NewRunner(mqttClient, redisClient, logger)
	runner.StartupDelay = *startupDelay

	result, timelineEvents, err := runner.Run(ctx, scen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test execution failed: %v\n", err)
		os.Exit(1)
	}

	scenarioName := strings.TrimSuffix(filepath.Base(*scenarioPath), filepath.Ext(*scenarioPath))

	timeline := reporter.GenerateTimeline(result, timelineEvents)
	fmt.Println(timeline)

	timelinePath := filepath.Join(*outputDir, "timelines", scenarioName+".txt")
	if err := reporter.SaveTimeline(timeline, timelinePath); err != nil {
		logger.Warn("Failed to save timeline", "error", err)
	} else {
		logger.Info("Timeline saved", "path", timelinePath)
	}

	capturePath := filepath.Join(*outputDir, "captures", scenarioName+".json")
	if err := runner.SaveCapture(capturePath); err != nil {
		logger.Warn("Failed to save capture", "error", err)
	}

	summaryPath := filepath.Join(*outputDir, "summaries", scenarioName+".json")
	if err := reporter.SaveSummary(result, summaryPath); err != nil {
		logger.Warn("Failed to save summary", "error", err)
	} else {
		logger.Info("Summary saved", "path", summaryPath)
	}

	if !result.Passed {
		os.Exit(1)
	}
}
