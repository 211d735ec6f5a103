package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/saaga0h/sleep-tracker/internal/accel"
	"github.com/saaga0h/sleep-tracker/internal/sleep"
	"github.com/saaga0h/sleep-tracker/pkg/config"
	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
	"github.com/saaga0h/sleep-tracker/pkg/redis"
)

const (
	// TTL on the live session hash, refreshed on every write
	activeSessionTTL = 24 * time.Hour

	redisTimeout = 2 * time.Second

	// Control commands waiting for the agent loop
	commandQueueSize = 16
)

// Agent drives a Tracker from MQTT control commands, publishes session
// summaries and live status, and mirrors the running session into Redis
type Agent struct {
	mqtt        mqtt.Client
	redis       redis.Client
	tracker     *Tracker
	timeManager *TimeManager
	limiter     *RateLimiter
	cfg         *config.Config
	logger      *slog.Logger

	commands chan string
	handled  atomic.Int64
}

// controlCommand is the payload on the control topic
type controlCommand struct {
	Command string `json:"command"`
}

// statusPayload is the live status published while tracking
type statusPayload struct {
	State          State  `json:"state"`
	SessionID      string `json:"session_id,omitempty"`
	Movements      int64  `json:"movements"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Timestamp      string `json:"timestamp"`
}

// NewAgent creates a sleep agent. A nil source means samples are read from
// the configured MQTT sample topic.
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, source accel.Source, cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	timeManager := NewTimeManager(logger)

	if source == nil {
		source = accel.NewMQTTSource(mqttClient, sampleTopic(cfg), logger)
	}

	a := &Agent{
		mqtt:        mqttClient,
		redis:       redisClient,
		timeManager: timeManager,
		limiter:     NewRateLimiter(timeManager),
		cfg:         cfg,
		logger:      logger,
		commands:    make(chan string, commandQueueSize),
	}

	tracker, err := New(source, Options{
		Threshold: cfg.MovementThreshold,
		Thresholds: &sleep.QualityThresholds{
			VeryRestfulBelow:   cfg.VeryRestfulBelow,
			FairlyRestfulBelow: cfg.FairlyRestfulBelow,
		},
		Clock:      timeManager,
		OnMovement: a.handleMovement,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}
	a.tracker = tracker

	return a, nil
}

func sampleTopic(cfg *config.Config) string {
	if cfg.SampleTopic != "" {
		return cfg.SampleTopic
	}
	return mqtt.RawAccelerometerTopic(cfg.Location)
}

// Tracker returns the session tracker driven by the agent
func (a *Agent) Tracker() *Tracker {
	return a.tracker
}

// HealthState reports the tracker state for health checks
func (a *Agent) HealthState() string {
	return string(a.tracker.State())
}

// Start connects, subscribes to the control topic and runs control commands
// in arrival order until ctx is cancelled. A session still running at that
// point is stopped and reported.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting sleep agent",
		"service_name", a.cfg.ServiceName,
		"location", a.cfg.Location,
		"mqtt_broker", a.cfg.MQTTAddress())

	// Connect to MQTT broker
	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// Verify Redis connection
	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	if err := a.timeManager.ConfigureFromMQTT(a.mqtt); err != nil {
		a.logger.Warn("Failed to subscribe to test mode config", "error", err)
		// Not fatal - continue in real time
	}

	controlTopic := mqtt.ControlTopic(a.cfg.Location)
	if err := a.mqtt.Subscribe(controlTopic, 1, a.handleControl); err != nil {
		return fmt.Errorf("failed to subscribe to control topic: %w", err)
	}

	a.publishStatus(a.tracker.Status())

	if a.cfg.AutoStart {
		if err := a.startSession(ctx); err != nil {
			a.logger.Error("Failed to auto-start session", "error", err)
		}
	}

	a.logger.Info("Sleep agent started and waiting for commands", "control_topic", controlTopic)

	for {
		select {
		case command := <-a.commands:
			a.execute(ctx, command)
		case <-ctx.Done():
			a.shutdown()
			return nil
		}
	}
}

// shutdown reports a session that is still running when the agent stops
func (a *Agent) shutdown() {
	a.logger.Info("Sleep agent stopping")

	if a.tracker.State() == StateTracking {
		// The run context is gone; finish with a fresh one so the summary still goes out
		if err := a.stopSession(context.Background()); err != nil {
			a.logger.Error("Failed to stop session on shutdown", "error", err)
		}
	}
}

// Stop gracefully stops the agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping sleep agent")

	// Disconnect from MQTT
	a.mqtt.Disconnect()

	// Close Redis connection
	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Sleep agent stopped")
	return nil
}

// handleControl queues start/stop/toggle commands for the agent loop. It runs
// on the MQTT delivery goroutine, so it never subscribes or waits on acks.
func (a *Agent) handleControl(msg mqtt.Message) {
	command, err := parseCommand(msg.Payload())
	if err != nil {
		a.logger.Error("Failed to parse control message", "topic", msg.Topic(), "error", err)
		return
	}

	a.logger.Debug("Received control command", "command", command)

	select {
	case a.commands <- command:
	default:
		a.logger.Warn("Control queue full, dropping command", "command", command)
	}
}

// execute runs one control command on the agent loop
func (a *Agent) execute(ctx context.Context, command string) {
	defer a.handled.Add(1)

	var err error
	switch command {
	case "start":
		err = a.startSession(ctx)
	case "stop":
		err = a.stopSession(ctx)
	case "toggle":
		err = a.toggleSession(ctx)
	default:
		a.logger.Warn("Unknown control command", "command", command)
		return
	}

	switch {
	case errors.Is(err, ErrAlreadyTracking), errors.Is(err, ErrNotTracking):
		a.logger.Info("Control command ignored", "command", command, "reason", err)
	case err != nil:
		a.logger.Error("Control command failed", "command", command, "error", err)
	}
}

// parseCommand accepts {"command":"start"} or a bare "start"
func parseCommand(payload []byte) (string, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return "", fmt.Errorf("empty control payload")
	}

	if strings.HasPrefix(text, "{") {
		var cmd controlCommand
		if err := json.Unmarshal([]byte(text), &cmd); err != nil {
			return "", fmt.Errorf("failed to parse JSON: %w", err)
		}
		text = cmd.Command
	}

	return strings.ToLower(strings.TrimSpace(text)), nil
}

// startSession starts tracking
func (a *Agent) startSession(ctx context.Context) error {
	if _, err := a.tracker.Start(ctx); err != nil {
		return err
	}
	a.sessionStarted()
	return nil
}

// toggleSession flips the tracker in one step and reports whichever side ran
func (a *Agent) toggleSession(ctx context.Context) error {
	completed, err := a.tracker.Toggle(ctx)
	if err != nil {
		return err
	}
	if completed == nil {
		a.sessionStarted()
		return nil
	}
	return a.sessionStopped(completed)
}

// sessionStarted records the live session in Redis and announces it
func (a *Agent) sessionStarted() {
	status := a.tracker.Status()
	a.limiter.Reset(a.cfg.Location)
	a.mirrorSession(status)
	a.publishStatus(status)
}

// stopSession stops tracking and reports the finished session
func (a *Agent) stopSession(ctx context.Context) error {
	completed, err := a.tracker.Stop(ctx)
	if err != nil {
		return err
	}
	return a.sessionStopped(completed)
}

// sessionStopped publishes the summary and clears the live state
func (a *Agent) sessionStopped(completed *Completed) error {
	summary := completed.Session.Summary(completed.ID, a.cfg.Location)
	payload, err := summary.JSON()
	if err != nil {
		return fmt.Errorf("failed to build summary: %w", err)
	}

	// Summary is retained so a late display still gets the last night
	topic := mqtt.SessionTopic(a.cfg.Location)
	if err := a.mqtt.Publish(topic, 1, true, payload); err != nil {
		return fmt.Errorf("failed to publish session summary: %w", err)
	}

	a.logger.Info("Published session summary",
		"topic", topic,
		"session_id", summary.SessionID,
		"movements", summary.TotalMovements,
		"quality", summary.Quality)

	redisCtx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := a.redis.Del(redisCtx, redis.ActiveSessionKey(a.cfg.Location)); err != nil {
		a.logger.Warn("Failed to clear live session state", "location", a.cfg.Location, "error", err)
	}

	a.publishStatus(a.tracker.Status())
	return nil
}

// handleMovement runs on the sample delivery goroutine for every movement
func (a *Agent) handleMovement(evt MovementEvent) {
	a.logger.Debug("Movement detected", "session_id", evt.SessionID, "movements", evt.Count)

	interval := time.Duration(a.cfg.StatusIntervalMs) * time.Millisecond
	if !a.limiter.Allow(a.cfg.Location, interval) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	key := redis.ActiveSessionKey(a.cfg.Location)
	if err := a.redis.HSet(ctx, key, "movements", evt.Count); err != nil {
		a.logger.Warn("Failed to update live movement count", "location", a.cfg.Location, "error", err)
	} else if err := a.redis.Expire(ctx, key, activeSessionTTL); err != nil {
		a.logger.Warn("Failed to refresh TTL on live session state", "location", a.cfg.Location, "error", err)
	}

	a.publishStatus(Status{
		State:     StateTracking,
		SessionID: evt.SessionID,
		Movements: evt.Count,
		Elapsed:   evt.Elapsed,
	})
}

// mirrorSession writes the live session hash. Failures are logged only.
func (a *Agent) mirrorSession(status Status) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	key := redis.ActiveSessionKey(a.cfg.Location)
	fields := map[string]interface{}{
		"session_id": status.SessionID,
		"state":      string(status.State),
		"started_at": status.StartedAt.UTC().Format(time.RFC3339Nano),
		"movements":  status.Movements,
		"threshold":  a.cfg.MovementThreshold,
	}

	if err := a.redis.HSetFields(ctx, key, fields); err != nil {
		a.logger.Warn("Failed to store live session state", "location", a.cfg.Location, "error", err)
		return
	}
	if err := a.redis.Expire(ctx, key, activeSessionTTL); err != nil {
		a.logger.Warn("Failed to set TTL on live session state", "location", a.cfg.Location, "error", err)
	}
}

// publishStatus publishes live status (QoS 0, retained)
func (a *Agent) publishStatus(status Status) {
	payload, err := json.Marshal(statusPayload{
		State:          status.State,
		SessionID:      status.SessionID,
		Movements:      status.Movements,
		ElapsedSeconds: int64(status.Elapsed / time.Second),
		Timestamp:      a.timeManager.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		a.logger.Error("Failed to marshal status", "error", err)
		return
	}

	topic := mqtt.StatusTopic(a.cfg.Location)
	if err := a.mqtt.Publish(topic, 0, true, payload); err != nil {
		a.logger.Warn("Failed to publish status", "topic", topic, "error", err)
	}
}
