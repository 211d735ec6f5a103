package tracker

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
)

// Clock supplies session timestamps
type Clock interface {
	Now() time.Time
}

// TimeManager is a clock that can run in virtual time, where a second of
// real time counts as timeScale seconds. Used to compress a night into a
// short scenario run.
type TimeManager struct {
	mu           sync.RWMutex
	testMode     bool
	virtualStart time.Time
	realStart    time.Time
	timeScale    int
	logger       *slog.Logger
}

// NewTimeManager creates a time manager running in real time
func NewTimeManager(logger *slog.Logger) *TimeManager {
	return &TimeManager{
		testMode:  false,
		realStart: time.Now(),
		timeScale: 1,
		logger:    logger,
	}
}

// ConfigureFromMQTT subscribes to virtual time configuration
func (tm *TimeManager) ConfigureFromMQTT(mqttClient mqtt.Client) error {
	handler := func(msg mqtt.Message) {
		tm.handleTestModeConfig(msg.Payload())
	}

	return mqttClient.Subscribe(mqtt.TopicTestTimeConfig, 1, handler)
}

// handleTestModeConfig processes virtual time configuration from MQTT
func (tm *TimeManager) handleTestModeConfig(payload []byte) {
	var config struct {
		VirtualStart string `json:"virtual_start"`
		TimeScale    int    `json:"time_scale"`
		TestMode     bool   `json:"test_mode"`
	}

	if err := json.Unmarshal(payload, &config); err != nil {
		tm.logger.Error("Failed to parse test mode config", "error", err)
		return
	}

	if !config.TestMode {
		tm.logger.Info("Test mode disabled")
		tm.mu.Lock()
		tm.testMode = false
		tm.mu.Unlock()
		return
	}

	virtualStart, err := time.Parse(time.RFC3339, config.VirtualStart)
	if err != nil {
		tm.logger.Error("Invalid virtual_start time", "error", err)
		return
	}

	tm.SetVirtualTime(virtualStart, config.TimeScale)

	tm.logger.Info("Test mode configured",
		"virtual_start", config.VirtualStart,
		"time_scale", config.TimeScale)
}

// SetVirtualTime switches to virtual time starting at start, advancing
// scale times faster than real time. Scales below 1 are treated as 1.
func (tm *TimeManager) SetVirtualTime(start time.Time, scale int) {
	if scale < 1 {
		scale = 1
	}

	tm.mu.Lock()
	tm.testMode = true
	tm.virtualStart = start
	tm.realStart = time.Now()
	tm.timeScale = scale
	tm.mu.Unlock()
}

// Now returns the current time (real or virtual)
func (tm *TimeManager) Now() time.Time {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if !tm.testMode {
		return time.Now()
	}

	realElapsed := time.Since(tm.realStart)
	virtualElapsed := realElapsed * time.Duration(tm.timeScale)
	return tm.virtualStart.Add(virtualElapsed)
}

// IsTestMode returns whether virtual time is active
func (tm *TimeManager) IsTestMode() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.testMode
}

// ManualClock only moves when advanced. The replay tool uses it to stamp
// sessions with sample-interval time instead of wall time.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at start
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
