package executor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/saaga0h/sleep-tracker/e2e/internal/reporter"
	"github.com/saaga0h/sleep-tracker/e2e/internal/scenario"
	"github.com/saaga0h/sleep-tracker/internal/tracker"
	"github.com/saaga0h/sleep-tracker/pkg/config"
	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
	"github.com/saaga0h/sleep-tracker/pkg/mqtt/mqtttest"
	"github.com/saaga0h/sleep-tracker/pkg/redis/redistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startAgent runs a sleep agent on the shared loopback broker
func startAgent(t *testing.T, client *mqtttest.Client, store *redistest.Client) {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Location = "bedroom"
	cfg.StatusIntervalMs = 0

	agent, err := tracker.NewAgent(client, store, nil, cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = agent.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return client.Subscribed(mqtt.ControlTopic("bedroom"))
	}, 2*time.Second, 5*time.Millisecond)
}

const napScenario = `
name: nap
description: Short nap against an in-process agent
setup:
  location: bedroom
test_mode:
  virtual_start: "2025-11-02T13:00:00Z"
  time_scale: 20
events:
  - time: 0
    command: start
    description: Lie down
  - time: 1
    magnitudes: [1.0, 1.3, 1.0, 0.7, 1.02]
    description: Two movements
  - time: 3
    command: stop
    description: Get up
wait:
  - time: 4
    description: Settle
expectations:
  live:
    - time: 2
      redis_key: sleep:active:bedroom
      redis_field: state
      expected: tracking
    - time: 2
      topic: sleep/status/bedroom
      payload:
        state: tracking
        movements: 2
  session:
    - time: 4
      topic: sleep/session/bedroom
      payload:
        location: bedroom
        total_movements: 2
        quality: Very Restful
    - time: 4
      redis_key: sleep:active:bedroom
      redis_absent: true
    - time: 4
      topic: sleep/session/bedroom
      payload:
        quality: Restless / High Movement
`

func TestRunner_RunAgainstAgent(t *testing.T) {
	client := mqtttest.NewLoopbackClient()
	require.NoError(t, client.Connect(context.Background()))
	store := redistest.NewClient()
	startAgent(t, client, store)

	s, err := scenario.LoadScenarioFromBytes([]byte(napScenario))
	require.NoError(t, err)

	runner := NewRunner(client, store, testLogger())
	runner.StartupDelay = 0

	result, timeline, err := runner.Run(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, result.Expectations, 5)
	assert.Equal(t, 4, result.PassedCount)
	assert.Equal(t, 1, result.FailedCount, "the deliberately wrong quality check fails")
	assert.False(t, result.Passed)

	for _, r := range result.Expectations {
		if r.Expectation.Payload["quality"] == "Restless / High Movement" {
			assert.False(t, r.Passed)
			assert.Contains(t, r.Reason, "quality")
			continue
		}
		assert.True(t, r.Passed, "%s: %s", r.Expectation.Describe(), r.Reason)
	}

	var checks, published int
	for _, e := range timeline {
		if e.IsCheck {
			checks++
		} else if e.Layer == "command" || e.Layer == "samples" {
			published++
		}
	}
	assert.Equal(t, 5, checks)
	assert.Equal(t, 3, published)

	text := reporter.GenerateTimeline(result, timeline)
	assert.Contains(t, text, "Scenario: nap")
	assert.Contains(t, text, "1 TEST(S) FAILED")

	capture := filepath.Join(t.TempDir(), "captures", "nap.json")
	require.NoError(t, runner.SaveCapture(capture))
	_, err = os.Stat(capture)
	assert.NoError(t, err)

	// Test mode is cleared once the run is over
	last := client.Published(mqtt.TopicTestTimeConfig)
	require.NotEmpty(t, last)
	assert.JSONEq(t, `{"test_mode":false}`, string(last[len(last)-1].Payload))
}

func TestRunner_RedisDown(t *testing.T) {
	store := redistest.NewClient()
	store.PingErr = assert.AnError

	s, err := scenario.LoadScenarioFromBytes([]byte(napScenario))
	require.NoError(t, err)

	runner := NewRunner(mqtttest.NewLoopbackClient(), store, testLogger())
	_, _, err = runner.Run(context.Background(), s)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRunner_Cancelled(t *testing.T) {
	s, err := scenario.LoadScenarioFromBytes([]byte(napScenario))
	require.NoError(t, err)
	s.TestMode.TimeScale = 1

	runner := NewRunner(mqtttest.NewLoopbackClient(), redistest.NewClient(), testLogger())
	runner.StartupDelay = 0

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err = runner.Run(ctx, s)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildTimeline_Order(t *testing.T) {
	s, err := scenario.LoadScenarioFromBytes([]byte(napScenario))
	require.NoError(t, err)

	steps := buildTimeline(s)
	require.Len(t, steps, 9)

	for i := 1; i < len(steps); i++ {
		prev, cur := steps[i-1], steps[i]
		assert.True(t, prev.time < cur.time || (prev.time == cur.time && prev.order <= cur.order),
			"step %d out of order", i)
	}

	// At t=4 the wait comes before the session checks
	var atFour []int
	for _, st := range steps {
		if st.time == 4 {
			atFour = append(atFour, st.order)
		}
	}
	assert.Equal(t, []int{1, 2, 2, 2}, atFour)
}

func TestScaledOffset(t *testing.T) {
	assert.Equal(t, 10*time.Second, ScaledOffset(600, 60))
	assert.Equal(t, 5*time.Millisecond, ScaledOffset(1, 200))
	assert.Equal(t, 3*time.Second, ScaledOffset(3, 0), "scale below one means real time")
}

func TestWaitUntil_PastTarget(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	assert.NoError(t, WaitUntil(context.Background(), start, 1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, WaitUntil(ctx, time.Now(), 60, 1), context.Canceled)
}
