package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/saaga0h/sleep-tracker/e2e/internal/checker"
	"github.com/saaga0h/sleep-tracker/e2e/internal/observer"
	"github.com/saaga0h/sleep-tracker/e2e/internal/reporter"
	"github.com/saaga0h/sleep-tracker/e2e/internal/scenario"
	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
	"github.com/saaga0h/sleep-tracker/pkg/redis"
)

// DefaultStartupDelay gives agents time to pick up the test mode config
const DefaultStartupDelay = 5 * time.Second

// Runner orchestrates test scenario execution against a running agent
type Runner struct {
	mqtt     mqtt.Client
	redis    redis.Client
	logger   *slog.Logger
	observer *observer.Observer
	player   *MQTTPlayer

	// StartupDelay is waited after publishing test mode, before the first event
	StartupDelay time.Duration
}

// step is one entry on the merged scenario timeline
type step struct {
	time  int
	order int // events, then waits, then checks at the same second
	event *scenario.Event
	wait  *scenario.WaitPeriod
	layer string
	exp   *scenario.Expectation
}

// NewRunner creates a runner on connected MQTT and Redis clients
func NewRunner(mqttClient mqtt.Client, redisClient redis.Client, logger *slog.Logger) *Runner {
	return &Runner{
		mqtt:         mqttClient,
		redis:        redisClient,
		logger:       logger,
		StartupDelay: DefaultStartupDelay,
	}
}

// Run executes a test scenario
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (*scenario.TestResult, []reporter.TimelineEvent, error) {
	r.logger.Info("Starting scenario", "name", s.Name, "description", s.Description)

	timeScale := 1
	if s.TestMode != nil {
		timeScale = s.TestMode.TimeScale
		r.logger.Info("Test mode enabled",
			"virtual_start", s.TestMode.VirtualStart,
			"time_scale", timeScale)
	}

	if err := r.redis.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.observer = observer.NewObserver(r.mqtt, nil, r.logger)
	r.player = NewMQTTPlayer(r.mqtt, s.Setup.Location, r.logger)

	// Publish test mode configuration to MQTT for agents BEFORE waiting for startup
	if s.TestMode != nil {
		if err := r.player.PublishTestMode(s.TestMode); err != nil {
			return nil, nil, err
		}
		defer func() {
			if err := r.player.ClearTestMode(); err != nil {
				r.logger.Warn("Failed to clear test mode", "error", err)
			}
		}()
	}

	if r.StartupDelay > 0 {
		r.logger.Info("Waiting for agents to start up", "delay", r.StartupDelay)
		if err := sleepCtx(ctx, r.StartupDelay); err != nil {
			return nil, nil, err
		}
	}

	if err := r.observer.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start observer: %w", err)
	}
	defer r.observer.Stop()

	startTime := time.Now()
	var timelineEvents []reporter.TimelineEvent
	var results []scenario.ExpectationResult

	for _, st := range buildTimeline(s) {
		if err := WaitUntil(ctx, startTime, st.time, timeScale); err != nil {
			return nil, nil, err
		}
		elapsed := GetElapsed(startTime)

		switch {
		case st.event != nil:
			desc := describeEvent(st.event)
			r.logger.Info("Publishing event", "elapsed", fmt.Sprintf("%.2fs", elapsed), "event", desc)

			if err := r.player.PublishEvent(*st.event); err != nil {
				return nil, nil, fmt.Errorf("failed to publish event: %w", err)
			}

			timelineEvents = append(timelineEvents, reporter.TimelineEvent{
				Elapsed:     elapsed,
				Layer:       st.event.Category(),
				Description: desc,
			})

		case st.wait != nil:
			r.logger.Info("Wait", "elapsed", fmt.Sprintf("%.2fs", elapsed), "description", st.wait.Description)

			timelineEvents = append(timelineEvents, reporter.TimelineEvent{
				Elapsed:     elapsed,
				Layer:       "wait",
				Description: st.wait.Description,
			})

		case st.exp != nil:
			result := r.check(ctx, st.layer, *st.exp)
			results = append(results, result)

			if result.Passed {
				r.logger.Info("Expectation passed", "layer", st.layer, "check", st.exp.Describe())
			} else {
				r.logger.Warn("Expectation failed", "layer", st.layer, "check", st.exp.Describe(), "reason", result.Reason)
			}

			timelineEvents = append(timelineEvents, reporter.TimelineEvent{
				Elapsed:     elapsed,
				Layer:       st.layer,
				Description: st.exp.Describe(),
				Success:     result.Passed,
				IsCheck:     true,
			})
		}
	}

	return summarize(s, startTime, time.Now(), results), timelineEvents, nil
}

// check routes an expectation to the Redis or MQTT checker
func (r *Runner) check(ctx context.Context, layer string, exp scenario.Expectation) scenario.ExpectationResult {
	var passed bool
	var reason string
	var actual interface{}

	if exp.RedisKey != "" {
		passed, reason, actual = checker.CheckRedisExpectation(ctx, r.redis, exp)
	} else {
		passed, reason, actual = checker.CheckExpectation(exp, r.observer.GetAllMessages())
	}

	return scenario.ExpectationResult{
		Layer:         layer,
		Expectation:   exp,
		Passed:        passed,
		Reason:        reason,
		ActualPayload: actual,
	}
}

// SaveCapture saves the MQTT capture to a file
func (r *Runner) SaveCapture(filename string) error {
	if r.observer == nil {
		return fmt.Errorf("observer not initialized")
	}
	return r.observer.SaveCapture(filename)
}

// buildTimeline merges events, waits and expectations in time order
func buildTimeline(s *scenario.Scenario) []step {
	var steps []step

	for i := range s.Events {
		steps = append(steps, step{time: s.Events[i].Time, order: 0, event: &s.Events[i]})
	}
	for i := range s.Wait {
		steps = append(steps, step{time: s.Wait[i].Time, order: 1, wait: &s.Wait[i]})
	}

	// Layers sorted so runs are reproducible
	layers := make([]string, 0, len(s.Expectations))
	for layer := range s.Expectations {
		layers = append(layers, layer)
	}
	sort.Strings(layers)

	for _, layer := range layers {
		exps := s.Expectations[layer]
		for i := range exps {
			steps = append(steps, step{time: exps[i].Time, order: 2, layer: layer, exp: &exps[i]})
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].time != steps[j].time {
			return steps[i].time < steps[j].time
		}
		return steps[i].order < steps[j].order
	})

	return steps
}

func describeEvent(e *scenario.Event) string {
	if e.Category() == "command" {
		return fmt.Sprintf("command %s (%s)", e.Command, e.Description)
	}
	return fmt.Sprintf("%d sample(s) (%s)", len(e.AllSamples()), e.Description)
}

func summarize(s *scenario.Scenario, start, end time.Time, results []scenario.ExpectationResult) *scenario.TestResult {
	passedCount := 0
	failedCount := 0
	for _, result := range results {
		if result.Passed {
			passedCount++
		} else {
			failedCount++
		}
	}

	return &scenario.TestResult{
		Scenario:     s,
		StartTime:    start,
		EndTime:      end,
		Passed:       failedCount == 0,
		PassedCount:  passedCount,
		FailedCount:  failedCount,
		Expectations: results,
	}
}
