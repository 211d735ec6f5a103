package scenario

import (
	"time"

	"github.com/saaga0h/sleep-tracker/internal/motion"
)

// Scenario is a scripted night: control commands and accelerometer samples
// published at fixed offsets, followed by checks on what the agent reported
type Scenario struct {
	Name         string                   `yaml:"name"`
	Description  string                   `yaml:"description"`
	Setup        SetupConfig              `yaml:"setup"`
	TestMode     *TestModeConfig          `yaml:"test_mode,omitempty"`
	Events       []Event                  `yaml:"events"`
	Wait         []WaitPeriod             `yaml:"wait"`
	Expectations map[string][]Expectation `yaml:"expectations"`
}

// SetupConfig defines where the scenario runs
type SetupConfig struct {
	Location string `yaml:"location"`
}

// TestModeConfig switches the agent to virtual time. Event and
// expectation times are virtual seconds, compressed by TimeScale.
type TestModeConfig struct {
	VirtualStart string `yaml:"virtual_start"`
	TimeScale    int    `yaml:"time_scale"`
}

// Event is a control command or a burst of samples published at Time
type Event struct {
	Time        int             `yaml:"time"`              // Seconds from start
	Command     string          `yaml:"command,omitempty"` // start, stop or toggle
	Samples     []motion.Sample `yaml:"samples,omitempty"`
	Magnitudes  []float64       `yaml:"magnitudes,omitempty"` // shorthand for samples along z
	Description string          `yaml:"description"`
}

// Category returns the event category
func (e *Event) Category() string {
	if e.Command != "" {
		return "command"
	}
	return "samples"
}

// AllSamples returns the explicit samples followed by the magnitudes
func (e *Event) AllSamples() []motion.Sample {
	samples := make([]motion.Sample, 0, len(e.Samples)+len(e.Magnitudes))
	samples = append(samples, e.Samples...)
	for _, m := range e.Magnitudes {
		samples = append(samples, motion.Sample{Z: m})
	}
	return samples
}

// WaitPeriod represents a pause in the scenario
type WaitPeriod struct {
	Time        int    `yaml:"time"` // Seconds from start
	Description string `yaml:"description"`
}

// Expectation is a check on the latest message of a topic, on a field of
// a Redis hash, or on a Redis hash being gone
type Expectation struct {
	Time    int                    `yaml:"time"`              // Seconds from start
	Topic   string                 `yaml:"topic,omitempty"`   // MQTT topic
	Payload map[string]interface{} `yaml:"payload,omitempty"` // Expected payload (supports special matchers)

	// Optional: Redis state checks
	RedisKey    string `yaml:"redis_key,omitempty"`
	RedisField  string `yaml:"redis_field,omitempty"`
	Expected    string `yaml:"expected,omitempty"`
	RedisAbsent bool   `yaml:"redis_absent,omitempty"`
}

// Describe returns a short label for reports
func (e Expectation) Describe() string {
	switch {
	case e.RedisKey != "" && e.RedisAbsent:
		return "redis " + e.RedisKey + " absent"
	case e.RedisKey != "":
		return "redis " + e.RedisKey + "." + e.RedisField
	default:
		return e.Topic
	}
}

// TestResult represents the outcome of running a scenario
type TestResult struct {
	Scenario     *Scenario           `json:"scenario"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	Passed       bool                `json:"passed"`
	PassedCount  int                 `json:"passed_count"`
	FailedCount  int                 `json:"failed_count"`
	Expectations []ExpectationResult `json:"expectations"`
}

// ExpectationResult represents the result of checking a single expectation
type ExpectationResult struct {
	Layer         string      `json:"layer"`
	Expectation   Expectation `json:"expectation"`
	Passed        bool        `json:"passed"`
	Reason        string      `json:"reason,omitempty"`
	ActualPayload interface{} `json:"actual_payload,omitempty"`
}
