package scenario

import (
	"fmt"
	"time"
)

var validCommands = map[string]bool{
	"start":  true,
	"stop":   true,
	"toggle": true,
}

// ValidateScenario performs validation checks on a loaded scenario
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("scenario description is required")
	}

	if s.Setup.Location == "" {
		return fmt.Errorf("setup.location is required")
	}

	if err := validateEvents(s.Events); err != nil {
		return fmt.Errorf("events validation failed: %w", err)
	}

	if err := validateWaitPeriods(s.Wait); err != nil {
		return fmt.Errorf("wait periods validation failed: %w", err)
	}

	if err := validateExpectations(s.Expectations); err != nil {
		return fmt.Errorf("expectations validation failed: %w", err)
	}

	if err := validateTestMode(s.TestMode); err != nil {
		return fmt.Errorf("test_mode validation failed: %w", err)
	}

	return nil
}

func validateEvents(events []Event) error {
	if len(events) == 0 {
		return fmt.Errorf("at least one event is required")
	}

	for i, event := range events {
		if event.Time < 0 {
			return fmt.Errorf("event %d: time cannot be negative", i)
		}

		if event.Description == "" {
			return fmt.Errorf("event %d: description is required", i)
		}

		hasSamples := len(event.Samples) > 0 || len(event.Magnitudes) > 0

		if event.Command != "" && hasSamples {
			return fmt.Errorf("event %d: cannot specify both 'command' and samples", i)
		}

		if event.Command == "" && !hasSamples {
			return fmt.Errorf("event %d: must have either 'command' or 'samples'/'magnitudes'", i)
		}

		if event.Command != "" && !validCommands[event.Command] {
			return fmt.Errorf("event %d: unknown command %q (must be start, stop or toggle)", i, event.Command)
		}
	}

	return nil
}

func validateWaitPeriods(waits []WaitPeriod) error {
	for i, wait := range waits {
		if wait.Time < 0 {
			return fmt.Errorf("wait period %d: time cannot be negative", i)
		}

		if wait.Description == "" {
			return fmt.Errorf("wait period %d: description is required", i)
		}
	}

	return nil
}

func validateExpectations(expectations map[string][]Expectation) error {
	if len(expectations) == 0 {
		return fmt.Errorf("at least one expectation is required")
	}

	for layer, exps := range expectations {
		if layer == "" {
			return fmt.Errorf("expectation layer name cannot be empty")
		}

		for i, exp := range exps {
			if exp.Time < 0 {
				return fmt.Errorf("layer %s, expectation %d: time cannot be negative", layer, i)
			}

			if exp.Topic == "" && exp.RedisKey == "" {
				return fmt.Errorf("layer %s, expectation %d: either topic or redis_key is required", layer, i)
			}

			if exp.Topic != "" && exp.RedisKey == "" && len(exp.Payload) == 0 {
				return fmt.Errorf("layer %s, expectation %d: MQTT expectations require payload", layer, i)
			}

			if exp.RedisKey != "" && !exp.RedisAbsent {
				if exp.RedisField == "" {
					return fmt.Errorf("layer %s, expectation %d: redis_field is required when redis_key is specified", layer, i)
				}
				if exp.Expected == "" {
					return fmt.Errorf("layer %s, expectation %d: expected is required when redis_key is specified", layer, i)
				}
			}
		}
	}

	return nil
}

func validateTestMode(tm *TestModeConfig) error {
	if tm == nil {
		return nil // test_mode is optional
	}

	if tm.VirtualStart == "" {
		return fmt.Errorf("virtual_start is required")
	}

	if _, err := time.Parse(time.RFC3339, tm.VirtualStart); err != nil {
		return fmt.Errorf("virtual_start must be valid ISO 8601 timestamp: %w", err)
	}

	if tm.TimeScale < 1 {
		return fmt.Errorf("time_scale must be >= 1 (got %d)", tm.TimeScale)
	}

	return nil
}
