package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/saaga0h/sleep-tracker/e2e/internal/scenario"
)

// TimelineEvent represents a single event in the timeline
type TimelineEvent struct {
	Elapsed     float64
	Layer       string
	Description string
	Success     bool // ignored unless IsCheck
	IsCheck     bool
}

// GenerateTimeline creates a human-readable timeline of test execution
func GenerateTimeline(result *scenario.TestResult, events []TimelineEvent) string {
	var sb strings.Builder

	duration := result.EndTime.Sub(result.StartTime)

	// Header
	sb.WriteString("╔══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(&sb, "║  Scenario: %-46s║\n", truncate(result.Scenario.Name, 46))
	fmt.Fprintf(&sb, "║  Location: %-46s║\n", truncate(result.Scenario.Setup.Location, 46))
	fmt.Fprintf(&sb, "║  Duration: %-46s║\n", formatDuration(duration))
	sb.WriteString("╚══════════════════════════════════════════════════════════╝\n\n")

	for _, event := range events {
		fmt.Fprintf(&sb, "[%7.2fs] %s %-10s: %s\n",
			event.Elapsed,
			icon(event),
			event.Layer,
			event.Description,
		)
	}

	sb.WriteString("\n=== Expectations ===\n")

	layerResults := make(map[string][]scenario.ExpectationResult)
	var layers []string
	for _, expResult := range result.Expectations {
		if _, seen := layerResults[expResult.Layer]; !seen {
			layers = append(layers, expResult.Layer)
		}
		layerResults[expResult.Layer] = append(layerResults[expResult.Layer], expResult)
	}
	sort.Strings(layers)

	for _, layer := range layers {
		fmt.Fprintf(&sb, "Layer: %s\n", layer)
		for _, expResult := range layerResults[layer] {
			mark := "✓"
			if !expResult.Passed {
				mark = "✗"
			}

			fmt.Fprintf(&sb, "  %s %s", mark, expResult.Expectation.Describe())

			if !expResult.Passed {
				fmt.Fprintf(&sb, ": %s", expResult.Reason)
			} else if conditions := describeConditions(expResult.Expectation); conditions != "" {
				fmt.Fprintf(&sb, ": %s", conditions)
			}

			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	status := "✓ ALL TESTS PASSED"
	if result.FailedCount > 0 {
		status = fmt.Sprintf("✗ %d TEST(S) FAILED", result.FailedCount)
	}

	sb.WriteString("╔══════════════════════════════════════════════════════════╗\n")
	sb.WriteString("║  SUMMARY                                                 ║\n")
	fmt.Fprintf(&sb, "║  Passed: %-48d║\n", result.PassedCount)
	fmt.Fprintf(&sb, "║  Failed: %-48d║\n", result.FailedCount)
	fmt.Fprintf(&sb, "║  Status: %-48s║\n", status)
	sb.WriteString("╚══════════════════════════════════════════════════════════╝\n")

	return sb.String()
}

func icon(event TimelineEvent) string {
	switch {
	case !event.IsCheck:
		return "→"
	case event.Success:
		return "✓"
	default:
		return "✗"
	}
}

// describeConditions lists the matched fields of a passed check, sorted by key
func describeConditions(exp scenario.Expectation) string {
	if exp.RedisKey != "" {
		if exp.RedisAbsent {
			return ""
		}
		return fmt.Sprintf("%s=%s", exp.RedisField, exp.Expected)
	}

	keys := make([]string, 0, len(exp.Payload))
	for key := range exp.Payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	for _, key := range keys {
		conditions = append(conditions, fmt.Sprintf("%s=%v", key, exp.Payload[key]))
	}
	return strings.Join(conditions, ", ")
}

// formatDuration formats a duration as human-readable string
func formatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	minutes := int(seconds / 60)
	remainingSeconds := seconds - float64(minutes*60)
	return fmt.Sprintf("%dm %.1fs", minutes, remainingSeconds)
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
