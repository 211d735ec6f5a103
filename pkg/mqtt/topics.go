package mqtt

import "fmt"

const (
	// Raw accelerometer samples (input)
	TopicRawAccelerometer = "automation/raw/accelerometer/+"

	// Virtual clock configuration for scenario runs
	TopicTestTimeConfig = "sleep/test/time_config"
)

// RawAccelerometerTopic returns the sample topic for a location
// Pattern: automation/raw/accelerometer/{location}
func RawAccelerometerTopic(location string) string {
	return fmt.Sprintf("automation/raw/accelerometer/%s", location)
}

// ControlTopic returns the topic carrying start/stop commands
// Pattern: sleep/control/{location}
func ControlTopic(location string) string {
	return fmt.Sprintf("sleep/control/%s", location)
}

// SessionTopic returns the topic session summaries are published to (retained)
// Pattern: sleep/session/{location}
func SessionTopic(location string) string {
	return fmt.Sprintf("sleep/session/%s", location)
}

// StatusTopic returns the topic for live tracking status
// Pattern: sleep/status/{location}
func StatusTopic(location string) string {
	return fmt.Sprintf("sleep/status/%s", location)
}
