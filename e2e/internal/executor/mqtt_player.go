package executor

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/saaga0h/sleep-tracker/e2e/internal/scenario"
	"github.com/saaga0h/sleep-tracker/internal/motion"
	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
)

// MQTTPlayer publishes scenario events the way phones and remotes do
type MQTTPlayer struct {
	client   mqtt.Client
	location string
	logger   *slog.Logger
}

// NewMQTTPlayer creates a player publishing for location on a connected client
func NewMQTTPlayer(client mqtt.Client, location string, logger *slog.Logger) *MQTTPlayer {
	return &MQTTPlayer{
		client:   client,
		location: location,
		logger:   logger,
	}
}

// PublishEvent publishes a command or a burst of samples
func (p *MQTTPlayer) PublishEvent(event scenario.Event) error {
	switch event.Category() {
	case "command":
		return p.PublishCommand(event.Command)
	default:
		for _, sample := range event.AllSamples() {
			if err := p.PublishSample(sample); err != nil {
				return err
			}
		}
		return nil
	}
}

// PublishCommand publishes {"command": cmd} on the control topic
func (p *MQTTPlayer) PublishCommand(cmd string) error {
	payload, err := json.Marshal(map[string]string{"command": cmd})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := mqtt.ControlTopic(p.location)
	// Publish with QoS 1 to ensure delivery
	if err := p.client.Publish(topic, 1, false, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug("Published command", "topic", topic, "command", cmd)
	return nil
}

// PublishSample publishes one accelerometer reading in the collector's
// wrapped format
func (p *MQTTPlayer) PublishSample(sample motion.Sample) error {
	payload, err := json.Marshal(map[string]interface{}{
		"sensorType": "accelerometer",
		"location":   p.location,
		"data":       sample,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	topic := mqtt.RawAccelerometerTopic(p.location)
	if err := p.client.Publish(topic, 0, false, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// PublishTestMode publishes the retained virtual time configuration
func (p *MQTTPlayer) PublishTestMode(tm *scenario.TestModeConfig) error {
	payload, err := json.Marshal(map[string]interface{}{
		"virtual_start": tm.VirtualStart,
		"time_scale":    tm.TimeScale,
		"test_mode":     true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal test mode config: %w", err)
	}

	if err := p.client.Publish(mqtt.TopicTestTimeConfig, 1, true, payload); err != nil {
		return fmt.Errorf("failed to publish test mode config: %w", err)
	}

	p.logger.Info("Published test mode configuration", "topic", mqtt.TopicTestTimeConfig)
	return nil
}

// ClearTestMode switches agents back to real time
func (p *MQTTPlayer) ClearTestMode() error {
	return p.client.Publish(mqtt.TopicTestTimeConfig, 1, true, []byte(`{"test_mode":false}`))
}
