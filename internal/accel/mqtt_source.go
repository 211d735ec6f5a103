package accel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/saaga0h/sleep-tracker/internal/motion"
	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
)

// MQTTSource delivers samples published on an accelerometer topic
type MQTTSource struct {
	mqtt   mqtt.Client
	topic  string
	logger *slog.Logger

	// mu serialises delivery and guards handler, so Stop waits for an
	// in-flight sample to finish
	mu      sync.Mutex
	handler SampleHandler
	dropped int64
}

// NewMQTTSource creates a source reading samples from topic
func NewMQTTSource(mqttClient mqtt.Client, topic string, logger *slog.Logger) *MQTTSource {
	return &MQTTSource{
		mqtt:   mqttClient,
		topic:  topic,
		logger: logger,
	}
}

// Start subscribes to the sample topic
func (s *MQTTSource) Start(ctx context.Context, handler SampleHandler) error {
	s.mu.Lock()
	if s.handler != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.handler = handler
	s.dropped = 0
	s.mu.Unlock()

	if err := s.mqtt.Subscribe(s.topic, 0, s.handleMessage); err != nil {
		s.mu.Lock()
		s.handler = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to subscribe to samples: %w", err)
	}

	s.logger.Info("Accelerometer source started", "topic", s.topic)
	return nil
}

// Stop unsubscribes and stops delivery
func (s *MQTTSource) Stop() error {
	s.mu.Lock()
	if s.handler == nil {
		s.mu.Unlock()
		return nil
	}
	s.handler = nil
	dropped := s.dropped
	s.mu.Unlock()

	s.logger.Info("Accelerometer source stopped", "topic", s.topic, "dropped_messages", dropped)

	if err := s.mqtt.Unsubscribe(s.topic); err != nil {
		return fmt.Errorf("failed to unsubscribe from samples: %w", err)
	}
	return nil
}

func (s *MQTTSource) handleMessage(msg mqtt.Message) {
	sample, err := ParseSample(msg.Payload())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handler == nil {
		return
	}
	if err != nil {
		s.dropped++
		s.logger.Warn("Dropping malformed accelerometer message", "topic", msg.Topic(), "error", err)
		return
	}

	s.handler(sample)
}

type samplePayload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// ParseSample decodes an accelerometer payload. Both the wrapped form
// {"data":{"x":..,"y":..,"z":..}} and a bare {"x":..,"y":..,"z":..} object
// are accepted; all three axes are required.
func ParseSample(payload []byte) (motion.Sample, error) {
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return motion.Sample{}, fmt.Errorf("failed to parse JSON: %w", err)
	}

	body := payload
	if len(wrapped.Data) > 0 && string(wrapped.Data) != "null" {
		body = wrapped.Data
	}

	var p samplePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return motion.Sample{}, fmt.Errorf("failed to parse sample: %w", err)
	}
	if p.X == nil || p.Y == nil || p.Z == nil {
		return motion.Sample{}, fmt.Errorf("sample must contain x, y and z")
	}

	return motion.Sample{X: *p.X, Y: *p.Y, Z: *p.Z}, nil
}
