package observer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
)

// DefaultTopics covers everything the sleep agent consumes and produces
var DefaultTopics = []string{
	"sleep/#",
	"automation/raw/accelerometer/#",
}

// CapturedMessage represents a single MQTT message captured during observation
type CapturedMessage struct {
	Timestamp time.Time   `json:"timestamp"`
	Topic     string      `json:"topic"`
	Payload   interface{} `json:"payload"`
}

// Observer captures MQTT traffic for later analysis
type Observer struct {
	client    mqtt.Client
	topics    []string
	messages  []CapturedMessage
	startTime time.Time
	mutex     sync.RWMutex
	logger    *slog.Logger
}

// NewObserver creates an observer on a connected client. Nil topics
// means DefaultTopics.
func NewObserver(client mqtt.Client, topics []string, logger *slog.Logger) *Observer {
	if len(topics) == 0 {
		topics = DefaultTopics
	}

	return &Observer{
		client:   client,
		topics:   topics,
		messages: make([]CapturedMessage, 0),
		logger:   logger,
	}
}

// Start subscribes to the observed topics
func (o *Observer) Start() error {
	o.mutex.Lock()
	o.startTime = time.Now()
	o.mutex.Unlock()

	for i, topic := range o.topics {
		if err := o.client.Subscribe(topic, 0, o.messageHandler); err != nil {
			for _, done := range o.topics[:i] {
				_ = o.client.Unsubscribe(done)
			}
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	o.logger.Info("Observer subscribed", "topics", o.topics)
	return nil
}

// messageHandler processes incoming MQTT messages
func (o *Observer) messageHandler(msg mqtt.Message) {
	// Try to parse payload as JSON
	var payload interface{}
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		// If not JSON, store as string
		payload = string(msg.Payload())
	}

	now := time.Now()

	o.mutex.Lock()
	o.messages = append(o.messages, CapturedMessage{
		Timestamp: now,
		Topic:     msg.Topic(),
		Payload:   payload,
	})
	elapsed := now.Sub(o.startTime).Seconds()
	o.mutex.Unlock()

	o.logger.Debug("Captured message",
		"elapsed", fmt.Sprintf("%.2fs", elapsed),
		"topic", msg.Topic(),
		"payload", string(msg.Payload()))
}

// GetMessagesByTopic returns all messages for a specific topic
func (o *Observer) GetMessagesByTopic(topic string) []CapturedMessage {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var matches []CapturedMessage
	for _, msg := range o.messages {
		if msg.Topic == topic {
			matches = append(matches, msg)
		}
	}

	return matches
}

// GetAllMessages returns all captured messages
func (o *Observer) GetAllMessages() []CapturedMessage {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	// Return a copy
	messages := make([]CapturedMessage, len(o.messages))
	copy(messages, o.messages)
	return messages
}

// SaveCapture saves all captured messages to a JSON file
func (o *Observer) SaveCapture(filename string) error {
	o.mutex.RLock()
	data, err := json.MarshalIndent(o.messages, "", "  ")
	count := len(o.messages)
	o.mutex.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	if err := saveToFile(filename, data); err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}

	o.logger.Info("Saved capture", "messages", count, "path", filename)
	return nil
}

// Stop removes the observer's subscriptions
func (o *Observer) Stop() {
	for _, topic := range o.topics {
		if err := o.client.Unsubscribe(topic); err != nil {
			o.logger.Warn("Failed to unsubscribe", "topic", topic, "error", err)
		}
	}
}

// GetMessageCount returns the number of captured messages
func (o *Observer) GetMessageCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.messages)
}
