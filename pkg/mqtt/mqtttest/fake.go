// Package mqtttest provides an in-memory mqtt.Client for tests.
package mqtttest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/saaga0h/sleep-tracker/pkg/mqtt"
)

// Published is a message recorded by the fake client
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Client is a fake broker connection. Deliver routes a message to matching
// subscriptions synchronously on the caller's goroutine.
type Client struct {
	mu            sync.Mutex
	connected     bool
	subscriptions map[string]mqtt.MessageHandler
	published     []Published
	retained      map[string][]byte
	loopback      bool

	ConnectErr   error
	SubscribeErr error
}

// NewClient creates a disconnected fake client
func NewClient() *Client {
	return &Client{
		subscriptions: make(map[string]mqtt.MessageHandler),
		retained:      make(map[string][]byte),
	}
}

// NewLoopbackClient creates a fake that acts as its own broker: published
// messages are delivered to matching subscriptions, and retained messages
// are replayed to later subscribers. Several components can share it.
func NewLoopbackClient() *Client {
	c := NewClient()
	c.loopback = true
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if c.SubscribeErr != nil {
		return fmt.Errorf("subscribe %s: %w", topic, c.SubscribeErr)
	}
	c.mu.Lock()
	c.subscriptions[topic] = handler
	var replay []*message
	if c.loopback {
		for t, payload := range c.retained {
			if Match(topic, t) {
				replay = append(replay, &message{topic: t, payload: payload})
			}
		}
	}
	c.mu.Unlock()

	for _, m := range replay {
		handler(m)
	}
	return nil
}

func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()
	return nil
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	c.mu.Lock()
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	if c.loopback && retained {
		c.retained[topic] = payload
	}
	loopback := c.loopback
	c.mu.Unlock()

	if loopback {
		c.Deliver(topic, payload)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribed reports whether a subscription exists for topic
func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[topic]
	return ok
}

// Deliver sends payload to every handler whose filter matches topic.
// It returns the number of handlers invoked.
func (c *Client) Deliver(topic string, payload []byte) int {
	c.mu.Lock()
	var handlers []mqtt.MessageHandler
	for filter, h := range c.subscriptions {
		if Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(&message{topic: topic, payload: payload})
	}
	return len(handlers)
}

// Published returns messages published to topic, oldest first
func (c *Client) Published(topic string) []Published {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Published
	for _, p := range c.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Match reports whether an MQTT topic filter (with + and # wildcards) matches topic
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")

	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}

type message struct {
	topic   string
	payload []byte
}

func (m *message) Topic() string   { return m.topic }
func (m *message) Payload() []byte { return m.payload }
