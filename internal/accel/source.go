// Package accel provides accelerometer sample sources: live samples over
// MQTT, recorded samples replayed from YAML, and in-memory feeds.
package accel

import (
	"context"
	"errors"

	"github.com/saaga0h/sleep-tracker/internal/motion"
)

// ErrAlreadyStarted is returned when Start is called on a running source.
var ErrAlreadyStarted = errors.New("sample source already started")

// SampleHandler receives samples one at a time. Sources never invoke it
// concurrently with itself.
type SampleHandler func(motion.Sample)

// Source pushes accelerometer samples to a handler between Start and Stop.
type Source interface {
	// Start begins delivering samples to handler
	Start(ctx context.Context, handler SampleHandler) error

	// Stop ends delivery. No samples are delivered after Stop returns.
	Stop() error
}
