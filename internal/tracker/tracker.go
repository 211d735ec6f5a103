// Package tracker drives sleep sessions: it owns the motion detector, feeds
// it from a sample source between start and stop, and produces the finished
// session record.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/sleep-tracker/internal/accel"
	"github.com/saaga0h/sleep-tracker/internal/motion"
	"github.com/saaga0h/sleep-tracker/internal/sleep"
)

var (
	// ErrAlreadyTracking is returned by Start while a session is running
	ErrAlreadyTracking = errors.New("session already tracking")

	// ErrNotTracking is returned by Stop when no session is running
	ErrNotTracking = errors.New("no session is tracking")
)

// State is the tracker's lifecycle state
type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
)

// MovementEvent describes a movement detected during a session
type MovementEvent struct {
	SessionID string
	Count     int64
	Elapsed   time.Duration
	Sample    motion.Sample
}

// Options configures a Tracker
type Options struct {
	Threshold float64
	Clock     Clock

	// Thresholds overrides sleep.DefaultThresholds when set. A zero value
	// is a real tuning, not "unset".
	Thresholds *sleep.QualityThresholds

	// OnMovement is called on the sample delivery goroutine for every
	// movement event. It must not call back into the Tracker.
	OnMovement func(MovementEvent)
}

// Completed is a finished session with its identifier
type Completed struct {
	ID              string
	Session         *sleep.Session
	RejectedSamples int64
}

// Status is a read-only view of the tracker for presentation
type Status struct {
	State     State
	SessionID string
	StartedAt time.Time
	Movements int64
	Elapsed   time.Duration
}

// Tracker runs one session at a time
type Tracker struct {
	detector   *motion.Detector
	source     accel.Source
	clock      Clock
	thresholds sleep.QualityThresholds
	onMovement func(MovementEvent)
	logger     *slog.Logger

	mu        sync.Mutex
	state     State
	sessionID string
	startedAt time.Time
}

// New creates an idle tracker reading from source
func New(source accel.Source, opts Options, logger *slog.Logger) (*Tracker, error) {
	thresholds := sleep.DefaultThresholds
	if opts.Thresholds != nil {
		thresholds = *opts.Thresholds
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quality thresholds: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = NewTimeManager(logger)
	}

	return &Tracker{
		detector:   motion.NewDetector(opts.Threshold),
		source:     source,
		clock:      clock,
		thresholds: thresholds,
		onMovement: opts.OnMovement,
		logger:     logger,
		state:      StateIdle,
	}, nil
}

// Start resets the detector and begins feeding it samples. The context
// bounds the source's delivery, not the session.
func (t *Tracker) Start(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(ctx)
}

func (t *Tracker) startLocked(ctx context.Context) (string, error) {
	if t.state == StateTracking {
		return t.sessionID, ErrAlreadyTracking
	}

	t.detector.Reset()
	sessionID := uuid.NewString()
	startedAt := t.clock.Now()

	t.state = StateTracking
	t.sessionID = sessionID
	t.startedAt = startedAt

	if err := t.source.Start(ctx, t.sampleHandler(sessionID, startedAt)); err != nil {
		t.state = StateIdle
		t.sessionID = ""
		return "", fmt.Errorf("failed to start sample source: %w", err)
	}

	t.logger.Info("Sleep session started",
		"session_id", sessionID,
		"threshold", t.detector.Threshold())

	return sessionID, nil
}

// sampleHandler closes over the session so delivery never takes t.mu
func (t *Tracker) sampleHandler(sessionID string, startedAt time.Time) accel.SampleHandler {
	return func(s motion.Sample) {
		if !t.detector.Ingest(s) {
			return
		}
		if t.onMovement != nil {
			t.onMovement(MovementEvent{
				SessionID: sessionID,
				Count:     t.detector.Count(),
				Elapsed:   t.clock.Now().Sub(startedAt),
				Sample:    s,
			})
		}
	}
}

// Stop halts sampling, snapshots the movement count and returns the
// finished session.
func (t *Tracker) Stop(ctx context.Context) (*Completed, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

func (t *Tracker) stopLocked() (*Completed, error) {
	if t.state != StateTracking {
		return nil, ErrNotTracking
	}

	if err := t.source.Stop(); err != nil {
		t.logger.Warn("Sample source did not stop cleanly", "session_id", t.sessionID, "error", err)
	}

	endedAt := t.clock.Now()
	movements := t.detector.Count()
	rejected := t.detector.Rejected()

	session, err := sleep.NewSessionWithThresholds(t.startedAt, endedAt, movements, t.thresholds)
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}

	completed := &Completed{
		ID:              t.sessionID,
		Session:         session,
		RejectedSamples: rejected,
	}

	t.state = StateIdle
	t.sessionID = ""

	t.logger.Info("Sleep session stopped",
		"session_id", completed.ID,
		"movements", movements,
		"rejected_samples", rejected,
		"duration", session.DurationDisplay(),
		"quality", session.QualityDescription())

	return completed, nil
}

// Toggle starts a session when idle and stops it when tracking. The
// returned Completed is nil when a session was started.
func (t *Tracker) Toggle(ctx context.Context) (*Completed, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateTracking {
		return t.stopLocked()
	}
	if _, err := t.startLocked(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

// State returns the current lifecycle state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Count returns the movements detected in the current (or last) session
func (t *Tracker) Count() int64 {
	return t.detector.Count()
}

// Status returns a snapshot of the tracker
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := Status{
		State:     t.state,
		Movements: t.detector.Count(),
	}
	if t.state == StateTracking {
		status.SessionID = t.sessionID
		status.StartedAt = t.startedAt
		status.Elapsed = t.clock.Now().Sub(t.startedAt)
	}
	return status
}
