// Package sleep holds the completed-session record and its derived views.
package sleep

import (
	"errors"
	"fmt"
	"time"
)

// ErrNegativeMovements is returned when a session is built with a negative
// movement count.
var ErrNegativeMovements = errors.New("total movements must not be negative")

// Session is a snapshot of a finished tracking run. It is immutable once
// constructed.
type Session struct {
	startTime      time.Time
	endTime        time.Time
	totalMovements int64
	thresholds     QualityThresholds
}

// NewSession builds a session using DefaultThresholds.
// An end time before the start time is accepted; the span is then shown as zero.
func NewSession(start, end time.Time, totalMovements int64) (*Session, error) {
	return NewSessionWithThresholds(start, end, totalMovements, DefaultThresholds)
}

// NewSessionWithThresholds builds a session that classifies its quality with
// the given thresholds.
func NewSessionWithThresholds(start, end time.Time, totalMovements int64, thresholds QualityThresholds) (*Session, error) {
	if totalMovements < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeMovements, totalMovements)
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quality thresholds: %w", err)
	}

	return &Session{
		startTime:      start,
		endTime:        end,
		totalMovements: totalMovements,
		thresholds:     thresholds,
	}, nil
}

func (s *Session) StartTime() time.Time  { return s.startTime }
func (s *Session) EndTime() time.Time    { return s.endTime }
func (s *Session) TotalMovements() int64 { return s.totalMovements }

// Duration returns the session span truncated to whole seconds.
func (s *Session) Duration() time.Duration {
	span := s.endTime.Sub(s.startTime)
	if span < 0 {
		return 0
	}
	return span.Truncate(time.Second)
}

// DurationDisplay formats the span as an hours/minutes/seconds breakdown,
// e.g. "2 hour(s) 5 minute(s) 30 second(s)". Hours are the total whole
// hours and do not wrap at 24, so a 26h session shows "26 hour(s)".
func (s *Session) DurationDisplay() string {
	total := int64(s.Duration() / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	return fmt.Sprintf("%d hour(s) %d minute(s) %d second(s)", hours, minutes, seconds)
}

// Quality classifies the session from its movement count.
func (s *Session) Quality() Quality {
	return Classify(s.totalMovements, s.thresholds)
}

// QualityDescription returns the quality label as display text.
func (s *Session) QualityDescription() string {
	return string(s.Quality())
}
