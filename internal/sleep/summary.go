package sleep

import (
	"encoding/json"
	"fmt"
	"time"
)

// Summary is the report published when a session ends
type Summary struct {
	SessionID       string  `json:"session_id"`
	Location        string  `json:"location"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationSeconds int64   `json:"duration_seconds"`
	DurationDisplay string  `json:"duration_display"`
	TotalMovements  int64   `json:"total_movements"`
	Quality         Quality `json:"quality"`
}

// Summary builds the report for this session.
func (s *Session) Summary(sessionID, location string) Summary {
	return Summary{
		SessionID:       sessionID,
		Location:        location,
		StartTime:       s.startTime.UTC().Format(time.RFC3339Nano),
		EndTime:         s.endTime.UTC().Format(time.RFC3339Nano),
		DurationSeconds: int64(s.Duration() / time.Second),
		DurationDisplay: s.DurationDisplay(),
		TotalMovements:  s.totalMovements,
		Quality:         s.Quality(),
	}
}

// JSON serialises the summary for publishing.
func (s Summary) JSON() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session summary: %w", err)
	}
	return data, nil
}

// Text renders the summary the way a status screen shows it.
func (s Summary) Text() string {
	return fmt.Sprintf("Duration: %s\nMovements: %d\nQuality: %s",
		s.DurationDisplay, s.TotalMovements, s.Quality)
}
