package sleep

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 11, 2, 22, 30, 0, 0, time.UTC)

func TestQualityDescription_Boundaries(t *testing.T) {
	tests := []struct {
		movements int64
		want      string
	}{
		{0, "Very Restful"},
		{9, "Very Restful"},
		{10, "Fairly Restful"},
		{49, "Fairly Restful"},
		{50, "Restless / High Movement"},
		{1000, "Restless / High Movement"},
	}

	for _, tt := range tests {
		session, err := NewSession(t0, t0.Add(time.Hour), tt.movements)
		require.NoError(t, err)

		assert.Equal(t, tt.want, session.QualityDescription(), "movements=%d", tt.movements)
	}
}

func TestClassify_CustomThresholds(t *testing.T) {
	thresholds := QualityThresholds{VeryRestfulBelow: 3, FairlyRestfulBelow: 6}

	assert.Equal(t, QualityVeryRestful, Classify(2, thresholds))
	assert.Equal(t, QualityFairlyRestful, Classify(3, thresholds))
	assert.Equal(t, QualityFairlyRestful, Classify(5, thresholds))
	assert.Equal(t, QualityRestless, Classify(6, thresholds))
}

func TestQualityThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds.Validate())
	assert.NoError(t, QualityThresholds{VeryRestfulBelow: 5, FairlyRestfulBelow: 5}.Validate())
	assert.Error(t, QualityThresholds{VeryRestfulBelow: -1, FairlyRestfulBelow: 5}.Validate())
	assert.Error(t, QualityThresholds{VeryRestfulBelow: 20, FairlyRestfulBelow: 10}.Validate())
}

func TestDurationDisplay(t *testing.T) {
	tests := []struct {
		name string
		span time.Duration
		want string
	}{
		{"zero", 0, "0 hour(s) 0 minute(s) 0 second(s)"},
		{"ten seconds", 10 * time.Second, "0 hour(s) 0 minute(s) 10 second(s)"},
		{"two hours five minutes thirty seconds", 2*time.Hour + 5*time.Minute + 30*time.Second, "2 hour(s) 5 minute(s) 30 second(s)"},
		{"just under an hour", 59*time.Minute + 59*time.Second, "0 hour(s) 59 minute(s) 59 second(s)"},
		{"sub-second part truncated", 3*time.Second + 999*time.Millisecond, "0 hour(s) 0 minute(s) 3 second(s)"},
		{"more than a day", 26*time.Hour + time.Minute, "26 hour(s) 1 minute(s) 0 second(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := NewSession(t0, t0.Add(tt.span), 0)
			require.NoError(t, err)

			assert.Equal(t, tt.want, session.DurationDisplay())
		})
	}
}

func TestDurationDisplay_EndBeforeStart(t *testing.T) {
	session, err := NewSession(t0, t0.Add(-5*time.Minute), 3)
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), session.Duration())
	assert.Equal(t, "0 hour(s) 0 minute(s) 0 second(s)", session.DurationDisplay())
}

func TestNewSession_RejectsNegativeMovements(t *testing.T) {
	session, err := NewSession(t0, t0.Add(time.Minute), -1)

	assert.Nil(t, session)
	assert.True(t, errors.Is(err, ErrNegativeMovements))
}

func TestNewSessionWithThresholds_RejectsInvalidThresholds(t *testing.T) {
	_, err := NewSessionWithThresholds(t0, t0, 0, QualityThresholds{VeryRestfulBelow: 10, FairlyRestfulBelow: 1})
	assert.Error(t, err)
}

func TestSession_Accessors(t *testing.T) {
	end := t0.Add(8 * time.Hour)
	session, err := NewSession(t0, end, 12)
	require.NoError(t, err)

	assert.Equal(t, t0, session.StartTime())
	assert.Equal(t, end, session.EndTime())
	assert.Equal(t, int64(12), session.TotalMovements())
	assert.Equal(t, QualityFairlyRestful, session.Quality())
}

func TestSummary(t *testing.T) {
	session, err := NewSession(t0, t0.Add(2*time.Hour+5*time.Minute+30*time.Second), 55)
	require.NoError(t, err)

	summary := session.Summary("abc-123", "bedroom")

	assert.Equal(t, "abc-123", summary.SessionID)
	assert.Equal(t, "bedroom", summary.Location)
	assert.Equal(t, int64(7530), summary.DurationSeconds)
	assert.Equal(t, "2 hour(s) 5 minute(s) 30 second(s)", summary.DurationDisplay)
	assert.Equal(t, QualityRestless, summary.Quality)
	assert.Equal(t, "2025-11-02T22:30:00Z", summary.StartTime)

	data, err := summary.JSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Restless / High Movement", decoded["quality"])
	assert.Equal(t, float64(55), decoded["total_movements"])

	assert.Contains(t, summary.Text(), "Movements: 55")
	assert.Contains(t, summary.Text(), "Quality: Restless / High Movement")
}
