package scenario

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: short-nap
description: Start, move twice, stop
setup:
  location: bedroom
test_mode:
  virtual_start: "2025-11-02T23:00:00Z"
  time_scale: 10
events:
  - time: 0
    command: start
    description: Start tracking
  - time: 5
    magnitudes: [1.3, 0.7]
    samples:
      - {x: 0, y: 0, z: 1}
    description: Two movements and a still sample
  - time: 10
    command: stop
    description: Stop tracking
expectations:
  session:
    - time: 12
      topic: sleep/session/bedroom
      payload:
        total_movements: 2
    - time: 12
      redis_key: sleep:active:bedroom
      redis_absent: true
`

func TestLoadScenarioFromBytes(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(validScenario))
	require.NoError(t, err)

	assert.Equal(t, "short-nap", s.Name)
	assert.Equal(t, "bedroom", s.Setup.Location)
	require.NotNil(t, s.TestMode)
	assert.Equal(t, 10, s.TestMode.TimeScale)

	require.Len(t, s.Events, 3)
	assert.Equal(t, "command", s.Events[0].Category())
	assert.Equal(t, "samples", s.Events[1].Category())

	samples := s.Events[1].AllSamples()
	require.Len(t, samples, 3)
	assert.Equal(t, 1.0, samples[0].Z, "explicit samples come first")
	assert.Equal(t, 1.3, samples[1].Z)
	assert.Equal(t, 0.7, samples[2].Z)

	exps := s.Expectations["session"]
	require.Len(t, exps, 2)
	assert.Equal(t, 2, exps[0].Payload["total_movements"])
	assert.Equal(t, "sleep/session/bedroom", exps[0].Describe())
	assert.Equal(t, "redis sleep:active:bedroom absent", exps[1].Describe())
}

func TestLoadScenarioFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(s string) string { return strings.Replace(s, "name: short-nap", "", 1) },
			wantErr: "scenario name is required",
		},
		{
			name:    "missing location",
			mutate:  func(s string) string { return strings.Replace(s, "location: bedroom", "", 1) },
			wantErr: "setup.location is required",
		},
		{
			name:    "unknown command",
			mutate:  func(s string) string { return strings.Replace(s, "command: start", "command: snooze", 1) },
			wantErr: "unknown command",
		},
		{
			name: "command with samples",
			mutate: func(s string) string {
				return strings.Replace(s, "command: stop", "command: stop\n    magnitudes: [1.0]", 1)
			},
			wantErr: "cannot specify both",
		},
		{
			name:    "negative time",
			mutate:  func(s string) string { return strings.Replace(s, "time: 10", "time: -1", 1) },
			wantErr: "time cannot be negative",
		},
		{
			name:    "bad virtual start",
			mutate:  func(s string) string { return strings.Replace(s, "2025-11-02T23:00:00Z", "tonight", 1) },
			wantErr: "virtual_start",
		},
		{
			name:    "zero time scale",
			mutate:  func(s string) string { return strings.Replace(s, "time_scale: 10", "time_scale: 0", 1) },
			wantErr: "time_scale must be >= 1",
		},
		{
			name: "topic without payload",
			mutate: func(s string) string {
				return strings.Replace(s, "      payload:\n        total_movements: 2\n", "", 1)
			},
			wantErr: "require payload",
		},
		{
			name:    "redis field missing",
			mutate:  func(s string) string { return strings.Replace(s, "redis_absent: true", "expected: tracking", 1) },
			wantErr: "redis_field is required",
		},
		{
			name:    "not yaml",
			mutate:  func(string) string { return "events: [" },
			wantErr: "failed to parse scenario YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenarioFromBytes([]byte(tt.mutate(validScenario)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_BundledScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		_, err := LoadScenario(path)
		assert.NoError(t, err, path)
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
