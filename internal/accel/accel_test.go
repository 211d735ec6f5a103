package accel

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/saaga0h/sleep-tracker/internal/motion"
	"github.com/saaga0h/sleep-tracker/pkg/mqtt/mqtttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type collector struct {
	mu      sync.Mutex
	samples []motion.Sample
}

func (c *collector) handle(s motion.Sample) {
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

func (c *collector) all() []motion.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]motion.Sample(nil), c.samples...)
}

func TestParseSample(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    motion.Sample
		wantErr bool
	}{
		{
			name:    "wrapped payload",
			payload: `{"data":{"x":0.01,"y":-0.02,"z":0.98}}`,
			want:    motion.Sample{X: 0.01, Y: -0.02, Z: 0.98},
		},
		{
			name:    "bare payload",
			payload: `{"x":0,"y":0,"z":1}`,
			want:    motion.Sample{Z: 1},
		},
		{
			name:    "explicit zero vector",
			payload: `{"data":{"x":0,"y":0,"z":0}}`,
			want:    motion.Sample{},
		},
		{
			name:    "missing axis",
			payload: `{"data":{"x":0,"y":0}}`,
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			payload: `{invalid json}`,
			wantErr: true,
		},
		{
			name:    "non-numeric axis",
			payload: `{"x":"a","y":0,"z":1}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSample([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMQTTSource_DeliversBetweenStartAndStop(t *testing.T) {
	client := mqtttest.NewClient()
	topic := "automation/raw/accelerometer/bedroom"
	src := NewMQTTSource(client, topic, testLogger())
	c := &collector{}

	assert.Equal(t, 0, client.Deliver(topic, []byte(`{"x":0,"y":0,"z":1}`)), "not subscribed before Start")

	require.NoError(t, src.Start(context.Background(), c.handle))
	assert.True(t, client.Subscribed(topic))

	client.Deliver(topic, []byte(`{"data":{"x":0,"y":0,"z":1.2}}`))
	client.Deliver(topic, []byte(`not json`))
	client.Deliver(topic, []byte(`{"x":0,"y":0,"z":0.8}`))

	require.NoError(t, src.Stop())
	assert.False(t, client.Subscribed(topic))

	client.Deliver(topic, []byte(`{"x":0,"y":0,"z":5}`))

	assert.Equal(t, []motion.Sample{{Z: 1.2}, {Z: 0.8}}, c.all())
}

func TestMQTTSource_StartTwice(t *testing.T) {
	client := mqtttest.NewClient()
	src := NewMQTTSource(client, "automation/raw/accelerometer/bedroom", testLogger())

	require.NoError(t, src.Start(context.Background(), func(motion.Sample) {}))
	err := src.Start(context.Background(), func(motion.Sample) {})
	assert.True(t, errors.Is(err, ErrAlreadyStarted))

	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop(), "second Stop is a no-op")
}

func TestMQTTSource_SubscribeFailure(t *testing.T) {
	client := mqtttest.NewClient()
	client.SubscribeErr = errors.New("broker unavailable")
	src := NewMQTTSource(client, "automation/raw/accelerometer/bedroom", testLogger())

	assert.Error(t, src.Start(context.Background(), func(motion.Sample) {}))

	client.SubscribeErr = nil
	assert.NoError(t, src.Start(context.Background(), func(motion.Sample) {}), "failed Start leaves the source restartable")
}

const replayYAML = `
name: short night
description: three samples, one movement
interval_ms: 0
samples:
  - {x: 0, y: 0, z: 1.0}
  - {x: 0.1, y: 0.2, z: 1.4}
magnitudes: [1.0]
`

func TestParseReplay(t *testing.T) {
	replay, err := ParseReplay([]byte(replayYAML))
	require.NoError(t, err)

	assert.Equal(t, "short night", replay.Name)
	assert.Equal(t, 1, replay.Repeat)
	assert.Equal(t, time.Duration(0), replay.Interval())
	assert.Equal(t, []motion.Sample{{Z: 1.0}, {X: 0.1, Y: 0.2, Z: 1.4}, {Z: 1.0}}, replay.Samples)
	assert.Nil(t, replay.Magnitudes)
	assert.Equal(t, 3, replay.TotalSamples())
}

func TestParseReplay_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no samples", "name: empty\n"},
		{"negative interval", "interval_ms: -5\nmagnitudes: [1.0]\n"},
		{"negative repeat", "repeat: -1\nmagnitudes: [1.0]\n"},
		{"malformed yaml", "samples: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReplay([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "night.yaml")
	require.NoError(t, os.WriteFile(path, []byte(replayYAML), 0o644))

	replay, err := LoadReplay(path)
	require.NoError(t, err)
	assert.Len(t, replay.Samples, 3)

	_, err = LoadReplay(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReplaySource_PlaysAllSamples(t *testing.T) {
	replay, err := ParseReplay([]byte("repeat: 2\nmagnitudes: [1.0, 1.2, 0.8]\n"))
	require.NoError(t, err)

	src := NewReplaySource(replay, testLogger())
	c := &collector{}
	require.NoError(t, src.Start(context.Background(), c.handle))

	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not finish")
	}
	require.NoError(t, src.Stop())

	got := c.all()
	require.Len(t, got, 6)
	assert.Equal(t, motion.Sample{Z: 0.8}, got[5])
}

func TestReplaySource_StopHaltsPlayback(t *testing.T) {
	replay, err := ParseReplay([]byte("interval_ms: 1000\nmagnitudes: [1.0, 1.2, 0.8]\n"))
	require.NoError(t, err)

	src := NewReplaySource(replay, testLogger())
	c := &collector{}
	require.NoError(t, src.Start(context.Background(), c.handle))
	assert.True(t, errors.Is(src.Start(context.Background(), c.handle), ErrAlreadyStarted))

	require.NoError(t, src.Stop())
	assert.Empty(t, c.all(), "first tick is a second away")

	// Restart plays from the beginning
	fast, err := ParseReplay([]byte("magnitudes: [1.5]\n"))
	require.NoError(t, err)
	src = NewReplaySource(fast, testLogger())
	require.NoError(t, src.Start(context.Background(), c.handle))
	<-src.Done()
	require.NoError(t, src.Stop())
	assert.Equal(t, []motion.Sample{{Z: 1.5}}, c.all())
}

func TestFeedSource(t *testing.T) {
	feed := NewFeedSource(motion.Sample{Z: 1}, motion.Sample{Z: 2})
	c := &collector{}

	assert.False(t, feed.Push(motion.Sample{Z: 3}), "push before start is dropped")

	require.NoError(t, feed.Start(context.Background(), c.handle))
	assert.True(t, errors.Is(feed.Start(context.Background(), c.handle), ErrAlreadyStarted))
	assert.True(t, feed.Push(motion.Sample{Z: 4}))
	require.NoError(t, feed.Stop())
	assert.False(t, feed.Push(motion.Sample{Z: 5}))

	assert.Equal(t, []motion.Sample{{Z: 1}, {Z: 2}, {Z: 4}}, c.all())
}
