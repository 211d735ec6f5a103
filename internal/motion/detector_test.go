package motion

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDetector_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      float64
	}{
		{"configured", 0.1, 0.1},
		{"zero falls back", 0, DefaultThreshold},
		{"negative falls back", -0.5, DefaultThreshold},
		{"NaN falls back", math.NaN(), DefaultThreshold},
		{"Inf falls back", math.Inf(1), DefaultThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewDetector(tt.threshold).Threshold())
		})
	}
}

func TestIngest_WithinThreshold(t *testing.T) {
	samples := []Sample{
		{X: 0, Y: 0, Z: 1},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: -1, Z: 0},
		{X: 0, Y: 0, Z: 1.05},
		{X: 0, Y: 0, Z: 0.95},
		{X: 0.6, Y: 0.8, Z: 0},
		{X: 0.577, Y: 0.577, Z: 0.577},
	}

	d := NewDetector(DefaultThreshold)
	for _, s := range samples {
		assert.False(t, d.Ingest(s), "sample %+v should not be a movement", s)
	}
	assert.Equal(t, int64(0), d.Count())
}

func TestIngest_ExceedsThreshold(t *testing.T) {
	samples := []Sample{
		{X: 0, Y: 0, Z: 1.2},
		{X: 0, Y: 0, Z: 0.8},
		{X: 0.5, Y: 0.5, Z: 1.5},
		{X: 0, Y: 0, Z: -2},
		{X: 0, Y: 0, Z: 0},
	}

	d := NewDetector(DefaultThreshold)
	for i, s := range samples {
		before := d.Count()
		assert.True(t, d.Ingest(s), "sample %+v should be a movement", s)
		assert.Equal(t, before+1, d.Count())
		assert.Equal(t, int64(i+1), d.Count())
	}
}

func TestIngest_ZeroVectorCountsAsMovement(t *testing.T) {
	d := NewDetector(DefaultThreshold)

	assert.Equal(t, 1.0, Sample{}.Deviation())
	assert.True(t, d.Ingest(Sample{}))
	assert.Equal(t, int64(1), d.Count())
}

func TestIngest_NonFiniteSkipped(t *testing.T) {
	d := NewDetector(DefaultThreshold)

	samples := []Sample{
		{X: math.NaN(), Y: 0, Z: 1},
		{X: 0, Y: math.Inf(1), Z: 1},
		{X: 0, Y: 0, Z: math.Inf(-1)},
	}
	for _, s := range samples {
		assert.False(t, d.Ingest(s))
	}

	assert.Equal(t, int64(0), d.Count())
	assert.Equal(t, int64(3), d.Rejected())

	d.Reset()
	assert.Equal(t, int64(0), d.Rejected())
}

func TestReset(t *testing.T) {
	d := NewDetector(DefaultThreshold)
	for i := 0; i < 7; i++ {
		d.Ingest(Sample{Z: 2})
	}
	require.Equal(t, int64(7), d.Count())

	d.Reset()
	assert.Equal(t, int64(0), d.Count())

	d.Reset()
	assert.Equal(t, int64(0), d.Count())
}

func TestCount_Monotonic(t *testing.T) {
	d := NewDetector(DefaultThreshold)
	magnitudes := []float64{1.0, 1.3, 0.99, 0.5, 1.0, 1.02, 2.0, 1.0, 0.95, 1.08}

	last := d.Count()
	for _, m := range magnitudes {
		d.Ingest(Sample{Z: m})
		assert.GreaterOrEqual(t, d.Count(), last)
		last = d.Count()
	}
	assert.Equal(t, int64(4), last)
}

func TestIngest_MagnitudeSequence(t *testing.T) {
	d := NewDetector(DefaultThreshold)
	magnitudes := []float64{1.0, 1.0, 1.2, 1.0, 0.8, 1.3}
	wantEvents := []bool{false, false, true, false, true, true}

	for i, m := range magnitudes {
		assert.Equal(t, wantEvents[i], d.Ingest(Sample{Z: m}), "sample %d", i+1)
	}
	assert.Equal(t, int64(3), d.Count())
}

func TestIngest_CustomThreshold(t *testing.T) {
	d := NewDetector(0.25)

	assert.False(t, d.Ingest(Sample{Z: 1.2}))
	assert.True(t, d.Ingest(Sample{Z: 1.3}))
	assert.Equal(t, int64(1), d.Count())
}

func TestIngest_DeviationEqualToThresholdIsNotMovement(t *testing.T) {
	d := NewDetector(0.25)

	assert.False(t, d.Ingest(Sample{Z: 1.25}))
	assert.False(t, d.Ingest(Sample{Z: 0.75}))
	assert.Equal(t, int64(0), d.Count())
}

func TestIngest_ConcurrentReaders(t *testing.T) {
	d := NewDetector(DefaultThreshold)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			d.Ingest(Sample{Z: 1.5})
		}
	}()
	go func() {
		defer wg.Done()
		last := int64(0)
		for i := 0; i < 1000; i++ {
			c := d.Count()
			if c < last {
				t.Errorf("count went backwards: %d < %d", c, last)
				return
			}
			last = c
		}
	}()
	wg.Wait()

	assert.Equal(t, int64(1000), d.Count())
}
