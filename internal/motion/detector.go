// Package motion turns a stream of accelerometer samples into discrete
// movement events.
package motion

import (
	"math"
	"sync/atomic"
)

// DefaultThreshold is the deviation from 1g (in gravity units) a sample must
// exceed to count as a movement.
const DefaultThreshold = 0.07

// Gravity is the magnitude of a stationary accelerometer reading.
const Gravity = 1.0

// Sample is a single tri-axial accelerometer reading in gravity units.
type Sample struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Magnitude returns the length of the acceleration vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Deviation returns how far the magnitude is from 1g.
func (s Sample) Deviation() float64 {
	return math.Abs(s.Magnitude() - Gravity)
}

// finite reports whether all three components are finite numbers.
func (s Sample) finite() bool {
	return isFinite(s.X) && isFinite(s.Y) && isFinite(s.Z)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Detector counts samples whose deviation from gravity exceeds a fixed
// threshold. There is no smoothing or debounce, so a single noisy sample is
// one event.
//
// Ingest may run on a sensor callback goroutine while another goroutine
// reads Count; the counters are atomic.
type Detector struct {
	threshold float64
	movements atomic.Int64
	rejected  atomic.Int64
}

// NewDetector creates a detector with the given threshold. Non-positive or
// non-finite thresholds fall back to DefaultThreshold.
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 || !isFinite(threshold) {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Threshold returns the configured sensitivity.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Reset zeroes the movement and rejection counters.
func (d *Detector) Reset() {
	d.movements.Store(0)
	d.rejected.Store(0)
}

// Ingest processes one sample and reports whether it was a movement event.
// Samples with a NaN or infinite component are skipped without counting.
func (d *Detector) Ingest(s Sample) bool {
	if !s.finite() {
		d.rejected.Add(1)
		return false
	}

	if s.Deviation() > d.threshold {
		d.movements.Add(1)
		return true
	}
	return false
}

// Count returns the number of movement events since the last reset.
func (d *Detector) Count() int64 {
	return d.movements.Load()
}

// Rejected returns the number of non-finite samples skipped since the last reset.
func (d *Detector) Rejected() int64 {
	return d.rejected.Load()
}
