package accel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/saaga0h/sleep-tracker/internal/motion"
	"gopkg.in/yaml.v3"
)

// Replay is a recorded sample stream loaded from YAML
type Replay struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	IntervalMs  int             `yaml:"interval_ms"` // delay between samples, 0 = as fast as possible
	Repeat      int             `yaml:"repeat"`      // number of passes over the samples, default 1
	Samples     []motion.Sample `yaml:"samples"`

	// Magnitudes is shorthand for samples along the z axis
	Magnitudes []float64 `yaml:"magnitudes"`
}

// LoadReplay loads a replay from a YAML file
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}

	return ParseReplay(data)
}

// ParseReplay parses replay YAML (useful for testing)
func ParseReplay(data []byte) (*Replay, error) {
	var replay Replay
	if err := yaml.Unmarshal(data, &replay); err != nil {
		return nil, fmt.Errorf("failed to parse replay YAML: %w", err)
	}

	if err := replay.normalize(); err != nil {
		return nil, fmt.Errorf("replay validation failed: %w", err)
	}

	return &replay, nil
}

func (r *Replay) normalize() error {
	for _, m := range r.Magnitudes {
		r.Samples = append(r.Samples, motion.Sample{Z: m})
	}
	r.Magnitudes = nil

	if len(r.Samples) == 0 {
		return fmt.Errorf("replay contains no samples")
	}
	if r.IntervalMs < 0 {
		return fmt.Errorf("interval_ms must not be negative, got %d", r.IntervalMs)
	}
	if r.Repeat < 0 {
		return fmt.Errorf("repeat must not be negative, got %d", r.Repeat)
	}
	if r.Repeat == 0 {
		r.Repeat = 1
	}
	return nil
}

// Interval returns the delay between samples
func (r *Replay) Interval() time.Duration {
	return time.Duration(r.IntervalMs) * time.Millisecond
}

// TotalSamples returns the number of samples delivered by a full replay
func (r *Replay) TotalSamples() int {
	return len(r.Samples) * r.Repeat
}

// ReplaySource plays a Replay on a background goroutine
type ReplaySource struct {
	replay *Replay
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReplaySource creates a source for the given replay
func NewReplaySource(replay *Replay, logger *slog.Logger) *ReplaySource {
	return &ReplaySource{
		replay: replay,
		logger: logger,
	}
}

// Start begins playback from the first sample
func (s *ReplaySource) Start(ctx context.Context, handler SampleHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.logger.Info("Replay started",
		"name", s.replay.Name,
		"samples", s.replay.TotalSamples(),
		"interval_ms", s.replay.IntervalMs)

	go s.run(runCtx, handler, done)
	return nil
}

// Stop halts playback and waits for the playback goroutine to exit
func (s *ReplaySource) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done
	return nil
}

// Done is closed when the current playback finishes or is stopped.
// It returns nil before the first Start.
func (s *ReplaySource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *ReplaySource) run(ctx context.Context, handler SampleHandler, done chan struct{}) {
	defer close(done)

	var ticker *time.Ticker
	if interval := s.replay.Interval(); interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	delivered := 0
	for pass := 0; pass < s.replay.Repeat; pass++ {
		for _, sample := range s.replay.Samples {
			if ticker != nil {
				select {
				case <-ctx.Done():
					s.logger.Info("Replay stopped", "name", s.replay.Name, "delivered", delivered)
					return
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				s.logger.Info("Replay stopped", "name", s.replay.Name, "delivered", delivered)
				return
			}

			handler(sample)
			delivered++
		}
	}

	s.logger.Info("Replay finished", "name", s.replay.Name, "delivered", delivered)
}
