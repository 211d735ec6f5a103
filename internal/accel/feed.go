package accel

import (
	"context"
	"sync"

	"github.com/saaga0h/sleep-tracker/internal/motion"
)

// FeedSource is an in-memory source. Samples given at construction are
// delivered synchronously inside Start; more can be pushed with Push while
// the source is running.
type FeedSource struct {
	initial []motion.Sample

	mu      sync.Mutex
	handler SampleHandler
}

// NewFeedSource creates a feed that replays samples on every Start
func NewFeedSource(samples ...motion.Sample) *FeedSource {
	return &FeedSource{initial: samples}
}

// Start delivers the initial samples and keeps the handler for Push
func (f *FeedSource) Start(ctx context.Context, handler SampleHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handler != nil {
		return ErrAlreadyStarted
	}
	f.handler = handler

	for _, s := range f.initial {
		if ctx.Err() != nil {
			break
		}
		handler(s)
	}
	return nil
}

// Push delivers one sample and reports whether the feed was running
func (f *FeedSource) Push(s motion.Sample) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handler == nil {
		return false
	}
	f.handler(s)
	return true
}

// Stop ends delivery
func (f *FeedSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handler = nil
	return nil
}
