package tracker

import (
	"sync"
	"time"
)

// RateLimiter spaces out live status publishes per location
type RateLimiter struct {
	mu          sync.Mutex
	clock       Clock
	lastSentMap map[string]time.Time
}

// NewRateLimiter creates a new rate limiter reading time from clock
func NewRateLimiter(clock Clock) *RateLimiter {
	return &RateLimiter{
		clock:       clock,
		lastSentMap: make(map[string]time.Time),
	}
}

// Allow reports whether minInterval has passed since the last allowed
// publish for location, and records the publish if so
func (rl *RateLimiter) Allow(location string, minInterval time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	lastTime, exists := rl.lastSentMap[location]
	if exists && now.Sub(lastTime) < minInterval {
		return false
	}

	rl.lastSentMap[location] = now
	return true
}

// Reset forgets the last publish for location
func (rl *RateLimiter) Reset(location string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.lastSentMap, location)
}
