// Package redistest provides an in-memory redis.Client for tests.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/saaga0h/sleep-tracker/pkg/redis"
)

// Client stores hashes in memory. Values are kept in their string form, as
// Redis returns them.
type Client struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	ttls   map[string]time.Duration
	closed bool

	PingErr error
}

var _ redis.Client = (*Client)(nil)

// NewClient creates an empty fake store
func NewClient() *Client {
	return &Client{
		hashes: make(map[string]map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (c *Client) HSet(ctx context.Context, key string, field string, value interface{}) error {
	return c.HSetFields(ctx, key, map[string]interface{}{field: value})
}

func (c *Client) HSetFields(ctx context.Context, key string, fields map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.hashes[key]
	if !ok {
		h = make(map[string]string)
		c.hashes[key] = h
	}
	for field, v := range fields {
		h[field] = fmt.Sprint(v)
	}
	return nil
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.hashes[key]))
	for field, v := range c.hashes[key] {
		out[field] = v
	}
	return out, nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.hashes, key)
		delete(c.ttls, key)
	}
	return nil
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.hashes[key]; ok {
		c.ttls[key] = ttl
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.PingErr
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// TTL returns the expiry set on key, zero when none
func (c *Client) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

// Closed reports whether Close was called
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
