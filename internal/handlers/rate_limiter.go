package handlers

import (
	"strings"
	"sync"
	"time"
)

// uploadThrottle caps how many upload URLs one caller can mint per window.
type uploadThrottle interface {
	// Take consumes a slot for key. When none is left it reports how long until the window resets.
	Take(key string) (ok bool, retryAfter time.Duration)
}

// windowCounter is a fixed window counter per caller, kept in process memory. Windows that have
// ended are swept whenever a new one opens.
type windowCounter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]*callerWindow
}

type callerWindow struct {
	used    int
	closeAt time.Time
}

func newWindowCounter(limit int, window time.Duration, clock func() time.Time) uploadThrottle {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowCounter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]*callerWindow),
	}
}

func (c *windowCounter) Take(key string) (bool, time.Duration) {
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if !ok || !now.Before(w.closeAt) {
		c.sweep(now)
		c.windows[key] = &callerWindow{used: 1, closeAt: now.Add(c.window)}
		return true, 0
	}
	if w.used >= c.limit {
		return false, w.closeAt.Sub(now)
	}
	w.used++
	return true, 0
}

func (c *windowCounter) sweep(now time.Time) {
	for key, w := range c.windows {
		if !now.Before(w.closeAt) {
			delete(c.windows, key)
		}
	}
}
