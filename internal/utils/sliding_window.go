package utils

import (
	"sync"
	"time"
)

type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now)
	return len(w.hits)
}

// TryAdd records a hit only while fewer than limit hits fall inside the window.
// When full it returns false and how long until the oldest hit ages out.
func (w *SlidingWindow) TryAdd(now time.Time, limit int) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now)
	if len(w.hits) >= limit {
		return false, w.hits[0].Add(w.window).Sub(now)
	}
	w.hits = append(w.hits, now)
	return true, 0
}

// Remove drops one recorded hit at exactly hit, newest first.
func (w *SlidingWindow) Remove(hit time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(w.hits) - 1; i >= 0; i-- {
		if w.hits[i].Equal(hit) {
			w.hits = append(w.hits[:i], w.hits[i+1:]...)
			return
		}
	}
}

// Cooldown rate limits by key, for example one SSU ping per guild every few minutes.
type Cooldown struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*SlidingWindow
}

// NewCooldown allows limit hits per key inside window. A limit or window of
// zero disables the cooldown.
func NewCooldown(limit int, window time.Duration) *Cooldown {
	return &Cooldown{limit: limit, window: window, windows: make(map[string]*SlidingWindow)}
}

func (c *Cooldown) Allow(key string, now time.Time) (bool, time.Duration) {
	if c == nil || c.limit <= 0 || c.window <= 0 {
		return true, 0
	}
	c.mu.Lock()
	w := c.windows[key]
	if w == nil {
		w = NewSlidingWindow(c.window)
		c.windows[key] = w
	}
	c.mu.Unlock()
	return w.TryAdd(now, c.limit)
}

// Release gives back a hit taken by Allow at the same instant, for callers
// whose guarded action failed.
func (c *Cooldown) Release(key string, at time.Time) {
	if c == nil || c.limit <= 0 || c.window <= 0 {
		return
	}
	c.mu.Lock()
	w := c.windows[key]
	c.mu.Unlock()
	if w != nil {
		w.Remove(at)
	}
}
