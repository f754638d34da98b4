// Package ratelimit implements in-process sliding-window admission control.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

// DefaultSweepInterval bounds how often idle identifiers are reclaimed.
const DefaultSweepInterval = 5 * time.Minute

// Config defines a single limiter instance.
type Config struct {
	Name          string
	MaxRequests   int
	Window        time.Duration
	SweepInterval time.Duration
}

// Validate reports whether the configuration describes a usable limiter.
func (c Config) Validate() error {
	if c.MaxRequests <= 0 {
		return errors.New("ratelimit: max requests must be positive")
	}
	if c.Window <= 0 {
		return errors.New("ratelimit: window must be positive")
	}
	return nil
}

// window holds accepted attempt timestamps for one identifier in ascending order.
type window struct {
	mu      sync.Mutex
	hits    []time.Time
	removed bool
}

// prune drops hits that are at least one window old. Caller holds w.mu.
func (w *window) prune(now time.Time, size time.Duration) {
	keep := 0
	for keep < len(w.hits) && now.Sub(w.hits[keep]) >= size {
		keep++
	}
	if keep == 0 {
		return
	}
	remaining := copy(w.hits, w.hits[keep:])
	clear(w.hits[remaining:])
	w.hits = w.hits[:remaining]
}

// SlidingWindow admits at most MaxRequests attempts per identifier in any
// trailing Window. Rejected attempts are not recorded. Windows that have gone
// empty are reclaimed opportunistically, at most once per SweepInterval.
type SlidingWindow struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

var _ port.RateLimiter = (*SlidingWindow)(nil)

// NewSlidingWindow constructs a limiter from cfg.
func NewSlidingWindow(cfg Config) (*SlidingWindow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &SlidingWindow{
		cfg:       cfg,
		now:       time.Now,
		windows:   make(map[string]*window),
		lastSweep: time.Now(),
	}, nil
}

// WithClock overrides the time source.
func (l *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	if now != nil {
		l.mu.Lock()
		l.now = now
		l.lastSweep = now()
		l.mu.Unlock()
	}
	return l
}

// Config returns the limiter configuration.
func (l *SlidingWindow) Config() Config {
	return l.cfg
}

// Admit records an attempt for identifier when it fits in the window.
func (l *SlidingWindow) Admit(_ context.Context, identifier string) (port.RateLimitDecision, error) {
	for {
		now, w := l.acquire(identifier)

		w.mu.Lock()
		if w.removed {
			// Reclaimed by a sweep between lookup and lock; fetch a fresh window.
			w.mu.Unlock()
			continue
		}
		decision := l.admitLocked(w, now)
		w.mu.Unlock()
		return decision, nil
	}
}

func (l *SlidingWindow) admitLocked(w *window, now time.Time) port.RateLimitDecision {
	w.prune(now, l.cfg.Window)

	decision := port.RateLimitDecision{Limit: l.cfg.MaxRequests}
	if len(w.hits) >= l.cfg.MaxRequests {
		decision.ResetAt = w.hits[0].Add(l.cfg.Window)
		decision.RetryAfter = max(decision.ResetAt.Sub(now), 0)
		return decision
	}

	w.hits = append(w.hits, now)
	decision.Allowed = true
	decision.Remaining = l.cfg.MaxRequests - len(w.hits)
	decision.ResetAt = w.hits[0].Add(l.cfg.Window)
	return decision
}

// acquire returns the current time and the window for identifier, creating it
// when missing. It also runs the periodic sweep when due.
func (l *SlidingWindow) acquire(identifier string) (time.Time, *window) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval {
		l.sweepLocked(now)
	}

	w, ok := l.windows[identifier]
	if !ok {
		w = &window{}
		l.windows[identifier] = w
	}
	return now, w
}

// Sweep prunes every window and drops the empty ones. It returns the number of
// identifiers removed.
func (l *SlidingWindow) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(l.now())
}

func (l *SlidingWindow) sweepLocked(now time.Time) int {
	l.lastSweep = now
	removed := 0
	for identifier, w := range l.windows {
		w.mu.Lock()
		w.prune(now, l.cfg.Window)
		if len(w.hits) == 0 {
			w.removed = true
			delete(l.windows, identifier)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Tracked returns how many identifiers currently hold a window.
func (l *SlidingWindow) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
