package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the read-only view of simulation time. The trajectory pipeline
// depends on this abstraction rather than a concrete clock type, enabling
// testability.
type Clock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// BoundaryPolicy describes what Now does when simulation time reaches the
// configured window edge.
type BoundaryPolicy int

const (
	// Unbounded lets simulation time run indefinitely forward.
	Unbounded BoundaryPolicy = iota
	// Clamp pins simulation time to the window edges.
	Clamp
	// Loop wraps simulation time back to the window start.
	Loop
)

// SimClock maps wall-clock time onto simulation time: an epoch origin, a
// playback multiplier, and a boundary policy over an optional window.
//
// Now derives simulation time from wall-clock deltas since the last
// re-anchor, never from a rendering callback, so time keeps advancing even
// when no frame is being drawn. Implements Clock.
type SimClock struct {
	mu sync.RWMutex

	epoch      time.Time // simulation time at the anchor instant
	anchor     time.Time // wall-clock instant of the last re-anchor
	multiplier float64
	policy     BoundaryPolicy
	winStart   time.Time
	winEnd     time.Time

	wallNow func() time.Time

	listeners []func(time.Time)
}

// Option customizes a SimClock.
type Option func(*SimClock)

// WithWallClock substitutes the wall-clock source. Tests use this to drive
// the clock deterministically.
func WithWallClock(fn func() time.Time) Option {
	return func(c *SimClock) {
		if fn != nil {
			c.wallNow = fn
		}
	}
}

// NewSimClock constructs a clock whose simulation time starts at epoch and
// advances at the given multiplier (1.0 = real time).
func NewSimClock(epoch time.Time, multiplier float64, opts ...Option) *SimClock {
	c := &SimClock{
		multiplier: multiplier,
		policy:     Unbounded,
		wallNow:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.epoch = epoch
	c.anchor = c.wallNow()
	return c
}

// Now returns the current simulation time. Implements Clock.
func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nowLocked()
}

// nowLocked computes simulation time; caller holds at least a read lock.
func (c *SimClock) nowLocked() time.Time {
	elapsed := c.wallNow().Sub(c.anchor)
	sim := c.epoch.Add(time.Duration(float64(elapsed) * c.multiplier))

	if c.winEnd.IsZero() || !c.winEnd.After(c.winStart) {
		return sim
	}
	switch c.policy {
	case Clamp:
		if sim.Before(c.winStart) {
			return c.winStart
		}
		if sim.After(c.winEnd) {
			return c.winEnd
		}
	case Loop:
		if sim.After(c.winEnd) {
			span := c.winEnd.Sub(c.winStart)
			over := sim.Sub(c.winStart) % span
			return c.winStart.Add(over)
		}
	}
	return sim
}

// SetEpoch re-anchors simulation time to t0 as of the current wall-clock
// instant.
func (c *SimClock) SetEpoch(t0 time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = t0
	c.anchor = c.wallNow()
}

// SetMultiplier changes the playback rate without a jump: the current
// simulation time becomes the new anchor point.
func (c *SimClock) SetMultiplier(m float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = c.nowLocked()
	c.anchor = c.wallNow()
	c.multiplier = m
}

// Multiplier returns the current playback rate.
func (c *SimClock) Multiplier() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.multiplier
}

// SetBoundaryPolicy selects the behavior at the window edges.
func (c *SimClock) SetBoundaryPolicy(p BoundaryPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = p
}

// SetWindow sets the simulation-time window the boundary policy applies
// to. A zero end disables the window.
func (c *SimClock) SetWindow(start, end time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.winStart = start
	c.winEnd = end
}

// AddListener registers a callback invoked on every Start tick with the
// simulation time at that tick.
func (c *SimClock) AddListener(fn func(time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start runs a ticker loop that notifies listeners until ctx is cancelled.
// The loop only reads the clock; simulation time advances from wall-clock
// deltas whether or not anyone is listening. It returns a channel that is
// closed when the loop exits.
func (c *SimClock) Start(ctx context.Context, tick time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := c.Now()
				c.mu.RLock()
				listeners := append([]func(time.Time){}, c.listeners...)
				c.mu.RUnlock()
				for _, fn := range listeners {
					fn(now)
				}
			}
		}
	}()
	return done
}
