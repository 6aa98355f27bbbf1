package internal

import (
	"errors"
	"sync"
	"time"
)

// FrameClock fires a tick callback at a fixed period on its own goroutine.
// Ticks never overlap: a slow tick delays the next one instead of queueing more.
type FrameClock struct {
	period time.Duration
	tick   func(n uint64)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewFrameClock creates a stopped clock. tick receives a 1-based tick counter.
func NewFrameClock(period time.Duration, tick func(n uint64)) *FrameClock {
	return &FrameClock{period: period, tick: tick}
}

// Start begins ticking. Starting a running clock is an error.
func (c *FrameClock) Start() error {
	if c.period <= 0 {
		return errors.New("frame clock period must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("frame clock already running")
	}
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.loop(c.stop, c.done)
	return nil
}

func (c *FrameClock) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Stop wins over a ready tick.
			select {
			case <-stop:
				return
			default:
			}
			n++
			c.tick(n)
		}
	}
}

// Stop halts the clock and waits for an in-progress tick to return.
// After Stop returns no tick is running or pending. Safe to call repeatedly.
// Must not be called from inside the tick callback.
func (c *FrameClock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	done := c.done
	c.mu.Unlock()

	<-done
}

// Running reports whether the clock is ticking
func (c *FrameClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Period returns the tick period
func (c *FrameClock) Period() time.Duration {
	return c.period
}
