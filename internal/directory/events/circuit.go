package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"residents/internal/directory/models"
)

// ErrCircuitOpen is returned while the wrapped sink is considered down.
var ErrCircuitOpen = errors.New("event sink circuit open")

// CircuitPublisher fails adds fast while a remote sink is unhealthy instead
// of letting every add wait out a produce timeout. The notification is never
// skipped: an open circuit fails the add like any other publish error.
type CircuitPublisher struct {
	next      Publisher
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

// NewCircuitPublisher opens after threshold consecutive failures and lets a
// trial publish through once cooldown has passed.
func NewCircuitPublisher(next Publisher, threshold int, cooldown time.Duration) *CircuitPublisher {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitPublisher{next: next, threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (c *CircuitPublisher) PublishPersonAdded(ctx context.Context, event models.PersonAdded) error {
	if !c.allow() {
		return ErrCircuitOpen
	}
	err := c.next.PublishPersonAdded(ctx, event)
	c.record(err)
	return err
}

// Open reports whether publishes are currently rejected.
func (c *CircuitPublisher) Open() bool {
	return !c.allow()
}

func (c *CircuitPublisher) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openUntil.IsZero() || !c.now().Before(c.openUntil)
}

func (c *CircuitPublisher) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.failures = 0
		c.openUntil = time.Time{}
		return
	}
	c.failures++
	if c.failures >= c.threshold {
		c.openUntil = c.now().Add(c.cooldown)
	}
}
