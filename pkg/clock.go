package pkg

import (
	"sync"
	"time"
)

// Clock supplies the monotonic time used for protocol deadlines and
// watchdog expiry.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host's monotonic clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// StepClock is a deterministic Clock that advances by a fixed step each time
// it is read. A zero step yields a clock that only moves via Advance.
type StepClock struct {
	mutex sync.Mutex
	now   time.Time
	step  time.Duration
}

// NewStepClock returns a StepClock starting at the Unix epoch.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{now: time.Unix(0, 0), step: step}
}

// Now returns the current time, then advances it by the step.
func (c *StepClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d.
func (c *StepClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}
