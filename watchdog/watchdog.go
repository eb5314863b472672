package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/ardnew/softlaser/pkg"
)

// Feeder is fed once per controller loop iteration.
type Feeder interface {
	Feed()
}

// Nop is a Feeder that does nothing.
type Nop struct{}

// Feed implements Feeder.
func (Nop) Feed() {}

// DefaultTimeout is the software watchdog period.
const DefaultTimeout = 2 * time.Second

// Config holds software watchdog parameters. Zero fields take defaults.
type Config struct {
	Timeout time.Duration

	// Interval is how often Run checks for expiry. It defaults to a
	// quarter of Timeout.
	Interval time.Duration

	Clock pkg.Clock
}

// Software is a watchdog driven by a pkg.Clock.
type Software struct {
	cfg      Config
	onExpire func()

	mutex   sync.Mutex
	lastFed time.Time
	fired   bool
	expired uint64
}

// NewSoftware returns a watchdog that calls onExpire when it starves.
// The watchdog counts as fed at construction.
func NewSoftware(cfg Config, onExpire func()) *Software {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = cfg.Timeout / 4
	}
	if cfg.Clock == nil {
		cfg.Clock = pkg.SystemClock{}
	}
	return &Software{
		cfg:      cfg,
		onExpire: onExpire,
		lastFed:  cfg.Clock.Now(),
	}
}

// Feed implements Feeder. Feeding re-arms a watchdog that already fired.
func (w *Software) Feed() {
	w.mutex.Lock()
	w.lastFed = w.cfg.Clock.Now()
	w.fired = false
	w.mutex.Unlock()
}

// Expirations returns how many times the watchdog fired.
func (w *Software) Expirations() uint64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.expired
}

// Check fires the expiry callback if the watchdog starved. It fires once
// per stall and reports whether it fired.
func (w *Software) Check() bool {
	w.mutex.Lock()
	if w.fired || w.cfg.Clock.Now().Sub(w.lastFed) < w.cfg.Timeout {
		w.mutex.Unlock()
		return false
	}
	w.fired = true
	w.expired++
	w.mutex.Unlock()

	pkg.LogError(pkg.ComponentWatchdog, "watchdog expired", "timeout", w.cfg.Timeout)
	if w.onExpire != nil {
		w.onExpire()
	}
	return true
}

// Run calls Check every Interval until ctx is cancelled.
func (w *Software) Run(ctx context.Context) error {
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.Check()
		}
	}
}
