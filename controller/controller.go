package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/softlaser/control"
	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/player"
	"github.com/ardnew/softlaser/watchdog"
)

// Default loop parameters.
const (
	DefaultHostBudget = 4
	DefaultPeriod     = 100 * time.Microsecond
)

// Config wires the optional collaborators of the main loop.
type Config struct {
	// Watchdog is fed every step. Nil uses watchdog.Nop.
	Watchdog watchdog.Feeder

	// Host and Port enable the host control channel when both are set.
	Host *control.Handler
	Port control.Port

	// HostBudget bounds command and data packets serviced per step.
	HostBudget int

	// Period is the pause between steps in Run.
	Period time.Duration
}

// Stats counts loop activity.
type Stats struct {
	Steps  uint64
	Paused uint64 // steps skipped for host activity
	Resets uint64
}

// Controller owns the main loop.
type Controller struct {
	cfg    Config
	player *player.Player

	resetReq atomic.Bool
	stats    Stats

	mutex   sync.Mutex
	running bool
}

// New returns a Controller driving p.
func New(p *player.Player, cfg Config) *Controller {
	if cfg.Watchdog == nil {
		cfg.Watchdog = watchdog.Nop{}
	}
	if cfg.HostBudget <= 0 {
		cfg.HostBudget = DefaultHostBudget
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	return &Controller{cfg: cfg, player: p}
}

// Player returns the orchestrator.
func (c *Controller) Player() *player.Player {
	return c.player
}

// Stats returns the loop counters. It must be called from the loop
// goroutine or after Run returns.
func (c *Controller) Stats() Stats {
	return c.stats
}

// RequestReset asks the loop to restart playback cold at its next step.
// It is safe to call from any goroutine, typically a watchdog expiry.
func (c *Controller) RequestReset() {
	c.resetReq.Store(true)
}

// Step runs one loop iteration and returns the orchestrator state.
func (c *Controller) Step() player.State {
	c.stats.Steps++
	if c.resetReq.Swap(false) {
		c.stats.Resets++
		pkg.LogWarn(pkg.ComponentController, "reset", "state", c.player.State().String())
		c.player.Reset()
	}

	c.cfg.Watchdog.Feed()

	if c.cfg.Host != nil {
		if c.cfg.Port != nil {
			c.cfg.Host.Service(c.cfg.Port, c.cfg.HostBudget)
		}
		if c.cfg.Host.HostActive() {
			c.stats.Paused++
			return c.player.State()
		}
	}
	return c.player.Tick()
}

// Run steps the loop every Period until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.mutex.Lock()
	if c.running {
		c.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}
	c.running = true
	c.mutex.Unlock()

	defer func() {
		c.mutex.Lock()
		c.running = false
		c.mutex.Unlock()
	}()

	pkg.LogDebug(pkg.ComponentController, "main loop started")
	t := time.NewTicker(c.cfg.Period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			pkg.LogDebug(pkg.ComponentController, "main loop stopped")
			return c.player.Close()
		case <-t.C:
			c.Step()
		}
	}
}

// IsRunning returns true while Run is active.
func (c *Controller) IsRunning() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.running
}
