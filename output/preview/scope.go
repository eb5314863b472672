//go:build !headless

package preview

import (
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/ardnew/softlaser/queue"
)

// Scope is a persistence-scope window fed by the output clock.
type Scope struct {
	cfg Config

	mutex   sync.Mutex
	canvas  *Canvas
	pending []queue.Sample
	dropped uint64

	window *ebiten.Image
	closed atomic.Bool
}

// New creates a Scope. The window opens when Run is called.
func New(cfg Config) *Scope {
	cfg = cfg.withDefaults()
	return &Scope{
		cfg:     cfg,
		canvas:  NewCanvas(cfg.Width, cfg.Height, cfg.DACMax),
		pending: make([]queue.Sample, 0, cfg.Pending),
	}
}

// WriteSample implements output.DAC. Samples beyond the pending capacity
// between two frames are dropped.
func (s *Scope) WriteSample(smp queue.Sample) {
	if smp.A == 0 && smp.B == 0 {
		return
	}
	s.mutex.Lock()
	if len(s.pending) < cap(s.pending) {
		s.pending = append(s.pending, smp)
	} else {
		s.dropped++
	}
	s.mutex.Unlock()
}

// Dropped returns how many lit samples never reached the window.
func (s *Scope) Dropped() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.dropped
}

// Update implements ebiten.Game.
func (s *Scope) Update() error {
	if s.closed.Load() || ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.
func (s *Scope) Draw(screen *ebiten.Image) {
	if s.window == nil {
		s.window = ebiten.NewImage(s.cfg.Width, s.cfg.Height)
	}

	s.mutex.Lock()
	s.canvas.Fade(s.cfg.Persistence)
	for _, smp := range s.pending {
		s.canvas.Plot(smp)
	}
	s.pending = s.pending[:0]
	s.window.WritePixels(s.canvas.Pixels())
	s.mutex.Unlock()

	screen.DrawImage(s.window, nil)
}

// Close asks a running window to exit at its next update.
func (s *Scope) Close() {
	s.closed.Store(true)
}

// Layout implements ebiten.Game.
func (s *Scope) Layout(_, _ int) (int, int) {
	return s.cfg.Width, s.cfg.Height
}

// Run opens the window and blocks until it is closed. It must be called
// from the main goroutine.
func (s *Scope) Run() error {
	ebiten.SetWindowSize(s.cfg.Width*s.cfg.Zoom, s.cfg.Height*s.cfg.Zoom)
	ebiten.SetWindowTitle(s.cfg.Title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetWindowClosingHandled(true)
	return ebiten.RunGame(s)
}
