//go:build headless

package preview

import (
	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/queue"
)

// Scope is unavailable in headless builds; it discards samples.
type Scope struct{}

// New returns a Scope that discards samples.
func New(Config) *Scope { return &Scope{} }

// WriteSample implements output.DAC.
func (s *Scope) WriteSample(queue.Sample) {}

// Dropped always returns 0.
func (s *Scope) Dropped() uint64 { return 0 }

// Close does nothing.
func (s *Scope) Close() {}

// Run always fails in headless builds.
func (s *Scope) Run() error { return pkg.ErrNotSupported }
