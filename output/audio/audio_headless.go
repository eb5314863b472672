//go:build headless

package audio

import "github.com/ardnew/softlaser/pkg"

// Player is unavailable in headless builds.
type Player struct{}

// Open always fails in headless builds.
func Open(Source, Config) (*Player, error) {
	return nil, pkg.ErrNotSupported
}

// Start does nothing.
func (p *Player) Start() {}

// Close does nothing.
func (p *Player) Close() error { return nil }
