//go:build !headless

package audio

import (
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/ardnew/softlaser/pkg"
)

// Player plays a Stream on the default audio device.
type Player struct {
	ctx     *oto.Context
	player  *oto.Player
	started bool
	mutex   sync.Mutex
}

// Open creates the audio context and attaches a Stream reading from src.
// Only one Player may exist per process.
func Open(src Source, cfg Config) (*Player, error) {
	cfg = cfg.withDefaults()
	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   cfg.Buffer,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	p := &Player{ctx: ctx}
	p.player = ctx.NewPlayer(NewStream(src, cfg.SampleRate, cfg.DACMax, cfg.Tap))
	pkg.LogInfo(pkg.ComponentOutput, "audio output opened", "rate", cfg.SampleRate, "buffer", cfg.Buffer)
	return p, nil
}

// Start begins playback.
func (p *Player) Start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.started && p.player != nil {
		p.player.Play()
		p.started = true
	}
}

// Close stops playback and releases the player.
func (p *Player) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.started = false
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	return err
}
