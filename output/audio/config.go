package audio

import (
	"time"

	"github.com/ardnew/softlaser/output"
)

// Config selects the audio device format.
type Config struct {
	SampleRate int
	Buffer     time.Duration
	DACMax     uint16

	// Tap, if set, also receives every consumed sample.
	Tap output.DAC
}

// DefaultConfig returns 48 kHz with a 20 ms device buffer and 12-bit codes.
func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		Buffer:     20 * time.Millisecond,
		DACMax:     4095,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.Buffer <= 0 {
		c.Buffer = def.Buffer
	}
	if c.DACMax == 0 {
		c.DACMax = def.DACMax
	}
	return c
}
