package audio

import (
	"encoding/binary"
	"math"

	"github.com/ardnew/softlaser/output"
	"github.com/ardnew/softlaser/queue"
)

// frameSize is one interleaved stereo float32 frame.
const frameSize = 8

// Source is the consumer side of the output path.
type Source interface {
	Next() queue.Sample
	SampleRateHz() uint32
}

// Stream converts output samples to stereo float32 little-endian frames.
type Stream struct {
	src    Source
	tap    output.DAC
	rate   uint64
	dacMax float32

	// acc accumulates source ticks in device-rate units.
	acc uint64
	cur queue.Sample
}

// NewStream returns a Stream rendering src at deviceRate frames per second.
// Each sample pulled from src is also written to tap when it is non-nil.
func NewStream(src Source, deviceRate int, dacMax uint16, tap output.DAC) *Stream {
	if dacMax == 0 {
		dacMax = math.MaxUint16
	}
	return &Stream{
		src:    src,
		tap:    tap,
		rate:   uint64(max(deviceRate, 1)),
		dacMax: float32(dacMax),
	}
}

// Read implements io.Reader. It always fills p; a trailing partial frame is
// zeroed.
func (s *Stream) Read(p []byte) (int, error) {
	step := uint64(s.src.SampleRateHz())
	frames := len(p) / frameSize
	for i := range frames {
		s.acc += step
		for s.acc >= s.rate {
			s.cur = s.src.Next()
			if s.tap != nil {
				s.tap.WriteSample(s.cur)
			}
			s.acc -= s.rate
		}
		off := i * frameSize
		binary.LittleEndian.PutUint32(p[off:], math.Float32bits(s.level(s.cur.X)))
		binary.LittleEndian.PutUint32(p[off+4:], math.Float32bits(s.level(s.cur.Y)))
	}
	clear(p[frames*frameSize:])
	return len(p), nil
}

// level maps a DAC code onto [-1, 1].
func (s *Stream) level(v uint16) float32 {
	f := float32(v)/s.dacMax*2 - 1
	return max(-1, min(1, f))
}
