package player

import (
	"math"

	"github.com/ardnew/softlaser/frame"
	"github.com/ardnew/softlaser/queue"
)

// Scaler converts decoded points and raw samples into DAC samples.
type Scaler struct {
	max  uint16
	mid  float64
	gain float64
	cal  Calibration
}

// NewScaler returns a Scaler for codes in [0, dacMax]. A signed coordinate
// of full excursion lands cal.Scale/2 of full scale either side of center.
func NewScaler(dacMax uint16, cal Calibration) Scaler {
	return Scaler{
		max:  dacMax,
		mid:  float64(dacMax) / 2,
		gain: cal.Scale * float64(dacMax) / math.MaxUint16,
		cal:  cal,
	}
}

// Point scales p. Intensity is binary: any nonzero color turns both
// channels fully on.
func (s Scaler) Point(p frame.Point) queue.Sample {
	out := queue.Sample{X: s.coord(p.X), Y: s.coord(p.Y)}
	if p.Color != 0 {
		out.A, out.B = s.max, s.max
	}
	return s.orient(out)
}

// Raw clamps a DAC-native raw sample into range and applies orientation.
func (s Scaler) Raw(r frame.RawSample) queue.Sample {
	return s.orient(queue.Sample{
		X: min(r.X, s.max),
		Y: min(r.Y, s.max),
		A: min(r.A, s.max),
		B: min(r.B, s.max),
	})
}

func (s Scaler) coord(v int16) uint16 {
	f := math.Round(s.mid + float64(v)*s.gain)
	switch {
	case f <= 0:
		return 0
	case f >= float64(s.max):
		return s.max
	}
	return uint16(f)
}

func (s Scaler) orient(smp queue.Sample) queue.Sample {
	if s.cal.SwapXY {
		smp.X, smp.Y = smp.Y, smp.X
	}
	if s.cal.InvertX {
		smp.X = s.max - smp.X
	}
	if s.cal.InvertY {
		smp.Y = s.max - smp.Y
	}
	return smp
}
