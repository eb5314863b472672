package player

import (
	"testing"

	"github.com/ardnew/softlaser/frame"
	"github.com/ardnew/softlaser/queue"
)

func TestScaler_Point(t *testing.T) {
	tests := []struct {
		name  string
		cal   Calibration
		point frame.Point
		want  queue.Sample
	}{
		{"center lit", Calibration{Scale: 0.75}, frame.Point{Color: 3}, queue.Sample{X: 2048, Y: 2048, A: 4095, B: 4095}},
		{"center blank", Calibration{Scale: 0.75}, frame.Point{}, queue.Sample{X: 2048, Y: 2048}},
		{"extremes", Calibration{Scale: 0.75}, frame.Point{X: 32767, Y: -32768}, queue.Sample{X: 3583, Y: 512}},
		{"full scale", Calibration{Scale: 1}, frame.Point{X: 32767, Y: -32768}, queue.Sample{X: 4095, Y: 0}},
		{"invert x", Calibration{Scale: 0.75, InvertX: true}, frame.Point{X: 32767, Y: 32767}, queue.Sample{X: 512, Y: 3583}},
		{"invert y", Calibration{Scale: 0.75, InvertY: true}, frame.Point{X: 32767, Y: 32767}, queue.Sample{X: 3583, Y: 512}},
		{"swap", Calibration{Scale: 0.75, SwapXY: true}, frame.Point{X: 32767, Y: -32768}, queue.Sample{X: 512, Y: 3583}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScaler(4095, tt.cal)
			if got := s.Point(tt.point); got != tt.want {
				t.Errorf("Point(%+v) = %+v, want %+v", tt.point, got, tt.want)
			}
		})
	}
}

func TestScaler_PointStaysInMargin(t *testing.T) {
	s := NewScaler(4095, Calibration{Scale: 0.75})
	lo, hi := uint16(4095), uint16(0)
	for v := -32768; v <= 32767; v += 97 {
		x := s.Point(frame.Point{X: int16(v)}).X
		lo, hi = min(lo, x), max(hi, x)
	}
	if lo < 511 || hi > 3584 {
		t.Errorf("range [%d, %d] exceeds the 75%% margin", lo, hi)
	}
}

func TestScaler_Raw(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
		raw  frame.RawSample
		want queue.Sample
	}{
		{"passthrough", Calibration{}, frame.RawSample{X: 1, Y: 2, A: 3, B: 4}, queue.Sample{X: 1, Y: 2, A: 3, B: 4}},
		{"clamped", Calibration{}, frame.RawSample{X: 0xFFFF, Y: 5000, A: 4096, B: 4095}, queue.Sample{X: 4095, Y: 4095, A: 4095, B: 4095}},
		{"oriented", Calibration{SwapXY: true, InvertY: true}, frame.RawSample{X: 100, Y: 200}, queue.Sample{X: 200, Y: 3995}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScaler(4095, tt.cal)
			if got := s.Raw(tt.raw); got != tt.want {
				t.Errorf("Raw(%+v) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}
