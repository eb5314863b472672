package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/ardnew/softlaser/queue"
)

// countSource hands out increasing X codes at a fixed rate.
type countSource struct {
	rate  uint32
	pulls int
}

func (s *countSource) Next() queue.Sample {
	s.pulls++
	return queue.Sample{X: uint16(s.pulls), Y: 4095}
}

func (s *countSource) SampleRateHz() uint32 { return s.rate }

type tapDAC struct{ n int }

func (d *tapDAC) WriteSample(queue.Sample) { d.n++ }

func frame(p []byte, i int) (l, r float32) {
	off := i * frameSize
	l = math.Float32frombits(binary.LittleEndian.Uint32(p[off:]))
	r = math.Float32frombits(binary.LittleEndian.Uint32(p[off+4:]))
	return l, r
}

func TestStream_Resample(t *testing.T) {
	tests := []struct {
		name      string
		srcRate   uint32
		devRate   int
		frames    int
		wantPulls int
	}{
		{"upsample 6x", 8000, 48000, 48, 8},
		{"same rate", 48000, 48000, 10, 10},
		{"downsample 2x", 96000, 48000, 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &countSource{rate: tt.srcRate}
			tap := &tapDAC{}
			s := NewStream(src, tt.devRate, 4095, tap)

			p := make([]byte, tt.frames*frameSize)
			n, err := s.Read(p)
			if err != nil || n != len(p) {
				t.Fatalf("Read() = %d, %v; want %d, nil", n, err, len(p))
			}
			if src.pulls != tt.wantPulls {
				t.Errorf("pulls = %d, want %d", src.pulls, tt.wantPulls)
			}
			if tap.n != src.pulls {
				t.Errorf("tap saw %d samples, want %d", tap.n, src.pulls)
			}
		})
	}
}

func TestStream_Levels(t *testing.T) {
	src := &countSource{rate: 48000}
	s := NewStream(src, 48000, 4095, nil)

	p := make([]byte, frameSize)
	if _, err := s.Read(p); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	l, r := frame(p, 0)
	if l > -0.99 {
		t.Errorf("left = %v, want near -1 for code 1", l)
	}
	if r != 1 {
		t.Errorf("right = %v, want 1 for full scale", r)
	}
}

func TestStream_PartialFrameZeroed(t *testing.T) {
	src := &countSource{rate: 48000}
	s := NewStream(src, 48000, 4095, nil)

	p := make([]byte, frameSize+3)
	for i := range p {
		p[i] = 0xAA
	}
	n, err := s.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	for i := frameSize; i < len(p); i++ {
		if p[i] != 0 {
			t.Errorf("p[%d] = %#x, want 0", i, p[i])
		}
	}
}
