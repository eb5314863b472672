package preview

import (
	"testing"

	"github.com/ardnew/softlaser/queue"
)

func pixel(c *Canvas, x, y int) []byte {
	w, _ := c.Size()
	i := (y*w + x) * 4
	return c.Pixels()[i : i+4]
}

func TestCanvas_Plot(t *testing.T) {
	tests := []struct {
		name   string
		sample queue.Sample
		x, y   int
		lit    bool
	}{
		{"origin bottom left", queue.Sample{X: 0, Y: 0, A: 4095, B: 4095}, 0, 15, true},
		{"top right", queue.Sample{X: 4095, Y: 4095, A: 4095}, 15, 0, true},
		{"center", queue.Sample{X: 2048, Y: 2048, A: 4095}, 7, 8, true},
		{"clamped", queue.Sample{X: 60000, Y: 0, A: 1}, 15, 15, true},
		{"blanked", queue.Sample{X: 2048, Y: 2048}, 7, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCanvas(16, 16, 4095)
			if got := c.Plot(tt.sample); got != tt.lit {
				t.Fatalf("Plot() = %v, want %v", got, tt.lit)
			}
			px := pixel(c, tt.x, tt.y)
			if lit := px[1] != 0 || px[0] != 0; lit != tt.lit {
				t.Errorf("pixel (%d,%d) = %v, lit want %v", tt.x, tt.y, px, tt.lit)
			}
			if px[3] != 0xFF {
				t.Errorf("alpha = %#x, want opaque", px[3])
			}
		})
	}
}

func TestCanvas_Fade(t *testing.T) {
	c := NewCanvas(4, 4, 4095)
	c.Plot(queue.Sample{X: 0, Y: 4095, A: 4095, B: 4095})

	before := pixel(c, 0, 0)[1]
	c.Fade(128)
	after := pixel(c, 0, 0)[1]
	if after != before/2 {
		t.Errorf("faded green = %d, want %d", after, before/2)
	}

	for range 16 {
		c.Fade(128)
	}
	if px := pixel(c, 0, 0); px[0] != 0 || px[1] != 0 || px[2] != 0 {
		t.Errorf("pixel after repeated fade = %v, want black", px)
	}
}
