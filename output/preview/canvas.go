package preview

import "github.com/ardnew/softlaser/queue"

// Canvas is an RGBA raster in DAC coordinates, origin bottom left.
type Canvas struct {
	width  int
	height int
	dacMax uint32
	pix    []byte
}

// NewCanvas allocates a width x height raster for codes in [0, dacMax].
func NewCanvas(width, height int, dacMax uint16) *Canvas {
	width = max(width, 1)
	height = max(height, 1)
	if dacMax == 0 {
		dacMax = 4095
	}
	c := &Canvas{
		width:  width,
		height: height,
		dacMax: uint32(dacMax),
		pix:    make([]byte, width*height*4),
	}
	c.Clear()
	return c
}

// Size returns the raster dimensions.
func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// Pixels returns the RGBA buffer, row major.
func (c *Canvas) Pixels() []byte {
	return c.pix
}

// Clear paints the raster opaque black.
func (c *Canvas) Clear() {
	for i := 0; i < len(c.pix); i += 4 {
		c.pix[i], c.pix[i+1], c.pix[i+2], c.pix[i+3] = 0, 0, 0, 0xFF
	}
}

// Fade scales every color channel by keep/256.
func (c *Canvas) Fade(keep uint8) {
	for i := 0; i < len(c.pix); i += 4 {
		c.pix[i] = byte(uint16(c.pix[i]) * uint16(keep) >> 8)
		c.pix[i+1] = byte(uint16(c.pix[i+1]) * uint16(keep) >> 8)
		c.pix[i+2] = byte(uint16(c.pix[i+2]) * uint16(keep) >> 8)
	}
}

// Plot lights the pixel under s. Blanked samples are not drawn.
// It reports whether a pixel was lit.
func (c *Canvas) Plot(s queue.Sample) bool {
	if s.A == 0 && s.B == 0 {
		return false
	}
	x, y := c.position(s)
	i := (y*c.width + x) * 4
	c.pix[i] = byte(uint32(s.B) * 0xFF / c.dacMax)
	c.pix[i+1] = byte(uint32(s.A) * 0xFF / c.dacMax)
	c.pix[i+2] = 0x40
	return true
}

func (c *Canvas) position(s queue.Sample) (int, int) {
	sx := min(uint32(s.X), c.dacMax)
	sy := min(uint32(s.Y), c.dacMax)
	x := int(sx * uint32(c.width-1) / c.dacMax)
	y := c.height - 1 - int(sy*uint32(c.height-1)/c.dacMax)
	return x, y
}
