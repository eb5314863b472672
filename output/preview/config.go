package preview

// Config sizes the scope window.
type Config struct {
	Width  int
	Height int
	Zoom   int
	Title  string
	DACMax uint16

	// Persistence is the fraction of brightness, out of 256, kept per frame.
	Persistence uint8

	// Pending bounds lit samples buffered between two drawn frames.
	Pending int
}

// DefaultConfig returns a 256x256 window at 2x zoom.
func DefaultConfig() Config {
	return Config{
		Width:       256,
		Height:      256,
		Zoom:        2,
		Title:       "lasersim",
		DACMax:      4095,
		Persistence: 200,
		Pending:     1 << 14,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Width <= 0 {
		c.Width = def.Width
	}
	if c.Height <= 0 {
		c.Height = def.Height
	}
	if c.Zoom <= 0 {
		c.Zoom = def.Zoom
	}
	if c.Title == "" {
		c.Title = def.Title
	}
	if c.DACMax == 0 {
		c.DACMax = def.DACMax
	}
	if c.Persistence == 0 {
		c.Persistence = def.Persistence
	}
	if c.Pending <= 0 {
		c.Pending = def.Pending
	}
	return c
}
