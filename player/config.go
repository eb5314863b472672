package player

// Default playback parameters.
const (
	DefaultMaxFiles         = 32
	DefaultMaxNameLen       = 64
	DefaultMaxFramePoints   = 128
	DefaultRawChunkSamples  = 64
	DefaultRawChunksPerTick = 4
	DefaultPointsPerTick    = 64
	DefaultLowWaterMark     = 256
	DefaultILDARate         = 16000
	DefaultMaxRate          = 100000
	DefaultDACMax           = 4095
	DefaultScale            = 0.75
)

// Calibration maps decoded coordinates onto safe galvo travel.
type Calibration struct {
	// Scale is the fraction of DAC full scale used, centered.
	Scale float64

	InvertX bool
	InvertY bool
	SwapXY  bool
}

// Config holds orchestrator parameters. Zero fields take defaults.
type Config struct {
	// Dir is the directory enumerated for playable files.
	Dir string

	MaxFiles   int
	MaxNameLen int

	// MaxFramePoints sizes the ILDA point buffer; larger frames are loaded
	// in several passes.
	MaxFramePoints int

	RawChunkSamples  int
	RawChunksPerTick int
	PointsPerTick    int

	// LowWaterMark is the queue fill at which output is enabled.
	LowWaterMark int

	DefaultILDARate uint32
	MaxRate         uint32
	DACMax          uint16

	Calibration Calibration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Dir:              ".",
		MaxFiles:         DefaultMaxFiles,
		MaxNameLen:       DefaultMaxNameLen,
		MaxFramePoints:   DefaultMaxFramePoints,
		RawChunkSamples:  DefaultRawChunkSamples,
		RawChunksPerTick: DefaultRawChunksPerTick,
		PointsPerTick:    DefaultPointsPerTick,
		LowWaterMark:     DefaultLowWaterMark,
		DefaultILDARate:  DefaultILDARate,
		MaxRate:          DefaultMaxRate,
		DACMax:           DefaultDACMax,
		Calibration:      Calibration{Scale: DefaultScale},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Dir == "" {
		c.Dir = def.Dir
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = def.MaxFiles
	}
	if c.MaxNameLen <= 0 {
		c.MaxNameLen = def.MaxNameLen
	}
	if c.MaxFramePoints <= 0 {
		c.MaxFramePoints = def.MaxFramePoints
	}
	if c.RawChunkSamples <= 0 {
		c.RawChunkSamples = def.RawChunkSamples
	}
	if c.RawChunksPerTick <= 0 {
		c.RawChunksPerTick = def.RawChunksPerTick
	}
	if c.PointsPerTick <= 0 {
		c.PointsPerTick = def.PointsPerTick
	}
	if c.LowWaterMark <= 0 {
		c.LowWaterMark = def.LowWaterMark
	}
	if c.DefaultILDARate == 0 {
		c.DefaultILDARate = def.DefaultILDARate
	}
	if c.MaxRate == 0 {
		c.MaxRate = def.MaxRate
	}
	if c.DACMax == 0 {
		c.DACMax = def.DACMax
	}
	if c.Calibration.Scale <= 0 || c.Calibration.Scale > 1 {
		c.Calibration.Scale = def.Calibration.Scale
	}
	return c
}
