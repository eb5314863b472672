package control

import (
	"encoding/binary"
	"time"

	"github.com/ardnew/softlaser/output"
	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/queue"
)

// Output is the part of the output path the host may inspect and drive.
type Output interface {
	output.Sink
	SampleRateHz() uint32
	MaxRateHz() uint32
	RequestClear()
}

// Firmware version reported to the host.
const (
	FirmwareMajor = 1
	FirmwareMinor = 0
)

// Config holds host channel parameters. Zero fields take defaults.
type Config struct {
	// PacketSamples is the data packet size the host is told to use.
	PacketSamples int

	DACMin uint16
	DACMax uint16

	// HoldOff is how long after the last host activity playback stays
	// paused.
	HoldOff time.Duration

	Clock pkg.Clock
}

// DefaultConfig returns the default host channel configuration.
func DefaultConfig() Config {
	return Config{
		PacketSamples: MaxDataSize / SampleSize,
		DACMax:        4095,
		HoldOff:       500 * time.Millisecond,
		Clock:         pkg.SystemClock{},
	}
}

// Stats counts host channel traffic.
type Stats struct {
	Commands uint64
	Failed   uint64
	Samples  uint64 // samples accepted
	Dropped  uint64 // samples refused for lack of queue space
}

// Handler interprets host commands and sample data.
type Handler struct {
	cfg Config
	out Output

	active     bool
	lastActive time.Time
	stats      Stats

	// Service scratch
	req  Packet
	resp Packet
	data [MaxDataSize]byte
}

// NewHandler returns a Handler driving out.
func NewHandler(out Output, cfg Config) *Handler {
	def := DefaultConfig()
	if cfg.PacketSamples <= 0 {
		cfg.PacketSamples = def.PacketSamples
	}
	if cfg.DACMax == 0 {
		cfg.DACMax = def.DACMax
	}
	if cfg.HoldOff <= 0 {
		cfg.HoldOff = def.HoldOff
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	return &Handler{cfg: cfg, out: out}
}

// Stats returns the traffic counters.
func (h *Handler) Stats() Stats {
	return h.stats
}

// HostActive reports whether the host sent samples or enabled output within
// the hold-off window.
func (h *Handler) HostActive() bool {
	if !h.active {
		return false
	}
	if h.cfg.Clock.Now().Sub(h.lastActive) >= h.cfg.HoldOff {
		h.active = false
		pkg.LogInfo(pkg.ComponentControl, "host idle, resuming playback")
	}
	return h.active
}

func (h *Handler) touch() {
	if !h.active {
		pkg.LogInfo(pkg.ComponentControl, "host active, pausing playback")
	}
	h.active = true
	h.lastActive = h.cfg.Clock.Now()
}

// ProcessCommand answers the request in and writes the reply to out. It
// returns the reply length, or 0 if in is empty or out is shorter than
// PacketSize.
func (h *Handler) ProcessCommand(in, out []byte) int {
	if len(in) == 0 || len(out) < PacketSize {
		return 0
	}
	out = out[:PacketSize]
	clear(out)
	cmd := in[0]
	out[0] = cmd
	out[1] = StatusSuccess
	h.stats.Commands++

	payload := in[1:]
	switch cmd {
	case CmdSetOutput:
		if len(payload) < 1 {
			return h.fail(out)
		}
		on := payload[0] != 0
		h.out.SetOutputEnabled(on)
		if on {
			h.touch()
		}
	case CmdGetOutput:
		if h.out.Enabled() {
			out[2] = 1
		}
	case CmdSetRate:
		if len(payload) < 4 {
			return h.fail(out)
		}
		rate := binary.LittleEndian.Uint32(payload)
		if rate == 0 || rate > h.out.MaxRateHz() {
			return h.fail(out)
		}
		h.out.SetSampleRateHz(rate)
	case CmdGetRate:
		binary.LittleEndian.PutUint32(out[2:], h.out.SampleRateHz())
	case CmdGetMaxRate:
		binary.LittleEndian.PutUint32(out[2:], h.out.MaxRateHz())
	case CmdGetElementCount:
		binary.LittleEndian.PutUint32(out[2:], SampleElementCount)
	case CmdGetPacketSamples:
		binary.LittleEndian.PutUint32(out[2:], uint32(h.cfg.PacketSamples))
	case CmdGetDACMin:
		binary.LittleEndian.PutUint32(out[2:], uint32(h.cfg.DACMin))
	case CmdGetDACMax:
		binary.LittleEndian.PutUint32(out[2:], uint32(h.cfg.DACMax))
	case CmdGetQueueUsed:
		binary.LittleEndian.PutUint32(out[2:], uint32(h.out.Used()))
	case CmdGetQueueFree:
		binary.LittleEndian.PutUint32(out[2:], uint32(h.out.FreeSlots()))
	case CmdGetFirmwareMajor:
		binary.LittleEndian.PutUint32(out[2:], FirmwareMajor)
	case CmdGetFirmwareMinor:
		binary.LittleEndian.PutUint32(out[2:], FirmwareMinor)
	case CmdClearQueue:
		h.out.RequestClear()
	default:
		return h.fail(out)
	}
	pkg.LogDebug(pkg.ComponentControl, "command", "cmd", CommandName(cmd))
	return PacketSize
}

func (h *Handler) fail(out []byte) int {
	out[1] = StatusFail
	h.stats.Failed++
	pkg.LogDebug(pkg.ComponentControl, "command failed", "cmd", out[0])
	return PacketSize
}

// ProcessData pushes the whole samples in b into the output queue, up to
// its free space, and returns how many were accepted. A trailing partial
// sample is ignored. Values above DACMax are clamped.
func (h *Handler) ProcessData(b []byte) int {
	n := len(b) / SampleSize
	if n == 0 {
		return 0
	}
	h.touch()

	free := h.out.FreeSlots()
	accepted := 0
	for i := range n {
		if accepted == free {
			break
		}
		rec := b[i*SampleSize:]
		s := queue.Sample{
			X: min(binary.LittleEndian.Uint16(rec[0:2]), h.cfg.DACMax),
			Y: min(binary.LittleEndian.Uint16(rec[2:4]), h.cfg.DACMax),
			A: min(binary.LittleEndian.Uint16(rec[4:6]), h.cfg.DACMax),
			B: min(binary.LittleEndian.Uint16(rec[6:8]), h.cfg.DACMax),
		}
		if h.out.PushSample(s) != nil {
			break
		}
		accepted++
	}
	h.stats.Samples += uint64(accepted)
	h.stats.Dropped += uint64(n - accepted)
	return accepted
}

// Service handles up to budget pending commands and up to budget pending
// data packets from p. It returns the number of packets handled.
func (h *Handler) Service(p Port, budget int) int {
	handled := 0
	for range budget {
		if !p.PollCommand(&h.req) {
			break
		}
		h.ProcessCommand(h.req[:], h.resp[:])
		if err := p.Reply(&h.resp); err != nil {
			pkg.LogWarn(pkg.ComponentControl, "reply failed", "error", err)
		}
		handled++
	}
	for range budget {
		n, ok := p.PollData(h.data[:])
		if !ok {
			break
		}
		h.ProcessData(h.data[:n])
		handled++
	}
	return handled
}
