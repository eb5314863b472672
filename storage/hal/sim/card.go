package sim

import (
	"encoding/binary"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage"
	"github.com/ardnew/softlaser/storage/hal"
)

// Kind selects the card generation being emulated.
type Kind uint8

// Card kinds.
const (
	KindMMC      Kind = iota // MultiMediaCard, CMD1 initialization
	KindSD1                  // SD v1, byte addressed
	KindSD2                  // SD v2 standard capacity, byte addressed
	KindSD2Block             // SD v2 high capacity, block addressed
)

// String returns the card kind name.
func (k Kind) String() string {
	switch k {
	case KindMMC:
		return "mmc"
	case KindSD1:
		return "sd1"
	case KindSD2:
		return "sd2"
	case KindSD2Block:
		return "sd2block"
	default:
		return "unknown"
	}
}

// ParseKind maps a kind name to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k := KindMMC; k <= KindSD2Block; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Fault is a bit set of injected misbehaviors.
type Fault uint8

// Injectable faults.
const (
	FaultUnresponsive Fault = 1 << iota // No command is ever answered
	FaultNeverReady                     // Op-cond commands never leave idle
	FaultNoDataToken                    // Reads are acknowledged but no data packet follows
	FaultRejectWrites                   // Data response reports a CRC error
	FaultStuckBusy                      // Busy is never released after a write
)

// Config tunes the emulated timing.
type Config struct {
	Kind Kind

	// InitPolls is how many op-cond commands answer idle before the card
	// becomes ready.
	InitPolls int

	// ResponseDelay is the number of fill bytes preceding each response.
	ResponseDelay int

	// TokenDelay is the number of fill bytes preceding each data token.
	TokenDelay int

	// BusyBytes is the number of zero bytes signaled after a write.
	BusyBytes int
}

// DefaultConfig returns typical timing for kind.
func DefaultConfig(kind Kind) Config {
	return Config{
		Kind:          kind,
		InitPolls:     3,
		ResponseDelay: 1,
		TokenDelay:    4,
		BusyBytes:     8,
	}
}

// Command is one command packet received by the card.
type Command struct {
	Index uint8
	Arg   uint32
	CRC   uint8
	App   bool
}

// Protocol constants.
const (
	r1Idle         = 0x01
	r1IllegalCmd   = 0x04
	r1CRCError     = 0x08
	r1AddressError = 0x20
	r1ParamError   = 0x40

	tokenStartBlock = 0xFE
	tokenOutOfRange = 0x08
	tokenError      = 0x01

	dataAccepted = 0x05
	dataCRCError = 0x0B
	dataWriteErr = 0x0D

	crcGoIdle = 0x95
	crcIfCond = 0x87

	minWarmupBytes = 10
	ocrBase        = 0x00FF8000
	ocrPowerUp     = 0x80000000
	ocrCCS         = 0x40000000
)

type rxState uint8

const (
	rxCommand rxState = iota
	rxWriteToken
	rxWriteData
)

// Card is an emulated SPI-mode memory card.
type Card struct {
	cfg    Config
	medium storage.Medium
	faults Fault
	mute   [64]bool

	selected bool
	warmup   int
	spiMode  bool
	idle     bool
	appCmd   bool
	initLeft int

	rx     rxState
	cmd    [6]byte
	cmdLen int

	out     []byte
	outPos  int
	busy    int
	reading bool
	readLBA uint32

	block [storage.SectorSize]byte
	wbuf  [storage.SectorSize + 2]byte
	wpos  int
	wlba  uint32

	history []Command
}

// New creates a powered-off card backed by medium.
func New(medium storage.Medium, cfg Config) *Card {
	c := &Card{cfg: cfg, medium: medium}
	c.PowerCycle()
	return c
}

// PowerCycle returns the card to its power-on state. Faults, muted commands
// and the command history are kept.
func (c *Card) PowerCycle() {
	c.selected = false
	c.warmup = 0
	c.spiMode = false
	c.reset()
}

// reset performs the GO_IDLE_STATE software reset.
func (c *Card) reset() {
	c.idle = true
	c.appCmd = false
	c.initLeft = c.cfg.InitPolls
	c.rx = rxCommand
	c.cmdLen = 0
	c.out = c.out[:0]
	c.outPos = 0
	c.busy = 0
	c.reading = false
}

// SetFaults replaces the injected fault set.
func (c *Card) SetFaults(f Fault) { c.faults = f }

// Mute makes the card ignore command index idx.
func (c *Card) Mute(idx uint8, on bool) { c.mute[idx&0x3F] = on }

// Kind returns the emulated kind.
func (c *Card) Kind() Kind { return c.cfg.Kind }

// Medium returns the backing storage.
func (c *Card) Medium() storage.Medium { return c.medium }

// Idle reports whether the card is still in the idle state.
func (c *Card) Idle() bool { return c.idle }

// Commands returns a copy of every command packet received.
func (c *Card) Commands() []Command {
	return append([]Command(nil), c.history...)
}

// ClearCommands empties the command history.
func (c *Card) ClearCommands() { c.history = c.history[:0] }

// Select implements hal.Bus. Deasserting chip select abandons any response
// in flight; a pending busy period continues.
func (c *Card) Select(selected bool) {
	c.selected = selected
	if !selected {
		c.out = c.out[:0]
		c.outPos = 0
		c.reading = false
		c.cmdLen = 0
		c.rx = rxCommand
	}
}

// Transfer implements hal.Bus.
func (c *Card) Transfer(b byte) (byte, error) {
	if !c.selected {
		if !c.spiMode {
			c.warmup++
		}
		return hal.Fill, nil
	}
	out := c.next()
	c.receive(b)
	return out, nil
}

// Tx implements hal.Bus.
func (c *Card) Tx(w, r []byte) error {
	return hal.TxBytes(c, w, r)
}

// next returns the byte the card drives onto MISO.
func (c *Card) next() byte {
	if c.outPos < len(c.out) {
		b := c.out[c.outPos]
		c.outPos++
		if c.outPos == len(c.out) {
			c.out = c.out[:0]
			c.outPos = 0
		}
		return b
	}
	if c.busy != 0 {
		if c.busy > 0 {
			c.busy--
		}
		return 0x00
	}
	if c.reading {
		c.queueBlock(c.readLBA)
		c.readLBA++
		return c.next()
	}
	return hal.Fill
}

// receive consumes one byte from MOSI.
func (c *Card) receive(b byte) {
	switch c.rx {
	case rxWriteToken:
		if b == tokenStartBlock {
			c.rx = rxWriteData
			c.wpos = 0
		}
		return
	case rxWriteData:
		c.wbuf[c.wpos] = b
		c.wpos++
		if c.wpos == len(c.wbuf) {
			c.rx = rxCommand
			c.finishWrite()
		}
		return
	}

	if c.cmdLen == 0 && b&0xC0 != 0x40 {
		return
	}
	c.cmd[c.cmdLen] = b
	c.cmdLen++
	if c.cmdLen == len(c.cmd) {
		c.cmdLen = 0
		c.execute()
	}
}

// respond queues the response delay followed by resp.
func (c *Card) respond(resp ...byte) {
	for range c.cfg.ResponseDelay {
		c.out = append(c.out, hal.Fill)
	}
	c.out = append(c.out, resp...)
}

// r1 adds the idle flag to an R1 status when the card is idle.
func (c *Card) r1(flags byte) byte {
	if c.idle {
		flags |= r1Idle
	}
	return flags
}

func (c *Card) execute() {
	cmd := Command{
		Index: c.cmd[0] & 0x3F,
		Arg:   binary.BigEndian.Uint32(c.cmd[1:5]),
		CRC:   c.cmd[5],
		App:   c.appCmd,
	}
	c.appCmd = false
	c.history = append(c.history, cmd)

	if c.faults&FaultUnresponsive != 0 || c.mute[cmd.Index] {
		return
	}

	if !c.spiMode {
		if cmd.Index != 0 || cmd.CRC != crcGoIdle || c.warmup < minWarmupBytes {
			return
		}
		c.spiMode = true
	}

	pkg.LogDebug(pkg.ComponentHAL, "sim command", "cmd", cmd.Index, "arg", cmd.Arg, "app", cmd.App)

	switch cmd.Index {
	case 0:
		if cmd.CRC != crcGoIdle {
			c.respond(c.r1(r1CRCError))
			return
		}
		c.reset()
		c.respond(r1Idle)

	case 1:
		if c.cfg.Kind >= KindSD2 {
			c.respond(c.r1(r1IllegalCmd))
			return
		}
		c.opCond()

	case 8:
		if c.cfg.Kind < KindSD2 {
			c.respond(c.r1(r1IllegalCmd))
			return
		}
		if cmd.CRC != crcIfCond {
			c.respond(c.r1(r1CRCError))
			return
		}
		c.respond(c.r1(0), 0x00, 0x00, byte(cmd.Arg>>8)&0x0F, byte(cmd.Arg))

	case 12:
		c.reading = false
		c.out = c.out[:0]
		c.outPos = 0
		// Stuff byte: the remainder of the interrupted data stream.
		c.out = append(c.out, 0x00)
		c.respond(c.r1(0))

	case 16:
		switch {
		case c.idle:
			c.respond(c.r1(r1IllegalCmd))
		case cmd.Arg != storage.SectorSize:
			c.respond(c.r1(r1ParamError))
		default:
			c.respond(c.r1(0))
		}

	case 17, 18, 24:
		c.transferCommand(cmd)

	case 41:
		if !cmd.App || c.cfg.Kind == KindMMC {
			c.respond(c.r1(r1IllegalCmd))
			return
		}
		c.opCond()

	case 55:
		if c.cfg.Kind == KindMMC {
			c.respond(c.r1(r1IllegalCmd))
			return
		}
		c.appCmd = true
		c.respond(c.r1(0))

	case 58:
		ocr := uint32(ocrBase)
		if !c.idle {
			ocr |= ocrPowerUp
			if c.cfg.Kind == KindSD2Block {
				ocr |= ocrCCS
			}
		}
		c.respond(c.r1(0), byte(ocr>>24), byte(ocr>>16), byte(ocr>>8), byte(ocr))

	default:
		c.respond(c.r1(r1IllegalCmd))
	}
}

func (c *Card) opCond() {
	if c.faults&FaultNeverReady != 0 {
		c.respond(r1Idle)
		return
	}
	if c.initLeft > 0 {
		c.initLeft--
		c.respond(r1Idle)
		return
	}
	c.idle = false
	c.respond(0x00)
}

// lba converts a command address argument to a sector number.
func (c *Card) lba(arg uint32) (uint32, bool) {
	if c.cfg.Kind == KindSD2Block {
		return arg, true
	}
	if arg%storage.SectorSize != 0 {
		return 0, false
	}
	return arg / storage.SectorSize, true
}

func (c *Card) transferCommand(cmd Command) {
	if c.idle {
		c.respond(c.r1(r1IllegalCmd))
		return
	}
	lba, ok := c.lba(cmd.Arg)
	if !ok {
		c.respond(r1AddressError)
		return
	}
	if lba >= c.medium.SectorCount() {
		c.respond(r1ParamError)
		return
	}

	c.respond(0x00)
	switch cmd.Index {
	case 17:
		if c.faults&FaultNoDataToken == 0 {
			c.queueBlock(lba)
		}
	case 18:
		if c.faults&FaultNoDataToken == 0 {
			c.reading = true
			c.readLBA = lba
		}
	case 24:
		c.rx = rxWriteToken
		c.wlba = lba
	}
}

// queueBlock queues a data packet for lba, or an error token.
func (c *Card) queueBlock(lba uint32) {
	for range c.cfg.TokenDelay {
		c.out = append(c.out, hal.Fill)
	}
	if lba >= c.medium.SectorCount() {
		c.out = append(c.out, tokenOutOfRange)
		c.reading = false
		return
	}
	if err := c.medium.Read(lba, 1, c.block[:]); err != nil {
		c.out = append(c.out, tokenError)
		c.reading = false
		return
	}
	c.out = append(c.out, tokenStartBlock)
	c.out = append(c.out, c.block[:]...)
	c.out = append(c.out, 0x00, 0x00)
}

func (c *Card) finishWrite() {
	resp := byte(dataAccepted)
	switch {
	case c.faults&FaultRejectWrites != 0:
		resp = dataCRCError
	case c.medium.Write(c.wlba, 1, c.wbuf[:storage.SectorSize]) != nil:
		resp = dataWriteErr
	}
	// The data response follows the CRC bytes with no delay.
	c.out = append(c.out, resp|0xE0)
	if c.faults&FaultStuckBusy != 0 {
		c.busy = -1
	} else {
		c.busy = c.cfg.BusyBytes
	}
}
