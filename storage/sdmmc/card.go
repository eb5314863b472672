package sdmmc

import (
	"fmt"
	"time"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage"
	"github.com/ardnew/softlaser/storage/hal"
)

// BlockSize is the transfer unit for every card type.
const BlockSize = storage.SectorSize

// Command indices. Bit 7 marks an application command.
const (
	cmdGoIdleState       = 0
	cmdSendOpCond        = 1
	cmdSendIfCond        = 8
	cmdStopTransmission  = 12
	cmdSetBlockLen       = 16
	cmdReadSingleBlock   = 17
	cmdReadMultipleBlock = 18
	cmdWriteBlock        = 24
	cmdAppCmd            = 55
	cmdReadOCR           = 58
	acmdSDSendOpCond     = 0x80 | 41

	appFlag = 0x80
)

// Wire constants.
const (
	r1Ready = 0x00
	r1Idle  = 0x01

	crcGoIdle = 0x95
	crcIfCond = 0x87
	crcDummy  = 0xFF

	ifCondPattern = 0x1AA
	argHCS        = 1 << 30
	ocrCCS        = 0x40 // in OCR byte 0

	tokenStartBlock  = 0xFE
	dataResponseMask = 0x0F
	dataAccepted     = 0x05

	r1Polls       = 10
	warmupBytes   = 10
	maxByteAddrLB = 0xFFFFFFFF / BlockSize
)

// CardType is the negotiated card generation.
type CardType uint8

// Card types.
const (
	CardNone     CardType = iota // No card negotiated
	CardMMC                      // MultiMediaCard
	CardSD1                      // SD v1
	CardSD2                      // SD v2, byte addressed
	CardSD2Block                 // SD v2 high capacity, block addressed
)

// String returns a string representation of the card type.
func (t CardType) String() string {
	switch t {
	case CardNone:
		return "none"
	case CardMMC:
		return "MMC"
	case CardSD1:
		return "SD1"
	case CardSD2:
		return "SD2"
	case CardSD2Block:
		return "SDHC"
	default:
		return "unknown"
	}
}

// BlockAddressed reports whether commands take an LBA instead of a byte
// offset.
func (t CardType) BlockAddressed() bool {
	return t == CardSD2Block
}

// Config bounds every wait the driver performs.
type Config struct {
	// InitTimeout bounds GO_IDLE_STATE and the op-cond loop.
	InitTimeout time.Duration

	// CommandTimeout bounds waiting for the card to release the bus before
	// a command.
	CommandTimeout time.Duration

	// ReadTimeout bounds waiting for a data start token.
	ReadTimeout time.Duration

	// WriteTimeout bounds the busy period after a block write.
	WriteTimeout time.Duration

	// MaxPolls caps the iterations of any single wait regardless of time.
	MaxPolls int

	// Clock supplies deadlines. Nil uses pkg.SystemClock.
	Clock pkg.Clock
}

// DefaultConfig returns timeouts from the SD physical layer limits.
func DefaultConfig() Config {
	return Config{
		InitTimeout:    time.Second,
		CommandTimeout: 300 * time.Millisecond,
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   500 * time.Millisecond,
		MaxPolls:       0xFFFF,
		Clock:          pkg.SystemClock{},
	}
}

// Card is an SPI-mode SD/MMC card session.
type Card struct {
	bus hal.Bus
	cfg Config

	cardType    CardType
	initialized bool

	cmdBuf   [6]byte
	respBuf  [4]byte
	fillBuf  [warmupBytes]byte
	crcBuf   [2]byte
	dummyCRC [2]byte
	pattern  [BlockSize]byte
	readback [BlockSize]byte
}

// New creates an uninitialized card session on bus. Zero fields of cfg take
// their DefaultConfig values.
func New(bus hal.Bus, cfg Config) *Card {
	def := DefaultConfig()
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = def.InitTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = def.MaxPolls
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}

	c := &Card{bus: bus, cfg: cfg}
	for i := range c.fillBuf {
		c.fillBuf[i] = hal.Fill
	}
	c.dummyCRC = [2]byte{crcDummy, crcDummy}
	return c
}

// Type returns the negotiated card type, or CardNone.
func (c *Card) Type() CardType {
	return c.cardType
}

// Status implements storage.BlockDevice.
func (c *Card) Status() storage.Status {
	if c.initialized {
		return storage.StatusReady
	}
	return storage.StatusNotReady
}

// Init implements storage.Initializer.
func (c *Card) Init() error {
	_, err := c.Initialize()
	return err
}

// Initialize negotiates SPI mode with the card and returns its type.
func (c *Card) Initialize() (CardType, error) {
	c.initialized = false
	c.cardType = CardNone

	// At least 74 clocks with chip select deasserted enter SPI mode.
	c.bus.Select(false)
	if err := c.bus.Tx(c.fillBuf[:], nil); err != nil {
		return CardNone, fmt.Errorf("%w: %w", ErrIdleTimeout, err)
	}
	defer c.release()

	if err := c.goIdle(); err != nil {
		return CardNone, c.fail("go idle", err)
	}

	t, err := c.negotiate()
	if err != nil {
		return CardNone, c.fail("negotiate", err)
	}

	if !t.BlockAddressed() {
		r1, err := c.command(cmdSetBlockLen, BlockSize)
		if err != nil || r1 != r1Ready {
			return CardNone, c.fail("set block length", wrapR1(ErrSetBlockLenTimeout, r1, err))
		}
	}

	c.cardType = t
	c.initialized = true
	pkg.LogInfo(pkg.ComponentStorage, "card initialized", "type", t.String())
	return t, nil
}

func (c *Card) goIdle() error {
	deadline := c.cfg.Clock.Now().Add(c.cfg.InitTimeout)
	for polls := 0; ; polls++ {
		r1, err := c.command(cmdGoIdleState, 0)
		if err == nil && r1 == r1Idle {
			return nil
		}
		if c.expired(deadline, polls) {
			return wrapR1(ErrIdleTimeout, r1, err)
		}
	}
}

// negotiate runs the version probe and the op-cond loop.
func (c *Card) negotiate() (CardType, error) {
	r1, err := c.command(cmdSendIfCond, ifCondPattern)
	if err == nil && r1 == r1Idle {
		if err := c.bus.Tx(nil, c.respBuf[:]); err != nil {
			return CardNone, err
		}
		if c.respBuf[2]&0x0F != 0x01 || c.respBuf[3] != 0xAA {
			return CardNone, fmt.Errorf("%w: echo % x", ErrInterfaceCondition, c.respBuf[2:4])
		}
		if err := c.waitOpCond(acmdSDSendOpCond, argHCS); err != nil {
			return CardNone, err
		}
		r1, err := c.command(cmdReadOCR, 0)
		if err != nil || r1 != r1Ready {
			return CardNone, wrapR1(ErrOCRTimeout, r1, err)
		}
		if err := c.bus.Tx(nil, c.respBuf[:]); err != nil {
			return CardNone, fmt.Errorf("%w: %w", ErrOCRTimeout, err)
		}
		if c.respBuf[0]&ocrCCS != 0 {
			return CardSD2Block, nil
		}
		return CardSD2, nil
	}

	pkg.LogDebug(pkg.ComponentStorage, "interface condition rejected, trying legacy", "r1", r1)

	t, op := CardSD1, uint8(acmdSDSendOpCond)
	if r1, err := c.command(acmdSDSendOpCond, 0); err != nil || r1 > r1Idle {
		t, op = CardMMC, cmdSendOpCond
	}
	if err := c.waitOpCond(op, 0); err != nil {
		return CardNone, err
	}
	return t, nil
}

// waitOpCond repeats an op-cond command until the card leaves idle.
func (c *Card) waitOpCond(idx uint8, arg uint32) error {
	deadline := c.cfg.Clock.Now().Add(c.cfg.InitTimeout)
	for polls := 0; ; polls++ {
		r1, err := c.command(idx, arg)
		if err == nil && r1 == r1Ready {
			return nil
		}
		if c.expired(deadline, polls) {
			return wrapR1(ErrOpCondTimeout, r1, err)
		}
	}
}

// command sends one command and returns its R1 status.
func (c *Card) command(idx uint8, arg uint32) (uint8, error) {
	if idx&appFlag != 0 {
		idx &^= appFlag
		r1, err := c.command(cmdAppCmd, 0)
		if err != nil || r1 > r1Idle {
			return r1, err
		}
	}

	if idx != cmdStopTransmission {
		c.bus.Select(false)
		if _, err := c.bus.Transfer(hal.Fill); err != nil {
			return hal.Fill, err
		}
		c.bus.Select(true)
		if err := c.waitReady(); err != nil {
			return hal.Fill, err
		}
	}

	crc := uint8(crcDummy)
	switch idx {
	case cmdGoIdleState:
		crc = crcGoIdle
	case cmdSendIfCond:
		crc = crcIfCond
	}
	c.cmdBuf = [6]byte{0x40 | idx, byte(arg >> 24), byte(arg >> 16), byte(arg >> 8), byte(arg), crc}
	if err := c.bus.Tx(c.cmdBuf[:], nil); err != nil {
		return hal.Fill, err
	}

	if idx == cmdStopTransmission {
		// Discard the stuff byte that follows STOP_TRANSMISSION.
		if _, err := c.bus.Transfer(hal.Fill); err != nil {
			return hal.Fill, err
		}
	}

	for range r1Polls {
		r1, err := c.bus.Transfer(hal.Fill)
		if err != nil {
			return hal.Fill, err
		}
		if r1&0x80 == 0 {
			return r1, nil
		}
	}
	return hal.Fill, pkg.ErrTimeout
}

// waitReady polls until the card stops holding MISO low.
func (c *Card) waitReady() error {
	deadline := c.cfg.Clock.Now().Add(c.cfg.CommandTimeout)
	for polls := 0; ; polls++ {
		b, err := c.bus.Transfer(hal.Fill)
		if err != nil {
			return err
		}
		if b == hal.Fill {
			return nil
		}
		if c.expired(deadline, polls) {
			return pkg.ErrTimeout
		}
	}
}

// expired reports whether a wait has run past its deadline or poll cap.
func (c *Card) expired(deadline time.Time, polls int) bool {
	return polls+1 >= c.cfg.MaxPolls || c.cfg.Clock.Now().After(deadline)
}

// release deasserts chip select and clocks one byte so the card frees MISO.
func (c *Card) release() {
	c.bus.Select(false)
	c.bus.Transfer(hal.Fill)
}

// fail drops the session after a card failure.
func (c *Card) fail(op string, err error) error {
	c.initialized = false
	c.cardType = CardNone
	pkg.LogWarn(pkg.ComponentStorage, "card failure", "op", op, "error", err)
	return err
}

// wrapR1 annotates a stage error with the offending R1 or transport error.
func wrapR1(stage error, r1 uint8, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", stage, err)
	}
	return fmt.Errorf("%w: r1 %#02x", stage, r1)
}
