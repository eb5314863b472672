package sdmmc

import (
	"bytes"
	"fmt"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage/hal"
)

// address converts an LBA to the command argument for the card type.
func (c *Card) address(lba uint32) (uint32, error) {
	if c.cardType.BlockAddressed() {
		return lba, nil
	}
	if lba > maxByteAddrLB {
		return 0, fmt.Errorf("%w: lba %d beyond byte-addressed range", ErrParam, lba)
	}
	return lba << 9, nil
}

// ReadBlock reads one 512-byte block.
func (c *Card) ReadBlock(lba uint32, out *[BlockSize]byte) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	addr, err := c.address(lba)
	if err != nil {
		return err
	}
	defer c.release()

	r1, err := c.command(cmdReadSingleBlock, addr)
	if err != nil || r1 != r1Ready {
		return c.fail("read block", wrapR1(ErrReadTimeout, r1, err))
	}
	if err := c.readData(out[:]); err != nil {
		return c.fail("read block", err)
	}
	return nil
}

// ReadBlocks reads count consecutive blocks into buf with
// READ_MULTIPLE_BLOCK, ending the transfer with STOP_TRANSMISSION.
func (c *Card) ReadBlocks(lba, count uint32, buf []byte) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if count == 0 || uint64(len(buf)) < uint64(count)*BlockSize {
		return fmt.Errorf("%w: %d blocks into %d bytes", ErrParam, count, len(buf))
	}
	if uint64(lba)+uint64(count)-1 > 0xFFFFFFFF {
		return fmt.Errorf("%w: lba %d+%d overflows", ErrParam, lba, count)
	}
	addr, err := c.address(lba + count - 1)
	if err != nil {
		return err
	}
	if count == 1 {
		return c.ReadBlock(lba, (*[BlockSize]byte)(buf[:BlockSize]))
	}
	addr, _ = c.address(lba)
	defer c.release()

	r1, err := c.command(cmdReadMultipleBlock, addr)
	if err != nil || r1 != r1Ready {
		return c.fail("read blocks", wrapR1(ErrReadTimeout, r1, err))
	}
	for i := range count {
		off := int(i) * BlockSize
		if err := c.readData(buf[off : off+BlockSize]); err != nil {
			// Leave the card in a known state before giving up.
			c.command(cmdStopTransmission, 0)
			return c.fail("read blocks", err)
		}
	}
	r1, err = c.command(cmdStopTransmission, 0)
	if err != nil || r1 != r1Ready {
		return c.fail("stop transmission", wrapR1(ErrReadTimeout, r1, err))
	}
	return nil
}

// readData waits for the data start token and reads one block plus its CRC.
func (c *Card) readData(out []byte) error {
	deadline := c.cfg.Clock.Now().Add(c.cfg.ReadTimeout)
	for polls := 0; ; polls++ {
		b, err := c.bus.Transfer(hal.Fill)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDataTokenMissing, err)
		}
		if b == tokenStartBlock {
			break
		}
		if b != hal.Fill {
			return fmt.Errorf("%w: error token %#02x", ErrDataTokenMissing, b)
		}
		if c.expired(deadline, polls) {
			return ErrDataTokenMissing
		}
	}
	if err := c.bus.Tx(nil, out); err != nil {
		return fmt.Errorf("%w: %w", ErrReadTimeout, err)
	}
	// CRC is clocked out but not verified.
	if err := c.bus.Tx(nil, c.crcBuf[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrReadTimeout, err)
	}
	return nil
}

// WriteBlock writes one 512-byte block. The write is not retried.
func (c *Card) WriteBlock(lba uint32, data *[BlockSize]byte) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	addr, err := c.address(lba)
	if err != nil {
		return err
	}
	defer c.release()

	r1, err := c.command(cmdWriteBlock, addr)
	if err != nil || r1 != r1Ready {
		return c.fail("write block", wrapR1(ErrWriteTimeout, r1, err))
	}

	if _, err := c.bus.Transfer(tokenStartBlock); err != nil {
		return c.fail("write block", fmt.Errorf("%w: %w", ErrWriteTimeout, err))
	}
	if err := c.bus.Tx(data[:], nil); err != nil {
		return c.fail("write block", fmt.Errorf("%w: %w", ErrWriteTimeout, err))
	}
	if err := c.bus.Tx(c.dummyCRC[:], nil); err != nil {
		return c.fail("write block", fmt.Errorf("%w: %w", ErrWriteTimeout, err))
	}

	resp, err := c.bus.Transfer(hal.Fill)
	if err != nil {
		return c.fail("write block", fmt.Errorf("%w: %w", ErrWriteTimeout, err))
	}
	if resp&dataResponseMask != dataAccepted {
		return c.fail("write block", fmt.Errorf("%w: data response %#02x", ErrWriteRejected, resp))
	}

	if err := c.waitNotBusy(); err != nil {
		return c.fail("write block", err)
	}
	return nil
}

// waitNotBusy polls until the card releases the busy (zero) signal.
func (c *Card) waitNotBusy() error {
	deadline := c.cfg.Clock.Now().Add(c.cfg.WriteTimeout)
	for polls := 0; ; polls++ {
		b, err := c.bus.Transfer(hal.Fill)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWriteTimeout, err)
		}
		if b != 0x00 {
			return nil
		}
		if c.expired(deadline, polls) {
			return ErrWriteTimeout
		}
	}
}

// Read implements storage.BlockDevice.
func (c *Card) Read(lba, count uint32, buf []byte) error {
	return c.ReadBlocks(lba, count, buf)
}

// Write implements storage.BlockDevice with one WRITE_BLOCK per sector.
func (c *Card) Write(lba, count uint32, buf []byte) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if count == 0 || uint64(len(buf)) < uint64(count)*BlockSize {
		return fmt.Errorf("%w: %d blocks from %d bytes", ErrParam, count, len(buf))
	}
	if uint64(lba)+uint64(count)-1 > 0xFFFFFFFF {
		return fmt.Errorf("%w: lba %d+%d overflows", ErrParam, lba, count)
	}
	for i := range count {
		off := int(i) * BlockSize
		if err := c.WriteBlock(lba+i, (*[BlockSize]byte)(buf[off:off+BlockSize])); err != nil {
			return err
		}
	}
	return nil
}

// SelfTest writes a counting pattern to count blocks starting at lba, reads
// each block back and compares. It overwrites the blocks under test.
func (c *Card) SelfTest(lba, count uint32) error {
	for i := range count {
		blk := lba + i
		for j := range c.pattern {
			c.pattern[j] = byte(j) + byte(blk)
		}
		if err := c.WriteBlock(blk, &c.pattern); err != nil {
			return fmt.Errorf("self-test write lba %d: %w", blk, err)
		}
		clear(c.readback[:])
		if err := c.ReadBlock(blk, &c.readback); err != nil {
			return fmt.Errorf("self-test read lba %d: %w", blk, err)
		}
		if !bytes.Equal(c.pattern[:], c.readback[:]) {
			return fmt.Errorf("%w: lba %d", ErrVerify, blk)
		}
	}
	pkg.LogInfo(pkg.ComponentStorage, "self-test passed", "lba", lba, "count", count)
	return nil
}
