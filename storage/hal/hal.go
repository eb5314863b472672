// Package hal defines the byte-oriented SPI transport used by the SD/MMC
// driver.
//
// A [Bus] is exclusive to the main loop. Implementations need not be safe for
// concurrent use; a bus shared with another peripheral must be arbitrated by
// the caller around each Select(true)/Select(false) pair.
package hal

// Fill is the byte clocked out when only receiving.
const Fill = 0xFF

// Bus is a full-duplex SPI master with a single chip-select line.
type Bus interface {
	// Select drives chip select: true asserts it (active low on the wire).
	Select(selected bool)

	// Transfer clocks one byte out and returns the byte clocked in.
	Transfer(b byte) (byte, error)

	// Tx clocks len(w) or len(r) bytes. If w is nil, Fill is sent for every
	// byte received; if r is nil, received bytes are discarded. When both
	// are non-nil they must have equal length.
	Tx(w, r []byte) error
}

// TxBytes implements Bus.Tx on top of Transfer for buses without a native
// block transfer.
func TxBytes(bus Bus, w, r []byte) error {
	n := len(w)
	if w == nil {
		n = len(r)
	} else if r != nil && len(r) != len(w) {
		return ErrLengthMismatch
	}
	for i := range n {
		out := byte(Fill)
		if w != nil {
			out = w[i]
		}
		in, err := bus.Transfer(out)
		if err != nil {
			return err
		}
		if r != nil {
			r[i] = in
		}
	}
	return nil
}
