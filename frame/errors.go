package frame

import (
	"errors"
	"fmt"
	"io"
)

// ErrFormat is the base of every non-retryable decode failure. A caller that
// sees an error matching ErrFormat must abandon the file.
var ErrFormat = errors.New("frame format error")

// ErrEndOfStream is returned when an ILDA stream ends cleanly on a section
// boundary, before any byte of the next header.
var ErrEndOfStream = errors.New("end of stream")

// Decode errors. Each wraps [ErrFormat].
var (
	// ErrBadMagic indicates a section header without the "ILDA" signature.
	ErrBadMagic = fmt.Errorf("%w: bad magic", ErrFormat)

	// ErrPaletteUnsupported indicates a color palette section (format 2).
	ErrPaletteUnsupported = fmt.Errorf("%w: palette section not supported", ErrFormat)

	// ErrUnsupportedFormat indicates a format code other than 0, 1 or 2.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format code", ErrFormat)

	// ErrShortRead indicates the stream ended inside a header or record.
	ErrShortRead = fmt.Errorf("%w: short read", ErrFormat)

	// ErrZeroRate indicates a raw stream whose rate byte is zero.
	ErrZeroRate = fmt.Errorf("%w: zero sample rate", ErrFormat)
)

// readError classifies a failed io.ReadFull of want bytes. Running out of
// data is a short read; any other failure belongs to the reader and does not
// match ErrFormat.
func readError(what string, n, want int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s read %d of %d bytes: %w", ErrShortRead, what, n, want, err)
	}
	return fmt.Errorf("%s read %d of %d bytes: %w", what, n, want, err)
}
