package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ardnew/softlaser/pkg"
)

// RawSampleSize is the on-disk size of one raw stream sample.
const RawSampleSize = 8

// RawSample is one raw stream sample in DAC units.
type RawSample struct {
	X uint16
	Y uint16
	A uint16
	B uint16
}

// ReadRawHeader consumes the rate byte of a raw stream and returns the
// output rate in Hz.
func ReadRawHeader(r io.Reader) (uint32, error) {
	var b [1]byte
	if n, err := io.ReadFull(r, b[:]); err != nil {
		return 0, readError("rate byte", n, len(b), err)
	}
	if b[0] == 0 {
		return 0, ErrZeroRate
	}
	return uint32(b[0]) * 1000, nil
}

// LoadRawChunk decodes up to len(out) samples from r using buf as the read
// buffer; buf must hold at least len(out)*RawSampleSize bytes.
//
// It returns the number of whole samples decoded. When the stream ends the
// error is io.EOF, possibly alongside n > 0. A trailing partial sample is
// discarded.
func LoadRawChunk(r io.Reader, buf []byte, out []RawSample) (int, error) {
	want := len(out) * RawSampleSize
	if len(buf) < want {
		return 0, fmt.Errorf("%w: raw chunk buffer %d bytes, need %d", pkg.ErrBufferTooSmall, len(buf), want)
	}

	got, err := io.ReadFull(r, buf[:want])
	n := got / RawSampleSize
	for i := range n {
		rec := buf[i*RawSampleSize:]
		out[i] = RawSample{
			X: binary.LittleEndian.Uint16(rec[0:2]),
			Y: binary.LittleEndian.Uint16(rec[2:4]),
			A: binary.LittleEndian.Uint16(rec[4:6]),
			B: binary.LittleEndian.Uint16(rec[6:8]),
		}
	}

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, io.EOF
	default:
		return n, err
	}
}
