package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ILDA layout constants.
const (
	HeaderSize   = 32
	Record3DSize = 8
	Record2DSize = 6

	// StatusBlanked is the status-byte bit marking a beam-off point.
	StatusBlanked = 0x40
	// StatusLastPoint is the status-byte bit marking the final point of a frame.
	StatusLastPoint = 0x80
)

// Section format codes.
const (
	Format3D      uint8 = 0
	Format2D      uint8 = 1
	FormatPalette uint8 = 2
)

var ildaMagic = [4]byte{'I', 'L', 'D', 'A'}

// FrameType selects the point record layout of a frame.
type FrameType uint8

// Frame types, numbered by their ILDA format code.
const (
	Frame3D FrameType = FrameType(Format3D)
	Frame2D FrameType = FrameType(Format2D)
)

// String returns "3D" or "2D".
func (t FrameType) String() string {
	switch t {
	case Frame3D:
		return "3D"
	case Frame2D:
		return "2D"
	default:
		return "unknown"
	}
}

// RecordSize returns the on-disk size of one point record.
func (t FrameType) RecordSize() int {
	if t == Frame2D {
		return Record2DSize
	}
	return Record3DSize
}

// Point is one decoded vertex. Color 0 means the beam is off.
type Point struct {
	X     int16
	Y     int16
	Z     int16
	Color uint8
}

// Blanked reports whether the beam is off at this point.
func (p Point) Blanked() bool {
	return p.Color == 0
}

// Header is a parsed 32-byte ILDA section header.
type Header struct {
	Format      uint8
	Name        [8]byte
	Company     [8]byte
	Count       uint16
	FrameNumber uint16
	TotalFrames uint16
	Scanner     uint8
}

// NameString returns Name with trailing NUL and space padding removed.
func (h *Header) NameString() string {
	return string(bytes.TrimRight(h.Name[:], "\x00 "))
}

// CompanyString returns Company with trailing NUL and space padding removed.
func (h *Header) CompanyString() string {
	return string(bytes.TrimRight(h.Company[:], "\x00 "))
}

// ParseHeader decodes a section header from data into out.
// It checks the signature but not the format code.
func ParseHeader(data []byte, out *Header) error {
	if len(data) < HeaderSize {
		return ErrShortRead
	}
	if !bytes.Equal(data[0:4], ildaMagic[:]) {
		return fmt.Errorf("%w: % x", ErrBadMagic, data[0:4])
	}
	out.Format = data[7]
	copy(out.Name[:], data[8:16])
	copy(out.Company[:], data[16:24])
	out.Count = binary.BigEndian.Uint16(data[24:26])
	out.FrameNumber = binary.BigEndian.Uint16(data[26:28])
	out.TotalFrames = binary.BigEndian.Uint16(data[28:30])
	out.Scanner = data[30]
	return nil
}

// MarshalTo encodes h into buf and returns the number of bytes written,
// or 0 if buf is shorter than [HeaderSize].
func (h *Header) MarshalTo(buf []byte) int {
	if len(buf) < HeaderSize {
		return 0
	}
	copy(buf[0:4], ildaMagic[:])
	buf[4], buf[5], buf[6] = 0, 0, 0
	buf[7] = h.Format
	copy(buf[8:16], h.Name[:])
	copy(buf[16:24], h.Company[:])
	binary.BigEndian.PutUint16(buf[24:26], h.Count)
	binary.BigEndian.PutUint16(buf[26:28], h.FrameNumber)
	binary.BigEndian.PutUint16(buf[28:30], h.TotalFrames)
	buf[30] = h.Scanner
	buf[31] = 0
	return HeaderSize
}

// IldaFile tracks one ILDA frame and how much of it has been loaded.
// The zero value is ready for [IldaFile.LoadFrameHeaderAndPoints].
type IldaFile struct {
	TotalPoints      uint32
	LoadedStartPoint uint32
	LoadedPointCount uint32
	FrameNumber      uint16
	TotalFrames      uint16
	Type             FrameType
	Header           Header

	hdrBuf [HeaderSize]byte
	recBuf [Record3DSize]byte
}

// Reset clears the descriptor for a new frame.
func (f *IldaFile) Reset() {
	f.TotalPoints = 0
	f.LoadedStartPoint = 0
	f.LoadedPointCount = 0
	f.FrameNumber = 0
	f.TotalFrames = 0
	f.Type = Frame3D
	f.Header = Header{}
}

// Complete reports whether every point of the frame has been loaded.
func (f *IldaFile) Complete() bool {
	return f.LoadedStartPoint+f.LoadedPointCount >= f.TotalPoints
}

// EndOfSequence reports whether the current header declares no points,
// which ILDA uses to terminate a file.
func (f *IldaFile) EndOfSequence() bool {
	return f.TotalPoints == 0
}

// LoadFrameHeaderAndPoints resets f, reads the next section header from r
// and loads up to len(points) records into points.
func (f *IldaFile) LoadFrameHeaderAndPoints(r io.Reader, points []Point) error {
	f.Reset()

	if n, err := io.ReadFull(r, f.hdrBuf[:]); err != nil {
		if n == 0 && err == io.EOF {
			return ErrEndOfStream
		}
		return readError("header", n, HeaderSize, err)
	}
	if err := ParseHeader(f.hdrBuf[:], &f.Header); err != nil {
		return err
	}

	switch f.Header.Format {
	case Format3D:
		f.Type = Frame3D
	case Format2D:
		f.Type = Frame2D
	case FormatPalette:
		return ErrPaletteUnsupported
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, f.Header.Format)
	}

	f.TotalPoints = uint32(f.Header.Count)
	f.FrameNumber = f.Header.FrameNumber
	f.TotalFrames = f.Header.TotalFrames

	return f.LoadMorePoints(r, points)
}

// LoadMorePoints moves the loaded window past the points already consumed
// and reads up to len(points) further records, stopping at TotalPoints.
// On error the descriptor reflects the records decoded before the failure.
func (f *IldaFile) LoadMorePoints(r io.Reader, points []Point) error {
	f.LoadedStartPoint += f.LoadedPointCount
	f.LoadedPointCount = 0

	size := f.Type.RecordSize()
	rec := f.recBuf[:size]

	for i := range points {
		if f.LoadedStartPoint+f.LoadedPointCount >= f.TotalPoints {
			break
		}
		if n, err := io.ReadFull(r, rec); err != nil {
			return readError(fmt.Sprintf("point %d", f.LoadedStartPoint+f.LoadedPointCount), n, size, err)
		}
		decodePoint(f.Type, rec, &points[i])
		f.LoadedPointCount++
	}
	return nil
}

// decodePoint converts one big-endian record into p.
func decodePoint(t FrameType, rec []byte, p *Point) {
	p.X = int16(binary.BigEndian.Uint16(rec[0:2]))
	p.Y = int16(binary.BigEndian.Uint16(rec[2:4]))
	var status uint8
	if t == Frame2D {
		p.Z = 0
		status, p.Color = rec[4], rec[5]
	} else {
		p.Z = int16(binary.BigEndian.Uint16(rec[4:6]))
		status, p.Color = rec[6], rec[7]
	}
	if status&StatusBlanked != 0 {
		p.Color = 0
	}
}

// EncodePoint writes p as a record of type t into buf and returns the number
// of bytes written, or 0 if buf is too short. A zero Color sets the blanked
// status bit.
func EncodePoint(t FrameType, p Point, last bool, buf []byte) int {
	size := t.RecordSize()
	if len(buf) < size {
		return 0
	}
	var status uint8
	if p.Color == 0 {
		status |= StatusBlanked
	}
	if last {
		status |= StatusLastPoint
	}
	binary.BigEndian.PutUint16(buf[0:2], uint16(p.X))
	binary.BigEndian.PutUint16(buf[2:4], uint16(p.Y))
	if t == Frame2D {
		buf[4], buf[5] = status, p.Color
	} else {
		binary.BigEndian.PutUint16(buf[4:6], uint16(p.Z))
		buf[6], buf[7] = status, p.Color
	}
	return size
}
