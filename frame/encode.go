package frame

import "encoding/binary"

// AppendFrame appends one ILDA section holding points to dst. The header's
// Format and Count are taken from t and len(points); the last record carries
// the last-point status bit.
func AppendFrame(dst []byte, h Header, t FrameType, points []Point) []byte {
	h.Format = uint8(t)
	h.Count = uint16(len(points))

	var hdr [HeaderSize]byte
	h.MarshalTo(hdr[:])
	dst = append(dst, hdr[:]...)

	var rec [Record3DSize]byte
	for i, p := range points {
		n := EncodePoint(t, p, i == len(points)-1, rec[:])
		dst = append(dst, rec[:n]...)
	}
	return dst
}

// AppendEnd appends the zero-point header that terminates an ILDA file.
func AppendEnd(dst []byte, h Header) []byte {
	h.Count = 0
	var hdr [HeaderSize]byte
	h.MarshalTo(hdr[:])
	return append(dst, hdr[:]...)
}

// AppendRaw appends a raw stream to dst: the rate byte (kHz) followed by
// samples in little-endian order.
func AppendRaw(dst []byte, rateKHz uint8, samples []RawSample) []byte {
	dst = append(dst, rateKHz)
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, s.X)
		dst = binary.LittleEndian.AppendUint16(dst, s.Y)
		dst = binary.LittleEndian.AppendUint16(dst, s.A)
		dst = binary.LittleEndian.AppendUint16(dst, s.B)
	}
	return dst
}
