// Package frame decodes the two on-disk show formats the player accepts.
//
// # Raw streams (.LS2)
//
// A raw stream starts with one byte holding the output rate in kHz, followed
// by packed 8-byte samples (x, y, a, b as 16-bit little-endian values in DAC
// units). [ReadRawHeader] consumes the rate byte and [LoadRawChunk] decodes a
// bounded number of samples per call.
//
// # ILDA (.ILD)
//
// An ILDA file is a sequence of sections, each a 32-byte big-endian header
// followed by point records. Format 0 carries 3D records and format 1 carries
// 2D records. Palette sections (format 2) and the true-color formats are
// rejected with an error wrapping [ErrFormat].
//
// Frames are loaded incrementally so a frame of any size can be played from
// a fixed point buffer:
//
//	var ild frame.IldaFile
//	points := make([]frame.Point, 128)
//	if err := ild.LoadFrameHeaderAndPoints(r, points); err != nil {
//	    // abandon the file
//	}
//	for !ild.Complete() {
//	    if err := ild.LoadMorePoints(r, points); err != nil {
//	        // abandon the file
//	    }
//	}
//
// At every step ild.LoadedStartPoint+ild.LoadedPointCount never exceeds
// ild.TotalPoints.
package frame
