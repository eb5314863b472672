package storage

import (
	"fmt"

	"github.com/ardnew/softlaser/pkg"
)

// SectorSize is the only sector size any device in this module supports.
const SectorSize = 512

// Status reports whether a device accepts block I/O.
type Status uint8

// Device status values.
const (
	StatusNotReady Status = iota // Not initialized, failed, or medium absent
	StatusReady                  // Block I/O permitted
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusNotReady:
		return "not ready"
	default:
		return "unknown"
	}
}

// BlockDevice is the contract between a storage driver and the filesystem.
// buf must hold at least count*SectorSize bytes.
type BlockDevice interface {
	Status() Status
	Read(lba uint32, count uint32, buf []byte) error
	Write(lba uint32, count uint32, buf []byte) error
}

// Initializer is implemented by block devices that need a bring-up
// sequence before their Status becomes ready.
type Initializer interface {
	Init() error
}

// Medium is a directly addressable BlockDevice with a known size.
type Medium interface {
	BlockDevice

	// SectorCount returns the total number of sectors.
	SectorCount() uint32

	// IsReadOnly returns true if writes are refused.
	IsReadOnly() bool

	// Sync flushes any cached writes.
	Sync() error
}

// CheckRange validates a transfer of count sectors at lba against a medium
// of total sectors and a buffer of bufLen bytes.
func CheckRange(lba, count, total uint32, bufLen int) error {
	if count == 0 {
		return fmt.Errorf("%w: zero sector count", pkg.ErrInvalidParameter)
	}
	if uint64(lba)+uint64(count) > uint64(total) {
		return fmt.Errorf("%w: lba %d+%d beyond %d sectors", pkg.ErrOutOfRange, lba, count, total)
	}
	if uint64(bufLen) < uint64(count)*SectorSize {
		return fmt.Errorf("%w: %d bytes for %d sectors", pkg.ErrBufferTooSmall, bufLen, count)
	}
	return nil
}
