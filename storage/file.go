package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/ardnew/softlaser/pkg"
)

// FileStorage implements Medium over a card image file.
type FileStorage struct {
	file     *os.File
	sectors  uint32
	readOnly bool
	mutex    sync.RWMutex
}

// NewFileStorage opens an existing image. Trailing bytes beyond the last
// whole sector are not addressable.
func NewFileStorage(path string, readOnly bool) (*FileStorage, error) {
	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	sectors := stat.Size() / SectorSize
	if sectors > int64(^uint32(0)) {
		file.Close()
		return nil, fmt.Errorf("%w: image %s has %d sectors", pkg.ErrOutOfRange, path, sectors)
	}

	return &FileStorage{
		file:     file,
		sectors:  uint32(sectors),
		readOnly: readOnly,
	}, nil
}

// CreateFileStorage creates (or truncates) an image of the given sector
// count and opens it read-write.
func CreateFileStorage(path string, sectors uint32) (*FileStorage, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := file.Truncate(int64(sectors) * SectorSize); err != nil {
		file.Close()
		return nil, err
	}
	return &FileStorage{file: file, sectors: sectors}, nil
}

// Status returns ready while the image is open.
func (f *FileStorage) Status() Status {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	if f.file == nil {
		return StatusNotReady
	}
	return StatusReady
}

// SectorCount returns the number of sectors.
func (f *FileStorage) SectorCount() uint32 {
	return f.sectors
}

// Read reads count sectors starting at lba into buf.
func (f *FileStorage) Read(lba, count uint32, buf []byte) error {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if f.file == nil {
		return pkg.ErrNotPresent
	}
	if err := CheckRange(lba, count, f.sectors, len(buf)); err != nil {
		return err
	}

	length := int(count) * SectorSize
	_, err := f.file.ReadAt(buf[:length], int64(lba)*SectorSize)
	return err
}

// Write writes count sectors from buf starting at lba.
func (f *FileStorage) Write(lba, count uint32, buf []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return pkg.ErrNotPresent
	}
	if f.readOnly {
		return pkg.ErrReadOnly
	}
	if err := CheckRange(lba, count, f.sectors, len(buf)); err != nil {
		return err
	}

	length := int(count) * SectorSize
	_, err := f.file.WriteAt(buf[:length], int64(lba)*SectorSize)
	return err
}

// Sync flushes file writes to disk.
func (f *FileStorage) Sync() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.readOnly || f.file == nil {
		return nil
	}
	return f.file.Sync()
}

// IsReadOnly returns whether the storage is read-only.
func (f *FileStorage) IsReadOnly() bool {
	return f.readOnly
}

// Close closes the underlying file.
func (f *FileStorage) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		return err
	}
	return nil
}
