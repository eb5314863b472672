package storage

import (
	"sync"

	"github.com/ardnew/softlaser/pkg"
)

// MemoryStorage implements Medium using an in-memory buffer.
type MemoryStorage struct {
	data     []byte
	readOnly bool
	present  bool
	mutex    sync.RWMutex
}

// NewMemoryStorage creates a zero-filled medium of the given sector count.
func NewMemoryStorage(sectors uint32) *MemoryStorage {
	return &MemoryStorage{
		data:    make([]byte, uint64(sectors)*SectorSize),
		present: true,
	}
}

// NewMemoryStorageFrom creates a medium holding a copy of image, padded
// with zeros to a whole number of sectors.
func NewMemoryStorageFrom(image []byte) *MemoryStorage {
	sectors := (len(image) + SectorSize - 1) / SectorSize
	m := NewMemoryStorage(uint32(sectors))
	copy(m.data, image)
	return m
}

// Status returns ready while media is present.
func (m *MemoryStorage) Status() Status {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.present {
		return StatusNotReady
	}
	return StatusReady
}

// SectorCount returns the number of sectors.
func (m *MemoryStorage) SectorCount() uint32 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return uint32(len(m.data) / SectorSize)
}

// Read copies count sectors starting at lba into buf.
func (m *MemoryStorage) Read(lba, count uint32, buf []byte) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if !m.present {
		return pkg.ErrNotPresent
	}
	if err := CheckRange(lba, count, uint32(len(m.data)/SectorSize), len(buf)); err != nil {
		return err
	}

	offset := uint64(lba) * SectorSize
	length := uint64(count) * SectorSize
	copy(buf, m.data[offset:offset+length])
	return nil
}

// Write copies count sectors from buf starting at lba.
func (m *MemoryStorage) Write(lba, count uint32, buf []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.present {
		return pkg.ErrNotPresent
	}
	if m.readOnly {
		return pkg.ErrReadOnly
	}
	if err := CheckRange(lba, count, uint32(len(m.data)/SectorSize), len(buf)); err != nil {
		return err
	}

	offset := uint64(lba) * SectorSize
	length := uint64(count) * SectorSize
	copy(m.data[offset:offset+length], buf)
	return nil
}

// Sync is a no-op for memory storage.
func (m *MemoryStorage) Sync() error {
	return nil
}

// IsReadOnly returns whether the storage is read-only.
func (m *MemoryStorage) IsReadOnly() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.readOnly
}

// SetReadOnly sets the read-only flag.
func (m *MemoryStorage) SetReadOnly(readOnly bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.readOnly = readOnly
}

// SetPresent inserts or removes the medium.
func (m *MemoryStorage) SetPresent(present bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.present = present
}

// Bytes returns a copy of the whole medium.
func (m *MemoryStorage) Bytes() []byte {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]byte(nil), m.data...)
}
