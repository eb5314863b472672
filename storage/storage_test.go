package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardnew/softlaser/pkg"
)

func sector(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, SectorSize)
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusReady, "ready"},
		{StatusNotReady, "not ready"},
		{Status(7), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestCheckRange(t *testing.T) {
	tests := []struct {
		name    string
		lba     uint32
		count   uint32
		total   uint32
		bufLen  int
		wantErr error
	}{
		{"first sector", 0, 1, 8, SectorSize, nil},
		{"last sector", 7, 1, 8, SectorSize, nil},
		{"whole medium", 0, 8, 8, 8 * SectorSize, nil},
		{"zero count", 0, 0, 8, SectorSize, pkg.ErrInvalidParameter},
		{"past end", 8, 1, 8, SectorSize, pkg.ErrOutOfRange},
		{"straddles end", 7, 2, 8, 2 * SectorSize, pkg.ErrOutOfRange},
		{"lba overflow", ^uint32(0), 2, 8, 2 * SectorSize, pkg.ErrOutOfRange},
		{"short buffer", 0, 2, 8, SectorSize, pkg.ErrBufferTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRange(tt.lba, tt.count, tt.total, tt.bufLen)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("CheckRange() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckRange() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// exerciseMedium runs the same round-trip checks against any Medium.
func exerciseMedium(t *testing.T, m Medium) {
	t.Helper()

	if m.Status() != StatusReady {
		t.Fatalf("Status() = %v, want ready", m.Status())
	}

	two := append(sector(0xA5), sector(0x5A)...)
	if err := m.Write(2, 2, two); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got := make([]byte, 2*SectorSize)
	if err := m.Read(2, 2, got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, two) {
		t.Error("Read() after Write() returned different data")
	}

	if err := m.Read(1, 1, got); err != nil {
		t.Fatalf("Read(1) error = %v", err)
	}
	if !bytes.Equal(got[:SectorSize], sector(0)) {
		t.Error("untouched sector is not zero")
	}

	if err := m.Read(m.SectorCount(), 1, got); !errors.Is(err, pkg.ErrOutOfRange) {
		t.Errorf("Read() past end error = %v, want %v", err, pkg.ErrOutOfRange)
	}
	if err := m.Write(0, 2, got[:SectorSize]); !errors.Is(err, pkg.ErrBufferTooSmall) {
		t.Errorf("Write() short buffer error = %v, want %v", err, pkg.ErrBufferTooSmall)
	}
	if err := m.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	m := NewMemoryStorage(16)
	if m.SectorCount() != 16 {
		t.Fatalf("SectorCount() = %d, want 16", m.SectorCount())
	}
	exerciseMedium(t, m)
}

func TestMemoryStorage_From(t *testing.T) {
	image := bytes.Repeat([]byte{0x11}, SectorSize+3)
	m := NewMemoryStorageFrom(image)
	if m.SectorCount() != 2 {
		t.Fatalf("SectorCount() = %d, want 2", m.SectorCount())
	}

	buf := make([]byte, 2*SectorSize)
	if err := m.Read(0, 2, buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(buf[:len(image)], image) {
		t.Error("image prefix not preserved")
	}
	if !bytes.Equal(buf[len(image):], make([]byte, len(buf)-len(image))) {
		t.Error("padding is not zero")
	}

	// The medium holds its own copy.
	image[0] = 0xEE
	if m.Bytes()[0] != 0x11 {
		t.Error("medium aliases the source image")
	}
}

func TestMemoryStorage_ReadOnly(t *testing.T) {
	m := NewMemoryStorage(4)
	m.SetReadOnly(true)
	if !m.IsReadOnly() {
		t.Fatal("IsReadOnly() = false after SetReadOnly(true)")
	}
	if err := m.Write(0, 1, sector(1)); !errors.Is(err, pkg.ErrReadOnly) {
		t.Errorf("Write() error = %v, want %v", err, pkg.ErrReadOnly)
	}
}

func TestMemoryStorage_NotPresent(t *testing.T) {
	m := NewMemoryStorage(4)
	m.SetPresent(false)
	if m.Status() != StatusNotReady {
		t.Errorf("Status() = %v, want not ready", m.Status())
	}
	if err := m.Read(0, 1, sector(0)); !errors.Is(err, pkg.ErrNotPresent) {
		t.Errorf("Read() error = %v, want %v", err, pkg.ErrNotPresent)
	}
	if err := m.Write(0, 1, sector(0)); !errors.Is(err, pkg.ErrNotPresent) {
		t.Errorf("Write() error = %v, want %v", err, pkg.ErrNotPresent)
	}
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.img")
	f, err := CreateFileStorage(path, 16)
	if err != nil {
		t.Fatalf("CreateFileStorage() error = %v", err)
	}
	exerciseMedium(t, f)
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if f.Status() != StatusNotReady {
		t.Errorf("Status() after Close = %v, want not ready", f.Status())
	}

	// Reopen read-only and confirm the data persisted.
	ro, err := NewFileStorage(path, true)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	defer ro.Close()

	buf := make([]byte, SectorSize)
	if err := ro.Read(3, 1, buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(buf, sector(0x5A)) {
		t.Error("persisted sector mismatch")
	}
	if err := ro.Write(3, 1, buf); !errors.Is(err, pkg.ErrReadOnly) {
		t.Errorf("Write() on read-only error = %v, want %v", err, pkg.ErrReadOnly)
	}
}

func TestNewFileStorage_PartialSector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.img")
	if err := os.WriteFile(path, make([]byte, 3*SectorSize+100), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := NewFileStorage(path, false)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	defer f.Close()
	if f.SectorCount() != 3 {
		t.Errorf("SectorCount() = %d, want 3", f.SectorCount())
	}
}

func TestNewFileStorage_Missing(t *testing.T) {
	if _, err := NewFileStorage(filepath.Join(t.TempDir(), "none.img"), true); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("NewFileStorage() error = %v, want %v", err, os.ErrNotExist)
	}
}
