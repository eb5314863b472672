package fsys

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sync"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage"
)

// Errors returned by fsys.
var (
	ErrNotMounted = errors.New("volume not mounted")
	ErrNotDir     = errors.New("not a directory")
)

// Entry describes one directory entry.
type Entry struct {
	Name  string
	Size  int64
	IsDir bool
}

// Dir iterates a directory. ReadEntry returns io.EOF after the last entry.
type Dir interface {
	ReadEntry() (Entry, error)
	Close() error
}

// File is a file opened for sequential reading.
type File interface {
	io.Reader
	io.Closer
}

// Filesystem is the contract the playback orchestrator mounts and reads.
type Filesystem interface {
	Mount() error
	OpenDir(name string) (Dir, error)
	Open(name string) (File, error)
}

// Volume serves an fs.FS once the underlying block device is usable. The
// simulator uses it to play a host directory without building an image.
type Volume struct {
	fsys fs.FS
	dev  storage.BlockDevice

	mutex   sync.Mutex
	mounted bool
	probe   [storage.SectorSize]byte
}

// NewVolume returns an unmounted Volume. A nil dev skips device bring-up.
func NewVolume(fsys fs.FS, dev storage.BlockDevice) *Volume {
	return &Volume{fsys: fsys, dev: dev}
}

// Mount initializes the block device if it is not ready and reads its first
// sector. Mounting an already mounted volume re-probes the device.
func (v *Volume) Mount() error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.mounted = false
	if v.dev != nil {
		if err := bringUp(v.dev); err != nil {
			return fmt.Errorf("mount: %w", err)
		}
		if err := v.dev.Read(0, 1, v.probe[:]); err != nil {
			return fmt.Errorf("mount: probe: %w", err)
		}
	}
	if _, err := fs.Stat(v.fsys, "."); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	v.mounted = true
	pkg.LogDebug(pkg.ComponentStorage, "volume mounted")
	return nil
}

// Unmount marks the volume unusable until the next Mount.
func (v *Volume) Unmount() {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.mounted = false
}

// Mounted reports whether the last Mount succeeded.
func (v *Volume) Mounted() bool {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.mounted
}

// OpenDir opens the named directory for iteration.
func (v *Volume) OpenDir(name string) (Dir, error) {
	if !v.Mounted() {
		return nil, ErrNotMounted
	}
	f, err := v.fsys.Open(clean(name))
	if err != nil {
		return nil, err
	}
	rd, ok := f.(fs.ReadDirFile)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrNotDir)
	}
	return &dir{f: rd}, nil
}

// Open opens the named file for reading.
func (v *Volume) Open(name string) (File, error) {
	if !v.Mounted() {
		return nil, ErrNotMounted
	}
	return v.fsys.Open(clean(name))
}

// bringUp initializes dev unless it is already ready.
func bringUp(dev storage.BlockDevice) error {
	if dev.Status() == storage.StatusReady {
		return nil
	}
	init, ok := dev.(storage.Initializer)
	if !ok {
		return pkg.ErrNotReady
	}
	return init.Init()
}

func clean(name string) string {
	if name == "" || name == "/" {
		return "."
	}
	return path.Clean(name)
}

// dir reads one entry at a time from an fs.ReadDirFile.
type dir struct {
	f fs.ReadDirFile
}

func (d *dir) ReadEntry() (Entry, error) {
	ents, err := d.f.ReadDir(1)
	if len(ents) == 0 {
		if err == nil {
			err = io.EOF
		}
		return Entry{}, err
	}
	e := Entry{Name: ents[0].Name(), IsDir: ents[0].IsDir()}
	if info, err := ents[0].Info(); err == nil {
		e.Size = info.Size()
	}
	return e, nil
}

func (d *dir) Close() error {
	return d.f.Close()
}
