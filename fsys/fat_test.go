package fsys

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"slices"
	"testing"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage"
)

// sparseMedium stores only the sectors written to it.
type sparseMedium struct {
	total   uint32
	sectors map[uint32][]byte
}

func newSparseMedium(total uint32) *sparseMedium {
	return &sparseMedium{total: total, sectors: make(map[uint32][]byte)}
}

func (m *sparseMedium) Status() storage.Status { return storage.StatusReady }
func (m *sparseMedium) SectorCount() uint32    { return m.total }
func (m *sparseMedium) IsReadOnly() bool       { return false }
func (m *sparseMedium) Sync() error            { return nil }

func (m *sparseMedium) Read(lba, count uint32, buf []byte) error {
	if err := storage.CheckRange(lba, count, m.total, len(buf)); err != nil {
		return err
	}
	for i := range count {
		dst := buf[i*storage.SectorSize : (i+1)*storage.SectorSize]
		if s, ok := m.sectors[lba+i]; ok {
			copy(dst, s)
		} else {
			clear(dst)
		}
	}
	return nil
}

func (m *sparseMedium) Write(lba, count uint32, buf []byte) error {
	if err := storage.CheckRange(lba, count, m.total, len(buf)); err != nil {
		return err
	}
	for i := range count {
		m.sectors[lba+i] = bytes.Clone(buf[i*storage.SectorSize : (i+1)*storage.SectorSize])
	}
	return nil
}

// offsetMedium shifts every access by off sectors.
type offsetMedium struct {
	storage.Medium
	off uint32
}

func (m offsetMedium) SectorCount() uint32 { return m.Medium.SectorCount() - m.off }

func (m offsetMedium) Read(lba, count uint32, buf []byte) error {
	return m.Medium.Read(lba+m.off, count, buf)
}

func (m offsetMedium) Write(lba, count uint32, buf []byte) error {
	return m.Medium.Write(lba+m.off, count, buf)
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*7)
	}
	return b
}

func testImage() Image {
	return Image{
		Label: "show",
		Files: []Source{
			{Name: "SHOW.ILD", Data: pattern(3*storage.SectorSize+17, 1)},
			{Name: "beam.ls2", Data: pattern(1500, 9)},
			{Name: "EMPTY.LS2"},
			{Name: "README", Data: []byte("laser")},
		},
	}
}

func mountImage(t *testing.T, dev storage.Medium, img Image) *FAT {
	t.Helper()
	if err := Format(dev, img); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	v := NewFAT(dev)
	if err := v.Mount(); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	return v
}

func readNames(t *testing.T, d Dir) []string {
	t.Helper()
	defer d.Close()
	var names []string
	for {
		e, err := d.ReadEntry()
		if err == io.EOF {
			return names
		}
		if err != nil {
			t.Fatalf("ReadEntry() error = %v", err)
		}
		names = append(names, e.Name)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		dev   func() storage.Medium
		fat32 bool
		want  Kind
	}{
		{"fat12", func() storage.Medium { return storage.NewMemoryStorage(2048) }, false, FAT12},
		{"fat16", func() storage.Medium { return storage.NewMemoryStorage(16384) }, false, FAT16},
		{"fat16 large", func() storage.Medium { return newSparseMedium(200000) }, false, FAT16},
		{"fat32", func() storage.Medium { return newSparseMedium(70000) }, true, FAT32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testImage()
			img.FAT32 = tt.fat32
			v := mountImage(t, tt.dev(), img)

			if v.Kind() != tt.want {
				t.Errorf("Kind() = %v, want %v", v.Kind(), tt.want)
			}
			if v.Label() != "SHOW" {
				t.Errorf("Label() = %q, want SHOW", v.Label())
			}

			d, err := v.OpenDir(".")
			if err != nil {
				t.Fatalf("OpenDir() error = %v", err)
			}
			want := []string{"SHOW.ILD", "beam.ls2", "EMPTY.LS2", "README"}
			if got := readNames(t, d); !slices.Equal(got, want) {
				t.Errorf("entries = %v, want %v", got, want)
			}

			for _, src := range img.Files {
				f, err := v.Open(src.Name)
				if err != nil {
					t.Fatalf("Open(%s) error = %v", src.Name, err)
				}
				data, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					t.Fatalf("ReadAll(%s) error = %v", src.Name, err)
				}
				if !bytes.Equal(data, src.Data) {
					t.Errorf("%s: read %d bytes, want %d matching", src.Name, len(data), len(src.Data))
				}
			}
		})
	}
}

func TestFAT_Lookup(t *testing.T) {
	v := mountImage(t, storage.NewMemoryStorage(2048), testImage())

	tests := []struct {
		name    string
		open    func() error
		wantErr error
	}{
		{"other case", func() error { _, err := v.Open("show.ild"); return err }, nil},
		{"rooted", func() error { _, err := v.Open("/BEAM.LS2"); return err }, nil},
		{"missing", func() error { _, err := v.Open("GONE.ILD"); return err }, fs.ErrNotExist},
		{"file as dir", func() error { _, err := v.OpenDir("README"); return err }, ErrNotDir},
		{"path through file", func() error { _, err := v.Open("README/X"); return err }, ErrNotDir},
		{"root as file", func() error { _, err := v.Open("/"); return err }, ErrIsDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.open()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// addSubdir links a directory SUB holding file C.ILD into a formatted
// FAT16 volume, using clusters past the files Format allocated.
func addSubdir(t *testing.T, dev storage.Medium, v *FAT, data []byte) {
	t.Helper()
	_, l, err := v.snapshot()
	if err != nil {
		t.Fatal(err)
	}
	const dirCluster, fileCluster = 100, 101

	sub, _, _ := shortName("SUB")
	dot, _, _ := shortName("A")
	copy(dot[:], ".          ")
	dotdot := dot
	dotdot[1] = '.'
	c, _, _ := shortName("C.ILD")

	subDir, err := encodeDir([]dirEntry{
		{Name: dot, Attr: attrDirectory, FstClusLO: dirCluster},
		{Name: dotdot, Attr: attrDirectory},
		{Name: c, Attr: attrArchive, FstClusLO: fileCluster, FileSize: uint32(len(data))},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := writeRun(dev, l, allocation{dirCluster, 1}, subDir); err != nil {
		t.Fatal(err)
	}
	if err := writeRun(dev, l, allocation{fileCluster, 1}, data); err != nil {
		t.Fatal(err)
	}

	fat := make([]byte, storage.SectorSize)
	if err := dev.Read(l.fatStart, 1, fat); err != nil {
		t.Fatal(err)
	}
	setFATEntry(l.kind, fat, dirCluster, endOfChain(l.kind))
	setFATEntry(l.kind, fat, fileCluster, endOfChain(l.kind))
	if err := dev.Write(l.fatStart, 1, fat); err != nil {
		t.Fatal(err)
	}

	// Replace the root's end marker after the five entries Format wrote.
	root := make([]byte, storage.SectorSize)
	if err := dev.Read(l.rootStart, 1, root); err != nil {
		t.Fatal(err)
	}
	ent, err := encodeDir([]dirEntry{{Name: sub, Attr: attrDirectory, FstClusLO: dirCluster}})
	if err != nil {
		t.Fatal(err)
	}
	copy(root[5*dirEntrySize:], ent)
	if err := dev.Write(l.rootStart, 1, root); err != nil {
		t.Fatal(err)
	}
}

func TestFAT_Subdirectory(t *testing.T) {
	dev := storage.NewMemoryStorage(16384)
	v := mountImage(t, dev, testImage())
	addSubdir(t, dev, v, []byte("ILDA"))
	if err := v.Mount(); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	d, err := v.OpenDir("sub")
	if err != nil {
		t.Fatalf("OpenDir() error = %v", err)
	}
	if got := readNames(t, d); !slices.Equal(got, []string{"C.ILD"}) {
		t.Errorf("entries = %v, want [C.ILD]", got)
	}

	f, err := v.Open("SUB/c.ild")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	if data, err := io.ReadAll(f); err != nil || string(data) != "ILDA" {
		t.Errorf("ReadAll() = %q, %v", data, err)
	}
}

func TestFAT_Mount(t *testing.T) {
	tests := []struct {
		name    string
		dev     func(t *testing.T) storage.BlockDevice
		wantErr error
	}{
		{"blank", func(*testing.T) storage.BlockDevice { return storage.NewMemoryStorage(64) }, ErrNoFilesystem},
		{"absent", func(*testing.T) storage.BlockDevice {
			m := storage.NewMemoryStorage(64)
			m.SetPresent(false)
			return m
		}, pkg.ErrNotReady},
		{"cold device", func(t *testing.T) storage.BlockDevice {
			m := storage.NewMemoryStorage(2048)
			if err := Format(m, testImage()); err != nil {
				t.Fatal(err)
			}
			return &coldDevice{MemoryStorage: m}
		}, nil},
		{"first partition", func(t *testing.T) storage.BlockDevice {
			m := storage.NewMemoryStorage(4096)
			if err := Format(offsetMedium{Medium: m, off: 63}, testImage()); err != nil {
				t.Fatal(err)
			}
			mbr := make([]byte, storage.SectorSize)
			mbr[mbrTableOffset+4] = 0x0E
			binary.LittleEndian.PutUint32(mbr[mbrTableOffset+8:], 63)
			binary.LittleEndian.PutUint32(mbr[mbrTableOffset+12:], 4096-63)
			binary.LittleEndian.PutUint16(mbr[510:], bootSignature)
			if err := m.Write(0, 1, mbr); err != nil {
				t.Fatal(err)
			}
			return m
		}, nil},
		{"bad cluster size", func(t *testing.T) storage.BlockDevice {
			m := storage.NewMemoryStorage(2048)
			if err := Format(m, testImage()); err != nil {
				t.Fatal(err)
			}
			boot := make([]byte, storage.SectorSize)
			m.Read(0, 1, boot)
			boot[13] = 3
			m.Write(0, 1, boot)
			return m
		}, ErrNoFilesystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewFAT(tt.dev(t))
			err := v.Mount()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Mount() error = %v, want %v", err, tt.wantErr)
				}
				if v.Mounted() {
					t.Error("Mounted() = true after failed mount")
				}
				return
			}
			if err != nil {
				t.Fatalf("Mount() error = %v", err)
			}
			f, err := v.Open("README")
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer f.Close()
			if data, _ := io.ReadAll(f); string(data) != "laser" {
				t.Errorf("README = %q, want laser", data)
			}
		})
	}
}

func TestFAT_HandlesOutliveMount(t *testing.T) {
	v := mountImage(t, storage.NewMemoryStorage(2048), testImage())

	f, err := v.Open("SHOW.ILD")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	d, err := v.OpenDir(".")
	if err != nil {
		t.Fatalf("OpenDir() error = %v", err)
	}
	defer d.Close()

	if err := v.Mount(); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	buf := make([]byte, 16)
	if _, err := f.Read(buf); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Read() error = %v, want ErrNotMounted", err)
	}
	if _, err := d.ReadEntry(); !errors.Is(err, ErrNotMounted) {
		t.Errorf("ReadEntry() error = %v, want ErrNotMounted", err)
	}

	v.Unmount()
	if _, err := v.Open("SHOW.ILD"); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Open() after Unmount error = %v, want ErrNotMounted", err)
	}
}

func TestFAT_CorruptChain(t *testing.T) {
	dev := storage.NewMemoryStorage(16384)
	v := mountImage(t, dev, testImage())
	_, l, _ := v.snapshot()

	// SHOW.ILD starts at cluster 2; point it at reserved cluster 1.
	fat := make([]byte, storage.SectorSize)
	if err := dev.Read(l.fatStart, 1, fat); err != nil {
		t.Fatal(err)
	}
	setFATEntry(l.kind, fat, 2, 1)
	if err := dev.Write(l.fatStart, 1, fat); err != nil {
		t.Fatal(err)
	}
	if err := v.Mount(); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	f, err := v.Open("SHOW.ILD")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	n, err := io.ReadAll(f)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("ReadAll() error = %v, want ErrCorrupt", err)
	}
	if len(n) != storage.SectorSize {
		t.Errorf("read %d bytes before the bad link, want %d", len(n), storage.SectorSize)
	}
}

func TestShortName(t *testing.T) {
	tests := []struct {
		name      string
		want      string
		wantNTRes uint8
		wantErr   bool
	}{
		{"SHOW.ILD", "SHOW    ILD", 0, false},
		{"show.ild", "SHOW    ILD", ntresLowerBase | ntresLowerExt, false},
		{"SHOW.ild", "SHOW    ILD", ntresLowerExt, false},
		{"README", "README     ", 0, false},
		{"A_1-2~3.LS2", "A_1-2~3 LS2", 0, false},
		{"Show.ild", "", 0, true},
		{"TOOLONGNAME.ILD", "", 0, true},
		{"A.ILDA", "", 0, true},
		{"A.B.C", "", 0, true},
		{".ILD", "", 0, true},
		{"TRAIL.", "", 0, true},
		{"SP ACE.ILD", "", 0, true},
		{"", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ntres, err := shortName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, pkg.ErrInvalidParameter) {
					t.Errorf("shortName() error = %v, want ErrInvalidParameter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("shortName() error = %v", err)
			}
			if string(n[:]) != tt.want || ntres != tt.wantNTRes {
				t.Errorf("shortName() = %q %#x, want %q %#x", n, ntres, tt.want, tt.wantNTRes)
			}
			if got := decodeName(n, ntres); got != tt.name {
				t.Errorf("decodeName() = %q, want %q", got, tt.name)
			}
		})
	}
}

func TestFormat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		dev     func() storage.Medium
		img     Image
		wantErr error
	}{
		{"too small", func() storage.Medium { return storage.NewMemoryStorage(16) }, Image{}, pkg.ErrInvalidParameter},
		{"too small for fat32", func() storage.Medium { return storage.NewMemoryStorage(2048) },
			Image{FAT32: true}, pkg.ErrInvalidParameter},
		{"read only", func() storage.Medium {
			m := storage.NewMemoryStorage(2048)
			m.SetReadOnly(true)
			return m
		}, Image{}, pkg.ErrReadOnly},
		{"long label", func() storage.Medium { return storage.NewMemoryStorage(2048) },
			Image{Label: "TWELVE CHARS"}, pkg.ErrInvalidParameter},
		{"duplicate", func() storage.Medium { return storage.NewMemoryStorage(2048) },
			Image{Files: []Source{{Name: "a.ild"}, {Name: "A.ILD"}}}, pkg.ErrInvalidParameter},
		{"bad name", func() storage.Medium { return storage.NewMemoryStorage(2048) },
			Image{Files: []Source{{Name: "a long name.ild"}}}, pkg.ErrInvalidParameter},
		{"full", func() storage.Medium { return storage.NewMemoryStorage(128) },
			Image{Files: []Source{{Name: "BIG.LS2", Data: make([]byte, 128*storage.SectorSize)}}}, pkg.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Format(tt.dev(), tt.img); !errors.Is(err, tt.wantErr) {
				t.Errorf("Format() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormat_LayoutCoversMedium(t *testing.T) {
	for _, total := range []uint32{64, 2048, 8400, 16384, 65536, 1 << 20} {
		l, reserved, err := formatLayout(total, false)
		if err != nil {
			t.Fatalf("formatLayout(%d) error = %v", total, err)
		}
		used := uint64(l.dataStart) + uint64(l.clusters)*uint64(l.spc)
		if used > uint64(total) {
			t.Errorf("formatLayout(%d) uses %d sectors", total, used)
		}
		if fatSectors(l.kind, l.clusters) > l.fatSize {
			t.Errorf("formatLayout(%d): FAT of %d sectors too small for %d clusters", total, l.fatSize, l.clusters)
		}
		if reserved != 1 || l.kind == FAT32 {
			t.Errorf("formatLayout(%d) = %v with %d reserved", total, l.kind, reserved)
		}
	}
}
