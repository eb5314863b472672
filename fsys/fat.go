package fsys

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage"
)

// FAT volume errors.
var (
	ErrNoFilesystem = errors.New("no FAT filesystem")
	ErrCorrupt      = errors.New("corrupt FAT filesystem")
	ErrIsDir        = errors.New("is a directory")
)

// Kind is a FAT variant. It follows from the volume's cluster count alone.
type Kind uint8

// FAT variants.
const (
	FAT12 Kind = iota + 1
	FAT16
	FAT32
)

func (k Kind) String() string {
	switch k {
	case FAT12:
		return "FAT12"
	case FAT16:
		return "FAT16"
	case FAT32:
		return "FAT32"
	default:
		return "unknown"
	}
}

// Largest cluster counts of FAT12 and FAT16 volumes.
const (
	maxFAT12Clusters = 4084
	maxFAT16Clusters = 65524
)

func kindOf(clusters uint32) Kind {
	switch {
	case clusters <= maxFAT12Clusters:
		return FAT12
	case clusters <= maxFAT16Clusters:
		return FAT16
	}
	return FAT32
}

// On-disk constants.
const (
	dirEntrySize     = 32
	entriesPerSector = storage.SectorSize / dirEntrySize
	bootSignature    = 0xAA55
	extBootSignature = 0x29
	mbrTableOffset   = 0x1BE
	bootSectorSize   = 36

	attrVolumeID  = 0x08
	attrDirectory = 0x10
	attrArchive   = 0x20
	attrLongName  = 0x0F
	attrMask      = 0x3F

	ntresLowerBase = 0x08
	ntresLowerExt  = 0x10

	entryEnd   = 0x00
	entryFree  = 0xE5
	entryKanji = 0x05
)

// bootSector is the BIOS parameter block common to every FAT variant.
type bootSector struct {
	JumpBoot          [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	FATSize16         uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
}

// ext16 follows bootSector on FAT12 and FAT16 volumes.
type ext16 struct {
	DriveNumber uint8
	Reserved1   uint8
	BootSig     uint8
	VolumeID    uint32
	VolumeLabel [11]byte
	FSType      [8]byte
}

// ext32 follows bootSector on FAT32 volumes.
type ext32 struct {
	FATSize32   uint32
	ExtFlags    uint16
	FSVersion   uint16
	RootCluster uint32
	FSInfo      uint16
	BackupBoot  uint16
	Reserved    [12]byte
	DriveNumber uint8
	Reserved1   uint8
	BootSig     uint8
	VolumeID    uint32
	VolumeLabel [11]byte
	FSType      [8]byte
}

// dirEntry is one 32-byte short name directory entry.
type dirEntry struct {
	Name         [11]byte
	Attr         uint8
	NTRes        uint8
	CrtTimeTenth uint8
	CrtTime      uint16
	CrtDate      uint16
	LstAccDate   uint16
	FstClusHI    uint16
	WrtTime      uint16
	WrtDate      uint16
	FstClusLO    uint16
	FileSize     uint32
}

// layout locates the regions of a mounted volume. Sector numbers are
// absolute on the block device.
type layout struct {
	kind        Kind
	spc         uint32
	fatStart    uint32
	fatSize     uint32
	rootStart   uint32
	rootSectors uint32
	rootCluster uint32
	dataStart   uint32
	clusters    uint32
	label       string
}

func (l *layout) valid(c uint32) bool {
	return c >= 2 && c-2 < l.clusters
}

func (l *layout) clusterLBA(c uint32) uint32 {
	return l.dataStart + (c-2)*l.spc
}

// fatSectors returns the sectors one FAT of kind needs for clusters.
func fatSectors(kind Kind, clusters uint32) uint32 {
	entries := uint64(clusters) + 2
	var size uint64
	switch kind {
	case FAT12:
		size = (entries*3 + 1) / 2
	case FAT16:
		size = entries * 2
	default:
		size = entries * 4
	}
	return uint32((size + storage.SectorSize - 1) / storage.SectorSize)
}

func parseLayout(b []byte, base uint32) (layout, error) {
	var bs bootSector
	if _, err := binary.Decode(b, binary.LittleEndian, &bs); err != nil {
		return layout{}, err
	}
	spc := uint32(bs.SectorsPerCluster)
	if (bs.JumpBoot[0] != 0xEB && bs.JumpBoot[0] != 0xE9) ||
		bs.BytesPerSector != storage.SectorSize ||
		spc == 0 || spc&(spc-1) != 0 ||
		bs.ReservedSectors == 0 || bs.NumFATs == 0 {
		return layout{}, ErrNoFilesystem
	}

	var e16 ext16
	var e32 ext32
	fatSize := uint32(bs.FATSize16)
	if fatSize == 0 {
		if _, err := binary.Decode(b[bootSectorSize:], binary.LittleEndian, &e32); err != nil {
			return layout{}, err
		}
		fatSize = e32.FATSize32
	} else if _, err := binary.Decode(b[bootSectorSize:], binary.LittleEndian, &e16); err != nil {
		return layout{}, err
	}
	total := uint32(bs.TotalSectors16)
	if total == 0 {
		total = bs.TotalSectors32
	}

	l := layout{spc: spc, fatSize: fatSize}
	l.rootSectors = (uint32(bs.RootEntryCount)*dirEntrySize + storage.SectorSize - 1) / storage.SectorSize
	meta := uint64(bs.ReservedSectors) + uint64(bs.NumFATs)*uint64(fatSize) + uint64(l.rootSectors)
	if fatSize == 0 || uint64(total) <= meta {
		return layout{}, fmt.Errorf("%w: %d sectors hold no data region", ErrCorrupt, total)
	}
	l.clusters = (total - uint32(meta)) / spc
	l.kind = kindOf(l.clusters)
	l.fatStart = base + uint32(bs.ReservedSectors)
	l.rootStart = l.fatStart + uint32(bs.NumFATs)*fatSize
	l.dataStart = l.rootStart + l.rootSectors

	var label [11]byte
	var bootSig uint8
	if l.kind == FAT32 {
		if bs.RootEntryCount != 0 || bs.FATSize16 != 0 {
			return layout{}, fmt.Errorf("%w: FAT32 with a fixed root directory", ErrCorrupt)
		}
		l.rootCluster = e32.RootCluster
		if !l.valid(l.rootCluster) {
			return layout{}, fmt.Errorf("%w: root cluster %d", ErrCorrupt, l.rootCluster)
		}
		label, bootSig = e32.VolumeLabel, e32.BootSig
	} else {
		if bs.RootEntryCount == 0 {
			return layout{}, fmt.Errorf("%w: %s without a root directory", ErrCorrupt, l.kind)
		}
		label, bootSig = e16.VolumeLabel, e16.BootSig
	}
	if fatSectors(l.kind, l.clusters) > fatSize {
		return layout{}, fmt.Errorf("%w: %d-sector FAT for %d clusters", ErrCorrupt, fatSize, l.clusters)
	}
	if bootSig == extBootSignature {
		l.label = strings.TrimRight(string(label[:]), " ")
	}
	return l, nil
}

// FAT is a read-only FAT12, FAT16 or FAT32 volume on a block device.
// Handles opened before a Mount fail with ErrNotMounted afterwards.
type FAT struct {
	dev storage.BlockDevice

	mutex   sync.Mutex
	mounted bool
	gen     uint32
	l       layout
	boot    [storage.SectorSize]byte

	fatLBA   uint32
	fatValid bool
	fatBuf   [storage.SectorSize]byte
}

// NewFAT returns an unmounted FAT volume on dev.
func NewFAT(dev storage.BlockDevice) *FAT {
	return &FAT{dev: dev}
}

// Mount brings the device up if needed and locates the volume, either at
// sector 0 or in the first MBR partition.
func (v *FAT) Mount() error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.mounted = false
	v.gen++
	v.fatValid = false

	if err := bringUp(v.dev); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	l, err := v.locate()
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	v.l = l
	v.mounted = true
	pkg.LogDebug(pkg.ComponentStorage, "fat volume mounted",
		"kind", l.kind.String(), "clusters", l.clusters, "label", l.label)
	return nil
}

func (v *FAT) locate() (layout, error) {
	if err := v.readBoot(0); err != nil {
		return layout{}, err
	}
	l, err := parseLayout(v.boot[:], 0)
	if !errors.Is(err, ErrNoFilesystem) {
		return l, err
	}

	// Not a superfloppy: try the first partition.
	part := v.boot[mbrTableOffset:]
	start := binary.LittleEndian.Uint32(part[8:])
	if part[4] == 0 || start == 0 {
		return layout{}, ErrNoFilesystem
	}
	if err := v.readBoot(start); err != nil {
		return layout{}, err
	}
	return parseLayout(v.boot[:], start)
}

func (v *FAT) readBoot(lba uint32) error {
	if err := v.dev.Read(lba, 1, v.boot[:]); err != nil {
		return fmt.Errorf("boot sector %d: %w", lba, err)
	}
	if binary.LittleEndian.Uint16(v.boot[510:]) != bootSignature {
		return ErrNoFilesystem
	}
	return nil
}

// Unmount invalidates the volume and every open handle.
func (v *FAT) Unmount() {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.mounted = false
	v.gen++
}

// Mounted reports whether the last Mount succeeded.
func (v *FAT) Mounted() bool {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.mounted
}

// Kind returns the variant of the mounted volume.
func (v *FAT) Kind() Kind {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.l.kind
}

// Label returns the volume label from the boot sector, if any.
func (v *FAT) Label() string {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.l.label
}

func (v *FAT) snapshot() (uint32, layout, error) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if !v.mounted {
		return 0, layout{}, ErrNotMounted
	}
	return v.gen, v.l, nil
}

// read reads one sector on behalf of a handle from mount generation gen.
func (v *FAT) read(gen, lba uint32, buf []byte) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if !v.mounted || gen != v.gen {
		return ErrNotMounted
	}
	if err := v.dev.Read(lba, 1, buf); err != nil {
		return fmt.Errorf("sector %d: %w", lba, err)
	}
	return nil
}

// next returns the cluster after c. eoc reports the end of the chain.
func (v *FAT) next(gen, c uint32) (n uint32, eoc bool, err error) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if !v.mounted || gen != v.gen {
		return 0, false, ErrNotMounted
	}

	switch v.l.kind {
	case FAT12:
		off := c + c/2
		lo, err := v.fatEntry(off)
		if err != nil {
			return 0, false, err
		}
		lo0 := lo[0]
		hi, err := v.fatEntry(off + 1)
		if err != nil {
			return 0, false, err
		}
		n = uint32(lo0) | uint32(hi[0])<<8
		if c&1 != 0 {
			n >>= 4
		} else {
			n &= 0xFFF
		}
		eoc = n >= 0xFF8
	case FAT16:
		b, err := v.fatEntry(c * 2)
		if err != nil {
			return 0, false, err
		}
		n = uint32(binary.LittleEndian.Uint16(b))
		eoc = n >= 0xFFF8
	default:
		b, err := v.fatEntry(c * 4)
		if err != nil {
			return 0, false, err
		}
		n = binary.LittleEndian.Uint32(b) & 0x0FFFFFFF
		eoc = n >= 0x0FFFFFF8
	}
	if !eoc && !v.l.valid(n) {
		return 0, false, fmt.Errorf("%w: cluster %d links to %d", ErrCorrupt, c, n)
	}
	return n, eoc, nil
}

// fatEntry returns the cached FAT sector holding byte off, from off on.
func (v *FAT) fatEntry(off uint32) ([]byte, error) {
	lba := v.l.fatStart + off/storage.SectorSize
	if !v.fatValid || v.fatLBA != lba {
		v.fatValid = false
		if err := v.dev.Read(lba, 1, v.fatBuf[:]); err != nil {
			return nil, fmt.Errorf("fat sector %d: %w", lba, err)
		}
		v.fatLBA, v.fatValid = lba, true
	}
	return v.fatBuf[off%storage.SectorSize:], nil
}

// chain walks the sectors of a directory or file.
type chain struct {
	v   *FAT
	gen uint32
	l   layout

	// fixed is the FAT12/16 root region, [lba, end).
	fixed    bool
	lba, end uint32

	cluster uint32
	sector  uint32
	hops    uint32
}

// dirChain walks the directory starting at cluster, or the root for 0.
func (v *FAT) dirChain(gen uint32, l layout, cluster uint32) chain {
	if cluster == 0 && l.kind != FAT32 {
		return chain{v: v, gen: gen, l: l, fixed: true, lba: l.rootStart, end: l.rootStart + l.rootSectors}
	}
	if cluster == 0 {
		cluster = l.rootCluster
	}
	return chain{v: v, gen: gen, l: l, cluster: cluster}
}

// nextLBA returns the next sector, or io.EOF past the end of the chain.
func (c *chain) nextLBA() (uint32, error) {
	if c.fixed {
		if c.lba >= c.end {
			return 0, io.EOF
		}
		c.lba++
		return c.lba - 1, nil
	}
	if c.cluster == 0 {
		return 0, io.EOF
	}
	if c.sector == c.l.spc {
		n, eoc, err := c.v.next(c.gen, c.cluster)
		if err != nil {
			return 0, err
		}
		if eoc {
			c.cluster = 0
			return 0, io.EOF
		}
		if c.hops++; c.hops > c.l.clusters {
			return 0, fmt.Errorf("%w: cluster chain loops", ErrCorrupt)
		}
		c.cluster, c.sector = n, 0
	}
	lba := c.l.clusterLBA(c.cluster) + c.sector
	c.sector++
	return lba, nil
}

func (c *chain) read(lba uint32, buf []byte) error {
	return c.v.read(c.gen, lba, buf)
}

// dirent is a decoded entry with its first cluster.
type dirent struct {
	Entry
	cluster uint32
}

func decodeName(n [11]byte, ntres uint8) string {
	if n[0] == entryKanji {
		n[0] = entryFree
	}
	base := strings.TrimRight(string(n[:8]), " ")
	ext := strings.TrimRight(string(n[8:]), " ")
	if ntres&ntresLowerBase != 0 {
		base = strings.ToLower(base)
	}
	if ntres&ntresLowerExt != 0 {
		ext = strings.ToLower(ext)
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// fatDir iterates the short name entries of one directory.
type fatDir struct {
	c    chain
	buf  [storage.SectorSize]byte
	pos  int
	done bool
}

func newFatDir(c chain) *fatDir {
	return &fatDir{c: c, pos: entriesPerSector}
}

func (d *fatDir) next() (dirent, error) {
	for !d.done {
		if d.pos == entriesPerSector {
			lba, err := d.c.nextLBA()
			if err == io.EOF {
				d.done = true
				break
			}
			if err != nil {
				return dirent{}, err
			}
			if err := d.c.read(lba, d.buf[:]); err != nil {
				return dirent{}, err
			}
			d.pos = 0
		}
		raw := d.buf[d.pos*dirEntrySize : (d.pos+1)*dirEntrySize]
		d.pos++

		switch raw[0] {
		case entryEnd:
			d.done = true
			continue
		case entryFree, '.':
			continue
		}
		var de dirEntry
		if _, err := binary.Decode(raw, binary.LittleEndian, &de); err != nil {
			return dirent{}, err
		}
		if de.Attr&attrMask == attrLongName || de.Attr&attrVolumeID != 0 {
			continue
		}

		e := dirent{
			Entry: Entry{
				Name:  decodeName(de.Name, de.NTRes),
				Size:  int64(de.FileSize),
				IsDir: de.Attr&attrDirectory != 0,
			},
			cluster: uint32(de.FstClusLO),
		}
		if d.c.l.kind == FAT32 {
			e.cluster |= uint32(de.FstClusHI) << 16
		}
		if e.IsDir {
			e.Size = 0
		}
		return e, nil
	}
	return dirent{}, io.EOF
}

func (d *fatDir) ReadEntry() (Entry, error) {
	e, err := d.next()
	return e.Entry, err
}

func (d *fatDir) Close() error {
	d.done = true
	return nil
}

// walk resolves name from the root. Matching is case-insensitive.
func (v *FAT) walk(op, name string) (dirent, chain, error) {
	gen, l, err := v.snapshot()
	if err != nil {
		return dirent{}, chain{}, err
	}

	cur := dirent{Entry: Entry{Name: "/", IsDir: true}}
	rel := strings.Trim(path.Clean("/"+name), "/")
	if rel == "" {
		return cur, v.dirChain(gen, l, 0), nil
	}
	for part := range strings.SplitSeq(rel, "/") {
		if !cur.IsDir {
			return dirent{}, chain{}, &fs.PathError{Op: op, Path: name, Err: ErrNotDir}
		}
		if cur.cluster != 0 && !l.valid(cur.cluster) {
			return dirent{}, chain{}, &fs.PathError{Op: op, Path: name, Err: ErrCorrupt}
		}
		d := newFatDir(v.dirChain(gen, l, cur.cluster))
		found := false
		for !found {
			e, err := d.next()
			if err == io.EOF {
				return dirent{}, chain{}, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
			}
			if err != nil {
				return dirent{}, chain{}, &fs.PathError{Op: op, Path: name, Err: err}
			}
			if strings.EqualFold(e.Name, part) {
				cur, found = e, true
			}
		}
	}

	if cur.IsDir {
		// A directory entry naming cluster 0 refers to the root.
		if cur.cluster != 0 && !l.valid(cur.cluster) {
			return dirent{}, chain{}, &fs.PathError{Op: op, Path: name, Err: ErrCorrupt}
		}
		return cur, v.dirChain(gen, l, cur.cluster), nil
	}
	c := chain{v: v, gen: gen, l: l}
	if cur.Size > 0 {
		if !l.valid(cur.cluster) {
			return dirent{}, chain{}, &fs.PathError{Op: op, Path: name, Err: ErrCorrupt}
		}
		c.cluster = cur.cluster
	}
	return cur, c, nil
}

// OpenDir opens the named directory for iteration.
func (v *FAT) OpenDir(name string) (Dir, error) {
	e, c, err := v.walk("opendir", name)
	if err != nil {
		return nil, err
	}
	if !e.IsDir {
		return nil, &fs.PathError{Op: "opendir", Path: name, Err: ErrNotDir}
	}
	return newFatDir(c), nil
}

// Open opens the named file for sequential reading.
func (v *FAT) Open(name string) (File, error) {
	e, c, err := v.walk("open", name)
	if err != nil {
		return nil, err
	}
	if e.IsDir {
		return nil, &fs.PathError{Op: "open", Path: name, Err: ErrIsDir}
	}
	f := &fatFile{c: c, remaining: e.Size}
	f.off = len(f.buf)
	return f, nil
}

// fatFile reads a file sector by sector along its cluster chain.
type fatFile struct {
	c         chain
	buf       [storage.SectorSize]byte
	off       int
	remaining int64
	closed    bool
}

func (f *fatFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if f.remaining == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && f.remaining > 0 {
		if f.off == len(f.buf) {
			lba, err := f.c.nextLBA()
			if err == io.EOF {
				err = fmt.Errorf("%w: chain ends %d bytes early", ErrCorrupt, f.remaining)
			}
			if err != nil {
				return n, err
			}
			if err := f.c.read(lba, f.buf[:]); err != nil {
				return n, err
			}
			f.off = 0
		}
		avail := f.buf[f.off:]
		if int64(len(avail)) > f.remaining {
			avail = avail[:f.remaining]
		}
		k := copy(p[n:], avail)
		f.off += k
		f.remaining -= int64(k)
		n += k
	}
	return n, nil
}

func (f *fatFile) Close() error {
	f.closed = true
	return nil
}
