package fsys

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage"
)

// Source is a file Format places in the root directory.
type Source struct {
	Name string
	Data []byte
}

// Image describes the volume Format writes.
type Image struct {
	// Label is the volume label, at most 11 characters. Empty means NO NAME.
	Label string

	// FAT32 forces FAT32. Otherwise the smaller of FAT12 and FAT16 that
	// covers the medium is used.
	FAT32 bool

	Files []Source
}

// Format parameters.
const (
	formatNumFATs     = 2
	formatRootEntries = 512
	formatMedia       = 0xF8
	formatOEMName     = "LASERSIM"
	formatVolumeID    = 0x4C415352
	maxClusterSectors = 128

	// 1980-01-01, the FAT epoch.
	fatEpochDate = 1<<5 | 1

	fsInfoLeadSig   = 0x41615252
	fsInfoStructSig = 0x61417272
	fsInfoTrailSig  = 0xAA550000
	fat32BackupBoot = 6
)

// shortPunct lists the punctuation allowed in an 8.3 name.
const shortPunct = "!#$%&'()-@^_`{}~"

// CheckName reports whether name fits an 8.3 directory entry.
func CheckName(name string) error {
	_, _, err := shortName(name)
	return err
}

func shortName(name string) (n [11]byte, ntres uint8, err error) {
	bad := func(why string) error {
		return fmt.Errorf("%w: %q is not an 8.3 name: %s", pkg.ErrInvalidParameter, name, why)
	}

	base, ext := name, ""
	if i := strings.IndexByte(name, '.'); i >= 0 {
		base, ext = name[:i], name[i+1:]
		if ext == "" || strings.IndexByte(ext, '.') >= 0 {
			return n, 0, bad("misplaced dot")
		}
	}
	if base == "" {
		return n, 0, bad("empty base")
	}
	if len(base) > 8 || len(ext) > 3 {
		return n, 0, bad("too long")
	}

	lowerBase, err := lowerCase(base)
	if err != nil {
		return n, 0, bad(err.Error())
	}
	lowerExt, err := lowerCase(ext)
	if err != nil {
		return n, 0, bad(err.Error())
	}
	if lowerBase {
		ntres |= ntresLowerBase
	}
	if lowerExt {
		ntres |= ntresLowerExt
	}

	copy(n[:], fmt.Sprintf("%-8s%-3s", strings.ToUpper(base), strings.ToUpper(ext)))
	return n, ntres, nil
}

// lowerCase reports whether s has lower case letters. Mixed case has no 8.3
// representation.
func lowerCase(s string) (bool, error) {
	var lower, upper bool
	for i := range len(s) {
		switch c := s[i]; {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9', strings.IndexByte(shortPunct, c) >= 0:
		default:
			return false, fmt.Errorf("character %q", c)
		}
	}
	if lower && upper {
		return false, fmt.Errorf("mixed case")
	}
	return lower, nil
}

func volumeLabel(s string) ([11]byte, error) {
	var b [11]byte
	if s == "" {
		s = "NO NAME"
	}
	s = strings.ToUpper(s)
	if len(s) > len(b) {
		return b, fmt.Errorf("%w: label %q longer than 11 characters", pkg.ErrInvalidParameter, s)
	}
	for i := range len(s) {
		c := s[i]
		if c != ' ' && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && strings.IndexByte(shortPunct, c) < 0 {
			return b, fmt.Errorf("%w: label character %q", pkg.ErrInvalidParameter, c)
		}
	}
	copy(b[:], fmt.Sprintf("%-11s", s))
	return b, nil
}

// formatLayout sizes a volume of total sectors. reserved and rootSectors
// are fixed; the FAT grows until it covers the clusters left over.
func formatLayout(total uint32, fat32 bool) (layout, uint32, error) {
	reserved, rootSectors := uint32(1), uint32(formatRootEntries*dirEntrySize/storage.SectorSize)
	if fat32 {
		reserved, rootSectors = 32, 0
	}

	for spc := uint32(1); spc <= maxClusterSectors; spc <<= 1 {
		var clusters uint32
		fatSize := uint32(1)
		for {
			meta := uint64(reserved) + formatNumFATs*uint64(fatSize) + uint64(rootSectors)
			if uint64(total) < meta+uint64(spc) {
				return layout{}, 0, fmt.Errorf("%w: %d sectors too small", pkg.ErrInvalidParameter, total)
			}
			clusters = (total - uint32(meta)) / spc
			need := fatSectors(kindOf(clusters), clusters)
			if fat32 {
				need = fatSectors(FAT32, clusters)
			}
			if need <= fatSize {
				break
			}
			fatSize = need
		}

		kind := kindOf(clusters)
		switch {
		case fat32 && kind != FAT32:
			return layout{}, 0, fmt.Errorf("%w: %d sectors too small for FAT32", pkg.ErrInvalidParameter, total)
		case fat32 && clusters > 0x0FFFFFF5:
			continue
		case !fat32 && kind == FAT32:
			continue
		}

		l := layout{
			kind:        kind,
			spc:         spc,
			fatStart:    reserved,
			fatSize:     fatSize,
			rootSectors: rootSectors,
			clusters:    clusters,
		}
		l.rootStart = reserved + formatNumFATs*fatSize
		l.dataStart = l.rootStart + rootSectors
		return l, reserved, nil
	}
	return layout{}, 0, fmt.Errorf("%w: %d sectors need FAT32", pkg.ErrNotSupported, total)
}

func setFATEntry(kind Kind, fat []byte, c, val uint32) {
	switch kind {
	case FAT12:
		off := c + c/2
		if c&1 != 0 {
			fat[off] = fat[off]&0x0F | byte(val<<4)
			fat[off+1] = byte(val >> 4)
		} else {
			fat[off] = byte(val)
			fat[off+1] = fat[off+1]&0xF0 | byte(val>>8)&0x0F
		}
	case FAT16:
		binary.LittleEndian.PutUint16(fat[c*2:], uint16(val))
	default:
		binary.LittleEndian.PutUint32(fat[c*4:], val&0x0FFFFFFF)
	}
}

func endOfChain(kind Kind) uint32 {
	switch kind {
	case FAT12:
		return 0xFFF
	case FAT16:
		return 0xFFFF
	}
	return 0x0FFFFFFF
}

// allocation is one contiguous run of clusters.
type allocation struct {
	first, count uint32
}

// Format writes img onto dev as an unpartitioned volume with every file
// stored contiguously. Whatever dev held before is lost.
func Format(dev storage.Medium, img Image) error {
	if dev.IsReadOnly() {
		return pkg.ErrReadOnly
	}
	label, err := volumeLabel(img.Label)
	if err != nil {
		return err
	}
	l, reserved, err := formatLayout(dev.SectorCount(), img.FAT32)
	if err != nil {
		return err
	}
	clusterBytes := l.spc * storage.SectorSize

	entries := make([]dirEntry, 0, len(img.Files)+1)
	entries = append(entries, dirEntry{Name: label, Attr: attrVolumeID, WrtDate: fatEpochDate})
	seen := make(map[[11]byte]string, len(img.Files))
	for _, f := range img.Files {
		n, ntres, err := shortName(f.Name)
		if err != nil {
			return err
		}
		if prev, ok := seen[n]; ok {
			return fmt.Errorf("%w: %q and %q share a short name", pkg.ErrInvalidParameter, prev, f.Name)
		}
		if uint64(len(f.Data)) > 0xFFFFFFFF {
			return fmt.Errorf("%w: %q exceeds 4 GiB", pkg.ErrInvalidParameter, f.Name)
		}
		seen[n] = f.Name
		entries = append(entries, dirEntry{
			Name:       n,
			Attr:       attrArchive,
			NTRes:      ntres,
			CrtDate:    fatEpochDate,
			LstAccDate: fatEpochDate,
			WrtDate:    fatEpochDate,
			FileSize:   uint32(len(f.Data)),
		})
	}

	// Allocate the root directory (FAT32 only) and then every file.
	next := uint32(2)
	alloc := func(bytes uint64) (allocation, error) {
		count := uint32((bytes + uint64(clusterBytes) - 1) / uint64(clusterBytes))
		if count == 0 {
			return allocation{}, nil
		}
		if uint64(next)+uint64(count) > uint64(l.clusters)+2 {
			return allocation{}, fmt.Errorf("%w: image full", pkg.ErrOutOfRange)
		}
		a := allocation{first: next, count: count}
		next += count
		return a, nil
	}

	dirBytes := uint64(len(entries)) * dirEntrySize
	var root allocation
	if l.kind == FAT32 {
		if root, err = alloc(dirBytes); err != nil {
			return err
		}
		l.rootCluster = root.first
	} else if len(entries) > formatRootEntries {
		return fmt.Errorf("%w: %d files, root holds %d", pkg.ErrOutOfRange, len(img.Files), formatRootEntries-1)
	}

	files := make([]allocation, len(img.Files))
	for i, f := range img.Files {
		if files[i], err = alloc(uint64(len(f.Data))); err != nil {
			return err
		}
		entries[i+1].FstClusLO = uint16(files[i].first)
		entries[i+1].FstClusHI = uint16(files[i].first >> 16)
	}

	fat := make([]byte, l.fatSize*storage.SectorSize)
	setFATEntry(l.kind, fat, 0, endOfChain(l.kind)&^0xFF|formatMedia)
	setFATEntry(l.kind, fat, 1, endOfChain(l.kind))
	for _, a := range append(files, root) {
		for i := range a.count {
			c := a.first + i
			link := c + 1
			if i == a.count-1 {
				link = endOfChain(l.kind)
			}
			setFATEntry(l.kind, fat, c, link)
		}
	}

	boot, err := bootRecord(l, reserved, dev.SectorCount(), label)
	if err != nil {
		return err
	}
	if err := dev.Write(0, 1, boot); err != nil {
		return fmt.Errorf("boot sector: %w", err)
	}
	if l.kind == FAT32 {
		info := fsInfo()
		for _, w := range []struct {
			lba uint32
			buf []byte
		}{{1, info}, {fat32BackupBoot, boot}, {fat32BackupBoot + 1, info}} {
			if err := dev.Write(w.lba, 1, w.buf); err != nil {
				return fmt.Errorf("sector %d: %w", w.lba, err)
			}
		}
	}
	for i := range uint32(formatNumFATs) {
		if err := dev.Write(l.fatStart+i*l.fatSize, l.fatSize, fat); err != nil {
			return fmt.Errorf("fat %d: %w", i, err)
		}
	}

	dir, err := encodeDir(entries)
	if err != nil {
		return err
	}
	if l.kind == FAT32 {
		err = writeRun(dev, l, root, dir)
	} else {
		region := make([]byte, l.rootSectors*storage.SectorSize)
		copy(region, dir)
		err = dev.Write(l.rootStart, l.rootSectors, region)
	}
	if err != nil {
		return fmt.Errorf("root directory: %w", err)
	}

	for i, f := range img.Files {
		if err := writeRun(dev, l, files[i], f.Data); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}

	pkg.LogDebug(pkg.ComponentStorage, "formatted volume",
		"kind", l.kind.String(), "clusters", l.clusters, "files", len(img.Files))
	return dev.Sync()
}

// writeRun writes data over the clusters of a, zero padding the last one.
func writeRun(dev storage.Medium, l layout, a allocation, data []byte) error {
	if a.count == 0 {
		return nil
	}
	sectors := a.count * l.spc
	buf := make([]byte, sectors*storage.SectorSize)
	copy(buf, data)
	return dev.Write(l.clusterLBA(a.first), sectors, buf)
}

func encodeDir(entries []dirEntry) ([]byte, error) {
	buf := make([]byte, len(entries)*dirEntrySize)
	for i := range entries {
		if _, err := binary.Encode(buf[i*dirEntrySize:], binary.LittleEndian, &entries[i]); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func bootRecord(l layout, reserved, total uint32, label [11]byte) ([]byte, error) {
	buf := make([]byte, storage.SectorSize)
	bs := bootSector{
		JumpBoot:          [3]byte{0xEB, 0x3C, 0x90},
		BytesPerSector:    storage.SectorSize,
		SectorsPerCluster: uint8(l.spc),
		ReservedSectors:   uint16(reserved),
		NumFATs:           formatNumFATs,
		Media:             formatMedia,
		SectorsPerTrack:   63,
		NumHeads:          255,
	}
	copy(bs.OEMName[:], formatOEMName)

	var ext any
	if l.kind == FAT32 {
		bs.JumpBoot[1] = 0x58
		bs.TotalSectors32 = total
		e := ext32{
			FATSize32:   l.fatSize,
			RootCluster: l.rootCluster,
			FSInfo:      1,
			BackupBoot:  fat32BackupBoot,
			DriveNumber: 0x80,
			BootSig:     extBootSignature,
			VolumeID:    formatVolumeID,
			VolumeLabel: label,
		}
		copy(e.FSType[:], "FAT32   ")
		ext = &e
	} else {
		bs.RootEntryCount = formatRootEntries
		bs.FATSize16 = uint16(l.fatSize)
		if total <= 0xFFFF {
			bs.TotalSectors16 = uint16(total)
		} else {
			bs.TotalSectors32 = total
		}
		e := ext16{
			DriveNumber: 0x80,
			BootSig:     extBootSignature,
			VolumeID:    formatVolumeID,
			VolumeLabel: label,
		}
		copy(e.FSType[:], fmt.Sprintf("%-8s", l.kind))
		ext = &e
	}

	if _, err := binary.Encode(buf, binary.LittleEndian, &bs); err != nil {
		return nil, err
	}
	if _, err := binary.Encode(buf[bootSectorSize:], binary.LittleEndian, ext); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(buf[510:], bootSignature)
	return buf, nil
}

func fsInfo() []byte {
	buf := make([]byte, storage.SectorSize)
	binary.LittleEndian.PutUint32(buf[0:], fsInfoLeadSig)
	binary.LittleEndian.PutUint32(buf[484:], fsInfoStructSig)
	binary.LittleEndian.PutUint32(buf[488:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(buf[492:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(buf[508:], fsInfoTrailSig)
	return buf
}
