// Package fsys is the filesystem collaborator of the playback orchestrator.
//
// The orchestrator only needs to mount a volume, enumerate one directory and
// read files sequentially, so [Filesystem] exposes exactly that. Two
// implementations exist:
//
//   - [FAT] reads a FAT12, FAT16 or FAT32 volume straight from a block
//     device, either a superfloppy or the first MBR partition. It never
//     writes; long file names are ignored and entries use their 8.3 names.
//   - [Volume] serves an io/fs.FS once the block device answers, which lets
//     the simulator play a host directory as is.
//
// [Format] builds a FAT image on a [storage.Medium] with a set of files in
// its root directory, standing in for preparing a card on a PC.
package fsys
