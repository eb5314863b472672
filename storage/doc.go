// Package storage defines the block-device contract shared by the SD/MMC
// driver, the filesystem collaborator and the simulated card.
//
// Every device exposes fixed 512-byte sectors addressed by LBA. A [Medium]
// is a BlockDevice that is directly addressable without a bring-up sequence;
// [MemoryStorage] and [FileStorage] are the two Medium implementations and
// back the simulated card in storage/hal/sim.
package storage
