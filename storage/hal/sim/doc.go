// Package sim emulates an SD or MMC card on the SPI bus.
//
// [Card] implements hal.Bus at byte granularity: it parses 6-byte command
// packets, answers with R1/R3/R7 responses after a configurable delay,
// streams 0xFE-framed data packets for single and multiple block reads,
// accepts write data packets and reports the data response followed by busy
// bytes. Sector storage is delegated to a storage.Medium.
//
// The card enforces the SPI-mode entry rules a driver must follow: it ignores
// every command until it has seen at least ten fill bytes with chip select
// deasserted followed by GO_IDLE_STATE carrying CRC 0x95, and it rejects
// SEND_IF_COND without CRC 0x87.
//
// Faults can be injected to exercise driver timeouts:
//
//	card := sim.New(storage.NewMemoryStorage(64), sim.DefaultConfig(sim.KindSD2Block))
//	card.SetFaults(sim.FaultNoDataToken)
//	card.Mute(16, true) // SET_BLOCKLEN never answered
package sim
