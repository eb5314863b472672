// Package control implements the host control channel.
//
// A host talks to the controller over two streams. Command packets are
// fixed 64-byte requests answered by a 64-byte reply whose first byte echoes
// the command and whose second byte is [StatusSuccess] or [StatusFail];
// multi-byte payloads are little-endian. Data packets carry raw samples, each
// four little-endian uint16 values (X, Y, A, B), pushed into the output
// queue exactly as file playback does.
//
// [Handler] interprets both streams. It is driven from the controller loop
// through a [Port], so command handling never races the playback
// orchestrator. [Pipe] is an in-process Port; package control/fifo bridges a
// Pipe to named pipes so a separate process can act as the host.
//
// While the host is streaming samples, [Handler.HostActive] reports true and
// the controller pauses file playback.
package control
