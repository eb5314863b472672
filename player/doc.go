// Package player implements the playback orchestrator.
//
// The orchestrator is an explicit state machine. [Transition] is a pure
// function from a [State] and an [Event] to the next State; [Player.Tick]
// performs the bounded unit of work belonging to the current state, derives
// the Event that work produced, and applies Transition. Nothing in a tick
// blocks beyond a single storage access, so the controller loop can feed the
// watchdog and service the host between ticks.
//
// The machine never terminates. It mounts the volume, enumerates playable
// files into a fixed-capacity table, and plays them round robin:
//
//	InitDisk -> MountFs -> FindFiles -> NextFile -> PlayRawFile
//	                                             -> PlayIldaFile(Start)
//
// Raw files (.LS2) are streamed in fixed-size chunks. ILDA files (.ILD) are
// decoded one frame at a time through a bounded point buffer; frames larger
// than the buffer are loaded in several passes:
//
//	Start -> StartFrame -> PlayFrame -> NextFrame -> StartFrame
//	                           ^            |
//	                           +- ContinueFrame <-+
//
// Any storage failure while enumerating or opening returns to MountFs with
// output disabled; a format or read error inside a file moves on to the next
// file.
package player
