package control

// PacketSize is the size of every command request and reply.
const PacketSize = 64

// SampleSize is the wire size of one sample on the data stream.
const SampleSize = 8

// SampleElementCount is the number of uint16 values per sample.
const SampleElementCount = 4

// MaxDataSize bounds one data packet.
const MaxDataSize = 512

// Command codes.
const (
	CmdSetOutput        byte = 0x80
	CmdGetOutput        byte = 0x81
	CmdSetRate          byte = 0x82
	CmdGetRate          byte = 0x83
	CmdGetMaxRate       byte = 0x84
	CmdGetElementCount  byte = 0x85
	CmdGetPacketSamples byte = 0x86
	CmdGetDACMin        byte = 0x87
	CmdGetDACMax        byte = 0x88
	CmdGetQueueUsed     byte = 0x89
	CmdGetQueueFree     byte = 0x8A
	CmdGetFirmwareMajor byte = 0x8B
	CmdGetFirmwareMinor byte = 0x8C
	CmdClearQueue       byte = 0x8D
)

// Reply status codes.
const (
	StatusSuccess byte = 0x00
	StatusFail    byte = 0xFF
)

// Packet is one command request or reply.
type Packet [PacketSize]byte

// CommandName returns a short name for a command code.
func CommandName(cmd byte) string {
	switch cmd {
	case CmdSetOutput:
		return "set-output"
	case CmdGetOutput:
		return "get-output"
	case CmdSetRate:
		return "set-rate"
	case CmdGetRate:
		return "get-rate"
	case CmdGetMaxRate:
		return "get-max-rate"
	case CmdGetElementCount:
		return "get-element-count"
	case CmdGetPacketSamples:
		return "get-packet-samples"
	case CmdGetDACMin:
		return "get-dac-min"
	case CmdGetDACMax:
		return "get-dac-max"
	case CmdGetQueueUsed:
		return "get-queue-used"
	case CmdGetQueueFree:
		return "get-queue-free"
	case CmdGetFirmwareMajor:
		return "get-fw-major"
	case CmdGetFirmwareMinor:
		return "get-fw-minor"
	case CmdClearQueue:
		return "clear-queue"
	default:
		return "unknown"
	}
}

// CommandByName is the inverse of CommandName. ok is false for unknown names.
func CommandByName(name string) (cmd byte, ok bool) {
	for c := CmdSetOutput; c <= CmdClearQueue; c++ {
		if CommandName(c) == name {
			return c, true
		}
	}
	return 0, false
}
