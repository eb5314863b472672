package pkg

import "errors"

// Controller errors shared across packages.
var (
	// ErrTimeout indicates a bounded wait expired.
	ErrTimeout = errors.New("timeout")

	// ErrNotReady indicates the medium or peripheral is not ready.
	ErrNotReady = errors.New("not ready")

	// ErrNotPresent indicates no medium is inserted.
	ErrNotPresent = errors.New("medium not present")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrQueueFull indicates the sample queue has no free slots.
	ErrQueueFull = errors.New("sample queue full")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrReadOnly indicates a write to read-only media.
	ErrReadOnly = errors.New("medium is read-only")

	// ErrOutOfRange indicates an address beyond the end of the medium.
	ErrOutOfRange = errors.New("address out of range")

	// ErrAlreadyRunning indicates the loop is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the loop is not running.
	ErrNotRunning = errors.New("not running")

	// ErrProtocol indicates a malformed host packet or message.
	ErrProtocol = errors.New("protocol error")

	// ErrClosed indicates use of a closed channel or endpoint.
	ErrClosed = errors.New("closed")
)
