package sdmmc

import (
	"errors"
	"fmt"

	"github.com/ardnew/softlaser/pkg"
)

// Card errors. Timeouts wrap [pkg.ErrTimeout].
var (
	// ErrIdleTimeout indicates GO_IDLE_STATE was never answered with the
	// idle status.
	ErrIdleTimeout = fmt.Errorf("%w: card did not enter idle state", pkg.ErrTimeout)

	// ErrInterfaceCondition indicates SEND_IF_COND echoed the wrong voltage
	// or check pattern.
	ErrInterfaceCondition = errors.New("card rejected interface condition")

	// ErrOpCondTimeout indicates the card never left the idle state.
	ErrOpCondTimeout = fmt.Errorf("%w: card did not become ready", pkg.ErrTimeout)

	// ErrOCRTimeout indicates READ_OCR was not answered.
	ErrOCRTimeout = fmt.Errorf("%w: operating conditions register not read", pkg.ErrTimeout)

	// ErrSetBlockLenTimeout indicates SET_BLOCKLEN was not accepted.
	ErrSetBlockLenTimeout = fmt.Errorf("%w: block length not set", pkg.ErrTimeout)

	// ErrWriteTimeout indicates WRITE_BLOCK was not accepted or the card
	// stayed busy after the data packet.
	ErrWriteTimeout = fmt.Errorf("%w: block write", pkg.ErrTimeout)

	// ErrWriteRejected indicates the data response token was not "accepted".
	ErrWriteRejected = errors.New("block write rejected")

	// ErrReadTimeout indicates READ_SINGLE_BLOCK, READ_MULTIPLE_BLOCK or
	// STOP_TRANSMISSION was not accepted.
	ErrReadTimeout = fmt.Errorf("%w: block read", pkg.ErrTimeout)

	// ErrDataTokenMissing indicates no data start token arrived in time.
	ErrDataTokenMissing = errors.New("data start token missing")

	// ErrNotInitialized indicates block I/O without a successful Initialize.
	ErrNotInitialized = fmt.Errorf("%w: card not initialized", pkg.ErrNotReady)

	// ErrParam indicates an invalid block address, count or buffer.
	ErrParam = fmt.Errorf("%w: card request", pkg.ErrInvalidParameter)

	// ErrVerify indicates a self-test readback differed from what was written.
	ErrVerify = errors.New("readback mismatch")
)
