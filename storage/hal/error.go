package hal

import (
	"fmt"

	"github.com/ardnew/softlaser/pkg"
)

// ErrLengthMismatch indicates Tx was given write and read buffers of
// different lengths.
var ErrLengthMismatch = fmt.Errorf("%w: spi tx length mismatch", pkg.ErrInvalidParameter)
