//go:build !profile

package prof

import (
	"fmt"

	"github.com/ardnew/softlaser/pkg"
)

// Session is empty without the "profile" tag.
type Session struct{}

// Start refuses any non-empty opts without the "profile" tag.
func Start(opts Options) (*Session, error) {
	if opts.Enabled() {
		return nil, fmt.Errorf("%w: rebuild with -tags profile", pkg.ErrNotSupported)
	}
	return &Session{}, nil
}

// Addr always returns "".
func (*Session) Addr() string { return "" }

// Stop is a no-op.
func (*Session) Stop() error { return nil }
