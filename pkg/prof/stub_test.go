//go:build !profile

package prof

import (
	"errors"
	"testing"

	"github.com/ardnew/softlaser/pkg"
)

func TestStart_Unsupported(t *testing.T) {
	s, err := Start(Options{})
	if err != nil {
		t.Fatalf("Start(empty) error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if _, err := Start(Options{Heap: "heap.prof"}); !errors.Is(err, pkg.ErrNotSupported) {
		t.Errorf("Start(heap) error = %v, want %v", err, pkg.ErrNotSupported)
	}
}
