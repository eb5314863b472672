package watchdog

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardnew/softlaser/pkg"
)

func TestSoftware_Check(t *testing.T) {
	clock := pkg.NewStepClock(0)
	var fired int
	w := NewSoftware(Config{Timeout: time.Second, Clock: clock}, func() { fired++ })

	tests := []struct {
		name    string
		advance time.Duration
		feed    bool
		want    bool
	}{
		{"fresh", 0, false, false},
		{"just before", 999 * time.Millisecond, false, false},
		{"expired", time.Millisecond, false, true},
		{"once per stall", time.Hour, false, false},
		{"fed again", 0, true, false},
		{"second stall", time.Second, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)
			if tt.feed {
				w.Feed()
			}
			if got := w.Check(); got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}

	if fired != 2 || w.Expirations() != 2 {
		t.Errorf("fired = %d, Expirations() = %d, want 2", fired, w.Expirations())
	}
}

func TestSoftware_Defaults(t *testing.T) {
	w := NewSoftware(Config{}, nil)
	if w.cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", w.cfg.Timeout, DefaultTimeout)
	}
	if w.cfg.Interval != DefaultTimeout/4 {
		t.Errorf("Interval = %v, want %v", w.cfg.Interval, DefaultTimeout/4)
	}
	if w.Check() {
		t.Error("new watchdog fired")
	}
}

func TestSoftware_Run(t *testing.T) {
	var fired atomic.Int32
	w := NewSoftware(Config{
		Timeout:  time.Second,
		Interval: time.Millisecond,
		Clock:    pkg.NewStepClock(100 * time.Millisecond),
	}, func() { fired.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if fired.Load() != 1 {
		t.Errorf("fired = %d, want 1 for a single unfed stall", fired.Load())
	}
}

func TestNop(t *testing.T) {
	var f Feeder = Nop{}
	f.Feed()
}
