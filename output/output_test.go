package output

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/queue"
)

// recordDAC captures every sample written to it.
type recordDAC struct {
	mutex   sync.Mutex
	samples []queue.Sample
}

func (d *recordDAC) WriteSample(s queue.Sample) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.samples = append(d.samples, s)
}

func (d *recordDAC) count() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.samples)
}

func TestNew_Defaults(t *testing.T) {
	o := New(nil, Config{})
	if o.Cap() != DefaultCapacity {
		t.Errorf("Cap() = %d, want %d", o.Cap(), DefaultCapacity)
	}
	if o.SampleRateHz() != DefaultRate {
		t.Errorf("SampleRateHz() = %d, want %d", o.SampleRateHz(), DefaultRate)
	}
	if o.MaxRateHz() != DefaultMaxRate {
		t.Errorf("MaxRateHz() = %d, want %d", o.MaxRateHz(), DefaultMaxRate)
	}
	if o.Enabled() {
		t.Error("new output should start disabled")
	}
}

func TestOutput_SetSampleRateHz(t *testing.T) {
	tests := []struct {
		name string
		hz   uint32
		want uint32
	}{
		{"normal", 30000, 30000},
		{"zero", 0, 1},
		{"at max", 50000, 50000},
		{"above max", 200000, 50000},
	}

	o := New(nil, Config{MaxRate: 50000})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o.SetSampleRateHz(tt.hz)
			if got := o.SampleRateHz(); got != tt.want {
				t.Errorf("SampleRateHz() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOutput_DisabledHoldsQueue(t *testing.T) {
	dac := &recordDAC{}
	o := New(dac, Config{Capacity: 8})

	if err := o.PushSample(queue.Sample{X: 10, Y: 20, A: 4095, B: 4095}); err != nil {
		t.Fatalf("PushSample() error = %v", err)
	}
	o.Tick()
	if o.Used() != 1 {
		t.Errorf("Used() = %d, want 1 while disabled", o.Used())
	}
	if dac.samples[0] != (queue.Sample{}) {
		t.Errorf("disabled tick wrote %+v, want blank", dac.samples[0])
	}
	if st := o.Stats(); st.Underruns != 0 || st.Emitted != 0 {
		t.Errorf("Stats() = %+v, want zero while disabled", st)
	}
}

func TestOutput_EnabledConsumesFIFO(t *testing.T) {
	dac := &recordDAC{}
	o := New(dac, Config{Capacity: 8})
	o.SetOutputEnabled(true)

	in := []queue.Sample{
		{X: 1, Y: 2, A: 4095, B: 4095},
		{X: 3, Y: 4},
		{X: 5, Y: 6, A: 4095, B: 4095},
	}
	for _, s := range in {
		if err := o.PushSample(s); err != nil {
			t.Fatalf("PushSample() error = %v", err)
		}
	}
	for range in {
		o.Tick()
	}
	for i, s := range in {
		if dac.samples[i] != s {
			t.Errorf("sample %d = %+v, want %+v", i, dac.samples[i], s)
		}
	}
	if st := o.Stats(); st.Emitted != uint64(len(in)) {
		t.Errorf("Emitted = %d, want %d", st.Emitted, len(in))
	}
}

func TestOutput_UnderrunHoldsPositionBlanked(t *testing.T) {
	o := New(nil, Config{Capacity: 4})
	o.SetOutputEnabled(true)
	if err := o.PushSample(queue.Sample{X: 100, Y: 200, A: 4095, B: 4095}); err != nil {
		t.Fatalf("PushSample() error = %v", err)
	}
	o.Next()

	got := o.Next()
	want := queue.Sample{X: 100, Y: 200}
	if got != want {
		t.Errorf("Next() on empty = %+v, want %+v", got, want)
	}
	if st := o.Stats(); st.Underruns != 1 {
		t.Errorf("Underruns = %d, want 1", st.Underruns)
	}
}

func TestOutput_PushFullQueue(t *testing.T) {
	o := New(nil, Config{Capacity: 2})
	for range 2 {
		if err := o.PushSample(queue.Sample{}); err != nil {
			t.Fatalf("PushSample() error = %v", err)
		}
	}
	if err := o.PushSample(queue.Sample{}); !errors.Is(err, pkg.ErrQueueFull) {
		t.Errorf("PushSample() on full = %v, want ErrQueueFull", err)
	}
	if o.FreeSlots() != 0 {
		t.Errorf("FreeSlots() = %d, want 0", o.FreeSlots())
	}
}

func TestOutput_RequestClear(t *testing.T) {
	o := New(nil, Config{Capacity: 8})
	for i := range 5 {
		if err := o.PushSample(queue.Sample{X: uint16(i)}); err != nil {
			t.Fatalf("PushSample() error = %v", err)
		}
	}
	o.RequestClear()
	if o.Used() != 5 {
		t.Fatalf("clear must wait for the consumer, Used() = %d", o.Used())
	}

	o.Next()
	if o.Used() != 0 {
		t.Errorf("Used() after clear = %d, want 0", o.Used())
	}
	if st := o.Stats(); st.Cleared != 5 {
		t.Errorf("Cleared = %d, want 5", st.Cleared)
	}
}

func TestOutput_Run(t *testing.T) {
	dac := &recordDAC{}
	o := New(dac, Config{
		Capacity: 16,
		Rate:     1000,
		Period:   time.Millisecond,
		Clock:    pkg.NewStepClock(time.Millisecond),
	})
	o.SetOutputEnabled(true)
	for i := range 5 {
		if err := o.PushSample(queue.Sample{X: uint16(i), A: 1}); err != nil {
			t.Fatalf("PushSample() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if st := o.Stats(); st.Emitted != 5 {
		t.Errorf("Emitted = %d, want 5", st.Emitted)
	}
	if dac.count() <= 5 {
		t.Errorf("DAC saw %d ticks, want underrun ticks after the queue emptied", dac.count())
	}
}

func TestOutput_RunBoundsBatch(t *testing.T) {
	dac := &recordDAC{}
	o := New(dac, Config{
		Rate:     100000,
		Period:   time.Millisecond,
		MaxBatch: 3,
		Clock:    pkg.NewStepClock(time.Second),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if n := dac.count(); n%3 != 0 || n == 0 {
		t.Errorf("DAC saw %d ticks, want a nonzero multiple of MaxBatch", n)
	}
}
