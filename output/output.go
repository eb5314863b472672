package output

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/queue"
)

// Sink is the producer-facing half of the output path.
type Sink interface {
	PushSample(s queue.Sample) error
	FreeSlots() int
	Used() int
	SetOutputEnabled(on bool)
	Enabled() bool
	SetSampleRateHz(hz uint32)
}

// DAC receives one sample per output clock tick.
type DAC interface {
	WriteSample(s queue.Sample)
}

// NullDAC discards every sample.
type NullDAC struct{}

// WriteSample implements DAC.
func (NullDAC) WriteSample(queue.Sample) {}

// Default output parameters.
const (
	DefaultCapacity = 1024
	DefaultRate     = 16000
	DefaultMaxRate  = 100000
	DefaultPeriod   = time.Millisecond

	// DefaultMaxBatch bounds how many samples one clock wake may emit after
	// the process was descheduled.
	DefaultMaxBatch = 4096
)

// Config holds output path parameters. Zero fields take defaults.
type Config struct {
	Capacity int
	Rate     uint32
	MaxRate  uint32
	Period   time.Duration
	MaxBatch int
	Clock    pkg.Clock
}

// DefaultConfig returns the default output configuration.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
		Rate:     DefaultRate,
		MaxRate:  DefaultMaxRate,
		Period:   DefaultPeriod,
		MaxBatch: DefaultMaxBatch,
		Clock:    pkg.SystemClock{},
	}
}

// Stats reports consumer-side counters.
type Stats struct {
	Emitted   uint64 // samples popped and written
	Underruns uint64 // ticks that found the queue empty while enabled
	Cleared   uint64 // samples discarded by clear requests
}

// Output implements Sink over a queue.Ring and drives a DAC.
type Output struct {
	cfg  Config
	ring *queue.Ring
	dac  DAC

	enabled  atomic.Bool
	rate     atomic.Uint32
	clearReq atomic.Bool

	emitted   atomic.Uint64
	underruns atomic.Uint64
	cleared   atomic.Uint64

	// consumer only
	last queue.Sample
}

// New creates an Output writing to dac. A nil dac discards samples.
func New(dac DAC, cfg Config) *Output {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.MaxRate == 0 {
		cfg.MaxRate = def.MaxRate
	}
	if cfg.Rate == 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = def.MaxBatch
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if dac == nil {
		dac = NullDAC{}
	}
	o := &Output{
		cfg:  cfg,
		ring: queue.New(cfg.Capacity),
		dac:  dac,
	}
	o.SetSampleRateHz(cfg.Rate)
	return o
}

// PushSample implements Sink. A full queue returns pkg.ErrQueueFull.
func (o *Output) PushSample(s queue.Sample) error {
	return o.ring.Push(s)
}

// FreeSlots implements Sink.
func (o *Output) FreeSlots() int {
	return o.ring.FreeSlots()
}

// Used implements Sink.
func (o *Output) Used() int {
	return o.ring.Used()
}

// Cap returns the queue capacity.
func (o *Output) Cap() int {
	return o.ring.Cap()
}

// SetOutputEnabled implements Sink.
func (o *Output) SetOutputEnabled(on bool) {
	if o.enabled.Swap(on) != on {
		pkg.LogDebug(pkg.ComponentOutput, "output enable changed", "enabled", on)
	}
}

// Enabled reports whether the output clock is consuming samples.
func (o *Output) Enabled() bool {
	return o.enabled.Load()
}

// SetSampleRateHz implements Sink. The rate is clamped to [1, MaxRate].
func (o *Output) SetSampleRateHz(hz uint32) {
	if hz == 0 {
		hz = 1
	}
	if hz > o.cfg.MaxRate {
		hz = o.cfg.MaxRate
	}
	o.rate.Store(hz)
}

// SampleRateHz returns the current output clock rate.
func (o *Output) SampleRateHz() uint32 {
	return o.rate.Load()
}

// MaxRateHz returns the highest rate SetSampleRateHz accepts.
func (o *Output) MaxRateHz() uint32 {
	return o.cfg.MaxRate
}

// RequestClear asks the consumer to discard everything queued at its next
// tick. The producer never touches the tail index itself.
func (o *Output) RequestClear() {
	o.clearReq.Store(true)
}

// Stats returns a snapshot of the consumer counters.
func (o *Output) Stats() Stats {
	return Stats{
		Emitted:   o.emitted.Load(),
		Underruns: o.underruns.Load(),
		Cleared:   o.cleared.Load(),
	}
}

// Next returns the sample the DAC should show for one clock tick.
// It must only be called from the consumer context.
func (o *Output) Next() queue.Sample {
	if o.clearReq.Swap(false) {
		o.cleared.Add(uint64(o.ring.Drain()))
	}
	if !o.enabled.Load() {
		return o.blank()
	}
	s, ok := o.ring.Pop()
	if !ok {
		o.underruns.Add(1)
		return o.blank()
	}
	o.last = s
	o.emitted.Add(1)
	return s
}

// blank holds the last beam position with both intensity channels off.
func (o *Output) blank() queue.Sample {
	return queue.Sample{X: o.last.X, Y: o.last.Y}
}

// Tick writes the next sample to the DAC.
func (o *Output) Tick() {
	o.dac.WriteSample(o.Next())
}

// Run is the output clock. It wakes every Period and emits as many ticks as
// the current rate owes since the previous wake, at most MaxBatch. Run
// returns nil when ctx is cancelled.
func (o *Output) Run(ctx context.Context) error {
	t := time.NewTicker(o.cfg.Period)
	defer t.Stop()

	last := o.cfg.Clock.Now()
	var owed float64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		now := o.cfg.Clock.Now()
		owed += now.Sub(last).Seconds() * float64(o.SampleRateHz())
		last = now
		if owed > float64(o.cfg.MaxBatch) {
			owed = float64(o.cfg.MaxBatch)
		}
		n := int(owed)
		owed -= float64(n)
		for range n {
			o.Tick()
		}
	}
}
