package queue

import (
	"sync/atomic"

	"github.com/ardnew/softlaser/pkg"
)

// Sample is one DAC-ready output unit: beam position and the two intensity
// channels, already scaled into the DAC's native range.
type Sample struct {
	X uint16
	Y uint16
	A uint16
	B uint16
}

// Ring is a fixed-capacity SPSC ring of Samples.
type Ring struct {
	buf []Sample

	// head counts samples ever pushed; written only by the producer.
	head atomic.Uint64
	// tail counts samples ever popped; written only by the consumer.
	tail atomic.Uint64
}

// New allocates a Ring holding up to capacity samples.
// A capacity below 1 is raised to 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Sample, capacity)}
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Used returns the number of samples waiting to be consumed.
func (r *Ring) Used() int {
	t := r.tail.Load()
	h := r.head.Load()
	return int(h - t)
}

// FreeSlots returns how many samples can be pushed without failing.
// The result is never negative.
func (r *Ring) FreeSlots() int {
	free := len(r.buf) - r.Used()
	if free < 0 {
		return 0
	}
	return free
}

// Push appends s. It never blocks; a full ring returns [pkg.ErrQueueFull]
// and leaves the ring unchanged.
func (r *Ring) Push(s Sample) error {
	h := r.head.Load()
	if h-r.tail.Load() >= uint64(len(r.buf)) {
		return pkg.ErrQueueFull
	}
	r.buf[h%uint64(len(r.buf))] = s
	r.head.Store(h + 1)
	return nil
}

// Pop removes and returns the oldest sample. ok is false when empty.
// Pop must only be called from the consumer context.
func (r *Ring) Pop() (s Sample, ok bool) {
	t := r.tail.Load()
	if t == r.head.Load() {
		return Sample{}, false
	}
	s = r.buf[t%uint64(len(r.buf))]
	r.tail.Store(t + 1)
	return s, true
}

// Drain discards every queued sample and returns how many were dropped.
// Drain must only be called from the consumer context.
func (r *Ring) Drain() int {
	t := r.tail.Load()
	h := r.head.Load()
	r.tail.Store(h)
	return int(h - t)
}
