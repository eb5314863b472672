// Package queue implements the bounded sample queue between the playback
// orchestrator and the output clock.
//
// [Ring] is a single-producer, single-consumer FIFO with a capacity fixed at
// construction. The producer calls [Ring.FreeSlots] and [Ring.Push]; the
// consumer calls [Ring.Pop] and [Ring.Drain]. Indices are free-running
// counters read and written atomically, so no lock is taken on either side
// and the consumer never blocks waiting on the producer.
package queue
