// Package output is the consumer side of the sample path.
//
// [Output] owns the sample queue. The playback orchestrator and the host
// control channel push through the [Sink] interface; an output clock drains
// the queue one sample per tick into a [DAC]. While output is disabled the
// clock emits a blanked sample at the last beam position and leaves the queue
// untouched, so the producer can fill it up to a low-water mark before the
// first sample is shown.
//
// Two DAC backends live in subpackages: output/audio renders X and Y as a
// stereo audio stream, and output/preview plots consumed samples in a scope
// window. Both are excluded by the headless build tag.
package output
