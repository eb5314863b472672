// Package preview shows consumed samples in an XY-scope window.
//
// [Scope] is an output DAC and an ebiten game at once: WriteSample queues
// lit samples from the output clock, and every drawn frame fades the
// previous image and plots the queued points, imitating phosphor
// persistence. The raster itself lives in [Canvas], which has no graphics
// dependency.
package preview
