// Package controller runs the single cooperative main loop.
//
// Each [Controller.Step] feeds the watchdog, services pending host
// packets, and, unless the host is streaming its own samples, advances the
// playback orchestrator by one tick. No step blocks beyond a single storage
// access, so the watchdog is fed even while the card misbehaves.
package controller
