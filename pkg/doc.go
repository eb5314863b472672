// Package pkg provides shared utilities for the softlaser controller.
//
// This package contains common functionality used by the storage driver,
// frame decoder, playback orchestrator and host simulator, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values shared across packages
//   - Component identifiers for log filtering
//   - A [Clock] abstraction so protocol deadlines can be tested with a fake
//
// # Logging
//
// The logging subsystem wraps [log/slog] with controller-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentPlayer, "file opened", "name", "SHOW.ILD")
//
// # Errors
//
// Common errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrQueueFull) {
//	    // try again next tick
//	}
package pkg
