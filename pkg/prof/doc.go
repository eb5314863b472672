// Package prof records pprof profiles of a lasersim run.
//
// The real implementation is compiled only with the "profile" build tag:
//
//	go build -tags profile ./cmd/lasersim
//
// Without the tag, [Start] accepts empty [Options] and fails with
// pkg.ErrNotSupported otherwise, so a flag asking for a profile is never
// silently ignored.
//
// A [Session] streams the CPU profile while it runs and writes the heap,
// block, mutex and goroutine snapshots when stopped:
//
//	s, err := prof.Start(prof.Options{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//		return err
//	}
//	defer s.Stop()
//
// Options.Addr also serves the [net/http/pprof] handlers at /debug/pprof/
// until Stop.
package prof
