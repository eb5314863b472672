//go:build profile

package prof

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func nonEmpty(t *testing.T, path string) {
	t.Helper()
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(%s) error = %v", filepath.Base(path), err)
	}
	if fi.Size() == 0 {
		t.Errorf("%s is empty", filepath.Base(path))
	}
}

func TestSession_WritesProfiles(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CPU:       filepath.Join(dir, "cpu.prof"),
		Heap:      filepath.Join(dir, "heap.prof"),
		Block:     filepath.Join(dir, "block.prof"),
		Mutex:     filepath.Join(dir, "mutex.prof"),
		Goroutine: filepath.Join(dir, "goroutine.prof"),
	}

	s, err := Start(opts)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				mu.Lock()
				_ = make([]byte, 256)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	for _, path := range []string{opts.CPU, opts.Heap, opts.Block, opts.Mutex, opts.Goroutine} {
		nonEmpty(t, path)
	}
}

func TestSession_OneCPUProfile(t *testing.T) {
	dir := t.TempDir()

	s, err := Start(Options{CPU: filepath.Join(dir, "a.prof")})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if _, err := Start(Options{CPU: filepath.Join(dir, "b.prof")}); !errors.Is(err, ErrCPUProfileActive) {
		t.Errorf("second Start() error = %v, want %v", err, ErrCPUProfileActive)
	}
}

func TestSession_BadPaths(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing", "x.prof")

	if _, err := Start(Options{CPU: missing}); err == nil {
		t.Fatal("Start() with unwritable CPU path succeeded")
	}
	// The failed start must release the CPU profile.
	s, err := Start(Options{CPU: filepath.Join(t.TempDir(), "cpu.prof"), Heap: missing})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(); err == nil {
		t.Error("Stop() with unwritable heap path returned nil")
	}
}

func TestSession_Serve(t *testing.T) {
	s, err := Start(Options{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.Addr() == "" {
		t.Fatal("Addr() is empty")
	}

	resp, err := http.Get("http://" + s.Addr() + "/debug/pprof/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := http.Get("http://" + s.Addr() + "/debug/pprof/"); err == nil {
		t.Error("listener still serving after Stop")
	}
}
