//go:build profile

package prof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/ardnew/softlaser/pkg"

	_ "net/http/pprof" // Register HTTP handlers at /debug/pprof/
)

// ErrCPUProfileActive indicates another session is recording a CPU profile.
var ErrCPUProfileActive = errors.New("cpu profile already active")

// cpuActive is held by the session recording the CPU profile.
var cpuActive atomic.Bool

// Session is a set of running profiles started by Start.
type Session struct {
	opts Options

	cpu    *os.File
	server *http.Server
	addr   string
}

// Start begins the profiles opts selects. On error nothing is left running.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}

	if opts.CPU != "" {
		if !cpuActive.CompareAndSwap(false, true) {
			return nil, ErrCPUProfileActive
		}
		f, err := os.Create(opts.CPU)
		if err != nil {
			cpuActive.Store(false)
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			cpuActive.Store(false)
			return nil, err
		}
		s.cpu = f
	}

	if opts.Addr != "" {
		ln, err := net.Listen("tcp", opts.Addr)
		if err != nil {
			s.stopCPU()
			return nil, fmt.Errorf("pprof listener: %w", err)
		}
		s.addr = ln.Addr().String()
		s.server = &http.Server{Handler: http.DefaultServeMux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				pkg.LogWarn(pkg.ComponentController, "pprof listener stopped", "addr", s.addr, "error", err)
			}
		}()
		pkg.LogInfo(pkg.ComponentController, "serving pprof", "addr", s.addr)
	}

	if opts.Block != "" {
		runtime.SetBlockProfileRate(1)
	}
	if opts.Mutex != "" {
		runtime.SetMutexProfileFraction(1)
	}
	return s, nil
}

// Addr returns the address the pprof listener is bound to, or "".
func (s *Session) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Stop ends the CPU profile, writes the snapshot profiles and shuts down
// the listener. Every step runs; their errors are joined.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	errs := []error{s.stopCPU()}

	if s.opts.Heap != "" {
		// Account for garbage up to now.
		runtime.GC()
	}
	for _, p := range s.opts.snapshots() {
		errs = append(errs, write(p))
	}
	if s.opts.Block != "" {
		runtime.SetBlockProfileRate(0)
	}
	if s.opts.Mutex != "" {
		runtime.SetMutexProfileFraction(0)
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		errs = append(errs, s.server.Shutdown(ctx))
		cancel()
		s.server = nil
	}
	return errors.Join(errs...)
}

func (s *Session) stopCPU() error {
	if s.cpu == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := s.cpu.Close()
	s.cpu = nil
	cpuActive.Store(false)
	return err
}

func write(p snapshot) error {
	f, err := os.Create(p.path)
	if err != nil {
		return err
	}
	if err := pprof.Lookup(p.name).WriteTo(f, 0); err != nil {
		f.Close()
		return fmt.Errorf("%s profile: %w", p.name, err)
	}
	return f.Close()
}
