package fifo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/softlaser/control"
	"github.com/ardnew/softlaser/pkg"
)

// Device relays host messages from named pipes into a control.Pipe.
type Device struct {
	dir  string
	pipe *control.Pipe

	cmdRead    *os.File
	replyWrite *os.File
	dataRead   *os.File

	mutex     sync.Mutex
	initDone  bool
	closeCh   chan struct{}
	closeOnce sync.Once

	// Internal buffers, one set per relay goroutine
	cmdBuf   [maxPayload]byte
	replyBuf [headerSize + control.PacketSize]byte
	dataBuf  [maxPayload]byte
}

// New returns a Device that will create its FIFOs in dir.
func New(dir string, pipe *control.Pipe) *Device {
	return &Device{
		dir:     dir,
		pipe:    pipe,
		closeCh: make(chan struct{}),
	}
}

// Dir returns the FIFO directory.
func (d *Device) Dir() string {
	return d.dir
}

// Init creates the directory and FIFOs and opens the controller ends.
func (d *Device) Init() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.initDone {
		return pkg.ErrAlreadyRunning
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create fifo dir: %w", err)
	}
	for _, name := range []string{fifoCommand, fifoReply, fifoData} {
		if err := createFIFO(d.dir, name); err != nil {
			return err
		}
	}

	// O_RDWR keeps each FIFO open even while no host is attached
	var err error
	if d.cmdRead, err = openFIFO(d.dir, fifoCommand, os.O_RDWR); err != nil {
		d.cleanup()
		return err
	}
	if d.replyWrite, err = openFIFO(d.dir, fifoReply, os.O_RDWR); err != nil {
		d.cleanup()
		return err
	}
	if d.dataRead, err = openFIFO(d.dir, fifoData, os.O_RDWR); err != nil {
		d.cleanup()
		return err
	}

	d.initDone = true
	pkg.LogInfo(pkg.ComponentControl, "fifo host link initialized", "dir", d.dir)
	return nil
}

// Run relays messages until ctx is cancelled or Close is called.
func (d *Device) Run(ctx context.Context) error {
	d.mutex.Lock()
	if !d.initDone {
		d.mutex.Unlock()
		return pkg.ErrNotRunning
	}
	d.mutex.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.relayCommands(ctx) })
	g.Go(func() error { return d.relayData(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, pkg.ErrClosed) {
		return nil
	}
	return err
}

func (d *Device) relayCommands(ctx context.Context) error {
	var req control.Packet
	for {
		n, err := readMessage(ctx, d.closeCh, d.cmdRead, msgCommand, d.cmdBuf[:])
		if err != nil {
			if errors.Is(err, pkg.ErrProtocol) || errors.Is(err, pkg.ErrBufferTooSmall) {
				pkg.LogWarn(pkg.ComponentControl, "dropped command message", "error", err)
				continue
			}
			return err
		}
		req = control.Packet{}
		copy(req[:], d.cmdBuf[:n])

		resp, err := d.pipe.Command(ctx, &req)
		if err != nil {
			return err
		}
		if err := writeMessage(d.replyWrite, d.replyBuf[:], msgReply, resp[:]); err != nil {
			return err
		}
	}
}

func (d *Device) relayData(ctx context.Context) error {
	for {
		n, err := readMessage(ctx, d.closeCh, d.dataRead, msgData, d.dataBuf[:])
		if err != nil {
			if errors.Is(err, pkg.ErrProtocol) || errors.Is(err, pkg.ErrBufferTooSmall) {
				pkg.LogWarn(pkg.ComponentControl, "dropped data message", "error", err)
				continue
			}
			return err
		}
		if err := d.pipe.Send(ctx, d.dataBuf[:n]); err != nil {
			return err
		}
	}
}

// Close stops Run, closes the FIFOs and removes them.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		close(d.closeCh)
	})

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.cleanup()
	d.initDone = false
	return nil
}

// cleanup closes all FIFOs and removes them from the directory.
func (d *Device) cleanup() {
	for _, f := range []**os.File{&d.cmdRead, &d.replyWrite, &d.dataRead} {
		if *f != nil {
			(*f).Close()
			*f = nil
		}
	}
	for _, name := range []string{fifoCommand, fifoReply, fifoData} {
		os.Remove(filepath.Join(d.dir, name))
	}
}
