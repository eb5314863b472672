package fifo

import (
	"context"
	"os"
	"sync"

	"github.com/ardnew/softlaser/control"
	"github.com/ardnew/softlaser/pkg"
)

// Host is the host end of a Device's FIFOs.
type Host struct {
	cmdWrite  *os.File
	replyRead *os.File
	dataWrite *os.File

	// mutex serializes host calls and guards abandoned, the number of
	// replies still owed to commands whose caller gave up.
	mutex     sync.Mutex
	abandoned int
	closeCh   chan struct{}
	closeOnce sync.Once

	writeBuf [headerSize + maxPayload]byte
	readBuf  [maxPayload]byte
}

// Dial opens the FIFOs a Device created in dir.
func Dial(dir string) (*Host, error) {
	h := &Host{closeCh: make(chan struct{})}

	var err error
	if h.cmdWrite, err = openFIFO(dir, fifoCommand, os.O_WRONLY); err != nil {
		return nil, err
	}
	if h.replyRead, err = openFIFO(dir, fifoReply, os.O_RDONLY); err != nil {
		h.cmdWrite.Close()
		return nil, err
	}
	if h.dataWrite, err = openFIFO(dir, fifoData, os.O_WRONLY); err != nil {
		h.cmdWrite.Close()
		h.replyRead.Close()
		return nil, err
	}
	return h, nil
}

// Command sends req and waits for the reply. Replies owed to earlier
// commands abandoned by a cancelled ctx are discarded.
func (h *Host) Command(ctx context.Context, req *control.Packet) (control.Packet, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	var resp control.Packet
	if err := writeMessage(h.cmdWrite, h.writeBuf[:], msgCommand, req[:]); err != nil {
		return resp, err
	}
	for {
		n, err := readMessage(ctx, h.closeCh, h.replyRead, msgReply, h.readBuf[:])
		if err != nil {
			if ctx.Err() != nil {
				h.abandoned++
			}
			return resp, err
		}
		if h.abandoned > 0 {
			h.abandoned--
			continue
		}
		if n != control.PacketSize {
			return resp, pkg.ErrProtocol
		}
		copy(resp[:], h.readBuf[:n])
		return resp, nil
	}
}

// Send writes b as data messages of at most control.MaxDataSize bytes.
func (h *Host) Send(ctx context.Context, b []byte) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for len(b) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(len(b), maxPayload)
		if err := writeMessage(h.dataWrite, h.writeBuf[:], msgData, b[:n]); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Close releases the host ends.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		close(h.closeCh)
	})
	h.cmdWrite.Close()
	h.replyRead.Close()
	return h.dataWrite.Close()
}
