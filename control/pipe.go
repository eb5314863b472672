package control

import (
	"context"
	"sync"

	"github.com/ardnew/softlaser/pkg"
)

// Port is the controller side of a host link. Every method is non-blocking
// except Reply, which may wait for the host to collect an earlier reply.
type Port interface {
	// PollCommand copies the next pending command into pkt.
	PollCommand(pkt *Packet) bool

	// Reply sends the answer to the last polled command.
	Reply(pkt *Packet) error

	// PollData copies the next pending data packet into buf.
	PollData(buf []byte) (int, bool)
}

type dataPacket struct {
	n int
	b [MaxDataSize]byte
}

// Pipe is an in-process host link. The controller polls it as a Port; a
// host calls Command and Send.
type Pipe struct {
	cmds    chan Packet
	replies chan Packet
	data    chan dataPacket

	// hostMutex serializes Command round trips and guards abandoned, the
	// number of queued commands whose caller gave up before the reply.
	hostMutex sync.Mutex
	abandoned int

	done      chan struct{}
	closeOnce sync.Once
}

// Default Pipe depths.
const (
	DefaultCommandDepth = 4
	DefaultDataDepth    = 16
)

// NewPipe returns a Pipe buffering up to dataDepth data packets. A depth
// below 1 uses DefaultDataDepth.
func NewPipe(dataDepth int) *Pipe {
	if dataDepth < 1 {
		dataDepth = DefaultDataDepth
	}
	return &Pipe{
		cmds:    make(chan Packet, DefaultCommandDepth),
		replies: make(chan Packet, DefaultCommandDepth),
		data:    make(chan dataPacket, dataDepth),
		done:    make(chan struct{}),
	}
}

// PollCommand implements Port.
func (p *Pipe) PollCommand(pkt *Packet) bool {
	select {
	case *pkt = <-p.cmds:
		return true
	default:
		return false
	}
}

// Reply implements Port.
func (p *Pipe) Reply(pkt *Packet) error {
	select {
	case p.replies <- *pkt:
		return nil
	case <-p.done:
		return pkg.ErrClosed
	}
}

// PollData implements Port.
func (p *Pipe) PollData(buf []byte) (int, bool) {
	select {
	case d := <-p.data:
		return copy(buf, d.b[:d.n]), true
	default:
		return 0, false
	}
}

// Command sends req and waits for the controller's reply. Replies to
// earlier commands abandoned by a cancelled ctx are discarded.
func (p *Pipe) Command(ctx context.Context, req *Packet) (Packet, error) {
	p.hostMutex.Lock()
	defer p.hostMutex.Unlock()

	select {
	case p.cmds <- *req:
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	case <-p.done:
		return Packet{}, pkg.ErrClosed
	}

	for {
		select {
		case resp := <-p.replies:
			if p.abandoned > 0 {
				p.abandoned--
				continue
			}
			return resp, nil
		case <-ctx.Done():
			p.abandoned++
			return Packet{}, ctx.Err()
		case <-p.done:
			return Packet{}, pkg.ErrClosed
		}
	}
}

// Send queues b as one or more data packets of at most MaxDataSize bytes,
// split on sample boundaries. It blocks while the pipe is full.
func (p *Pipe) Send(ctx context.Context, b []byte) error {
	const chunk = MaxDataSize / SampleSize * SampleSize
	for len(b) > 0 {
		var d dataPacket
		d.n = copy(d.b[:chunk], b)
		b = b[d.n:]

		select {
		case p.data <- d:
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return pkg.ErrClosed
		}
	}
	return nil
}

// Close unblocks every pending and future host call.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	return nil
}
