package control

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/queue"
)

func TestPipe_CommandRoundTrip(t *testing.T) {
	h, _, _ := newTestHandler(16)
	p := NewPipe(0)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		for ctx.Err() == nil {
			if h.Service(p, 4) == 0 {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	var req Packet
	req[0] = CmdGetMaxRate
	resp, err := p.Command(ctx, &req)
	if err != nil {
		t.Fatalf("Command() error = %v", err)
	}
	if resp[0] != CmdGetMaxRate || binary.LittleEndian.Uint32(resp[2:]) != 100000 {
		t.Errorf("reply = % x", resp[:6])
	}
}

func TestPipe_SendSplitsPackets(t *testing.T) {
	p := NewPipe(4)
	defer p.Close()

	data := make([]byte, MaxDataSize+3*SampleSize)
	if err := p.Send(context.Background(), data); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	var buf [MaxDataSize]byte
	var sizes []int
	for {
		n, ok := p.PollData(buf[:])
		if !ok {
			break
		}
		sizes = append(sizes, n)
	}
	if len(sizes) != 2 || sizes[0] != MaxDataSize || sizes[1] != 3*SampleSize {
		t.Errorf("packet sizes = %v, want [%d %d]", sizes, MaxDataSize, 3*SampleSize)
	}
}

func TestPipe_ServiceData(t *testing.T) {
	h, out, _ := newTestHandler(16)
	p := NewPipe(4)
	defer p.Close()

	if err := p.Send(context.Background(), samples(queue.Sample{X: 9}, queue.Sample{X: 10})); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if n := h.Service(p, 4); n != 1 {
		t.Errorf("Service() = %d, want 1 packet", n)
	}
	if out.Used() != 2 {
		t.Errorf("Used() = %d, want 2", out.Used())
	}
}

func TestPipe_Closed(t *testing.T) {
	p := NewPipe(1)
	p.Close()

	var req Packet
	if _, err := p.Command(context.Background(), &req); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("Command() error = %v, want ErrClosed", err)
	}
	if err := p.Reply(&req); !errors.Is(err, pkg.ErrClosed) && err != nil {
		t.Errorf("Reply() error = %v", err)
	}
}

func TestPipe_CommandCancelled(t *testing.T) {
	p := NewPipe(1)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var req Packet
	if _, err := p.Command(ctx, &req); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Command() error = %v, want deadline exceeded", err)
	}
}

func TestPipe_CommandAfterCancelledCommand(t *testing.T) {
	h, _, _ := newTestHandler(16)
	p := NewPipe(0)
	defer p.Close()

	// Nothing services the pipe yet, so the first command times out queued.
	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()

	var stale Packet
	stale[0] = CmdGetMaxRate
	if _, err := p.Command(short, &stale); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Command() error = %v, want deadline exceeded", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		for ctx.Err() == nil {
			if h.Service(p, 4) == 0 {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	for _, cmd := range []byte{CmdGetQueueFree, CmdGetFirmwareMajor} {
		var req Packet
		req[0] = cmd
		resp, err := p.Command(ctx, &req)
		if err != nil {
			t.Fatalf("Command(%#x) error = %v", cmd, err)
		}
		if resp[0] != cmd {
			t.Errorf("Command(%#x) reply for %#x", cmd, resp[0])
		}
	}
}
