package fifo

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardnew/softlaser/control"
	"github.com/ardnew/softlaser/pkg"
)

// Message types.
const (
	msgCommand = 0x01
	msgReply   = 0x02
	msgData    = 0x03
)

// Header size for messages.
const headerSize = 3 // type (1) + length (2)

// maxPayload bounds any message payload.
const maxPayload = control.MaxDataSize

// FIFO file names.
const (
	fifoCommand = "command"
	fifoReply   = "reply"
	fifoData    = "data"
)

// pollInterval is the read deadline used to notice cancellation.
const pollInterval = 100 * time.Millisecond

func createFIFO(dir, name string) error {
	path := filepath.Join(dir, name)

	// Remove existing file if any
	os.Remove(path)

	if err := syscall.Mkfifo(path, 0o666); err != nil {
		return fmt.Errorf("mkfifo %s: %w", name, err)
	}
	return nil
}

func openFIFO(dir, name string, flag int) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), flag|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// readFull reads exactly len(buf) bytes, retrying on read deadlines so done
// is checked between attempts. ctx is honored only until the first byte
// arrives; a message is never abandoned halfway.
func readFull(ctx context.Context, done <-chan struct{}, f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		if total == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		select {
		case <-done:
			return total, pkg.ErrClosed
		default:
		}

		f.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			if err == io.EOF {
				// No writer yet
				time.Sleep(pollInterval)
				continue
			}
			return total, err
		}
	}
	return total, nil
}

// writeMessage writes one framed message. scratch must hold
// headerSize+len(data) bytes.
func writeMessage(f *os.File, scratch []byte, msgType byte, data []byte) error {
	if len(data) > maxPayload {
		return fmt.Errorf("%w: payload %d bytes", pkg.ErrBufferTooSmall, len(data))
	}
	scratch[0] = msgType
	binary.LittleEndian.PutUint16(scratch[1:3], uint16(len(data)))
	copy(scratch[headerSize:], data)

	total := headerSize + len(data)
	written := 0
	for written < total {
		m, err := f.Write(scratch[written:total])
		written += m
		if err != nil {
			return err
		}
	}
	return nil
}

// readMessage reads one framed message of the wanted type into buf.
func readMessage(ctx context.Context, done <-chan struct{}, f *os.File, want byte, buf []byte) (int, error) {
	var header [headerSize]byte
	if _, err := readFull(ctx, done, f, header[:]); err != nil {
		return 0, err
	}

	length := int(binary.LittleEndian.Uint16(header[1:3]))
	if header[0] != want {
		return 0, fmt.Errorf("%w: message type %#x, want %#x", pkg.ErrProtocol, header[0], want)
	}
	if length > len(buf) {
		return 0, fmt.Errorf("%w: message %d bytes", pkg.ErrBufferTooSmall, length)
	}
	if length == 0 {
		return 0, nil
	}
	// Messages are written whole, so the payload follows the header.
	return readFull(context.WithoutCancel(ctx), done, f, buf[:length])
}
