package hal

import (
	"bytes"
	"errors"
	"testing"
)

// loopBus echoes each byte back inverted and records what was sent.
type loopBus struct {
	sent []byte
	fail error
}

func (b *loopBus) Select(bool) {}

func (b *loopBus) Transfer(v byte) (byte, error) {
	if b.fail != nil {
		return 0, b.fail
	}
	b.sent = append(b.sent, v)
	return ^v, nil
}

func (b *loopBus) Tx(w, r []byte) error { return TxBytes(b, w, r) }

func TestTxBytes(t *testing.T) {
	tests := []struct {
		name     string
		w        []byte
		rLen     int
		wantSent []byte
		wantRecv []byte
	}{
		{"write only", []byte{1, 2, 3}, -1, []byte{1, 2, 3}, nil},
		{"read only", nil, 3, []byte{Fill, Fill, Fill}, []byte{0, 0, 0}},
		{"duplex", []byte{0x0F, 0xF0}, 2, []byte{0x0F, 0xF0}, []byte{0xF0, 0x0F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &loopBus{}
			var r []byte
			if tt.rLen >= 0 {
				r = make([]byte, tt.rLen)
			}
			if err := bus.Tx(tt.w, r); err != nil {
				t.Fatalf("Tx() error = %v", err)
			}
			if !bytes.Equal(bus.sent, tt.wantSent) {
				t.Errorf("sent % x, want % x", bus.sent, tt.wantSent)
			}
			if tt.wantRecv != nil && !bytes.Equal(r, tt.wantRecv) {
				t.Errorf("received % x, want % x", r, tt.wantRecv)
			}
		})
	}
}

func TestTxBytes_LengthMismatch(t *testing.T) {
	bus := &loopBus{}
	if err := bus.Tx(make([]byte, 2), make([]byte, 3)); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Tx() error = %v, want %v", err, ErrLengthMismatch)
	}
	if len(bus.sent) != 0 {
		t.Errorf("sent %d bytes before rejecting", len(bus.sent))
	}
}

func TestTxBytes_TransferError(t *testing.T) {
	fail := errors.New("bus fault")
	bus := &loopBus{fail: fail}
	if err := bus.Tx([]byte{1}, nil); !errors.Is(err, fail) {
		t.Errorf("Tx() error = %v, want %v", err, fail)
	}
}
