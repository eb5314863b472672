// Package fifo carries the host control channel over named pipes.
//
// The controller side creates a directory holding three FIFOs:
//
//	dir/
//	├── command   # command requests (host → controller)
//	├── reply     # command replies (controller → host)
//	└── data      # sample packets (host → controller)
//
// Every message is framed as [type, len_lo, len_hi, payload...]. [Device]
// relays framed messages into a control.Pipe that the controller loop
// polls; [Host] is the other end, used by a separate process.
//
// Usage:
//
//	pipe := control.NewPipe(0)
//	dev := fifo.New("/tmp/laser", pipe)
//	if err := dev.Init(); err != nil { ... }
//	go dev.Run(ctx)
//
//	// in another process
//	host, _ := fifo.Dial("/tmp/laser")
//	resp, _ := host.Command(ctx, &req)
package fifo
