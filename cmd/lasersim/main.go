// Command lasersim runs the laser projector firmware core on a host.
//
// The simulated SD card, the output clock and the main loop run exactly as
// they would on the controller; the DAC is replaced by an audio device, a
// scope window, or nothing.
//
// Usage:
//
//	lasersim [global options] <command> [options] [args]
//
// Commands:
//
//	play [DIR]          Play the .LS2 and .ILD files on the emulated card
//	inspect FILE.ILD    List the frames of an ILDA file
//	selftest            Write and verify blocks through the SD driver
//	mkimage DIR IMAGE   Build a FAT card image from the files in DIR
//	ctl DIR COMMAND     Send a host command to a running play --control-dir
//
// Global options:
//
//	--log-level level   debug, info, warn or error (default: warn)
//	--log-format format text or json (default: text)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "lasersim:", err)
		os.Exit(1)
	}
}
