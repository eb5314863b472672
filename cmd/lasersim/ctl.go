package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardnew/softlaser/control"
	"github.com/ardnew/softlaser/control/fifo"
	"github.com/ardnew/softlaser/frame"
	"github.com/ardnew/softlaser/pkg"
)

// errCommandFailed reports a reply carrying StatusFail.
var errCommandFailed = errors.New("command failed")

// streamPoll is how long stream waits when the device queue is full.
const streamPoll = 2 * time.Millisecond

func newCtlCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ctl DIR COMMAND [VALUE]",
		Short: "Talk to a running play --control-dir",
		Long: `Ctl sends one host command through the control pipes in DIR and prints
the reply. COMMAND is one of:

  set-output on|off     set-rate HZ           clear-queue
  get-output            get-rate              get-max-rate
  get-element-count     get-packet-samples    get-dac-min
  get-dac-max           get-queue-used        get-queue-free
  get-firmware-major    get-firmware-minor

or "stream FILE.LS2", which streams a raw file as host samples.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 && args[1] != "stream" {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			host, err := fifo.Dial(args[0])
			if err != nil {
				return err
			}
			defer host.Close()

			w := cmd.OutOrStdout()
			if args[1] == "stream" {
				if len(args) < 3 {
					return fmt.Errorf("%w: stream needs a file", pkg.ErrInvalidParameter)
				}
				return streamFile(ctx, w, host, args[2])
			}

			var value string
			if len(args) == 3 {
				value = args[2]
			}
			req, err := buildRequest(args[1], value)
			if err != nil {
				return err
			}
			resp, err := host.Command(ctx, &req)
			if err != nil {
				return err
			}
			out, err := formatReply(req[0], &resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, out)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "reply timeout")
	return cmd
}

// buildRequest encodes the named command and its optional argument.
func buildRequest(name, value string) (control.Packet, error) {
	var req control.Packet
	cmd, ok := control.CommandByName(name)
	if !ok {
		return req, fmt.Errorf("%w: unknown command %q", pkg.ErrInvalidParameter, name)
	}
	req[0] = cmd

	switch cmd {
	case control.CmdSetOutput:
		switch strings.ToLower(value) {
		case "on", "1", "true":
			req[1] = 1
		case "off", "0", "false":
		default:
			return req, fmt.Errorf("%w: %s wants on or off, got %q", pkg.ErrInvalidParameter, name, value)
		}
	case control.CmdSetRate:
		hz, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return req, fmt.Errorf("%w: %s wants a rate in Hz: %w", pkg.ErrInvalidParameter, name, err)
		}
		binary.LittleEndian.PutUint32(req[1:], uint32(hz))
	default:
		if value != "" {
			return req, fmt.Errorf("%w: %s takes no value", pkg.ErrInvalidParameter, name)
		}
	}
	return req, nil
}

// formatReply renders the reply to cmd.
func formatReply(cmd byte, resp *control.Packet) (string, error) {
	name := control.CommandName(cmd)
	if resp[0] != cmd {
		return "", fmt.Errorf("%w: reply to %#02x for %s", pkg.ErrProtocol, resp[0], name)
	}
	if resp[1] != control.StatusSuccess {
		return "", fmt.Errorf("%s: %w", name, errCommandFailed)
	}
	switch cmd {
	case control.CmdSetOutput, control.CmdSetRate, control.CmdClearQueue:
		return name + ": ok", nil
	case control.CmdGetOutput:
		if resp[2] != 0 {
			return name + ": on", nil
		}
		return name + ": off", nil
	}
	return name + ": " + strconv.FormatUint(uint64(replyValue(resp)), 10), nil
}

func replyValue(resp *control.Packet) uint32 {
	return binary.LittleEndian.Uint32(resp[2:])
}

// hostCommand sends one command and fails on a non-success status.
func hostCommand(ctx context.Context, host *fifo.Host, cmd byte, arg uint32) (uint32, error) {
	var req control.Packet
	req[0] = cmd
	binary.LittleEndian.PutUint32(req[1:], arg)
	resp, err := host.Command(ctx, &req)
	if err != nil {
		return 0, err
	}
	if resp[0] != cmd || resp[1] != control.StatusSuccess {
		return 0, fmt.Errorf("%s: %w", control.CommandName(cmd), errCommandFailed)
	}
	return replyValue(&resp), nil
}

// streamFile plays a raw .LS2 file through the host data channel, sending
// no more samples than the device queue has room for.
func streamFile(ctx context.Context, w io.Writer, host *fifo.Host, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	rate, err := frame.ReadRawHeader(r)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := hostCommand(ctx, host, control.CmdSetRate, rate); err != nil {
		return err
	}
	packet, err := hostCommand(ctx, host, control.CmdGetPacketSamples, 0)
	if err != nil {
		return err
	}
	if packet == 0 || packet > control.MaxDataSize/control.SampleSize {
		packet = control.MaxDataSize / control.SampleSize
	}
	if _, err := hostCommand(ctx, host, control.CmdSetOutput, 1); err != nil {
		return err
	}

	buf := make([]byte, int(packet)*control.SampleSize)
	var sent uint64
	for {
		free, err := hostCommand(ctx, host, control.CmdGetQueueFree, 0)
		if err != nil {
			return err
		}
		if free == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(streamPoll):
			}
			continue
		}

		want := int(min(free, packet)) * control.SampleSize
		n, rerr := io.ReadFull(r, buf[:want])
		n -= n % control.SampleSize
		if n > 0 {
			if err := host.Send(ctx, buf[:n]); err != nil {
				return err
			}
			sent += uint64(n / control.SampleSize)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	st := newStyles(w)
	fmt.Fprintln(w, st.good.Render("sent"), st.field("samples", sent), st.field("rate", rate))
	return nil
}
