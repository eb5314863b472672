package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/softlaser/control"
	"github.com/ardnew/softlaser/control/fifo"
	"github.com/ardnew/softlaser/controller"
	"github.com/ardnew/softlaser/fsys"
	"github.com/ardnew/softlaser/output"
	"github.com/ardnew/softlaser/output/audio"
	"github.com/ardnew/softlaser/output/preview"
	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/pkg/prof"
	"github.com/ardnew/softlaser/player"
	"github.com/ardnew/softlaser/watchdog"
)

type playOptions struct {
	card       cardOptions
	hostFS     bool
	audio      bool
	preview    bool
	duration   time.Duration
	controlDir string
	watchdog   time.Duration
	scale      float64
	invertX    bool
	invertY    bool
	swapXY     bool
	profile    prof.Options
}

func newPlayCommand() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play [DIR]",
		Short: "Play the .LS2 and .ILD files on the emulated card",
		Long: `Play formats the emulated SD card with the files in DIR and plays every
.LS2 and .ILD file on it round robin until interrupted. Without DIR, the
image named by --card-image is played as it is. --host-fs serves DIR
directly instead, for files whose names do not fit 8.3.

Samples go to the sound card (X left, Y right) with --audio and to a scope
window with --preview.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) > 0 {
				dir = args[0]
			}
			return runPlay(cmd.Context(), cmd.OutOrStdout(), dir, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.card.image, "card-image", "", "card image backing the emulated SD card (default: in-memory)")
	f.Uint32Var(&opts.card.sectors, "card-sectors", 0, "sectors in a new card (default: sized to DIR)")
	f.StringVar(&opts.card.kind, "card", "sd2block", "emulated card kind (mmc, sd1, sd2, sd2block)")
	f.BoolVar(&opts.hostFS, "host-fs", false, "serve DIR directly instead of formatting the card")
	f.BoolVar(&opts.audio, "audio", false, "drive the sound card as the DAC")
	f.BoolVar(&opts.preview, "preview", false, "open an XY scope window")
	f.DurationVar(&opts.duration, "duration", 0, "stop after this long (default: run until interrupted)")
	f.StringVar(&opts.controlDir, "control-dir", "", "create the host control pipes in this directory")
	f.DurationVar(&opts.watchdog, "watchdog", watchdog.DefaultTimeout, "watchdog timeout")
	f.Float64Var(&opts.scale, "scale", player.DefaultScale, "ILDA coordinate scale (0, 1]")
	f.BoolVar(&opts.invertX, "invert-x", false, "mirror the X axis")
	f.BoolVar(&opts.invertY, "invert-y", false, "mirror the Y axis")
	f.BoolVar(&opts.swapXY, "swap-xy", false, "exchange the X and Y axes")
	f.StringVar(&opts.profile.CPU, "cpuprofile", "", "write a CPU profile to this file (profile builds)")
	f.StringVar(&opts.profile.Heap, "memprofile", "", "write a heap profile to this file on exit (profile builds)")
	f.StringVar(&opts.profile.Block, "blockprofile", "", "write a block profile to this file on exit (profile builds)")
	f.StringVar(&opts.profile.Mutex, "mutexprofile", "", "write a mutex profile to this file on exit (profile builds)")
	f.StringVar(&opts.profile.Goroutine, "goroutineprofile", "", "write a goroutine profile to this file on exit (profile builds)")
	f.StringVar(&opts.profile.Addr, "pprof-addr", "", "serve /debug/pprof on this address (profile builds)")
	return cmd
}

func runPlay(ctx context.Context, w io.Writer, dir string, opts playOptions) (err error) {
	if opts.scale <= 0 || opts.scale > 1 {
		return fmt.Errorf("%w: scale %g", pkg.ErrInvalidParameter, opts.scale)
	}
	switch {
	case dir == "" && opts.card.image == "":
		return fmt.Errorf("%w: nothing to play without DIR or --card-image", pkg.ErrInvalidParameter)
	case dir == "" && opts.hostFS:
		return fmt.Errorf("%w: --host-fs needs DIR", pkg.ErrInvalidParameter)
	}

	var files []fsys.Source
	if dir == "" {
		// A blank new image would never mount.
		if _, err := os.Stat(opts.card.image); err != nil {
			return err
		}
	} else if opts.hostFS {
		if _, err := os.Stat(dir); err != nil {
			return err
		}
	} else if dir != "" {
		if files, err = collectSources(dir); err != nil {
			return err
		}
		if opts.card.sectors == 0 {
			opts.card.sectors = imageSectors(files, defaultImageSectors)
		}
	}

	session, err := prof.Start(opts.profile)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, session.Stop())
	}()

	card, err := openCard(opts.card)
	if err != nil {
		return err
	}
	defer card.Close()

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	pcfg := player.DefaultConfig()
	pcfg.Calibration = player.Calibration{
		Scale:   opts.scale,
		InvertX: opts.invertX,
		InvertY: opts.invertY,
		SwapXY:  opts.swapXY,
	}

	var scope *preview.Scope
	var dac output.DAC = output.NullDAC{}
	if opts.preview {
		scope = preview.New(preview.DefaultConfig())
		dac = scope
	}

	ocfg := output.DefaultConfig()
	ocfg.MaxRate = pcfg.MaxRate

	var (
		out   *output.Output
		sound *audio.Player
	)
	if opts.audio {
		// The sound card pulls samples, so it is the output clock.
		out = output.New(output.NullDAC{}, ocfg)
		acfg := audio.DefaultConfig()
		acfg.DACMax = pcfg.DACMax
		if scope != nil {
			acfg.Tap = scope
		}
		sound, err = audio.Open(out, acfg)
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		defer sound.Close()
	} else {
		out = output.New(dac, ocfg)
	}

	var vol fsys.Filesystem
	if opts.hostFS {
		vol = fsys.NewVolume(os.DirFS(dir), card)
	} else {
		if dir != "" {
			img := fsys.Image{Label: "LASERSIM", Files: files}
			if err := fsys.Format(card.medium, img); err != nil {
				return fmt.Errorf("format card: %w", err)
			}
			pkg.LogInfo(pkg.ComponentStorage, "card formatted",
				"files", len(files), "sectors", card.medium.SectorCount())
		}
		vol = fsys.NewFAT(card)
	}
	pl := player.New(vol, out, pcfg)
	pl.SetTransitionHook(func(from, to player.State, _ player.Event) {
		if to.Phase() == player.PhasePlayRawFile || to.Phase() == player.PhasePlayIldaFile {
			if from.Phase() == player.PhaseNextFile {
				pkg.LogInfo(pkg.ComponentController, "playing", "file", pl.Current())
			}
		}
	})

	var ctrl *controller.Controller
	wd := watchdog.NewSoftware(watchdog.Config{Timeout: opts.watchdog}, func() {
		ctrl.RequestReset()
	})

	ccfg := controller.Config{Watchdog: wd}
	var dev *fifo.Device
	if opts.controlDir != "" {
		pipe := control.NewPipe(0)
		dev = fifo.New(opts.controlDir, pipe)
		if err := dev.Init(); err != nil {
			return fmt.Errorf("control pipes: %w", err)
		}
		defer dev.Close()
		ccfg.Host = control.NewHandler(out, control.Config{DACMax: pcfg.DACMax})
		ccfg.Port = pipe
	}
	ctrl = controller.New(pl, ccfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return wd.Run(gctx) })
	if sound != nil {
		sound.Start()
	} else {
		g.Go(func() error { return out.Run(gctx) })
	}
	if dev != nil {
		g.Go(func() error { return dev.Run(gctx) })
	}

	// The scope window must own the main goroutine.
	if scope != nil {
		go func() {
			<-gctx.Done()
			scope.Close()
		}()
		if err := scope.Run(); err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("preview: %w", err)
		}
		cancel()
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	printPlayStats(w, newStyles(w), ctrl, out, wd)
	return err
}

func printPlayStats(w io.Writer, st styles, ctrl *controller.Controller, out *output.Output, wd *watchdog.Software) {
	ps := ctrl.Player().Stats()
	oss := out.Stats()
	cs := ctrl.Stats()
	fmt.Fprintln(w, st.header.Render("player"),
		st.field("files", ps.FilesOpened), st.field("skipped", ps.FilesSkipped),
		st.field("frames", ps.Frames), st.field("points", ps.Points),
		st.field("raw", ps.RawSamples), st.field("mounts", ps.Mounts))
	fmt.Fprintln(w, st.header.Render("output"),
		st.field("emitted", oss.Emitted), st.field("underruns", oss.Underruns),
		st.field("cleared", oss.Cleared))
	fmt.Fprintln(w, st.header.Render("loop"),
		st.field("steps", cs.Steps), st.field("paused", cs.Paused),
		st.field("resets", cs.Resets), st.field("watchdog", wd.Expirations()))
}
