package player

import (
	"bufio"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/ardnew/softlaser/frame"
	"github.com/ardnew/softlaser/fsys"
	"github.com/ardnew/softlaser/output"
	"github.com/ardnew/softlaser/pkg"
)

// Playable file suffixes, matched case-insensitively.
const (
	SuffixRaw  = ".LS2"
	SuffixIlda = ".ILD"
)

// readBufferSize matches one storage sector.
const readBufferSize = 512

// Stats counts playback progress since the Player was created.
type Stats struct {
	Mounts       uint64
	FilesOpened  uint64
	FilesSkipped uint64
	Frames       uint64
	Loads        uint64 // StartFrame and ContinueFrame point loads
	Points       uint64 // ILDA points queued
	RawSamples   uint64 // raw samples queued
	Dropped      uint64 // directory entries that did not fit the table
}

// TransitionHook observes every state change.
type TransitionHook func(from, to State, ev Event)

// Player drives playback from a Filesystem into an output Sink.
type Player struct {
	cfg    Config
	fs     fsys.Filesystem
	sink   output.Sink
	scaler Scaler

	state State
	hook  TransitionHook
	stats Stats

	// file table
	files []string
	next  int

	dir     fsys.Dir
	file    fsys.File
	current string
	reader  *bufio.Reader

	// ILDA frame buffer
	ilda     frame.IldaFile
	points   []frame.Point
	drainPos uint32

	// raw chunk buffers
	rawBuf     []byte
	rawSamples []frame.RawSample

	mountFailing bool

	// attempted and produced track whether the last opened file queued
	// anything; idleRun counts consecutive files that did not.
	attempted bool
	produced  bool
	idleRun   int
}

// New creates a Player in state InitDisk. Every buffer is allocated here.
func New(fs fsys.Filesystem, sink output.Sink, cfg Config) *Player {
	cfg = cfg.withDefaults()
	return &Player{
		cfg:        cfg,
		fs:         fs,
		sink:       sink,
		scaler:     NewScaler(cfg.DACMax, cfg.Calibration),
		files:      make([]string, 0, cfg.MaxFiles),
		reader:     bufio.NewReaderSize(nil, readBufferSize),
		points:     make([]frame.Point, cfg.MaxFramePoints),
		rawBuf:     make([]byte, cfg.RawChunkSamples*frame.RawSampleSize),
		rawSamples: make([]frame.RawSample, cfg.RawChunkSamples),
	}
}

// Config returns the effective configuration.
func (p *Player) Config() Config {
	return p.cfg
}

// SetTransitionHook installs fn to be called on every state change.
func (p *Player) SetTransitionHook(fn TransitionHook) {
	p.hook = fn
}

// State returns the current state.
func (p *Player) State() State {
	return p.state
}

// Stats returns the playback counters.
func (p *Player) Stats() Stats {
	return p.stats
}

// Files returns a copy of the file table.
func (p *Player) Files() []string {
	return append([]string(nil), p.files...)
}

// Current returns the name of the open file, or "" if none.
func (p *Player) Current() string {
	if p.file == nil {
		return ""
	}
	return p.current
}

// Frame returns the header of the ILDA frame being played.
func (p *Player) Frame() frame.Header {
	return p.ilda.Header
}

// Reset closes any open file and returns to InitDisk with an empty table.
func (p *Player) Reset() {
	p.release()
	p.sink.SetOutputEnabled(false)
	p.files = p.files[:0]
	p.next = 0
	p.setState(NewState(PhaseInitDisk), EventNone)
}

// Close releases the open file and directory.
func (p *Player) Close() error {
	return p.release()
}

// Tick performs one bounded unit of work and returns the resulting state.
func (p *Player) Tick() State {
	ev := p.step()
	if next := Transition(p.state, ev); next != p.state {
		p.setState(next, ev)
	}
	return p.state
}

func (p *Player) setState(next State, ev Event) {
	prev := p.state
	p.state = next
	pkg.LogDebug(pkg.ComponentPlayer, "state transition",
		"from", prev.String(), "to", next.String(), "event", ev.String())

	switch next.phase {
	case PhaseMountFs:
		p.sink.SetOutputEnabled(false)
		p.release()
	case PhaseFindFiles:
		p.files = p.files[:0]
		p.next = 0
		p.attempted, p.produced, p.idleRun = false, false, 0
	}

	if p.hook != nil {
		p.hook(prev, next, ev)
	}
}

func (p *Player) step() Event {
	switch p.state.phase {
	case PhaseInitDisk:
		return EventOK
	case PhaseMountFs:
		return p.mount()
	case PhaseFindFiles:
		return p.findFile()
	case PhaseNextFile:
		return p.openNext()
	case PhasePlayRawFile:
		return p.playRaw()
	case PhasePlayIldaFile:
		return p.stepIlda()
	}
	return EventNone
}

func (p *Player) mount() Event {
	err := p.fs.Mount()
	if err == nil {
		p.dir, err = p.fs.OpenDir(p.cfg.Dir)
	}
	if err != nil {
		if !p.mountFailing {
			pkg.LogWarn(pkg.ComponentPlayer, "mount failed", "dir", p.cfg.Dir, "error", err)
			p.mountFailing = true
		}
		return EventFail
	}
	if p.mountFailing {
		pkg.LogInfo(pkg.ComponentPlayer, "mount recovered", "dir", p.cfg.Dir)
		p.mountFailing = false
	}
	p.stats.Mounts++
	return EventOK
}

// findFile reads one directory entry.
func (p *Player) findFile() Event {
	e, err := p.dir.ReadEntry()
	if err == io.EOF {
		p.closeDir()
		if len(p.files) == 0 {
			pkg.LogWarn(pkg.ComponentPlayer, "no playable files", "dir", p.cfg.Dir)
			return EventNoFiles
		}
		pkg.LogInfo(pkg.ComponentPlayer, "files found", "count", len(p.files))
		return EventFilesFound
	}
	if err != nil {
		pkg.LogWarn(pkg.ComponentPlayer, "directory read failed", "error", err)
		return EventFail
	}
	if e.IsDir || !Playable(e.Name) {
		return EventNone
	}
	if len(p.files) == cap(p.files) || len(e.Name) > p.cfg.MaxNameLen {
		p.stats.Dropped++
		pkg.LogDebug(pkg.ComponentPlayer, "file dropped", "name", e.Name)
		return EventNone
	}
	p.files = append(p.files, e.Name)
	return EventNone
}

// Playable reports whether name has a raw or ILDA suffix.
func Playable(name string) bool {
	return isRaw(name) || isIlda(name)
}

func isRaw(name string) bool {
	return strings.EqualFold(path.Ext(name), SuffixRaw)
}

func isIlda(name string) bool {
	return strings.EqualFold(path.Ext(name), SuffixIlda)
}

func (p *Player) openNext() Event {
	p.closeFile()
	if len(p.files) == 0 {
		return EventFail
	}
	if p.attempted && !p.produced {
		p.idleRun++
	} else {
		p.idleRun = 0
	}
	if p.idleRun >= len(p.files) {
		pkg.LogWarn(pkg.ComponentPlayer, "no file produced output, remounting", "files", len(p.files))
		return EventFail
	}
	p.attempted, p.produced = true, false

	name := p.files[p.next%len(p.files)]
	p.next = (p.next + 1) % len(p.files)

	f, err := p.fs.Open(path.Join(p.cfg.Dir, name))
	if err != nil {
		pkg.LogWarn(pkg.ComponentPlayer, "open failed", "file", name, "error", err)
		return EventFail
	}
	p.file = f
	p.current = name
	p.reader.Reset(f)
	p.stats.FilesOpened++

	if isRaw(name) {
		rate, err := frame.ReadRawHeader(p.reader)
		if err != nil {
			p.skip(err)
			if errors.Is(err, frame.ErrFormat) {
				return EventSkip
			}
			return EventFail
		}
		if rate > p.cfg.MaxRate {
			pkg.LogDebug(pkg.ComponentPlayer, "raw rate clamped", "file", name, "rate", rate)
			rate = p.cfg.MaxRate
		}
		p.sink.SetSampleRateHz(rate)
		pkg.LogInfo(pkg.ComponentPlayer, "playing raw file", "file", name, "rate", rate)
		return EventRawOpened
	}

	p.ilda.Reset()
	p.drainPos = 0
	p.sink.SetSampleRateHz(p.cfg.DefaultILDARate)
	pkg.LogInfo(pkg.ComponentPlayer, "playing ilda file", "file", name)
	return EventIldaOpened
}

func (p *Player) skip(err error) {
	p.stats.FilesSkipped++
	pkg.LogWarn(pkg.ComponentPlayer, "file skipped", "file", p.current, "error", err)
	p.closeFile()
}

func (p *Player) playRaw() Event {
	chunk := len(p.rawSamples)
	for range p.cfg.RawChunksPerTick {
		if p.sink.FreeSlots() < chunk {
			return EventNone
		}
		n, err := frame.LoadRawChunk(p.reader, p.rawBuf, p.rawSamples)
		if n > 0 {
			p.produced = true
		}
		for i := range n {
			if p.sink.PushSample(p.scaler.Raw(p.rawSamples[i])) != nil {
				break
			}
			p.stats.RawSamples++
		}
		p.updateOutput()
		switch {
		case err == io.EOF:
			pkg.LogDebug(pkg.ComponentPlayer, "raw file ended", "file", p.current)
			return EventEndOfFile
		case err != nil:
			p.skip(err)
			return EventFail
		}
	}
	return EventNone
}

func (p *Player) stepIlda() Event {
	switch p.state.ilda {
	case IldaStart:
		return EventOK

	case IldaStartFrame:
		err := p.ilda.LoadFrameHeaderAndPoints(p.reader, p.points)
		if err != nil {
			if errors.Is(err, frame.ErrEndOfStream) {
				pkg.LogDebug(pkg.ComponentPlayer, "ilda file ended", "file", p.current)
				return EventEndOfFile
			}
			p.skip(err)
			return EventFail
		}
		if p.ilda.EndOfSequence() {
			pkg.LogDebug(pkg.ComponentPlayer, "ilda sequence ended", "file", p.current)
			return EventEndOfFile
		}
		p.produced = true
		p.stats.Frames++
		p.stats.Loads++
		p.drainPos = 0
		return EventOK

	case IldaContinueFrame:
		if err := p.ilda.LoadMorePoints(p.reader, p.points); err != nil {
			p.skip(err)
			return EventFail
		}
		p.stats.Loads++
		p.drainPos = 0
		return EventOK

	case IldaPlayFrame:
		return p.playFrame()

	case IldaNextFrame:
		if p.ilda.Complete() {
			return EventFrameComplete
		}
		return EventFramePartial
	}
	return EventNone
}

// playFrame queues at most PointsPerTick loaded points.
func (p *Player) playFrame() Event {
	n := min(p.cfg.PointsPerTick, p.sink.FreeSlots())
	for ; n > 0 && p.drainPos < p.ilda.LoadedPointCount; n-- {
		if p.sink.PushSample(p.scaler.Point(p.points[p.drainPos])) != nil {
			break
		}
		p.drainPos++
		p.stats.Points++
	}
	p.updateOutput()
	if p.drainPos >= p.ilda.LoadedPointCount {
		return EventFrameDrained
	}
	return EventNone
}

// updateOutput enables output once the queue holds LowWaterMark samples,
// or is full if it is smaller than that.
func (p *Player) updateOutput() {
	if p.sink.Enabled() {
		return
	}
	used := p.sink.Used()
	if used >= min(p.cfg.LowWaterMark, used+p.sink.FreeSlots()) {
		p.sink.SetOutputEnabled(true)
		pkg.LogDebug(pkg.ComponentPlayer, "output enabled", "queued", used)
	}
}

func (p *Player) release() error {
	p.closeDir()
	return p.closeFile()
}

func (p *Player) closeDir() {
	if p.dir != nil {
		p.dir.Close()
		p.dir = nil
	}
}

func (p *Player) closeFile() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	p.reader.Reset(nil)
	return err
}
