package player

import (
	"testing"
	"time"

	"github.com/ardnew/softlaser/frame"
	"github.com/ardnew/softlaser/fsys"
	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage"
	"github.com/ardnew/softlaser/storage/hal/sim"
	"github.com/ardnew/softlaser/storage/sdmmc"
)

// newCardPlayer formats files onto an emulated SDHC card and plays them
// through the SPI driver and the FAT reader.
func newCardPlayer(t *testing.T, files ...fsys.Source) (*Player, *fakeSink, *sim.Card) {
	t.Helper()
	mem := storage.NewMemoryStorage(2048)
	if err := fsys.Format(mem, fsys.Image{Label: "SHOW", Files: files}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	sc := sim.New(mem, sim.DefaultConfig(sim.KindSD2Block))
	cfg := sdmmc.DefaultConfig()
	cfg.Clock = pkg.NewStepClock(time.Millisecond)

	sink := newFakeSink(64)
	return New(fsys.NewFAT(sdmmc.New(sc, cfg)), sink, Config{}), sink, sc
}

func TestPlayer_PlaysFromCard(t *testing.T) {
	show := ildaFile(points(100), points(100), points(100))
	p, sink, _ := newCardPlayer(t,
		fsys.Source{Name: "SHOW.ILD", Data: show},
		fsys.Source{Name: "notes.txt", Data: []byte("skip me")},
		fsys.Source{Name: "beam.ls2", Data: frame.AppendRaw(nil, 20, make([]frame.RawSample, 100))},
	)

	runUntil(t, p, sink, 2000, func() bool {
		return p.Stats().Frames >= 3 && p.Stats().RawSamples >= 100
	})
	if got := p.Files(); len(got) != 2 {
		t.Errorf("Files() = %v, want SHOW.ILD and beam.ls2", got)
	}
	if p.Stats().Mounts != 1 {
		t.Errorf("Mounts = %d, want 1", p.Stats().Mounts)
	}
}

func TestPlayer_CardFaultMidFile(t *testing.T) {
	frames := make([][]frame.Point, 10)
	for i := range frames {
		frames[i] = points(100)
	}
	p, sink, sc := newCardPlayer(t, fsys.Source{Name: "SHOW.ILD", Data: ildaFile(frames...)})

	var failedTo []State
	p.SetTransitionHook(func(from, to State, ev Event) {
		if ev == EventFail && from.Phase() == PhasePlayIldaFile {
			failedTo = append(failedTo, to)
		}
	})

	runUntil(t, p, sink, 2000, func() bool { return p.Stats().Frames >= 2 })
	if p.State().Phase() != PhasePlayIldaFile {
		t.Fatalf("state = %v, want mid-file", p.State())
	}

	// The card stops sending data packets while the file is open.
	sc.SetFaults(sim.FaultNoDataToken)
	skipped := p.Stats().FilesSkipped
	runUntil(t, p, sink, 2000, func() bool { return len(failedTo) > 0 })

	to := failedTo[0]
	if to != NewState(PhaseMountFs) && to != NewState(PhaseNextFile) {
		t.Errorf("read failure moved to %v, want MountFs or NextFile", to)
	}
	if p.Stats().FilesSkipped != skipped+1 {
		t.Errorf("FilesSkipped = %d, want %d", p.Stats().FilesSkipped, skipped+1)
	}
	if sink.enabled {
		t.Error("output still enabled after the card failed")
	}

	// Nothing plays while the card is unreadable.
	frames0 := p.Stats().Frames
	for range 200 {
		p.Tick()
		sink.consume()
	}
	if p.Stats().Frames > frames0+1 {
		t.Errorf("Frames advanced from %d to %d on a failed card", frames0, p.Stats().Frames)
	}

	sc.SetFaults(0)
	mounts := p.Stats().Mounts
	runUntil(t, p, sink, 4000, func() bool {
		return p.Stats().Mounts > mounts && p.Stats().Frames >= frames0+2
	})
}
