package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ardnew/softlaser/frame"
	"github.com/ardnew/softlaser/player"
)

// frameSummary describes one decoded ILDA section.
type frameSummary struct {
	Number  uint16
	Total   uint16
	Type    frame.FrameType
	Points  uint32
	Blanked uint32
	Name    string
	Company string
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE.ILD",
		Short: "List the frames of an ILDA file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			frames, err := scanFrames(bufio.NewReader(f))
			w := cmd.OutOrStdout()
			renderFrames(w, newStyles(w), frames)
			if err != nil {
				return fmt.Errorf("%s: frame %d: %w", args[0], len(frames), err)
			}
			return nil
		},
	}
}

// scanFrames decodes sections from r until the end-of-sequence header or
// the end of the stream. It returns the frames decoded before any error.
func scanFrames(r io.Reader) ([]frameSummary, error) {
	var (
		desc   frame.IldaFile
		points = make([]frame.Point, player.DefaultMaxFramePoints)
		frames []frameSummary
	)
	for {
		err := desc.LoadFrameHeaderAndPoints(r, points)
		if err != nil {
			// A stream ending exactly on a section boundary has no end header.
			if errors.Is(err, frame.ErrEndOfStream) && len(frames) > 0 {
				return frames, nil
			}
			return frames, err
		}
		if desc.EndOfSequence() {
			return frames, nil
		}

		s := frameSummary{
			Number:  desc.FrameNumber,
			Total:   desc.TotalFrames,
			Type:    desc.Type,
			Points:  desc.TotalPoints,
			Name:    desc.Header.NameString(),
			Company: desc.Header.CompanyString(),
		}
		for {
			for _, p := range points[:desc.LoadedPointCount] {
				if p.Blanked() {
					s.Blanked++
				}
			}
			if desc.Complete() {
				break
			}
			if err := desc.LoadMorePoints(r, points); err != nil {
				return frames, err
			}
		}
		frames = append(frames, s)
	}
}

func renderFrames(w io.Writer, st styles, frames []frameSummary) {
	rows := make([][]string, 0, len(frames))
	var points, blanked uint32
	for _, f := range frames {
		rows = append(rows, []string{
			strconv.Itoa(int(f.Number)) + "/" + strconv.Itoa(int(f.Total)),
			f.Type.String(),
			strconv.FormatUint(uint64(f.Points), 10),
			strconv.FormatUint(uint64(f.Blanked), 10),
			f.Name,
			f.Company,
		})
		points += f.Points
		blanked += f.Blanked
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.dim).
		Headers("FRAME", "TYPE", "POINTS", "BLANKED", "NAME", "COMPANY").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.header.Padding(0, 1)
			}
			return st.value.Padding(0, 1)
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, st.field("frames", len(frames)), st.field("points", points), st.field("blanked", blanked))
}
