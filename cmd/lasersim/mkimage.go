package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ardnew/softlaser/fsys"
	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage"
)

// Card sizes for images built from a directory.
const (
	defaultImageSectors = 16384  // 8 MiB
	fat32ImageSectors   = 131072 // 64 MiB, the smallest size mkimage uses for FAT32
)

type mkimageOptions struct {
	sectors uint32
	label   string
	fat32   bool
}

func newMkimageCommand() *cobra.Command {
	var opts mkimageOptions

	cmd := &cobra.Command{
		Use:   "mkimage DIR IMAGE",
		Short: "Build a FAT card image from the files in DIR",
		Long: `Mkimage formats IMAGE as a FAT volume holding every file in DIR whose
name fits 8.3, the way a card is prepared on a PC. Other files and
subdirectories are skipped. An existing IMAGE is overwritten.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMkimage(cmd.OutOrStdout(), args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.Uint32Var(&opts.sectors, "sectors", 0, "image size in sectors (default: sized to DIR)")
	f.StringVar(&opts.label, "label", "LASERSIM", "volume label")
	f.BoolVar(&opts.fat32, "fat32", false, "format as FAT32")
	return cmd
}

func runMkimage(w io.Writer, dir, image string, opts mkimageOptions) error {
	files, err := collectSources(dir)
	if err != nil {
		return err
	}
	sectors := opts.sectors
	if sectors == 0 {
		floor := uint32(defaultImageSectors)
		if opts.fat32 {
			floor = fat32ImageSectors
		}
		sectors = imageSectors(files, floor)
	}

	medium, err := storage.CreateFileStorage(image, sectors)
	if err != nil {
		return err
	}
	defer medium.Close()

	img := fsys.Image{Label: opts.label, FAT32: opts.fat32, Files: files}
	if err := fsys.Format(medium, img); err != nil {
		return fmt.Errorf("format %s: %w", image, err)
	}

	// Read the volume back the way the player will.
	vol := fsys.NewFAT(medium)
	if err := vol.Mount(); err != nil {
		return fmt.Errorf("verify %s: %w", image, err)
	}

	st := newStyles(w)
	fmt.Fprintln(w, st.header.Render(image),
		st.field("fs", vol.Kind()), st.field("label", vol.Label()),
		st.field("sectors", sectors), st.field("files", len(files)))
	for _, f := range files {
		fmt.Fprintln(w, " ", st.value.Render(f.Name), st.dim.Render(fmt.Sprintf("%d bytes", len(f.Data))))
	}
	return nil
}

// collectSources reads the regular files of dir that fit 8.3 names.
func collectSources(dir string) ([]fsys.Source, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []fsys.Source
	for _, e := range ents {
		if !e.Type().IsRegular() {
			continue
		}
		if err := fsys.CheckName(e.Name()); err != nil {
			pkg.LogWarn(pkg.ComponentStorage, "file left off the card", "file", e.Name(), "error", err)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, fsys.Source{Name: e.Name(), Data: data})
	}
	return files, nil
}

// imageSectors sizes a card for files with a quarter to spare, and at
// least floor sectors.
func imageSectors(files []fsys.Source, floor uint32) uint32 {
	var need uint64
	for _, f := range files {
		// Clusters grow with the card; eight sectors covers the slack.
		need += uint64(len(f.Data))/storage.SectorSize + 8
	}
	need += need/4 + 1024
	switch {
	case need > math.MaxUint32:
		return math.MaxUint32
	case need < uint64(floor):
		return floor
	}
	return uint32(need)
}
