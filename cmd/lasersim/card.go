package main

import (
	"fmt"

	"github.com/ardnew/softlaser/pkg"
	"github.com/ardnew/softlaser/storage"
	"github.com/ardnew/softlaser/storage/hal/sim"
	"github.com/ardnew/softlaser/storage/sdmmc"
)

// defaultCardSectors sizes a new card when no size is given.
const defaultCardSectors = 2048

type cardOptions struct {
	image   string
	sectors uint32
	kind    string
}

// simCard is an SD driver session over an emulated card.
type simCard struct {
	*sdmmc.Card
	medium storage.Medium
}

// openCard builds the emulated card stack. A named image is opened
// read-write and created with opts.sectors sectors if it does not exist.
func openCard(opts cardOptions) (*simCard, error) {
	kind, ok := sim.ParseKind(opts.kind)
	if !ok {
		return nil, fmt.Errorf("%w: card kind %q", pkg.ErrInvalidParameter, opts.kind)
	}
	if opts.sectors == 0 {
		opts.sectors = defaultCardSectors
	}

	var medium storage.Medium
	if opts.image == "" {
		medium = storage.NewMemoryStorage(opts.sectors)
	} else {
		file, err := storage.NewFileStorage(opts.image, false)
		if err != nil {
			file, err = storage.CreateFileStorage(opts.image, opts.sectors)
		}
		if err != nil {
			return nil, err
		}
		medium = file
	}

	card := sim.New(medium, sim.DefaultConfig(kind))
	return &simCard{
		Card:   sdmmc.New(card, sdmmc.DefaultConfig()),
		medium: medium,
	}, nil
}

// Close flushes and releases the medium.
func (c *simCard) Close() error {
	err := c.medium.Sync()
	if cl, ok := c.medium.(interface{ Close() error }); ok {
		if cerr := cl.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
