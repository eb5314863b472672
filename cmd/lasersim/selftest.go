package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type selfTestOptions struct {
	card  cardOptions
	lba   uint32
	count uint32
}

func newSelfTestCommand() *cobra.Command {
	var opts selfTestOptions

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Write and verify blocks through the SD driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSelfTest(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.card.image, "image", "", "card image file (default: in-memory card)")
	f.Uint32Var(&opts.card.sectors, "sectors", defaultCardSectors, "sectors in a new card image")
	f.StringVar(&opts.card.kind, "kind", "sd2block", "emulated card kind (mmc, sd1, sd2, sd2block)")
	f.Uint32Var(&opts.lba, "lba", 0, "first block under test")
	f.Uint32Var(&opts.count, "count", 8, "number of blocks under test")
	return cmd
}

func runSelfTest(cmd *cobra.Command, opts selfTestOptions) error {
	card, err := openCard(opts.card)
	if err != nil {
		return err
	}
	defer card.Close()

	w := cmd.OutOrStdout()
	st := newStyles(w)

	typ, err := card.Initialize()
	if err != nil {
		fmt.Fprintln(w, st.bad.Render("FAIL"), st.field("init", err))
		return err
	}
	fmt.Fprintln(w, st.field("card", typ), st.field("sectors", card.medium.SectorCount()))

	if err := card.SelfTest(opts.lba, opts.count); err != nil {
		fmt.Fprintln(w, st.bad.Render("FAIL"), st.field("error", err))
		return err
	}
	fmt.Fprintln(w, st.good.Render("PASS"), st.field("lba", opts.lba), st.field("count", opts.count))
	return nil
}
