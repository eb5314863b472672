package main

import (
	"github.com/spf13/cobra"

	"github.com/ardnew/softlaser/pkg"
)

type globalOptions struct {
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:           "lasersim",
		Short:         "Run the laser projector firmware core on a host",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.apply()
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(
		newPlayCommand(),
		newInspectCommand(),
		newSelfTestCommand(),
		newMkimageCommand(),
		newCtlCommand(),
	)
	return root
}

func (o globalOptions) apply() error {
	level, err := pkg.ParseLogLevel(o.logLevel)
	if err != nil {
		return err
	}
	format, err := pkg.ParseLogFormat(o.logFormat)
	if err != nil {
		return err
	}
	pkg.SetLogFormat(format)
	pkg.SetLogLevel(level)
	return nil
}
