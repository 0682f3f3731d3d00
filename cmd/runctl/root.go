package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	verbose    bool
	local      bool
	configDirs []string
	output     string
}

func (o *rootOptions) validate() error {
	switch o.output {
	case outputText, outputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q, expected %s or %s", o.output, outputText, outputJSON)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "runctl",
		Short:         "Submit test generation runs and follow them until their report is ready",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug messages to stderr")
	flags.BoolVar(&opts.local, "local", false, "use the in-process simulated backend")
	flags.StringSliceVar(&opts.configDirs, "config-dir", nil, "directory searched for config.yaml (repeatable)")
	flags.StringVarP(&opts.output, "output", "o", outputText, "output format: text or json")

	cmd.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newStatusCmd(opts),
		newReportCmd(opts),
		newHistoryCmd(opts),
		newFeedbackCmd(opts),
		newMetricsCmd(opts),
		newRetrainCmd(opts),
	)
	return cmd
}
