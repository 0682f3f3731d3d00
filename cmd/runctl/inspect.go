package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/pkg/api"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [run_id]",
		Short: "Check the backend status of a run, or list the runs known to the backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newCLIApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				list, err := a.feedback.ListRuns(cmd.Context())
				if err != nil {
					return err
				}
				return printRunRecords(out, opts.output, list)
			}

			status, err := a.backend.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.output == outputJSON {
				return printJSON(out, status)
			}
			fmt.Fprintf(out, "Run %s is %s", args[0], status.Status)
			if status.Status == api.BackendStatusRunning && status.Progress > 0 {
				fmt.Fprintf(out, ", %d%% done", status.Progress)
			}
			if status.Error != "" {
				fmt.Fprintf(out, ": %s", status.Error)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report <run_id>",
		Short: "Fetch the report of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newCLIApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.controller.FetchReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), opts.output, report)
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit, offset int
	var state string
	var remove bool
	cmd := &cobra.Command{
		Use:   "history [run_id]",
		Short: "List the runs kept in the history store, or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if state != "" {
				if _, err := api.GetLifecycleState(state); err != nil {
					return err
				}
			}
			if remove && len(args) == 0 {
				return fmt.Errorf("--delete needs a run id")
			}

			a, err := newCLIApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			store = store.WithContext(cmd.Context())

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if remove {
					if err := store.DeleteRun(args[0]); err != nil {
						return err
					}
					fmt.Fprintf(out, "Deleted run %s\n", args[0])
					return nil
				}
				snapshot, err := store.GetRun(args[0])
				if err != nil {
					return err
				}
				if snapshot.Report != nil && opts.output == outputText {
					if err := printSnapshot(out, opts.output, snapshot); err != nil {
						return err
					}
					return printReport(out, opts.output, snapshot.Report)
				}
				return printSnapshot(out, opts.output, snapshot)
			}

			results, err := store.GetRuns(limit, offset, state)
			if err != nil {
				return err
			}
			return printSnapshots(out, opts.output, results.Items, results.TotalStored)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&limit, "limit", constants.DefaultPageLimit, "maximum number of runs to list")
	flags.IntVar(&offset, "offset", 0, "number of runs to skip")
	flags.StringVar(&state, "state", "", "only list runs in this lifecycle state")
	flags.BoolVar(&remove, "delete", false, "delete the run from the history")
	return cmd
}
