package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gametester/runctl/internal/runs"
	"github.com/gametester/runctl/pkg/api"
)

// statusRefresh is how often the status line is checked for changes
const statusRefresh = 100 * time.Millisecond

func newRunCmd(opts *rootOptions) *cobra.Command {
	params := api.WorkflowParams{}
	noWait := false
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a workflow and follow the run until it ends",
		Long: `Submit a workflow (plan, rank, execute) to the backend and poll the
run with the configured policy. The status line is printed every time it
changes and the report is fetched once the backend reports completion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newCLIApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			out, status := cmd.OutOrStdout(), cmd.ErrOrStderr()
			snapshot, err := a.controller.Submit(ctx, params)
			if err != nil {
				fmt.Fprintln(status, a.controller.StatusText())
				return err
			}
			if noWait {
				return printSnapshot(out, opts.output, snapshot)
			}

			final, err := follow(ctx, a.controller, snapshot.RunID, status)
			if err != nil {
				// interrupted, stop polling and show where the run was
				if cancelled, cancelErr := a.controller.Cancel(snapshot.RunID); cancelErr == nil {
					_ = printSnapshot(out, opts.output, cancelled)
				}
				return err
			}
			if final.LifecycleState != api.LifecycleCompleted {
				_ = printSnapshot(out, opts.output, final)
				return fmt.Errorf("run %s ended in phase %s", final.RunID, final.Phase)
			}

			report, err := a.controller.FetchReport(ctx, final.RunID)
			if err != nil {
				fmt.Fprintln(status, a.controller.StatusText())
				return err
			}
			fmt.Fprintln(status, a.controller.StatusText())
			return printReport(out, opts.output, report)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&params.URL, "url", "", "URL of the game under test")
	flags.StringVar(&params.Goal, "goal", "", "testing goal handed to the planner")
	flags.BoolVar(&params.UseRAG, "rag", true, "let the planner use the learned test cases")
	flags.BoolVar(&noWait, "no-wait", false, "return once the run is submitted")
	return cmd
}

// follow prints the status line every time it changes until the polling of
// runID ends or ctx is done.
func follow(ctx context.Context, controller *runs.Controller, runID string, w io.Writer) (*api.RunSnapshot, error) {
	type result struct {
		snapshot *api.RunSnapshot
		err      error
	}
	done := make(chan result, 1)
	go func() {
		snapshot, err := controller.Wait(ctx, runID)
		done <- result{snapshot, err}
	}()

	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()

	last := ""
	show := func() {
		if text := controller.StatusText(); text != last {
			fmt.Fprintln(w, text)
			last = text
		}
	}
	show()
	for {
		select {
		case res := <-done:
			show()
			return res.snapshot, res.err
		case <-ticker.C:
			show()
		}
	}
}
