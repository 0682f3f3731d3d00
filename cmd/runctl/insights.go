package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gametester/runctl/internal/feedback"
	"github.com/gametester/runctl/pkg/api"
)

func newFeedbackCmd(opts *rootOptions) *cobra.Command {
	req := api.FeedbackRequest{}
	useRAG := true
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Rate a generated test case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newCLIApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			resp, err := a.feedback.WithRAG(useRAG).SubmitFeedback(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.output == outputJSON {
				return printJSON(out, resp)
			}
			message := resp.Message
			if message == "" {
				message = "Feedback recorded"
			}
			fmt.Fprintf(out, "%s for %s in run %s\n", message, req.TestcaseID, req.RunID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.RunID, "run", "", "run the test case belongs to")
	flags.StringVar(&req.TestcaseID, "testcase", "", "rated test case")
	flags.IntVar(&req.Score, "score", 0, "score from 1 (useless) to 5 (very useful)")
	flags.StringVar(&req.Comment, "comment", "", "free text comment")
	flags.BoolVar(&useRAG, "rag", true, "store the feedback for the learning loop")
	return cmd
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show the learning metrics of the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newCLIApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			bundle, err := a.feedback.Metrics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if query != "" {
				value, err := feedback.Query(bundle, query)
				if err != nil {
					return err
				}
				if opts.output == outputJSON {
					return printJSON(out, value)
				}
				fmt.Fprintln(out, value)
				return nil
			}
			if opts.output == outputJSON {
				return printJSON(out, bundle)
			}
			printDocument(out, "Metrics", bundle.Metrics)
			printDocument(out, "Stats", bundle.Stats)
			printDocument(out, "Learning insights", bundle.LearningInsights)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "JSONPath expression selecting one value, e.g. $.stats.total_cases")
	return cmd
}

func newRetrainCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retrain",
		Short: "Ask the backend to retrain from the collected feedback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newCLIApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			message, err := a.feedback.Retrain(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
}
