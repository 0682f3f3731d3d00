package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/gametester/runctl/pkg/api"
)

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func printSnapshot(w io.Writer, format string, snapshot *api.RunSnapshot) error {
	if format == outputJSON {
		return printJSON(w, snapshot)
	}
	fmt.Fprintf(w, "Run:       %s\n", snapshot.RunID)
	fmt.Fprintf(w, "State:     %s (%s)\n", snapshot.LifecycleState, snapshot.Phase)
	fmt.Fprintf(w, "Checks:    %d\n", snapshot.Attempts)
	if snapshot.Progress > 0 {
		fmt.Fprintf(w, "Progress:  %d%%\n", snapshot.Progress)
	}
	if snapshot.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", snapshot.Error)
	}
	fmt.Fprintf(w, "Status:    %s\n", snapshot.StatusText)
	return nil
}

func printSnapshots(w io.Writer, format string, snapshots []api.RunSnapshot, total int) error {
	if format == outputJSON {
		return printJSON(w, snapshots)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATE\tPHASE\tCHECKS\tSUBMITTED")
	for _, s := range snapshots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.RunID, s.LifecycleState, s.Phase, s.Attempts, s.SubmittedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d of %d runs\n", len(snapshots), total)
	return nil
}

func printReport(w io.Writer, format string, report *api.RunReport) error {
	if format == outputJSON {
		return printJSON(w, report)
	}
	fmt.Fprintf(w, "Report for run %s\n", report.RunID)
	if report.URL != "" {
		fmt.Fprintf(w, "URL:       %s\n", report.URL)
	}
	if report.Timestamp != "" {
		fmt.Fprintf(w, "Finished:  %s\n", report.Timestamp)
	}
	s := report.Summary
	fmt.Fprintf(w, "Summary:   %d total, %d passed, %d failed, %d flaky\n", s.Total, s.Passed, s.Failed, s.Flaky)
	if len(report.Results) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST CASE\tVERDICT\tRERUNS\tNOTES")
	for _, r := range report.Results {
		notes := r.Notes
		if triage, ok := report.TriageNotes[r.TestcaseID]; ok && notes == "" {
			notes = triage
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.TestcaseID, r.Verdict, r.Reruns, notes)
	}
	return tw.Flush()
}

func printRunRecords(w io.Writer, format string, list *api.RunRecordList) error {
	if format == outputJSON {
		return printJSON(w, list)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATUS\tTIMESTAMP")
	for _, r := range list.Runs {
		ts := "-"
		if r.Timestamp != nil {
			ts = *r.Timestamp
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.RunID, r.Status, ts)
	}
	return tw.Flush()
}

// printDocument prints a metrics document with its keys sorted
func printDocument(w io.Writer, title string, doc map[string]any) {
	fmt.Fprintf(w, "%s:\n", title)
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, doc[k])
	}
}
