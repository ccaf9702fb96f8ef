package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tilegrind/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID int64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded batch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID > 0 {
				items, err := store.RunItems(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintf(out, "No items recorded for run %d\n", runID)
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.Itoa(item.Index),
						item.Key,
						item.Outcome,
						formatCount(item.Points),
						item.Operation,
						(time.Duration(item.DurationMS) * time.Millisecond).Round(time.Second).String(),
						item.Error,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Key", "Outcome", "Points", "Operation", "Duration", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft}))
				return nil
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					strconv.FormatInt(run.ID, 10),
					run.Command,
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
					formatCount(int64(run.Total)),
					formatCount(int64(run.Skipped)),
					formatCount(int64(run.Succeeded)),
					formatCount(int64(run.TimedOut)),
					formatCount(int64(run.Failed)),
					formatCount(run.Points),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Command", "Started", "Duration", "Total", "Skipped", "OK", "Timeout", "Failed", "Points"},
				rows,
				[]columnAlignment{
					alignRight, alignLeft, alignLeft, alignRight, alignRight,
					alignRight, alignRight, alignRight, alignRight, alignRight,
				}))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	cmd.Flags().Int64Var(&runID, "run", 0, "Show per-item outcomes for one run id")
	return cmd
}
