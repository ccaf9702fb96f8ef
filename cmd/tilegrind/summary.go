package main

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tilegrind/internal/batch"
)

var countPrinter = message.NewPrinter(language.English)

func formatCount(n int64) string {
	return countPrinter.Sprintf("%d", n)
}

// renderSummary prints the run outcome. Skips and failures are listed
// per item; the closing table carries the aggregate counts.
func renderSummary(w io.Writer, s batch.Summary) {
	for _, skip := range s.Skips {
		fmt.Fprintf(w, "skipped %s: %s\n", skip.Key, skip.Reason)
	}
	for _, res := range s.Results {
		if !res.Outcome.Failed() {
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", res.Outcome, res.Key, res.Error)
	}

	duration := s.FinishedAt.Sub(s.StartedAt).Round(time.Second)
	rows := [][]string{{
		s.SessionID,
		s.Command,
		duration.String(),
		formatCount(int64(s.Total)),
		formatCount(int64(s.Skipped)),
		formatCount(int64(s.Succeeded)),
		formatCount(int64(s.TimedOut)),
		formatCount(int64(s.Failed)),
		formatCount(s.Points),
	}}
	aligns := []columnAlignment{
		alignLeft, alignLeft, alignRight, alignRight, alignRight,
		alignRight, alignRight, alignRight, alignRight,
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Session", "Command", "Duration", "Total", "Skipped", "OK", "Timeout", "Failed", "Points"},
		rows, aligns))
}
