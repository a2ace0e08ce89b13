package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dubber/internal/runstore"
)

// interruptedAfter is how long a run may stay in the running state before
// history reports it as interrupted.
const interruptedAfter = 24 * time.Hour

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			runCtx := commandContextOrBackground(cmd)
			if _, err := store.MarkInterrupted(runCtx, time.Now().Add(-interruptedAfter)); err != nil {
				return err
			}
			runs, err := store.ListRuns(runCtx, limit)
			if err != nil {
				return err
			}
			return emit(cmd, asJSON, runs, func(out io.Writer) { renderHistory(out, runs) })
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderHistory(out io.Writer, runs []runstore.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			humanize.Time(run.StartedAt),
			historyStatus(run),
			filepath.Base(run.InputPath),
			fmt.Sprintf("%d/%d", run.SpeechIntervals, run.SilenceIntervals),
			formatElapsed(run.Elapsed()),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Started", "Status", "Input", "Speech/Silence", "Elapsed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
}

func historyStatus(run runstore.Run) string {
	if run.Status == runstore.StatusFailed && run.ErrorKind != "" {
		return fmt.Sprintf("%s (%s)", run.Status, run.ErrorKind)
	}
	return string(run.Status)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
