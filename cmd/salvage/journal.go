package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/salvage/internal/report"
	"github.com/bamsammich/salvage/internal/ui"
)

func newJournalCmd(stdout io.Writer) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "journal FILE",
		Short: "Show the last recovery run recorded in a journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Open would create a missing database.
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("journal: %w", err)
			}
			j, err := report.Open(args[0])
			if err != nil {
				return err
			}
			defer j.Close()
			return printLastRun(stdout, j, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every attempted file, not only failures")
	return cmd
}

func printLastRun(w io.Writer, j *report.Journal, all bool) error {
	run, err := j.LastRun()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "run %s  %s -> %s\n", run.ID, run.Source, run.Destination)
	fmt.Fprintf(w, "started %s", run.Started.Format("2006-01-02 15:04:05"))
	if !run.Finished.IsZero() {
		fmt.Fprintf(w, "  took %s", ui.FormatDuration(run.Finished.Sub(run.Started)))
	}
	fmt.Fprintf(w, "  outcome %s\n", run.Outcome)
	fmt.Fprintf(w, "selected %s files (%s)  recovered %s files (%s)\n",
		ui.FormatCount(run.FilesSelected), ui.FormatBytes(run.BytesSelected),
		ui.FormatCount(run.FilesCopied), ui.FormatBytes(run.BytesCopied))

	files, err := j.Files(run.ID, !all)
	if err != nil {
		return err
	}
	for _, f := range files {
		status := ui.StatusText(f.Status)
		if f.VerifyFailed {
			status += "  checksum mismatch"
		}
		fmt.Fprintf(w, "  %s  %s  %s\n", f.Path, ui.FormatBytes(f.Size), status)
	}
	return nil
}
