package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bamsammich/salvage/internal/config"
	"github.com/bamsammich/salvage/internal/engine"
	"github.com/bamsammich/salvage/internal/event"
	"github.com/bamsammich/salvage/internal/filter"
	"github.com/bamsammich/salvage/internal/report"
	"github.com/bamsammich/salvage/internal/stats"
	"github.com/bamsammich/salvage/internal/transport"
	"github.com/bamsammich/salvage/internal/ui"
)

type recoverFlags struct {
	src        sourceFlags
	filters    filter.Options
	verify     bool
	bwLimit    string
	journal    string
	noProgress bool
	maxDepth   int
}

func (f *recoverFlags) register(fs *pflag.FlagSet) {
	f.src.register(fs)
	fs.StringArrayVar(&f.filters.Excludes, "exclude", nil, "skip files matching PATTERN (repeatable)")
	fs.StringArrayVar(&f.filters.Includes, "include", nil, "keep files matching PATTERN even when excluded (repeatable)")
	fs.StringVar(&f.filters.FilterFile, "filter", "", "read include/exclude rules from FILE")
	fs.StringVar(&f.filters.MinSize, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	fs.StringVar(&f.filters.MaxSize, "max-size", "", "skip files larger than SIZE (e.g. 1G, 500M)")
	fs.BoolVar(&f.verify, "verify", false, "verify each recovered file against the source (BLAKE3)")
	fs.StringVar(&f.bwLimit, "bwlimit", "", "cap read throughput (e.g. 20M)")
	fs.StringVar(&f.journal, "journal", "", "record the run in a SQLite journal at FILE")
	fs.BoolVar(&f.noProgress, "no-progress", false, "disable the progress display")
	fs.IntVar(&f.maxDepth, "max-depth", engine.DefaultMaxDepth, "do not list directories deeper than N")
}

// applyConfig applies config file defaults for flags not explicitly set on
// the CLI.
func (f *recoverFlags) applyConfig(fs *pflag.FlagSet, cfg config.Config) {
	d := cfg.Defaults
	if !fs.Changed("verify") && d.Verify != nil {
		f.verify = *d.Verify
	}
	if !fs.Changed("bwlimit") && d.BWLimit != nil {
		f.bwLimit = *d.BWLimit
	}
	if !fs.Changed("journal") && d.Journal != nil {
		f.journal = *d.Journal
	}
	if !fs.Changed("no-progress") && d.NoProgress != nil {
		f.noProgress = *d.NoProgress
	}
	if !fs.Changed("max-depth") && d.MaxDepth != nil {
		f.maxDepth = *d.MaxDepth
	}
	f.src.applyConfig(fs, cfg.SSH)
}

func newRecoverCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var f recoverFlags

	cmd := &cobra.Command{
		Use:   "recover SOURCE DEST",
		Short: "Scan a volume and copy the selected files to DEST",
		Long: `Scan SOURCE, drop everything the filters reject, and copy the rest below DEST.

The copy stops at the first file that cannot be recovered and reports its
status. Exit status is 0 when everything was recovered, 1 when only some
files were, 2 when nothing was, and 130 when interrupted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.applyConfig(cmd.Flags(), g.cfg)
			return runRecover(cmd.Context(), g, f, args[0], args[1], stdout, stderr)
		},
	}
	f.register(cmd.Flags())
	return cmd
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: orchestrates one full recovery
func runRecover(
	parent context.Context,
	g *globalFlags,
	f recoverFlags,
	srcArg, dstArg string,
	stdout, stderr io.Writer,
) error {
	dst, err := localDest(dstArg)
	if err != nil {
		return err
	}

	chain, err := filter.Build(f.filters)
	if err != nil {
		return err
	}

	var writeOpts transport.WriteOpts
	if f.bwLimit != "" {
		n, err := filter.ParseSize(f.bwLimit)
		if err != nil {
			return fmt.Errorf("invalid --bwlimit: %w", err)
		}
		if n > 0 {
			writeOpts.Limiter = transport.NewBWLimiter(n)
		}
	}

	reader, closeSource, err := openSource(srcArg, f.src, writeOpts)
	if err != nil {
		return err
	}
	defer closeSource()

	var journal *report.Journal
	if f.journal != "" {
		journal, err = report.Open(f.journal)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	presenterEvents := (<-chan event.Event)(events)
	if g.logFile != "" {
		presenterEvents = teeEvents(events)
	}

	stderrFile, isFile := stderr.(*os.File)
	isTTY := isFile && ui.IsTTY(stderrFile.Fd())
	width := 80
	if isTTY {
		width = ui.TermWidth(stderrFile.Fd())
	}
	presenter := ui.NewPresenter(ui.Config{
		Writer:     stdout,
		ErrWriter:  stderr,
		Stats:      collector,
		Width:      width,
		IsTTY:      isTTY,
		Quiet:      g.quiet,
		NoProgress: f.noProgress,
	})

	var presenterGroup errgroup.Group
	presenterGroup.Go(func() error { return presenter.Run(presenterEvents) })
	finishPresenter := sync.OnceFunc(func() {
		close(events)
		if err := presenterGroup.Wait(); err != nil {
			fmt.Fprintf(stderr, "presenter: %v\n", err)
		}
	})
	defer finishPresenter()

	sessCfg := engine.SessionConfig{
		Reader:   reader,
		Stats:    collector,
		Events:   events,
		MaxDepth: f.maxDepth,
		Verify:   f.verify,
	}
	if journal != nil {
		sessCfg.Journal = journal
	}
	sess := engine.NewSession(sessCfg)

	if _, err := scanSource(ctx, sess); err != nil {
		return err
	}

	var view *engine.View
	if !chain.Empty() {
		view = sess.View()
		dropped := view.ApplyFilter(chain)
		slog.Debug("filters applied", "rules", chain.String(), "deselected", dropped)
	}
	totals, err := sess.ReconcileSelection(view)
	if err != nil {
		return err
	}
	if totals.Files == 0 {
		slog.Warn("nothing selected to recover")
	}

	var runID string
	if journal != nil {
		runID, err = journal.BeginRun(srcArg, dst, totals)
		if err != nil {
			return err
		}
		slog.Debug("journal run started", "run", runID, "path", journal.Path())
	}

	if err := sess.StartCopy(ctx, dst); err != nil {
		return err
	}
	res := sess.WaitCopy()
	finishPresenter()

	if journal != nil {
		if err := journal.FinishRun(sess.CopyState().String(), res); err != nil {
			slog.Warn("journal", "error", err)
		}
	}

	if !g.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(stderr, summary)
		}
	}

	return copyExit(res)
}

// copyExit maps a copy result onto the process exit status.
func copyExit(res engine.CopyResult) error {
	switch res.Outcome {
	case engine.CopyCancelled:
		slog.Warn("recovery cancelled", "copied", res.Copied)
		return &exitError{code: exitCancelled}
	case engine.CopyFailed:
		attrs := []any{"status", res.FailedStatus.String(), "copied", res.Copied}
		if res.Failed != nil {
			attrs = append(attrs, "path", res.Failed.FullPath)
		}
		slog.Error("recovery stopped: "+res.FailedStatus.Description(), attrs...)
		if res.Copied > 0 {
			return &exitError{code: exitPartial}
		}
		return &exitError{code: exitFailure}
	default:
		if res.VerifyFailures > 0 {
			slog.Error("verification failed", "files", res.VerifyFailures)
			return &exitError{code: exitPartial}
		}
		return nil
	}
}

// teeEvents writes each event to the structured log before forwarding it
// to the presenter.
func teeEvents(events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, 256)
	go func() {
		defer close(teed)
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("path", ev.Path),
				slog.Int64("size", ev.Size),
			}
			if ev.Status != transport.StatusUnset {
				attrs = append(attrs, slog.String("status", ev.Status.String()))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "salvage.event", attrs...)
			teed <- ev
		}
	}()
	return teed
}
