package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/salvage/internal/config"
	"github.com/bamsammich/salvage/internal/ui"
)

var version = "dev"

// Exit codes.
const (
	exitOK        = 0
	exitPartial   = 1
	exitFailure   = 2
	exitCancelled = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbose bool
	quiet   bool
	logFile string

	cfg     config.Config
	logSink io.Closer
}

func run(args []string, stdout, stderr io.Writer) int {
	g := &globalFlags{}
	rootCmd := newRootCmd(g, stdout, stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if g.logSink != nil {
		g.logSink.Close()
	}

	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func newRootCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "salvage",
		Short: "Recover files from a damaged or unmounted volume",
		Long: `salvage walks a volume's directory tree, lets you narrow down what to keep,
and copies the selected files somewhere safe, reporting a status for each one.

A SOURCE is a local directory or mount point, or host:path / user@host:path
for a volume mounted on a remote machine (read over SFTP).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				// A broken config file should not block a recovery.
				fmt.Fprintf(stderr, "warning: %v\n", err)
			}
			g.cfg = cfg
			ui.ApplyTheme(cfg.Theme)
			return g.setupLogging(stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "verbose output (debug logging)")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&g.logFile, "log", "", "write structured JSON log to FILE")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newScanCmd(g, stdout, stderr))
	rootCmd.AddCommand(newRecoverCmd(g, stdout, stderr))
	rootCmd.AddCommand(newJournalCmd(stdout))
	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

// setupLogging installs the default slog logger: text on stderr at a level
// chosen by -v/-q, fanned out to a JSON file when --log is set.
func (g *globalFlags) setupLogging(stderr io.Writer) error {
	logLevel := slog.LevelInfo
	switch {
	case g.verbose:
		logLevel = slog.LevelDebug
	case g.quiet:
		logLevel = slog.LevelWarn
	}
	var handler slog.Handler = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel})

	if g.logFile != "" {
		lf, err := os.Create(g.logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		g.logSink = lf
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = ui.NewMultiHandler(handler, jsonHandler)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
