package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/salvage/internal/engine"
	"github.com/bamsammich/salvage/internal/transport"
	"github.com/bamsammich/salvage/internal/ui"
)

func newScanCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		src       sourceFlags
		maxDepth  int
		showTree  bool
		treeDepth int
	)

	cmd := &cobra.Command{
		Use:   "scan SOURCE",
		Short: "Scan a volume and report what can be recovered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src.applyConfig(cmd.Flags(), g.cfg.SSH)
			if !cmd.Flags().Changed("max-depth") && g.cfg.Defaults.MaxDepth != nil {
				maxDepth = *g.cfg.Defaults.MaxDepth
			}

			reader, closeSource, err := openSource(args[0], src, transport.WriteOpts{})
			if err != nil {
				return err
			}
			defer closeSource()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess := engine.NewSession(engine.SessionConfig{Reader: reader, MaxDepth: maxDepth})
			res, err := scanSource(ctx, sess)
			if err != nil {
				return err
			}

			if !g.quiet {
				fmt.Fprintln(stderr, ui.ScanSummary(sess.Snapshot()))
			}
			if showTree {
				ui.RenderTree(stdout, res.Tree.Root, treeDepth)
			}
			return nil
		},
	}

	src.register(cmd.Flags())
	cmd.Flags().IntVar(&maxDepth, "max-depth", engine.DefaultMaxDepth, "do not list directories deeper than N")
	cmd.Flags().BoolVar(&showTree, "tree", false, "print the scanned tree with sizes and dates")
	cmd.Flags().IntVar(&treeDepth, "tree-depth", 0, "limit --tree output to N levels (0 = all)")
	return cmd
}

// scanSource runs a scan on sess and waits for it, mapping the outcome onto
// an exit status.
func scanSource(ctx context.Context, sess *engine.Session) (engine.ScanResult, error) {
	if err := sess.StartScan(ctx); err != nil {
		return engine.ScanResult{}, err
	}
	res := sess.WaitScan()

	switch res.Outcome {
	case engine.ScanCompleted:
		if res.DepthLimited {
			slog.Warn("directory depth limit reached; deeper entries were not listed")
		}
		slog.Debug("scan complete", "files", res.Files, "bytes", res.Bytes, "ignored", res.Ignored)
		return res, nil
	case engine.ScanCancelled:
		slog.Warn("scan cancelled", "files", res.Files)
		return res, &exitError{code: exitCancelled}
	default:
		return res, fmt.Errorf("scan %s: %w", res.Outcome, res.Err)
	}
}
