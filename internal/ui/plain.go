package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/salvage/internal/event"
	"github.com/bamsammich/salvage/internal/stats"
)

type phase int

const (
	phaseIdle phase = iota
	phaseScan
	phaseCopy
)

// plainPresenter outputs one line per attempted file to stdout, and
// periodic progress to stderr when not a TTY.
type plainPresenter struct {
	w          io.Writer
	errW       io.Writer
	stats      *stats.Collector
	noProgress bool
	phase      phase
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-secTicker.C:
			p.stats.Tick()
		case <-ticker.C:
			if !p.noProgress {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.ScanStarted:
		p.phase = phaseScan
	case event.ScanComplete:
		p.phase = phaseIdle
		fmt.Fprintf(p.errW, "scan: %s\n", ScanSummary(p.stats.Snapshot()))
	case event.CopyStarted:
		p.phase = phaseCopy
		fmt.Fprintf(p.errW, "recovering %s files (%s)\n", FormatCount(ev.Total), FormatBytes(ev.TotalSize))
	case event.FileCopied, event.FileFailed:
		fmt.Fprintf(p.w, "%s  %s  %s\n", ev.Path, FormatBytes(ev.Size), StatusText(ev.Status))
	case event.VerifyFailed:
		fmt.Fprintf(p.w, "%s  %s\n", ev.Path, styleFail.Render("checksum mismatch"))
	case event.CopyComplete:
		p.phase = phaseIdle
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	switch p.phase {
	case phaseScan:
		fmt.Fprintf(p.errW, "scanning: %s\n", ScanSummary(snap))
	case phaseCopy:
		pct := Percent(snap.BytesCopied, snap.BytesSelected) * 100
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s %s/%s files %s eta %s\n",
			pct,
			FormatBytes(snap.BytesCopied), FormatBytes(snap.BytesSelected),
			FormatCount(snap.FilesCopied), FormatCount(snap.FilesSelected),
			FormatRate(p.stats.RollingSpeed(10)),
			FormatETA(p.stats.ETA()),
		)
	case phaseIdle:
	}
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
