package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/salvage/internal/event"
	"github.com/bamsammich/salvage/internal/stats"
)

// ansiClearLine returns the cursor to column 0 and erases the line.
const ansiClearLine = "\r\033[K"

const (
	progressBarWidth = 20
	hudMinInterval   = 50 * time.Millisecond // don't redraw faster than this
)

// hudPresenter keeps a single status line at the bottom of the terminal and
// redraws it in place. Failures scroll above it as permanent lines.
type hudPresenter struct {
	w     io.Writer
	stats *stats.Collector
	width int

	phase       phase
	currentDir  string
	hudDrawn    bool
	lastHUDDraw time.Time
}

func (p *hudPresenter) Run(events <-chan event.Event) error {
	// Fire first tick quickly to seed the ring buffer, then switch to 1s.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	// Redraw while no events are flowing (e.g. one large file).
	redrawTicker := time.NewTicker(100 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.drawHUD()

		case <-secTicker.C:
			p.stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(time.Second)
			}
		}
	}
}

func (p *hudPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.ScanStarted:
		p.phase = phaseScan

	case event.DirListed:
		p.currentDir = ev.Path

	case event.ScanComplete:
		p.phase = phaseIdle
		p.println(ScanSummary(p.stats.Snapshot()))

	case event.CopyStarted:
		p.phase = phaseCopy

	case event.FileFailed:
		p.println(fmt.Sprintf("✗  %s  %s  %s", ev.Path, FormatBytes(ev.Size), StatusText(ev.Status)))

	case event.VerifyFailed:
		p.println(fmt.Sprintf("✗  %s  %s", ev.Path, styleFail.Render("checksum mismatch")))

	case event.CopyComplete:
		p.phase = phaseIdle
		p.clearHUD()
	}
}

// println prints a permanent line above the HUD.
func (p *hudPresenter) println(line string) {
	p.clearHUD()
	fmt.Fprintln(p.w, line)
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	if time.Since(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	line := p.hudLine()
	if line == "" {
		p.clearHUD()
		return
	}
	fmt.Fprint(p.w, ansiClearLine+line)
	p.hudDrawn = true
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) hudLine() string {
	snap := p.stats.Snapshot()
	switch p.phase {
	case phaseScan:
		line := "scanning  " + ScanSummary(snap)
		if room := p.width - len(line) - 2; room > 8 && p.currentDir != "" {
			line += "  " + styleMuted.Render(TruncPath(p.currentDir, room))
		}
		return line
	case phaseCopy:
		pct := Percent(snap.BytesCopied, snap.BytesSelected)
		return fmt.Sprintf("%3.0f%%  %s  %s / %s files  %s / %s  %s  eta %s",
			pct*100, ProgressBar(pct, progressBarWidth),
			FormatCount(snap.FilesCopied), FormatCount(snap.FilesSelected),
			FormatBytes(snap.BytesCopied), FormatBytes(snap.BytesSelected),
			FormatRate(p.stats.RollingSpeed(10)),
			FormatETA(p.stats.ETA()),
		)
	default:
		return ""
	}
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	fmt.Fprint(p.w, ansiClearLine)
	p.hudDrawn = false
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
