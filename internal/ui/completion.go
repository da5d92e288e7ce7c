package ui

import (
	"fmt"

	"github.com/bamsammich/salvage/internal/stats"
)

// ScanSummary builds the line printed when a scan finishes.
// Format: Files 1,204  Total size 3.1 GiB  Files ignored 2
func ScanSummary(snap stats.Snapshot) string {
	return fmt.Sprintf("Files %s  Total size %s  Files ignored %s",
		FormatCount(snap.FilesAccepted),
		FormatBytes(snap.BytesAccepted),
		FormatCount(snap.EntriesIgnored),
	)
}

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  files 48 / 48  size 2.1 GiB  avg 64 MB/s  time 3m 17s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesCopied) / snap.Elapsed.Seconds()
	}

	icon := styleOK.Render("✓")
	if snap.FilesFailed > 0 || snap.FilesVerifyFailed > 0 {
		icon = styleFail.Render("✗")
	}

	base := fmt.Sprintf("done %s  files %s / %s  size %s  avg %s  time %s",
		icon,
		FormatCount(snap.FilesCopied),
		FormatCount(snap.FilesSelected),
		FormatBytes(snap.BytesCopied),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)

	if snap.FilesVerified > 0 || snap.FilesVerifyFailed > 0 {
		base += fmt.Sprintf("  verified %s", FormatCount(snap.FilesVerified))
	}

	base += fmt.Sprintf("  errors %d", snap.FilesFailed+snap.FilesVerifyFailed)

	return base
}
