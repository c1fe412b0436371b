package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/canvasmirror/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
//
// Plans use the same wording as the interactive prompt so that a dry run
// shows exactly what a real run would ask to download.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether categories with nothing discovered are shown.
	showEmpty bool

	// verbose lists every downloaded file, not only the failures.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty categories.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with every downloaded file.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WritePlan outputs the download plan. Dry runs also list the active
// filters and each file's source URL.
func (w *SimpleWriter) WritePlan(report *model.SyncReport) (int, error) {
	var sb strings.Builder

	if report.DryRun {
		w.writeDryRunPlan(&sb, report)
	} else {
		w.writePlan(&sb, report)
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeDryRunPlan(sb *strings.Builder, report *model.SyncReport) {
	n := len(report.Planned)
	if n == 0 {
		sb.WriteString("[DRY RUN] No files to download.\n")
		return
	}

	ignore := report.IgnoreFile
	if ignore == "" {
		ignore = "none"
	}
	sb.WriteString("[DRY RUN] Active filters:\n")
	fmt.Fprintf(sb, "  - Ignore file: %s\n", ignore)
	fmt.Fprintf(sb, "  - Download newer files: %s\n", enabled(report.OverwriteNewer))
	sb.WriteString("\n")

	total := formatBytes(report.PlannedBytes())
	fmt.Fprintf(sb, "[DRY RUN] Would download %d file%s (%s):\n\n", n, plural(n), total)
	for _, f := range report.Planned {
		fmt.Fprintf(sb, "  %s -> %s (%s)\n", f.URL, f.Path, formatBytes(f.Size))
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "[DRY RUN] Total: %d file%s (%s)\n", n, plural(n), total)
}

func (w *SimpleWriter) writePlan(sb *strings.Builder, report *model.SyncReport) {
	n := len(report.Planned)
	if n == 0 {
		sb.WriteString("No files to download.\n")
		return
	}

	total := formatBytes(report.PlannedBytes())
	fmt.Fprintf(sb, "Will download %d file%s (%s):\n\n", n, plural(n), total)
	for _, f := range report.Planned {
		fmt.Fprintf(sb, "  %s (%s)\n", f.Path, formatBytes(f.Size))
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Total: %d file%s (%s)\n", n, plural(n), total)
}

// WriteSummary outputs the end-of-run summary.
func (w *SimpleWriter) WriteSummary(report *model.SyncReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeDiscovered(&sb, report)
	w.writeDownloads(&sb, report)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.SyncReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        CANVASMIRROR SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Canvas:       %s\n", report.CanvasURL)
	fmt.Fprintf(sb, "Destination:  %s\n", report.Destination)
	if !report.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:      %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if d := duration(report); d > 0 {
		fmt.Fprintf(sb, "Duration:     %s\n", d)
	}
	fmt.Fprintf(sb, "Status:       %s\n", status(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDiscovered(sb *strings.Builder, report *model.SyncReport) {
	section(sb, "DISCOVERED")

	for _, c := range model.Categories() {
		n := report.Discovered[c.String()]
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-15s %d\n", categoryTitle(c)+":", n)
	}
	if report.DiscoveryFailures > 0 {
		fmt.Fprintf(sb, "  %-15s %d\n", "Failed tasks:", report.DiscoveryFailures)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDownloads(sb *strings.Builder, report *model.SyncReport) {
	section(sb, "DOWNLOADS")

	n := len(report.Planned)
	fmt.Fprintf(sb, "  Planned:     %d file%s (%s)\n", n, plural(n), formatBytes(report.PlannedBytes()))
	if !report.Downloaded() {
		sb.WriteString("  Nothing downloaded\n\n")
		return
	}

	ok := report.Succeeded()
	fmt.Fprintf(sb, "  Downloaded:  %d file%s (%s)\n", ok, plural(ok), formatBytes(report.DownloadedBytes()))
	fmt.Fprintf(sb, "  Failed:      %d\n", report.Failed())
	sb.WriteString("\n")

	for _, res := range report.Results {
		switch {
		case !res.OK():
			fmt.Fprintf(sb, "  [x] %s: %s\n", res.Path, res.Error)
		case w.verbose:
			fmt.Fprintf(sb, "  [+] %s (%s)\n", res.Path, formatBytes(res.Bytes))
		}
	}
	if report.Failed() > 0 || w.verbose {
		sb.WriteString("\n")
	}
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// status summarizes how the run ended.
func status(report *model.SyncReport) string {
	switch {
	case report.Error != "":
		return "Error - " + report.Error
	case report.DryRun:
		return "Dry run"
	case report.Cancelled:
		return "Cancelled"
	case report.Failed() > 0:
		return fmt.Sprintf("Completed with %d failed download%s", report.Failed(), plural(report.Failed()))
	default:
		return "Complete"
	}
}

// duration returns the run time rounded for display, or 0 when unknown.
func duration(report *model.SyncReport) time.Duration {
	if report.StartedAt.IsZero() || report.FinishedAt.Before(report.StartedAt) {
		return 0
	}
	return report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
}
