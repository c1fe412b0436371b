package report

import (
	"io"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/canvasmirror/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// WritePlan outputs the files a run is about to download.
	// Returns the number of bytes written and any error encountered.
	WritePlan(report *model.SyncReport) (int, error)

	// WriteSummary outputs discovery counts and download results.
	WriteSummary(report *model.SyncReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WritePlan outputs the plan to every Writer.
// Stops on first error encountered.
func (m *MultiWriter) WritePlan(report *model.SyncReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WritePlan(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to every Writer.
func (m *MultiWriter) WriteSummary(report *model.SyncReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var titleCaser = cases.Title(language.English)

// categoryTitle returns the display title of a discovery category.
func categoryTitle(c model.Category) string {
	return titleCaser.String(c.String())
}

// formatBytes renders n with binary units: "0 B", "3 B", "1.5 KiB".
func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// plural returns "s" unless n is 1.
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// enabled renders a boolean filter.
func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
