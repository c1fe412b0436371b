package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/canvasmirror/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is written into summaries.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the canvasmirror version in summaries.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONPlan is the JSON document written for a plan.
type JSONPlan struct {
	DryRun         bool                `json:"dry_run"`
	IgnoreFile     string              `json:"ignore_file,omitempty"`
	OverwriteNewer bool                `json:"overwrite_newer"`
	Files          []model.PlannedFile `json:"files"`
	TotalFiles     int                 `json:"total_files"`
	TotalBytes     int64               `json:"total_bytes"`
}

// WritePlan outputs the download plan.
func (w *JSONWriter) WritePlan(report *model.SyncReport) (int, error) {
	files := report.Planned
	if files == nil {
		files = []model.PlannedFile{}
	}
	return w.writeJSON(JSONPlan{
		DryRun:         report.DryRun,
		IgnoreFile:     report.IgnoreFile,
		OverwriteNewer: report.OverwriteNewer,
		Files:          files,
		TotalFiles:     len(files),
		TotalBytes:     report.PlannedBytes(),
	})
}

// JSONSummary wraps the report with computed totals.
type JSONSummary struct {
	// Version is the canvasmirror version that produced the report.
	Version string `json:"version,omitempty"`

	// Report is the full run report.
	Report *model.SyncReport `json:"report"`

	Totals JSONTotals `json:"totals"`
}

// JSONTotals are the aggregate numbers of a run.
type JSONTotals struct {
	Planned         int           `json:"planned"`
	PlannedBytes    int64         `json:"planned_bytes"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	DownloadedBytes int64         `json:"downloaded_bytes"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}

// WriteSummary outputs the full report with totals.
func (w *JSONWriter) WriteSummary(report *model.SyncReport) (int, error) {
	return w.writeJSON(JSONSummary{
		Version: w.version,
		Report:  report,
		Totals: JSONTotals{
			Planned:         len(report.Planned),
			PlannedBytes:    report.PlannedBytes(),
			Succeeded:       report.Succeeded(),
			Failed:          report.Failed(),
			DownloadedBytes: report.DownloadedBytes(),
			Elapsed:         duration(report),
		},
	})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	data = append(data, '\n')

	return w.output.Write(data)
}
