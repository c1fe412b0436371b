package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/canvasmirror/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, built with
// github.com/nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WritePlan outputs the download plan as a table.
func (w *MarkdownWriter) WritePlan(report *model.SyncReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	title := "Download Plan"
	if report.DryRun {
		title = "Download Plan (dry run)"
	}
	md.H1(title)
	md.PlainText("")

	if report.DryRun {
		w.writeFilters(md, report)
	}

	n := len(report.Planned)
	if n == 0 {
		md.Tip("No files to download.")
		return len(md.String()), md.Build()
	}

	md.PlainTextf("**%d file%s (%s)**", n, plural(n), formatBytes(report.PlannedBytes()))
	md.PlainText("")

	rows := make([][]string, 0, n)
	for _, f := range report.Planned {
		rows = append(rows, []string{"`" + f.Path + "`", formatBytes(f.Size), f.URL})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Path", "Size", "Source"},
		Rows:   rows,
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFilters(md *markdown.Markdown, report *model.SyncReport) {
	ignore := report.IgnoreFile
	if ignore == "" {
		ignore = "none"
	}
	md.BulletList(
		"Ignore file: "+ignore,
		"Download newer files: "+enabled(report.OverwriteNewer),
	)
	md.PlainText("")
}

// WriteSummary outputs the end-of-run summary.
func (w *MarkdownWriter) WriteSummary(report *model.SyncReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeDiscovered(md, report)
	w.writeDownloads(md, report)
	w.writeCourses(md, report)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SyncReport) {
	md.H1("canvasmirror Summary")
	md.PlainText("")

	rows := [][]string{
		{"Canvas", report.CanvasURL},
		{"Destination", "`" + report.Destination + "`"},
	}
	if report.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + report.RunID + "`"})
	}
	if !report.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if d := duration(report); d > 0 {
		rows = append(rows, []string{"Duration", d.String()})
	}
	rows = append(rows, []string{"Status", status(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeDiscovered(md *markdown.Markdown, report *model.SyncReport) {
	md.H2("Discovered")
	md.PlainText("")

	var rows [][]string
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Discovered Resources"),
		piechart.WithShowData(true),
	)
	for _, c := range model.Categories() {
		n := report.Discovered[c.String()]
		if n == 0 {
			continue
		}
		rows = append(rows, []string{categoryTitle(c), strconv.FormatInt(n, 10)})
		if c != model.CategoryCourses {
			chart.LabelAndIntValue(categoryTitle(c), uint64(n))
		}
	}

	if len(rows) == 0 {
		md.PlainText("Nothing discovered.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Category", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
	if len(rows) > 2 {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	if report.DiscoveryFailures > 0 {
		md.Warningf("%d crawl task(s) failed. Run with --verbose for details.", report.DiscoveryFailures)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeDownloads(md *markdown.Markdown, report *model.SyncReport) {
	md.H2("Downloads")
	md.PlainText("")

	n := len(report.Planned)
	rows := [][]string{
		{"Planned", strconv.Itoa(n), formatBytes(report.PlannedBytes())},
	}
	if report.Downloaded() {
		rows = append(rows,
			[]string{"Downloaded", strconv.Itoa(report.Succeeded()), formatBytes(report.DownloadedBytes())},
			[]string{"Failed", strconv.Itoa(report.Failed()), "-"},
		)
	}
	md.Table(markdown.TableSet{
		Header: []string{"", "Files", "Size"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case report.Error != "":
		md.Cautionf("The run stopped early: %s", report.Error)
	case report.Cancelled:
		md.Note("Download cancelled.")
	case report.DryRun:
		md.Note("Dry run: nothing was downloaded.")
	case n == 0:
		md.Tip("Everything is up to date.")
	case report.Failed() > 0:
		md.Warningf("%d download(s) failed.", report.Failed())
	default:
		md.Tip("All files downloaded.")
	}
	md.PlainText("")

	if report.Failed() == 0 {
		return
	}
	rowsFailed := make([][]string, 0, report.Failed())
	for _, res := range report.Results {
		if !res.OK() {
			rowsFailed = append(rowsFailed, []string{"`" + res.Path + "`", truncateString(res.Error, 80)})
		}
	}
	md.H3("Failed Downloads")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Path", "Error"},
		Rows:   rowsFailed,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeCourses(md *markdown.Markdown, report *model.SyncReport) {
	if len(report.Courses) == 0 {
		return
	}
	md.H2("Courses")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Courses))
	for _, c := range report.Courses {
		rows = append(rows, []string{c.CourseCode, c.Name, strconv.FormatInt(c.EnrollmentTermID, 10)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Code", "Name", "Term"},
		Rows:   rows,
	})
	md.PlainText("")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
