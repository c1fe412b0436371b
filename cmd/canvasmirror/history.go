package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/canvasmirror/internal/config"
	"github.com/nao1215/canvasmirror/internal/database"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show previous sync runs",
		Long: `History shows the sync runs recorded in the history database.

Without arguments the most recent runs are listed. With a run ID (or a unique
prefix of one) the summary of that run and the outcome of every download are
shown. Dry runs are not recorded.

Examples:
  # List the last 20 runs
  canvasmirror history

  # Show one run
  canvasmirror history 6f1c2a7e

  # Show every recorded download of a file
  canvasmirror history --file ~/canvas/CS101/files/notes.pdf

  # Delete a run
  canvasmirror history --delete 6f1c2a7e

  # Output in JSON format
  canvasmirror history --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Number of runs to list (0 lists all)")
	cmd.Flags().StringP("file", "f", "",
		"Show the recorded downloads of a local file")
	cmd.Flags().String("delete", "",
		"Delete the run with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output run summaries in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the history database")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	limit    int
	file     string
	remove   string
	json     bool
	markdown bool
	dbDir    string
}

func parseHistoryFlags(cmd *cobra.Command) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.file, err = cmd.Flags().GetString("file"); err != nil {
		return opts, err
	}
	if opts.remove, err = cmd.Flags().GetString("delete"); err != nil {
		return opts, err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// Opening would create an empty database.
	if _, err := os.Stat(filepath.Join(opts.dbDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No sync history found.")
		fmt.Fprintln(out, "\nUse 'canvasmirror sync' to mirror your courses.")
		return nil
	}

	db, err := database.Open(opts.dbDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.remove != "":
		return deleteRun(ctx, out, db, opts.remove)
	case opts.file != "":
		return showFileHistory(ctx, out, db, opts)
	case len(args) == 1:
		return showRun(ctx, out, db, args[0], opts)
	default:
		return listRuns(ctx, out, db, opts)
	}
}

// listRuns prints the most recent runs.
func listRuns(ctx context.Context, w io.Writer, db *database.HistoryDB, opts historyOptions) error {
	runs, err := db.ListRuns(ctx, opts.limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if opts.json {
		if runs == nil {
			runs = []database.RunSummary{}
		}
		return writeJSON(w, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No sync history found.")
		return nil
	}

	fmt.Fprintf(w, "Sync history (%d runs):\n\n", len(runs))
	fmt.Fprintf(w, "  %-8s  %-19s  %-14s  %-20s  %s\n", "ID", "Started", "", "Downloaded", "Destination")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 90))

	for _, r := range runs {
		fmt.Fprintf(w, "  %-8s  %-19s  %-14s  %-20s  %s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			humanize.Time(r.StartedAt),
			runOutcome(r),
			r.Destination,
		)
	}

	fmt.Fprintln(w, "\nUse 'canvasmirror history <id>' to see the downloads of a run.")
	return nil
}

// runOutcome summarizes the downloads of a run in a few words.
func runOutcome(r database.RunSummary) string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.Planned == 0:
		return "up to date"
	case r.Failed > 0:
		return fmt.Sprintf("%d ok, %d failed", r.Succeeded, r.Failed)
	default:
		return fmt.Sprintf("%d (%s)", r.Succeeded, humanize.IBytes(uint64(max(r.DownloadedBytes, 0))))
	}
}

// showRun prints the stored summary of one run followed by its downloads.
func showRun(ctx context.Context, w io.Writer, db *database.HistoryDB, id string, opts historyOptions) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return historyError(err, id)
	}
	files, err := db.RunFiles(ctx, run.RunID)
	if err != nil {
		return fmt.Errorf("failed to get downloads: %w", err)
	}

	if opts.json {
		cfg := &config.Config{JSONReport: true}
		_, err := newReportWriter(cfg, w).WriteSummary(run)
		return err
	}

	cfg := &config.Config{MarkdownReport: opts.markdown}
	if _, err := newReportWriter(cfg, w).WriteSummary(run); err != nil {
		return err
	}
	if opts.markdown || len(files) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nRecorded downloads (%d):\n", len(files))
	for _, f := range files {
		if f.OK() {
			fmt.Fprintf(w, "  [+] %s (%s, %s)\n", f.Path, humanize.IBytes(uint64(max(f.Bytes, 0))), f.Duration)
			continue
		}
		fmt.Fprintf(w, "  [x] %s: %s\n", f.Path, f.Error)
	}
	return nil
}

// showFileHistory prints every recorded download of one local file.
func showFileHistory(ctx context.Context, w io.Writer, db *database.HistoryDB, opts historyOptions) error {
	path, err := filepath.Abs(opts.file)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	records, err := db.FileHistory(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to get file history: %w", err)
	}

	if opts.json {
		if records == nil {
			records = []database.FileRecord{}
		}
		return writeJSON(w, records)
	}

	if len(records) == 0 {
		fmt.Fprintf(w, "No recorded downloads of %s\n", path)
		return nil
	}

	fmt.Fprintf(w, "Download history for %s (%d):\n\n", path, len(records))
	for _, r := range records {
		status := "ok"
		if !r.OK() {
			status = "failed: " + r.Error
		}
		fmt.Fprintf(w, "  %-8s  %-10s  %s\n", shortID(r.RunID), humanize.IBytes(uint64(max(r.Bytes, 0))), status)
	}
	return nil
}

// deleteRun removes one run from the history.
func deleteRun(ctx context.Context, w io.Writer, db *database.HistoryDB, id string) error {
	resolved, err := db.ResolveRunID(ctx, id)
	if err != nil {
		return historyError(err, id)
	}
	if err := db.DeleteRun(ctx, resolved); err != nil {
		return err
	}
	fmt.Fprintf(w, "Deleted run %s\n", resolved)
	return nil
}

// historyError turns lookup errors into messages pointing at the listing.
func historyError(err error, id string) error {
	switch {
	case errors.Is(err, database.ErrRunNotFound):
		return fmt.Errorf("no run with ID %q (use 'canvasmirror history' to list runs)", id)
	case errors.Is(err, database.ErrAmbiguousRunID):
		return fmt.Errorf("run ID %q is ambiguous: give more characters", id)
	default:
		return err
	}
}

// shortID returns the first eight characters of a run ID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
