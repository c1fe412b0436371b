package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nao1215/canvasmirror/internal/canvas"
	"github.com/nao1215/canvasmirror/internal/config"
	"github.com/nao1215/canvasmirror/internal/crawler"
	"github.com/nao1215/canvasmirror/internal/database"
	"github.com/nao1215/canvasmirror/internal/log"
	"github.com/nao1215/canvasmirror/internal/mirror"
	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/pipeline"
	"github.com/nao1215/canvasmirror/internal/report"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the selected courses into the destination directory",
		Long: `Sync crawls the selected Canvas courses and downloads every file that is
missing locally.

For each course a directory named after its course code is created under the
destination, holding:
- files/          the course folder tree
- assignments/    one folder per assignment with submissions and attachments
- discussions/    topics, entries and attachments
- announcements/  same layout as discussions
- pages/          wiki pages as JSON and HTML
- modules/        module items, page bodies and link shortcuts
- syllabus.html   the course syllabus

Files linked from HTML content (pages, assignments, syllabus, discussions)
are downloaded next to the content that links them.

Without -t or -c the available courses are listed grouped by term.

Examples:
  # Mirror every course of term 42 into ./canvas
  canvasmirror sync -t 42 -d canvas

  # Mirror two courses by code, replacing files that changed remotely
  canvasmirror sync -c CS101 -c "MATH 201" -n

  # Show what would be downloaded without downloading
  canvasmirror sync -t 42 --dry-run

  # Skip the confirmation prompt and write a Markdown summary
  canvasmirror sync -t 42 -y --markdown -o reports/latest.md

Files matching the gitignore-style patterns in .canvasignore (or the file
given by --ignore-file) are never downloaded. Patterns are relative to the
destination directory.`,
		Args: cobra.NoArgs,
		RunE: runSyncCmd,
	}

	// Selection flags
	cmd.Flags().Int64SliceP("term", "t", nil,
		"Enrollment term ID(s) of the courses to mirror")
	cmd.Flags().StringSliceP("course", "c", nil,
		"Course name(s) or code(s) to mirror (exact match)")

	// Mirror behavior flags
	cmd.Flags().StringP("destination", "d", config.DefaultDestination,
		"Directory that receives one sub-directory per course")
	cmd.Flags().BoolP("download-newer", "n", false,
		"Replace local files whose remote copy is newer")
	cmd.Flags().StringP("ignore-file", "i", "",
		"Gitignore-style file of paths to skip (default: "+config.DefaultIgnoreFile+" if present)")
	cmd.Flags().Bool("dry-run", false,
		"Print the download plan without downloading")
	cmd.Flags().BoolP("yes", "y", false,
		"Download without asking for confirmation")

	// Connection flags
	cmd.Flags().String("config", "",
		"Credentials file path (default: canvasmirror.{toml,yaml,yml} or the XDG config directory)")
	cmd.Flags().String("proxy", "",
		"Route all requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Maximum number of concurrent requests and downloads")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout for each API request")
	cmd.Flags().Int("retries", config.DefaultMaxAttempts,
		"Attempts for a request Canvas answers with 403")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON plan and summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown plan and summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the summary to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")

	return cmd
}

// runSyncCmd executes the sync command.
func runSyncCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ResolveCredentials(config.DefaultEnvFile); err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runSync(ctx, cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
// Credentials are resolved separately.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.TermIDs, err = cmd.Flags().GetInt64Slice("term")
	if err != nil {
		return nil, err
	}

	cfg.CourseNames, err = cmd.Flags().GetStringSlice("course")
	if err != nil {
		return nil, err
	}

	cfg.Destination, err = cmd.Flags().GetString("destination")
	if err != nil {
		return nil, err
	}
	if cfg.Destination, err = filepath.Abs(cfg.Destination); err != nil {
		return nil, fmt.Errorf("invalid destination: %w", err)
	}

	cfg.DownloadNewer, err = cmd.Flags().GetBool("download-newer")
	if err != nil {
		return nil, err
	}

	cfg.IgnoreFile, err = cmd.Flags().GetString("ignore-file")
	if err != nil {
		return nil, err
	}

	cfg.DryRun, err = cmd.Flags().GetBool("dry-run")
	if err != nil {
		return nil, err
	}

	cfg.AssumeYes, err = cmd.Flags().GetBool("yes")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxAttempts, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory && !cfg.DryRun

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// setupLogger creates the redacting logger. Verbose enables Debug records.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// newCanvasClient builds the Canvas client, checking the proxy first when
// one is configured.
func newCanvasClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*canvas.Client, error) {
	if cfg.ProxyAddress != "" {
		if err := canvas.CheckProxy(ctx, cfg.ProxyAddress); err != nil {
			return nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				err, cfg.ProxyAddress)
		}
		logger.Info("SOCKS5 proxy verified", "address", cfg.ProxyAddress)
	}

	hc, err := canvas.NewHTTPClient(cfg.ProxyAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return canvas.NewClient(cfg.CanvasToken,
		canvas.WithHTTPClient(hc),
		canvas.WithLogger(logger),
		canvas.WithTimeout(cfg.Timeout),
		canvas.WithRetry(cfg.MaxAttempts, cfg.BaseDelay),
		canvas.WithUserAgent(cfg.UserAgent),
	), nil
}

// runSync selects the courses and runs the sync pipeline over them.
func runSync(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	client, err := newCanvasClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	user, courses, err := crawler.Discover(ctx, client, cfg.CanvasURL)
	if err != nil {
		return err
	}
	logger.Debug("discovered courses", "user", user.Name, "courses", len(courses))

	if !cfg.HasFilters() {
		fmt.Fprintln(out, "Please provide either Term ID(s) via -t or course name(s)/code(s) via -c")
		printCoursesByTerm(out, courses)
		return nil
	}

	selected := crawler.SelectCourses(courses, cfg.TermIDs, cfg.CourseNames)
	if len(selected) == 0 {
		logger.Warn("could not find any course matching the filters",
			"terms", cfg.TermIDs,
			"courses", cfg.CourseNames,
		)
		fmt.Fprintln(out, "Please try the following instead:")
		printCoursesByTerm(out, courses)
		return nil
	}

	if !cfg.JSONReport {
		fmt.Fprintln(out, "Courses found:")
		for _, c := range selected {
			fmt.Fprintf(out, "  * %s - %s\n", c.CourseCode, c.Name)
		}
	}

	matcher, ignoreFile, err := loadIgnoreFile(cfg)
	if err != nil {
		return err
	}

	permits := scheduler.NewPermits(cfg.Concurrency)
	// Every phase drains before its step returns, so nothing acquires
	// after this runs.
	defer permits.Close()

	var recorder pipeline.Recorder
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			// History is optional; the mirror itself does not depend on it.
			logger.Warn("history disabled: failed to open database", "dir", cfg.DBDir, "error", err)
		} else {
			defer db.Close()
			recorder = db
		}
	}

	fsys := afero.NewOsFs()
	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewDiscoverStep(client, cfg.CanvasURL,
			pipeline.WithDiscoverUser(user),
			pipeline.WithDiscoverPermits(permits),
			pipeline.WithDiscoverLayout(mirror.NewLayout(fsys, matcher)),
			pipeline.WithDiscoverLogger(logger),
		),
		pipeline.NewConfirmStep(newReportWriter(cfg, out),
			pipeline.WithConfirmInput(in),
			pipeline.WithConfirmOutput(out),
			pipeline.WithAssumeYes(cfg.AssumeYes),
			pipeline.WithConfirmLogger(logger),
		),
		pipeline.NewDownloadStep(client,
			pipeline.WithDownloadFs(fsys),
			pipeline.WithDownloadPermits(permits),
			pipeline.WithDownloadProgress(mirror.NewBarProgress(os.Stderr)),
			pipeline.WithDownloadLogger(logger),
		),
		pipeline.NewRecordStep(recorder, pipeline.WithRecordLogger(logger)),
	)

	syncReport := &model.SyncReport{
		RunID:          database.NewRunID(),
		StartedAt:      time.Now(),
		CanvasURL:      cfg.CanvasURL,
		Destination:    cfg.Destination,
		TermIDs:        cfg.TermIDs,
		CourseNames:    cfg.CourseNames,
		IgnoreFile:     ignoreFile,
		OverwriteNewer: cfg.DownloadNewer,
		DryRun:         cfg.DryRun,
		Courses:        selected,
	}

	logger.Info("starting sync",
		"run", syncReport.RunID,
		"courses", len(selected),
		"destination", cfg.Destination,
		"dryRun", cfg.DryRun,
		"steps", p.StepNames(),
	)

	runErr := p.Execute(ctx, syncReport)
	if cfg.DryRun && runErr == nil {
		return nil
	}

	if err := outputSummary(cfg, out, syncReport); err != nil {
		logger.Error("report failed", "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("sync failed: %w", runErr)
	}
	if n := syncReport.Failed(); n > 0 {
		return fmt.Errorf("%d download(s) failed", n)
	}
	return nil
}

// loadIgnoreFile compiles the ignore file given by --ignore-file, or the
// default ignore file in the working directory when it exists. It returns
// the path used, empty when nothing is ignored.
func loadIgnoreFile(cfg *config.Config) (*mirror.Matcher, string, error) {
	path := cfg.IgnoreFile
	if path == "" {
		if _, err := os.Stat(config.DefaultIgnoreFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, "", nil
			}
			return nil, "", fmt.Errorf("failed to check %s: %w", config.DefaultIgnoreFile, err)
		}
		path = config.DefaultIgnoreFile
	}

	matcher, err := mirror.LoadMatcher(path, cfg.Destination)
	if err != nil {
		return nil, "", err
	}
	return matcher, path, nil
}

// newReportWriter returns the writer for the format chosen by flags.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// outputSummary writes the summary in the requested format. With a report
// file the formatted summary goes to the file and a text summary to out.
func outputSummary(cfg *config.Config, out io.Writer, syncReport *model.SyncReport) error {
	if cfg.ReportFile == "" {
		_, err := newReportWriter(cfg, out).WriteSummary(syncReport)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Summaries list local paths and the Canvas URL.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := report.NewMultiWriter(
		report.NewSimpleWriter(out),
		newReportWriter(cfg, f),
	)
	if _, err := w.WriteSummary(syncReport); err != nil {
		return err
	}
	fmt.Fprintf(out, "Summary written to %s\n", cfg.ReportFile)
	return nil
}
