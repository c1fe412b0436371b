package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/nao1215/canvasmirror/internal/canvas"
	"github.com/nao1215/canvasmirror/internal/crawler"
	"github.com/nao1215/canvasmirror/internal/mirror"
	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// DiscoverStep crawls the selected courses and fills the download plan.
//
// Every course is seeded behind a scheduler fence and the step returns once
// the last crawl task has finished, so report.Files is complete when the
// next step runs.
type DiscoverStep struct {
	// client performs the Canvas API requests.
	client *canvas.Client

	// canvasURL is the Canvas instance base URL.
	canvasURL string

	// user is the authenticated user; submissions are fetched for its ID.
	user model.User

	// permits bounds concurrent requests. Shared with DownloadStep.
	permits *scheduler.Permits

	// layout writes metadata and decides which directories are ignored.
	layout *mirror.Layout

	// logger for structured logging.
	logger *slog.Logger
}

// DiscoverStepOption configures a DiscoverStep.
type DiscoverStepOption func(*DiscoverStep)

// WithDiscoverUser sets the authenticated user.
func WithDiscoverUser(u model.User) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.user = u
	}
}

// WithDiscoverPermits sets the permit pool used by crawl tasks.
func WithDiscoverPermits(p *scheduler.Permits) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.permits = p
	}
}

// WithDiscoverLayout sets the mirror layout.
func WithDiscoverLayout(l *mirror.Layout) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.layout = l
	}
}

// WithDiscoverLogger sets a custom logger for the discover step.
func WithDiscoverLogger(logger *slog.Logger) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.logger = logger
	}
}

// NewDiscoverStep creates a discover step for the Canvas instance at canvasURL.
func NewDiscoverStep(client *canvas.Client, canvasURL string, opts ...DiscoverStepOption) *DiscoverStep {
	s := &DiscoverStep{
		client:    client,
		canvasURL: canvasURL,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.permits == nil {
		s.permits = scheduler.NewPermits(scheduler.DefaultConcurrency)
	}
	if s.layout == nil {
		s.layout = mirror.NewLayout(afero.NewOsFs(), nil)
	}

	return s
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do crawls report.Courses into report.Destination.
func (s *DiscoverStep) Do(ctx context.Context, report *model.SyncReport) error {
	sched := scheduler.New(
		scheduler.WithPermits(s.permits),
		scheduler.WithPhase("discover"),
		scheduler.WithLogger(s.logger),
	)
	selector := mirror.NewSelector(s.layout.Fs(),
		mirror.WithMatcher(s.layout.Matcher()),
		mirror.WithOverwriteNewer(report.OverwriteNewer),
		mirror.WithSelectorLogger(s.logger),
	)
	c := crawler.New(s.client, sched, s.canvasURL,
		crawler.WithUser(s.user),
		crawler.WithLayout(s.layout),
		crawler.WithSelector(selector),
		crawler.WithLogger(s.logger),
	)

	release := sched.Fence()
	for _, course := range report.Courses {
		s.logger.Info("syncing course", "course", course.CourseCode, "name", course.Name)
		if err := c.ProcessCourse(ctx, course, report.Destination); err != nil {
			s.logger.Error("failed to prepare course directory",
				"course", course.CourseCode, "error", err)
		}
	}
	release()

	if err := sched.Wait(ctx); err != nil {
		return fmt.Errorf("discovery interrupted: %w", err)
	}

	report.Files = c.Queue().Snapshot()
	report.Planned = make([]model.PlannedFile, 0, len(report.Files))
	for _, f := range report.Files {
		report.Planned = append(report.Planned, f.Plan())
	}
	report.Discovered = c.Stats().Snapshot()
	report.DiscoveryFailures = sched.Failed()

	s.logger.Debug("discovery complete",
		"courses", len(report.Courses),
		"queued", len(report.Files),
		"tasks", sched.Completed(),
		"failed_tasks", sched.Failed(),
	)
	return nil
}

// PlanWriter prints the download plan.
type PlanWriter interface {
	WritePlan(report *model.SyncReport) (int, error)
}

// ConfirmStep prints the plan and asks whether to proceed.
//
// An empty answer, "y" or "yes" proceeds; anything else sets
// report.Cancelled. Dry runs and empty plans print the plan and never ask.
type ConfirmStep struct {
	// plan prints the download plan before the prompt.
	plan PlanWriter

	// in is where the answer is read from.
	in io.Reader

	// out is where the prompt is written.
	out io.Writer

	// assumeYes skips the prompt.
	assumeYes bool

	// logger for structured logging.
	logger *slog.Logger
}

// ConfirmStepOption configures a ConfirmStep.
type ConfirmStepOption func(*ConfirmStep)

// WithConfirmInput sets where the answer is read from. Defaults to stdin.
func WithConfirmInput(r io.Reader) ConfirmStepOption {
	return func(s *ConfirmStep) {
		s.in = r
	}
}

// WithConfirmOutput sets where the prompt is written. Defaults to stdout.
func WithConfirmOutput(w io.Writer) ConfirmStepOption {
	return func(s *ConfirmStep) {
		s.out = w
	}
}

// WithAssumeYes proceeds without asking.
func WithAssumeYes(yes bool) ConfirmStepOption {
	return func(s *ConfirmStep) {
		s.assumeYes = yes
	}
}

// WithConfirmLogger sets a custom logger for the confirm step.
func WithConfirmLogger(logger *slog.Logger) ConfirmStepOption {
	return func(s *ConfirmStep) {
		s.logger = logger
	}
}

// NewConfirmStep creates a confirm step printing the plan with plan.
// A nil plan skips printing.
func NewConfirmStep(plan PlanWriter, opts ...ConfirmStepOption) *ConfirmStep {
	s := &ConfirmStep{
		plan:   plan,
		in:     os.Stdin,
		out:    os.Stdout,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ConfirmStep) Name() string {
	return "confirm"
}

// Do prints the plan and reads the answer.
func (s *ConfirmStep) Do(_ context.Context, report *model.SyncReport) error {
	if s.plan != nil {
		if _, err := s.plan.WritePlan(report); err != nil {
			return fmt.Errorf("failed to write download plan: %w", err)
		}
	}
	if report.DryRun || len(report.Planned) == 0 || s.assumeYes {
		return nil
	}

	fmt.Fprint(s.out, "Proceed with download? [y]/n: ")
	answer, err := bufio.NewReader(s.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read answer: %w", err)
	}
	if !proceed(answer) {
		report.Cancelled = true
		fmt.Fprintln(s.out, "Download cancelled.")
		s.logger.Debug("download cancelled by user", "answer", strings.TrimSpace(answer))
		return nil
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Starting download...")
	return nil
}

// proceed reports whether answer accepts the prompt.
func proceed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "y", "yes":
		return true
	default:
		return false
	}
}

// DownloadStep downloads every planned file through the atomic downloader.
//
// Downloads run as tasks of a second scheduler phase that shares the
// discover phase's permit pool, so the request bound holds across both.
type DownloadStep struct {
	// opener streams file bodies. Usually the Canvas client.
	opener mirror.Opener

	// fs is the filesystem files are written to.
	fs afero.Fs

	// permits bounds concurrent downloads.
	permits *scheduler.Permits

	// progress renders per-file progress.
	progress mirror.Progress

	// logger for structured logging.
	logger *slog.Logger

	// mu guards report.Results while downloads run.
	mu sync.Mutex
}

// DownloadStepOption configures a DownloadStep.
type DownloadStepOption func(*DownloadStep)

// WithDownloadFs sets the destination filesystem. Defaults to the OS filesystem.
func WithDownloadFs(fsys afero.Fs) DownloadStepOption {
	return func(s *DownloadStep) {
		s.fs = fsys
	}
}

// WithDownloadPermits sets the permit pool used by download tasks.
func WithDownloadPermits(p *scheduler.Permits) DownloadStepOption {
	return func(s *DownloadStep) {
		s.permits = p
	}
}

// WithDownloadProgress sets the progress renderer.
func WithDownloadProgress(p mirror.Progress) DownloadStepOption {
	return func(s *DownloadStep) {
		s.progress = p
	}
}

// WithDownloadLogger sets a custom logger for the download step.
func WithDownloadLogger(logger *slog.Logger) DownloadStepOption {
	return func(s *DownloadStep) {
		s.logger = logger
	}
}

// NewDownloadStep creates a download step reading file bodies from opener.
func NewDownloadStep(opener mirror.Opener, opts ...DownloadStepOption) *DownloadStep {
	s := &DownloadStep{
		opener:   opener,
		progress: mirror.NoProgress{},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.permits == nil {
		s.permits = scheduler.NewPermits(scheduler.DefaultConcurrency)
	}

	return s
}

// Name returns the step name.
func (s *DownloadStep) Name() string {
	return "download"
}

// Do downloads report.Files unless the run is a dry run or was cancelled.
// Failed downloads are recorded in report.Results and do not fail the step.
func (s *DownloadStep) Do(ctx context.Context, report *model.SyncReport) error {
	defer func() {
		report.FinishedAt = time.Now()
	}()
	if !report.Downloaded() {
		return nil
	}

	sched := scheduler.New(
		scheduler.WithPermits(s.permits),
		scheduler.WithPhase("download"),
		scheduler.WithLogger(s.logger),
	)
	downloader := mirror.NewDownloader(s.fs, s.opener,
		mirror.WithProgress(s.progress),
		mirror.WithDownloaderLogger(s.logger),
	)

	report.Results = make([]model.DownloadResult, 0, len(report.Files))
	release := sched.Fence()
	for _, f := range report.Files {
		sched.Schedule(ctx, f.DisplayName, func(ctx context.Context) error {
			start := time.Now()
			n, err := downloader.Download(ctx, f)
			s.record(report, f, n, time.Since(start), err)
			return err
		})
	}
	release()

	// Wait drains in-flight downloads even after ctx is done, so
	// report.Results is final once it returns.
	err := sched.Wait(ctx)
	if w, ok := s.progress.(interface{ Wait() }); ok && err == nil {
		w.Wait()
	}
	if err != nil {
		return fmt.Errorf("download interrupted: %w", err)
	}

	s.logger.Debug("download complete",
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"bytes", report.DownloadedBytes(),
	)
	return nil
}

func (s *DownloadStep) record(report *model.SyncReport, f model.RemoteFile, n int64, d time.Duration, err error) {
	res := model.DownloadResult{
		URL:      f.URL,
		Path:     f.LocalPath,
		Bytes:    n,
		Duration: d,
	}
	if err != nil {
		res.Error = err.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	report.Results = append(report.Results, res)
}

// Recorder stores finished runs.
type Recorder interface {
	SaveRun(ctx context.Context, report *model.SyncReport) error
}

// RecordStep saves the run in the sync history. Dry runs are not recorded.
type RecordStep struct {
	recorder Recorder
	logger   *slog.Logger
}

// RecordStepOption configures a RecordStep.
type RecordStepOption func(*RecordStep)

// WithRecordLogger sets a custom logger for the record step.
func WithRecordLogger(logger *slog.Logger) RecordStepOption {
	return func(s *RecordStep) {
		s.logger = logger
	}
}

// NewRecordStep creates a record step saving to recorder.
func NewRecordStep(recorder Recorder, opts ...RecordStepOption) *RecordStep {
	s := &RecordStep{
		recorder: recorder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do saves the report. Failing to save is logged and otherwise ignored.
func (s *RecordStep) Do(ctx context.Context, report *model.SyncReport) error {
	if report.DryRun || s.recorder == nil {
		return nil
	}
	if report.FinishedAt.IsZero() {
		report.FinishedAt = time.Now()
	}
	if err := s.recorder.SaveRun(ctx, report); err != nil {
		s.logger.Warn("failed to save sync history", "run_id", report.RunID, "error", err)
		return nil
	}
	s.logger.Debug("sync history saved", "run_id", report.RunID)
	return nil
}
