package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/nao1215/canvasmirror/internal/canvas"
	"github.com/nao1215/canvasmirror/internal/mirror"
	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// newCanvasServer serves one course whose only content is two files in the
// root folder. Every other endpoint answers 404.
func newCanvasServer(t *testing.T) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/courses/1/folders/by_path/":
			_, _ = io.WriteString(w, `[{"id":10,"name":"course files","folders_url":"`+srv.URL+`/api/v1/folders/10/folders","files_url":"`+srv.URL+`/api/v1/folders/10/files","parent_folder_id":null}]`)
		case "/api/v1/folders/10/folders":
			_, _ = io.WriteString(w, `[]`)
		case "/api/v1/folders/10/files":
			_, _ = io.WriteString(w, `[`+
				`{"id":100,"display_name":"notes.pdf","size":3,"url":"`+srv.URL+`/files/100/download","updated_at":"2024-01-01T00:00:00Z"},`+
				`{"id":101,"display_name":"slides.pdf","size":4,"url":"`+srv.URL+`/files/101/download","updated_at":"2024-01-01T00:00:00Z"}]`)
		case "/files/100/download":
			_, _ = io.WriteString(w, "abc")
		case "/files/101/download":
			_, _ = io.WriteString(w, "defg")
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errors":[{"message":"The specified resource does not exist."}]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type stubPlan struct {
	calls int
}

func (p *stubPlan) WritePlan(*model.SyncReport) (int, error) {
	p.calls++
	return 0, nil
}

type stubRecorder struct {
	mu    sync.Mutex
	saved []*model.SyncReport
	err   error
}

func (r *stubRecorder) SaveRun(_ context.Context, report *model.SyncReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, report)
	return r.err
}

// stubOpener serves bodies by URL and fails for unknown URLs.
type stubOpener map[string]string

func (o stubOpener) Open(_ context.Context, url string) (io.ReadCloser, int64, error) {
	body, ok := o[url]
	if !ok {
		return nil, 0, canvas.ErrUnexpectedStatus
	}
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

func TestSyncPipeline(t *testing.T) {
	t.Parallel()

	srv := newCanvasServer(t)
	client := canvas.NewClient("test-token", canvas.WithHTTPClient(srv.Client()))
	fs := afero.NewMemMapFs()
	permits := scheduler.NewPermits(2)
	defer permits.Close()
	recorder := &stubRecorder{}
	var out bytes.Buffer

	p := New()
	p.AddSteps(
		NewDiscoverStep(client, srv.URL,
			WithDiscoverPermits(permits),
			WithDiscoverLayout(mirror.NewLayout(fs, nil)),
		),
		NewConfirmStep(&stubPlan{},
			WithConfirmInput(strings.NewReader("y\n")),
			WithConfirmOutput(&out),
		),
		NewDownloadStep(client,
			WithDownloadFs(fs),
			WithDownloadPermits(permits),
		),
		NewRecordStep(recorder),
	)

	report := &model.SyncReport{
		RunID:       "run-1",
		Destination: "/mirror",
		Courses:     []model.Course{{ID: 1, Name: "Intro CS", CourseCode: "CS101"}},
	}
	if err := p.Execute(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Planned) != 2 {
		t.Fatalf("expected 2 planned files, got %d", len(report.Planned))
	}
	if report.PlannedBytes() != 7 {
		t.Errorf("expected 7 planned bytes, got %d", report.PlannedBytes())
	}
	if report.Succeeded() != 2 || report.Failed() != 0 {
		t.Errorf("expected 2 successful downloads, got %+v", report.Results)
	}
	if report.DownloadedBytes() != 7 {
		t.Errorf("expected 7 downloaded bytes, got %d", report.DownloadedBytes())
	}
	if report.Discovered["files"] != 2 {
		t.Errorf("expected 2 discovered files, got %v", report.Discovered)
	}
	if report.FinishedAt.IsZero() {
		t.Error("expected FinishedAt to be set")
	}

	data, err := afero.ReadFile(fs, "/mirror/CS101/files/notes.pdf")
	if err != nil {
		t.Fatalf("expected mirrored file: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("unexpected content %q", data)
	}

	if len(recorder.saved) != 1 {
		t.Errorf("expected the run to be recorded once, got %d", len(recorder.saved))
	}
	if !strings.Contains(out.String(), "Proceed with download? [y]/n: ") {
		t.Errorf("expected prompt, got %q", out.String())
	}
	if permits.InUse() != 0 {
		t.Errorf("expected every permit released, %d in use", permits.InUse())
	}

	t.Run("second run finds nothing to do", func(t *testing.T) {
		second := &model.SyncReport{
			Destination: "/mirror",
			Courses:     report.Courses,
		}
		if err := p.Execute(context.Background(), second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(second.Planned) != 0 {
			t.Errorf("expected nothing planned, got %v", second.Planned)
		}
		if len(second.Results) != 0 {
			t.Errorf("expected no downloads, got %v", second.Results)
		}
	})
}

func TestConfirmStep(t *testing.T) {
	t.Parallel()

	planned := []model.PlannedFile{{URL: "https://canvas.example/files/1", Path: "/m/a.pdf", Size: 1}}

	tests := []struct {
		name       string
		answer     string
		dryRun     bool
		assumeYes  bool
		planned    []model.PlannedFile
		wantCancel bool
		wantPrompt bool
	}{
		{name: "empty answer proceeds", answer: "\n", planned: planned, wantPrompt: true},
		{name: "end of input proceeds", answer: "", planned: planned, wantPrompt: true},
		{name: "y proceeds", answer: "y\n", planned: planned, wantPrompt: true},
		{name: "YES proceeds", answer: " YES \n", planned: planned, wantPrompt: true},
		{name: "n cancels", answer: "n\n", planned: planned, wantCancel: true, wantPrompt: true},
		{name: "anything else cancels", answer: "maybe\n", planned: planned, wantCancel: true, wantPrompt: true},
		{name: "dry run never asks", answer: "n\n", planned: planned, dryRun: true},
		{name: "assume yes never asks", answer: "n\n", planned: planned, assumeYes: true},
		{name: "empty plan never asks", answer: "n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			plan := &stubPlan{}
			step := NewConfirmStep(plan,
				WithConfirmInput(strings.NewReader(tt.answer)),
				WithConfirmOutput(&out),
				WithAssumeYes(tt.assumeYes),
			)
			report := &model.SyncReport{DryRun: tt.dryRun, Planned: tt.planned}

			if err := step.Do(context.Background(), report); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if plan.calls != 1 {
				t.Errorf("expected the plan to be printed once, got %d", plan.calls)
			}
			if report.Cancelled != tt.wantCancel {
				t.Errorf("Cancelled = %v, want %v", report.Cancelled, tt.wantCancel)
			}
			if got := strings.Contains(out.String(), "Proceed with download?"); got != tt.wantPrompt {
				t.Errorf("prompt shown = %v, want %v", got, tt.wantPrompt)
			}
		})
	}
}

func TestDownloadStep(t *testing.T) {
	t.Parallel()

	files := []model.RemoteFile{
		{DisplayName: "a.pdf", URL: "https://canvas.example/a", LocalPath: "/m/a.pdf", UpdatedAt: "2024-01-01T00:00:00Z"},
		{DisplayName: "b.pdf", URL: "https://canvas.example/b", LocalPath: "/m/b.pdf", UpdatedAt: "2024-01-01T00:00:00Z"},
	}
	plan := func() []model.PlannedFile {
		out := make([]model.PlannedFile, 0, len(files))
		for _, f := range files {
			out = append(out, f.Plan())
		}
		return out
	}

	t.Run("records failures without failing the step", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		if err := fs.MkdirAll("/m", 0o755); err != nil {
			t.Fatal(err)
		}
		step := NewDownloadStep(stubOpener{"https://canvas.example/a": "hello"}, WithDownloadFs(fs))
		report := &model.SyncReport{Files: files, Planned: plan()}

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Succeeded() != 1 || report.Failed() != 1 {
			t.Fatalf("expected one success and one failure, got %+v", report.Results)
		}
		for _, res := range report.Results {
			if res.Path == "/m/b.pdf" && !strings.Contains(res.Error, "b.pdf") {
				t.Errorf("expected error naming the file, got %q", res.Error)
			}
		}
		if exists, _ := afero.Exists(fs, "/m/b.pdf"); exists {
			t.Error("failed download must not leave a file behind")
		}
		if report.DownloadedBytes() != 5 {
			t.Errorf("expected 5 bytes, got %d", report.DownloadedBytes())
		}
	})

	t.Run("skips cancelled and dry runs", func(t *testing.T) {
		t.Parallel()

		for _, report := range []*model.SyncReport{
			{Files: files, Planned: plan(), Cancelled: true},
			{Files: files, Planned: plan(), DryRun: true},
		} {
			step := NewDownloadStep(stubOpener{}, WithDownloadFs(afero.NewMemMapFs()))
			if err := step.Do(context.Background(), report); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(report.Results) != 0 {
				t.Errorf("expected no downloads, got %v", report.Results)
			}
			if report.FinishedAt.IsZero() {
				t.Error("expected FinishedAt to be set")
			}
		}
	})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stallingOpener blocks until ctx is done and fails shortly after, the way
// an HTTP body read reacts to an interrupted request.
type stallingOpener struct {
	started chan struct{}
	pending atomic.Int64
}

func (o *stallingOpener) Open(ctx context.Context, _ string) (io.ReadCloser, int64, error) {
	o.pending.Add(1)
	defer o.pending.Add(-1)
	o.started <- struct{}{}
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	return nil, 0, ctx.Err()
}

func TestDownloadStep_CancelledMidDownload(t *testing.T) {
	t.Parallel()

	files := []model.RemoteFile{
		{DisplayName: "a.pdf", URL: "https://canvas.example/a", LocalPath: "/m/a.pdf", UpdatedAt: "2024-01-01T00:00:00Z"},
		{DisplayName: "b.pdf", URL: "https://canvas.example/b", LocalPath: "/m/b.pdf", UpdatedAt: "2024-01-01T00:00:00Z"},
	}
	report := &model.SyncReport{Files: files}
	for _, f := range files {
		report.Planned = append(report.Planned, f.Plan())
	}

	opener := &stallingOpener{started: make(chan struct{}, len(files))}
	step := NewDownloadStep(opener,
		WithDownloadFs(afero.NewMemMapFs()),
		WithDownloadPermits(scheduler.NewPermits(len(files))),
		WithDownloadLogger(quietLogger()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for range files {
			<-opener.started
		}
		cancel()
	}()

	err := step.Do(ctx, report)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := opener.pending.Load(); n != 0 {
		t.Errorf("%d downloads still running after Do returned", n)
	}
	if len(report.Results) != len(files) || report.Failed() != len(files) {
		t.Fatalf("expected %d failed results, got %+v", len(files), report.Results)
	}

	time.Sleep(100 * time.Millisecond)
	if len(report.Results) != len(files) {
		t.Errorf("results changed after Do returned: %+v", report.Results)
	}
}

func TestRecordStep(t *testing.T) {
	t.Parallel()

	t.Run("dry runs are not recorded", func(t *testing.T) {
		t.Parallel()

		rec := &stubRecorder{}
		if err := NewRecordStep(rec).Do(context.Background(), &model.SyncReport{DryRun: true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rec.saved) != 0 {
			t.Error("dry run should not be recorded")
		}
	})

	t.Run("save errors do not fail the run", func(t *testing.T) {
		t.Parallel()

		rec := &stubRecorder{err: errors.New("database is locked")}
		report := &model.SyncReport{RunID: "run-2"}
		if err := NewRecordStep(rec).Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rec.saved) != 1 {
			t.Error("expected one save attempt")
		}
		if report.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
	})

	t.Run("nil recorder is a no-op", func(t *testing.T) {
		t.Parallel()

		if err := NewRecordStep(nil).Do(context.Background(), &model.SyncReport{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
