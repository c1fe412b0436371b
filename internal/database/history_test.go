package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/canvasmirror/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func testReport(id string, started time.Time) *model.SyncReport {
	return &model.SyncReport{
		RunID:       id,
		StartedAt:   started,
		FinishedAt:  started.Add(time.Minute),
		CanvasURL:   "https://canvas.example.edu",
		Destination: "/home/student/canvas",
		Courses:     []model.Course{{ID: 1, Name: "Intro CS", CourseCode: "CS101"}},
		Discovered:  map[string]int64{"files": 2},
		Planned: []model.PlannedFile{
			{URL: "https://canvas.example.edu/files/1", Path: "/home/student/canvas/CS101/files/a.pdf", Size: 10},
			{URL: "https://canvas.example.edu/files/2", Path: "/home/student/canvas/CS101/files/b.pdf", Size: 20},
		},
		Results: []model.DownloadResult{
			{URL: "https://canvas.example.edu/files/1", Path: "/home/student/canvas/CS101/files/a.pdf", Bytes: 10, Duration: 1500 * time.Millisecond},
			{URL: "https://canvas.example.edu/files/2", Path: "/home/student/canvas/CS101/files/b.pdf", Error: "connection reset"},
		},
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("refuses to create when CreateIfNotExists is false", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "missing")
		if _, err := Open(dbDir, Options{}); err == nil {
			t.Fatal("expected error for missing database")
		}
		if _, err := os.Stat(dbDir); !os.IsNotExist(err) {
			t.Error("directory should not have been created")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		ctx := context.Background()
		if err := db.SaveRun(ctx, testReport("run-a", time.Now())); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		_ = db.Close()

		db, err = Open(dbDir, Options{})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run after reopen, got %d", len(runs))
		}
	})
}

func TestSaveAndListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	older := testReport("11111111-aaaa-4000-8000-000000000000", base)
	newer := testReport("22222222-bbbb-4000-8000-000000000000", base.Add(time.Hour))
	newer.Cancelled = true
	newer.Results = nil

	for _, r := range []*model.SyncReport{older, newer} {
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newer.RunID {
		t.Errorf("expected newest run first, got %s", runs[0].ID)
	}
	if !runs[0].Cancelled {
		t.Error("expected newest run to be cancelled")
	}
	if !runs[1].StartedAt.Equal(base) {
		t.Errorf("expected started_at %v, got %v", base, runs[1].StartedAt)
	}
	if runs[1].Planned != 2 || runs[1].PlannedBytes != 30 {
		t.Errorf("unexpected plan totals: %+v", runs[1])
	}
	if runs[1].Succeeded != 1 || runs[1].Failed != 1 || runs[1].DownloadedBytes != 10 {
		t.Errorf("unexpected download totals: %+v", runs[1])
	}

	limited, err := db.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d runs", len(limited))
	}

	t.Run("duplicate run IDs are rejected", func(t *testing.T) {
		if err := db.SaveRun(ctx, testReport(older.RunID, base)); err == nil {
			t.Error("expected error for duplicate run ID")
		}
	})
}

func TestSaveRunAssignsID(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	report := testReport("", time.Now())

	if err := db.SaveRun(context.Background(), report); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if _, err := uuid.Parse(report.RunID); err != nil {
		t.Errorf("expected a UUID run ID, got %q: %v", report.RunID, err)
	}
}

func TestGetRunAndFiles(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	report := testReport("abcdef01-2345-4678-9abc-def012345678", time.Now())
	if err := db.SaveRun(ctx, report); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	t.Run("full ID", func(t *testing.T) {
		t.Parallel()

		got, err := db.GetRun(ctx, report.RunID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Destination != report.Destination || len(got.Planned) != 2 {
			t.Errorf("unexpected report: %+v", got)
		}
		if got.Discovered["files"] != 2 {
			t.Errorf("expected discovery counts to round-trip, got %v", got.Discovered)
		}
	})

	t.Run("unique prefix", func(t *testing.T) {
		t.Parallel()

		files, err := db.RunFiles(ctx, "abcdef")
		if err != nil {
			t.Fatalf("failed to get files: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("expected 2 files, got %d", len(files))
		}
		if !files[0].OK() || files[0].Duration != 1500*time.Millisecond {
			t.Errorf("unexpected first file: %+v", files[0])
		}
		if files[1].OK() || files[1].Error != "connection reset" {
			t.Errorf("unexpected second file: %+v", files[1])
		}
	})

	t.Run("unknown ID", func(t *testing.T) {
		t.Parallel()

		if _, err := db.GetRun(ctx, "ffff"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		if _, err := db.GetRun(ctx, "  "); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound for blank ID, got %v", err)
		}
	})
}

func TestResolveRunIDAmbiguous(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"aa11", "aa22"} {
		if err := db.SaveRun(ctx, testReport(id, time.Now())); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	if _, err := db.ResolveRunID(ctx, "aa"); !errors.Is(err, ErrAmbiguousRunID) {
		t.Errorf("expected ErrAmbiguousRunID, got %v", err)
	}
	if id, err := db.ResolveRunID(ctx, "aa2"); err != nil || id != "aa22" {
		t.Errorf("expected aa22, got %q, %v", id, err)
	}
}

func TestFileHistoryAndDelete(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := testReport("run-1", base)
	second := testReport("run-2", base.Add(24*time.Hour))
	for _, r := range []*model.SyncReport{first, second} {
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	history, err := db.FileHistory(ctx, "/home/student/canvas/CS101/files/a.pdf")
	if err != nil {
		t.Fatalf("failed to get file history: %v", err)
	}
	if len(history) != 2 || history[0].RunID != "run-2" {
		t.Fatalf("expected newest first, got %+v", history)
	}

	if err := db.DeleteRun(ctx, "run-2"); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}
	history, err = db.FileHistory(ctx, "/home/student/canvas/CS101/files/a.pdf")
	if err != nil {
		t.Fatalf("failed to get file history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected file rows of the deleted run to cascade, got %+v", history)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 3, 1, 10, 0, 0, 500, time.UTC)
	if got := parseTimestamp(formatTimestamp(want)); !got.Equal(want) {
		t.Errorf("round trip: got %v, want %v", got, want)
	}
	if got := parseTimestamp("2025-03-01 10:00:00"); got.IsZero() {
		t.Error("expected SQLite datetime format to parse")
	}
	if got := parseTimestamp("yesterday"); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}
