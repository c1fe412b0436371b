package model

import "time"

// SyncReport is the outcome of one canvasmirror run.
//
// Design decision: A single struct carries the whole run, from the filters
// used to the per-file results, so that the report writers and the history
// database serialize the same thing.
type SyncReport struct {
	// === Run ===

	// RunID identifies the run in the history database.
	RunID string `json:"run_id"`

	// StartedAt is when discovery began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last phase completed.
	FinishedAt time.Time `json:"finished_at"`

	// === Filters ===

	CanvasURL      string   `json:"canvas_url"`
	Destination    string   `json:"destination"`
	TermIDs        []int64  `json:"term_ids,omitempty"`
	CourseNames    []string `json:"course_names,omitempty"`
	IgnoreFile     string   `json:"ignore_file,omitempty"`
	OverwriteNewer bool     `json:"overwrite_newer"`
	DryRun         bool     `json:"dry_run"`

	// === Discovery ===

	// Courses are the courses selected for mirroring.
	Courses []Course `json:"courses"`

	// Discovered counts resources found per category name.
	Discovered map[string]int64 `json:"discovered"`

	// DiscoveryFailures counts crawl tasks that failed.
	DiscoveryFailures int64 `json:"discovery_failures"`

	// Planned lists the files selected for download.
	Planned []PlannedFile `json:"planned"`

	// Files are the queued files behind Planned, as the downloader needs them.
	Files []RemoteFile `json:"-"`

	// === Download ===

	// Cancelled is true when the user declined the confirmation prompt.
	Cancelled bool `json:"cancelled"`

	// Results holds one entry per attempted download.
	Results []DownloadResult `json:"results,omitempty"`

	// === Pipeline ===

	// Steps lists the pipeline steps that ran, in order.
	Steps []string `json:"steps,omitempty"`

	// Error is the message of the step failure that ended the run, if any.
	Error string `json:"error,omitempty"`
}

// DownloadResult is the outcome of downloading one file.
type DownloadResult struct {
	URL      string        `json:"url"`
	Path     string        `json:"path"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// OK reports whether the download succeeded.
func (r DownloadResult) OK() bool {
	return r.Error == ""
}

// PlannedBytes sums the declared sizes of the planned files.
func (r *SyncReport) PlannedBytes() int64 {
	var total int64
	for _, f := range r.Planned {
		total += f.Size
	}
	return total
}

// Succeeded returns the number of successful downloads.
func (r *SyncReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed downloads.
func (r *SyncReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// DownloadedBytes sums the bytes written by successful downloads.
func (r *SyncReport) DownloadedBytes() int64 {
	var total int64
	for _, res := range r.Results {
		if res.OK() {
			total += res.Bytes
		}
	}
	return total
}

// Downloaded reports whether the download phase ran.
func (r *SyncReport) Downloaded() bool {
	return !r.DryRun && !r.Cancelled && len(r.Planned) > 0
}
