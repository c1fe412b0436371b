package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/nao1215/canvasmirror/internal/canvas"
	"github.com/nao1215/canvasmirror/internal/mirror"
	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// Crawler holds the state shared by all crawl tasks of one run.
type Crawler struct {
	client    *canvas.Client
	sched     *scheduler.Scheduler
	parser    *Parser
	queue     *mirror.Queue
	selector  *mirror.Selector
	layout    *mirror.Layout
	canvasURL string
	user      model.User
	stats     *model.Stats
	logger    *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithUser sets the authenticated user. Submissions are fetched for this
// user's ID.
func WithUser(u model.User) Option {
	return func(c *Crawler) {
		c.user = u
	}
}

// WithQueue sets the download queue.
func WithQueue(q *mirror.Queue) Option {
	return func(c *Crawler) {
		c.queue = q
	}
}

// WithSelector sets the selector deciding which files to queue.
func WithSelector(s *mirror.Selector) Option {
	return func(c *Crawler) {
		c.selector = s
	}
}

// WithLayout sets the layout used to create directories and write metadata.
func WithLayout(l *mirror.Layout) Option {
	return func(c *Crawler) {
		c.layout = l
	}
}

// WithStats sets the discovery counters.
func WithStats(s *model.Stats) Option {
	return func(c *Crawler) {
		c.stats = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler that schedules its tasks on sched.
// Without options it mirrors onto the OS filesystem with no ignore file
// and never overwrites newer local files.
func New(client *canvas.Client, sched *scheduler.Scheduler, canvasURL string, opts ...Option) *Crawler {
	canvasURL = strings.TrimRight(canvasURL, "/")
	c := &Crawler{
		client:    client,
		sched:     sched,
		canvasURL: canvasURL,
		queue:     &mirror.Queue{},
		stats:     &model.Stats{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.layout == nil {
		c.layout = mirror.NewLayout(afero.NewOsFs(), nil)
	}
	if c.selector == nil {
		c.selector = mirror.NewSelector(c.layout.Fs(),
			mirror.WithMatcher(c.layout.Matcher()),
			mirror.WithSelectorLogger(c.logger),
		)
	}
	parser, err := NewParser(canvasURL)
	if err != nil {
		c.logger.Warn("invalid Canvas URL, HTML links will not be followed", "url", canvasURL, "error", err)
	}
	c.parser = parser
	return c
}

// Queue returns the download queue filled by the crawl.
func (c *Crawler) Queue() *mirror.Queue {
	return c.queue
}

// Stats returns the discovery counters.
func (c *Crawler) Stats() *model.Stats {
	return c.stats
}

// ProcessCourse creates the course directory and schedules every expander
// for the course. It returns once the tasks are scheduled; wait on the
// scheduler for them to finish.
func (c *Crawler) ProcessCourse(ctx context.Context, course model.Course, dest string) error {
	courseDir := filepath.Join(dest, course.DirName())
	ok, err := c.layout.EnsureDir(courseDir)
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Info("course directory is ignored, skipping", "course", course.CourseCode)
		return nil
	}
	c.stats.Add(model.CategoryCourses, 1)

	courseURL := c.api("courses/%d/", course.ID)

	filesDir := filepath.Join(courseDir, "files")
	if c.ensureDir(filesDir) {
		c.spawn(ctx, "folders", c.folders(courseURL+"folders/by_path/", filesDir))
	}
	assignmentsDir := filepath.Join(courseDir, "assignments")
	if c.ensureDir(assignmentsDir) {
		c.spawn(ctx, "assignments", c.assignments(courseURL, assignmentsDir))
	}
	c.spawn(ctx, "users", c.users(courseURL, filepath.Join(courseDir, "users.json")))
	c.spawn(ctx, "discussions", c.discussions(courseURL, courseDir, false))
	c.spawn(ctx, "announcements", c.discussions(courseURL, courseDir, true))
	c.spawn(ctx, "pages", c.pages(courseURL, courseDir))
	c.spawn(ctx, "modules", c.modules(courseURL, courseDir))
	c.spawn(ctx, "syllabus", c.syllabus(course.ID, courseDir))
	return nil
}

// spawn schedules task on the run's scheduler.
func (c *Crawler) spawn(ctx context.Context, name string, task scheduler.Task) {
	c.sched.Schedule(ctx, name, task)
}

// api returns an absolute /api/v1 URL.
func (c *Crawler) api(format string, args ...any) string {
	return c.canvasURL + "/api/v1/" + fmt.Sprintf(format, args...)
}

// ensureDir creates dir and reports whether it can be used. Failures are
// logged; an ignored directory is not an error.
func (c *Crawler) ensureDir(dir string) bool {
	ok, err := c.layout.EnsureDir(dir)
	if err != nil {
		c.logger.Error("failed to create directory", "path", dir, "error", err)
		return false
	}
	return ok
}

// writeJSON writes a raw API body, logging failures. Ignored paths are
// skipped silently.
func (c *Crawler) writeJSON(path string, raw []byte) {
	if c.layout.Matcher().Ignored(path, false) {
		return
	}
	if err := c.layout.WriteJSON(path, raw); err != nil {
		c.logger.Error("failed to write metadata", "path", path, "error", err)
	}
}

// writeFile is writeJSON for non-JSON content.
func (c *Crawler) writeFile(path string, data []byte) {
	if c.layout.Matcher().Ignored(path, false) {
		return
	}
	if err := c.layout.WriteFile(path, data); err != nil {
		c.logger.Error("failed to write file", "path", path, "error", err)
	}
}

// queueFiles selects files for download into dir, which must exist, and
// appends them to the queue.
func (c *Crawler) queueFiles(dir string, files []model.RemoteFile) int {
	return c.queue.Append(c.selector.Select(dir, files)...)
}

// queueInto is queueFiles for a directory that is created only when at
// least one file is selected.
func (c *Crawler) queueInto(dir string, files []model.RemoteFile) int {
	selected := c.selector.Select(dir, files)
	if len(selected) == 0 {
		return 0
	}
	if !c.ensureDir(dir) {
		return 0
	}
	return c.queue.Append(selected...)
}

// eachPage fetches every page of a collection and passes it to fn.
func (c *Crawler) eachPage(ctx context.Context, rawURL string, fn func(*canvas.Response)) error {
	pages := c.client.FetchPages(rawURL)
	for pages.Next(ctx) {
		fn(pages.Page())
	}
	if err := pages.Err(); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	return nil
}

// collect fetches every page of a list endpoint and decodes its items.
// Bodies are returned as well so that callers can store the raw listing.
func collect[T any](ctx context.Context, c *Crawler, rawURL, what string) ([]T, [][]byte, error) {
	var (
		items  []T
		bodies [][]byte
	)
	err := c.eachPage(ctx, rawURL, func(resp *canvas.Response) {
		bodies = append(bodies, resp.Body)
		items = append(items, decodeList[T](c, resp, what)...)
	})
	return items, bodies, err
}

// decodeList decodes one page of a list endpoint. Collections the course
// does not expose yield nothing and are logged at Debug.
func decodeList[T any](c *Crawler, resp *canvas.Response, what string) []T {
	res, err := model.DecodeResult[T](resp.Body)
	if err != nil {
		c.logger.Error("failed to parse "+what, "url", resp.URL, "status_code", resp.StatusCode, "error", err)
		return nil
	}
	switch {
	case res.Absent():
		c.logger.Debug("no "+what, "url", resp.URL, "status", res.Status)
	case res.Kind == model.KindStatus:
		c.logger.Warn("failed to access "+what, "url", resp.URL, "status", res.Status)
	}
	return res.Items
}

// fetchObject fetches and decodes a single resource. ok is false when the
// resource is absent or could not be parsed; both are logged.
func fetchObject[T any](ctx context.Context, c *Crawler, rawURL, what string) (v T, raw []byte, ok bool, err error) {
	resp, err := c.client.FetchOne(ctx, rawURL)
	if err != nil {
		return v, nil, false, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	obj, err := model.DecodeObject[T](resp.Body)
	if err != nil {
		c.logger.Error("failed to parse "+what, "url", rawURL, "status_code", resp.StatusCode, "error", err)
		return v, resp.Body, false, nil
	}
	switch {
	case obj.Absent():
		c.logger.Debug("no "+what, "url", rawURL, "status", obj.Status)
		return v, resp.Body, false, nil
	case obj.Kind == model.KindStatus:
		c.logger.Warn("failed to access "+what, "url", rawURL, "status", obj.Status)
		return v, resp.Body, false, nil
	}
	return obj.Value, resp.Body, true, nil
}

// mergedJSON joins the pages of a listing into one JSON array.
func mergedJSON(bodies [][]byte) []byte {
	if len(bodies) == 1 {
		return bodies[0]
	}
	return mirror.AppendJSON(bodies)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
