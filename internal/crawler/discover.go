package crawler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/canvasmirror/internal/canvas"
	"github.com/nao1215/canvasmirror/internal/model"
)

// Discover fetches the authenticated user and their enrolled courses.
// The two requests run concurrently.
func Discover(ctx context.Context, client *canvas.Client, canvasURL string) (model.User, []model.Course, error) {
	var (
		user    model.User
		courses []model.Course
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := FetchUser(gctx, client, canvasURL)
		user = u
		return err
	})
	g.Go(func() error {
		cs, err := FetchCourses(gctx, client, canvasURL)
		courses = cs
		return err
	})
	if err := g.Wait(); err != nil {
		return model.User{}, nil, err
	}
	return user, courses, nil
}

// FetchUser returns the user the token belongs to.
func FetchUser(ctx context.Context, client *canvas.Client, canvasURL string) (model.User, error) {
	u := strings.TrimRight(canvasURL, "/") + "/api/v1/users/self"
	resp, err := client.FetchOne(ctx, u)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", ErrUserUnavailable, err)
	}
	if !resp.OK() {
		return model.User{}, fmt.Errorf("%w: status %d", ErrUserUnavailable, resp.StatusCode)
	}
	obj, err := model.DecodeObject[model.User](resp.Body)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", ErrUserUnavailable, err)
	}
	if obj.Kind != model.KindObject {
		return model.User{}, fmt.Errorf("%w: %s", ErrUserUnavailable, obj.Kind)
	}
	return obj.Value, nil
}

// FetchCourses returns every course of the user that still carries an
// enrollment.
func FetchCourses(ctx context.Context, client *canvas.Client, canvasURL string) ([]model.Course, error) {
	u := strings.TrimRight(canvasURL, "/") + "/api/v1/users/self/courses"
	courses := make([]model.Course, 0)

	pages := client.FetchPages(u)
	for pages.Next(ctx) {
		resp := pages.Page()
		if !resp.OK() {
			return nil, fmt.Errorf("%w: %s: status %d", ErrCoursesUnavailable, resp.URL, resp.StatusCode)
		}
		res, err := model.DecodeResult[model.Course](resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCoursesUnavailable, err)
		}
		for _, course := range res.Items {
			if course.Enrolled() {
				courses = append(courses, course)
			}
		}
	}
	if err := pages.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCoursesUnavailable, err)
	}
	return courses, nil
}

// SelectCourses returns the courses matching the term and name filters.
func SelectCourses(courses []model.Course, termIDs []int64, names []string) []model.Course {
	selected := make([]model.Course, 0, len(courses))
	for _, c := range courses {
		if c.Matches(termIDs, names) {
			selected = append(selected, c)
		}
	}
	return selected
}

// TermGroup lists the courses of one enrollment term.
type TermGroup struct {
	TermID  int64
	Courses []model.Course
}

// GroupByTerm groups courses by enrollment term, ordered by term ID.
// Within a term courses keep their original order.
func GroupByTerm(courses []model.Course) []TermGroup {
	index := make(map[int64]int)
	groups := make([]TermGroup, 0)
	for _, c := range courses {
		i, ok := index[c.EnrollmentTermID]
		if !ok {
			i = len(groups)
			index[c.EnrollmentTermID] = i
			groups = append(groups, TermGroup{TermID: c.EnrollmentTermID})
		}
		groups[i].Courses = append(groups[i].Courses, c)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].TermID < groups[b].TermID
	})
	return groups
}
