package crawler

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// syllabus writes syllabus.json and syllabus.html into dir when the course
// has a non-empty syllabus.
func (c *Crawler) syllabus(courseID int64, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		s, raw, ok, err := fetchObject[model.Syllabus](ctx, c, c.api("courses/%d?include[]=syllabus_body", courseID), "syllabus")
		if err != nil || !ok {
			return err
		}
		if s.SyllabusBody == nil || strings.TrimSpace(*s.SyllabusBody) == "" {
			c.logger.Debug("no syllabus content", "course", s.CourseCode)
			return nil
		}
		c.writeJSON(filepath.Join(dir, "syllabus.json"), raw)
		c.writeFile(filepath.Join(dir, "syllabus.html"), wrapHTML("Syllabus - "+s.Name, *s.SyllabusBody))
		c.stats.Add(model.CategorySyllabi, 1)
		c.logger.Info("syllabus synced", "course", s.CourseCode)
		return nil
	}
}
