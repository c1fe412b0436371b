package crawler

import (
	"context"
	"path/filepath"

	"github.com/nao1215/canvasmirror/internal/mirror"
	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

// assignmentIncludes are the include[] parameters sent with the listing.
// Canvas drops them from its pagination links; the client restores them.
const assignmentIncludes = "include[]=submission&include[]=assignment_visibility&include[]=all_dates" +
	"&include[]=overrides&include[]=observed_users&include[]=can_edit&include[]=score_statistics"

// assignments writes assignments.json into dir and mirrors each assignment
// into its own sub-directory.
func (c *Crawler) assignments(courseURL, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		items, bodies, err := collect[model.Assignment](ctx, c, courseURL+"assignments?"+assignmentIncludes, "assignments")
		if len(bodies) > 0 {
			c.writeJSON(filepath.Join(dir, "assignments.json"), mergedJSON(bodies))
		}
		for _, a := range items {
			adir := filepath.Join(dir, mirror.Sanitize(a.Name))
			if !c.ensureDir(adir) {
				continue
			}
			c.stats.Add(model.CategoryAssignments, 1)
			c.spawn(ctx, "submission", c.submission(c.submissionURL(courseURL, a.ID), adir))
			c.spawn(ctx, "links", c.links(a.Description, adir))
		}
		return err
	}
}

func (c *Crawler) submissionURL(courseURL string, assignmentID int64) string {
	return courseURL + "assignments/" + itoa(assignmentID) + "/submissions/" + itoa(c.user.ID)
}

// submission stores the user's submission and queues its attachments.
func (c *Crawler) submission(rawURL, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		sub, raw, ok, err := fetchObject[model.Submission](ctx, c, rawURL, "submission")
		if err != nil {
			return err
		}
		if raw != nil {
			c.writeJSON(filepath.Join(dir, "submission.json"), raw)
		}
		if !ok {
			return nil
		}
		c.stats.Add(model.CategorySubmissions, 1)
		c.queueFiles(dir, sub.Attachments)
		return nil
	}
}
