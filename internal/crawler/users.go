package crawler

import (
	"context"

	"github.com/nao1215/canvasmirror/internal/model"
	"github.com/nao1215/canvasmirror/internal/scheduler"
)

const userIncludes = "include_inactive=true&include[]=avatar_url&include[]=enrollments&include[]=email" +
	"&include[]=observed_users&include[]=can_be_removed&include[]=custom_links"

// users writes the course roster to path.
func (c *Crawler) users(courseURL, path string) scheduler.Task {
	return func(ctx context.Context) error {
		items, bodies, err := collect[model.User](ctx, c, courseURL+"users?"+userIncludes, "users")
		c.stats.Add(model.CategoryUsers, len(items))
		if len(items) > 0 {
			c.writeJSON(path, mergedJSON(bodies))
		}
		return err
	}
}
