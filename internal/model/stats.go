package model

import "sync/atomic"

// Category is a kind of resource counted during discovery.
type Category int

// Discovery categories, in report order.
const (
	CategoryCourses Category = iota
	CategoryFolders
	CategoryFiles
	CategoryAssignments
	CategorySubmissions
	CategoryDiscussions
	CategoryAnnouncements
	CategoryPages
	CategoryModules
	CategorySyllabi
	CategoryUsers
	CategoryLinkedFiles
	numCategories
)

var categoryNames = [numCategories]string{
	"courses",
	"folders",
	"files",
	"assignments",
	"submissions",
	"discussions",
	"announcements",
	"pages",
	"modules",
	"syllabi",
	"users",
	"linked files",
}

// Categories returns all categories in report order.
func Categories() []Category {
	out := make([]Category, 0, numCategories)
	for c := range numCategories {
		out = append(out, c)
	}
	return out
}

// String returns the category name used in reports.
func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return "unknown"
	}
	return categoryNames[c]
}

// Stats counts discovered resources per category.
// Safe for concurrent use by crawl tasks.
type Stats struct {
	counts [numCategories]atomic.Int64
}

// Add increments the counter for c by n.
func (s *Stats) Add(c Category, n int) {
	if c < 0 || c >= numCategories || n == 0 {
		return
	}
	s.counts[c].Add(int64(n))
}

// Get returns the counter for c.
func (s *Stats) Get(c Category) int64 {
	if c < 0 || c >= numCategories {
		return 0
	}
	return s.counts[c].Load()
}

// Snapshot returns the non-zero counters keyed by category name.
func (s *Stats) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	for c := range numCategories {
		if v := s.counts[c].Load(); v > 0 {
			out[c.String()] = v
		}
	}
	return out
}
