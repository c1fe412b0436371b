package model

import (
	"encoding/json"
	"strings"
)

// Course is an entry of /api/v1/users/self/courses.
type Course struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	CourseCode       string `json:"course_code"`
	EnrollmentTermID int64  `json:"enrollment_term_id"`

	// Enrollments is kept raw; only its presence matters. Canvas lists
	// courses the user can no longer access without it.
	Enrollments json.RawMessage `json:"enrollments,omitempty"`
}

// Enrolled reports whether the course carries an enrollments field.
func (c Course) Enrolled() bool {
	return len(c.Enrollments) > 0 && string(c.Enrollments) != "null"
}

// DirName returns the directory name used for the course mirror.
// Course codes such as "CS 101/102" contain path separators.
func (c Course) DirName() string {
	return strings.ReplaceAll(c.CourseCode, "/", "_")
}

// Matches reports whether the course passes the term and name filters.
// An empty filter matches everything. Names match the course name or code
// exactly.
func (c Course) Matches(termIDs []int64, names []string) bool {
	if len(termIDs) > 0 {
		found := false
		for _, id := range termIDs {
			if id == c.EnrollmentTermID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(names) > 0 {
		for _, name := range names {
			if name == c.Name || name == c.CourseCode {
				return true
			}
		}
		return false
	}
	return true
}

// User is the authenticated Canvas user, or an entry of a course user list.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
