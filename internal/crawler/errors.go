package crawler

import "errors"

var (
	// ErrUserUnavailable is returned when /users/self cannot be read,
	// which almost always means the token is invalid or expired.
	ErrUserUnavailable = errors.New("failed to get user info: check canvas_token")

	// ErrCoursesUnavailable is returned when the course list cannot be read.
	ErrCoursesUnavailable = errors.New("failed to get course list")
)
