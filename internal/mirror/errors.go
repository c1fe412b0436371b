package mirror

import "errors"

var (
	// ErrIgnored is returned by Layout writes whose target is excluded by
	// the ignore file.
	ErrIgnored = errors.New("path is ignored")

	// ErrNoLocalPath is returned when a file reaches the downloader without
	// having gone through a Selector.
	ErrNoLocalPath = errors.New("file has no local path")
)
