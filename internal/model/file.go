package model

import (
	"time"
)

// RemoteFile is a file object as returned by the Canvas files API.
//
// Canvas returns more fields than these; only the ones needed to decide
// whether a download is required and to perform it are decoded.
type RemoteFile struct {
	// ID is the Canvas file ID. Zero for files resolved from a bare link.
	ID int64 `json:"id"`

	// FolderID is the ID of the Canvas folder containing the file.
	FolderID int64 `json:"folder_id"`

	// DisplayName is the user-facing file name. It may contain characters
	// that are not valid in local file names.
	DisplayName string `json:"display_name"`

	// Size is the declared size in bytes.
	Size int64 `json:"size"`

	// URL is the authenticated download URL.
	URL string `json:"url"`

	// UpdatedAt is the remote modification time as an RFC 3339 string.
	// Kept as the raw string so that an unparsable value can be reported
	// with its original text.
	UpdatedAt string `json:"updated_at"`

	// Locked is true when Canvas does not allow the user to read the file yet.
	Locked bool `json:"locked_for_user"`

	// Undated is set when the server gave no modification time. UpdatedAt
	// then holds the discovery time, which says nothing about freshness.
	Undated bool `json:"-"`

	// LocalPath is the destination on disk. Set by the selector, never
	// read from or written to JSON.
	LocalPath string `json:"-"`
}

// Modified parses UpdatedAt.
func (f RemoteFile) Modified() (time.Time, error) {
	return time.Parse(time.RFC3339, f.UpdatedAt)
}

// PlannedFile is the serializable view of a RemoteFile queued for download.
type PlannedFile struct {
	URL       string `json:"url"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	UpdatedAt string `json:"updated_at"`
}

// Plan converts a RemoteFile into its PlannedFile view.
func (f RemoteFile) Plan() PlannedFile {
	return PlannedFile{
		URL:       f.URL,
		Path:      f.LocalPath,
		Size:      f.Size,
		UpdatedAt: f.UpdatedAt,
	}
}
