// Package model contains simple struct definitions shared across packages.
package model

import (
	"time"
)

// DateLayout matches the ISO-8601 form browsers produce with toISOString:
// UTC, millisecond precision, literal Z suffix.
const DateLayout = "2006-01-02T15:04:05.000Z"

// FileRecord holds metadata about an uploaded PDF. Every field is a plain
// string so a record read back from the store is byte-for-byte what was
// written.
type FileRecord struct {
	// ID is the generated storage filename, extension included.
	ID string `json:"id"`
	// Name is the client-supplied filename. Untrusted; never used as a path.
	Name      string `json:"name"`
	Section   string `json:"section"`
	Date      string `json:"date"`
	Path      string `json:"path"`
	Thumbnail string `json:"thumbnail"`
}

// NewFileRecord builds the record for a stored upload.
func NewFileRecord(id, name, section string, at time.Time) FileRecord {
	return FileRecord{
		ID:        id,
		Name:      name,
		Section:   section,
		Date:      FormatDate(at),
		Path:      "/uploads/" + id,
		Thumbnail: ThumbnailURL(id),
	}
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ThumbnailURL is the public URL of the preview card for a stored id.
func ThumbnailURL(id string) string {
	return "/thumbnails/" + ThumbnailName(id)
}

// ThumbnailName is the filename of the preview card inside the thumbnails dir.
func ThumbnailName(id string) string {
	return id + ".jpg"
}

// ThumbnailJob asks a worker to render the preview card for a stored upload.
type ThumbnailJob struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
}

// JobFor returns the thumbnail job for rec.
func JobFor(rec FileRecord) ThumbnailJob {
	return ThumbnailJob{FileID: rec.ID, Name: rec.Name}
}
