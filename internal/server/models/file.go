// Package models defines server-side data models persisted in the catalog database.
package models

import "time"

// File is the catalog record for a completed upload. Cache entries are
// stored as hidden files whose ID is the cache key.
type File struct {
	// ID is the backend-independent identifier: a UUID for uploads, the key for cache entries.
	ID string
	// FileName is the name the object was stored under.
	FileName string
	// FileSize is the final size in bytes.
	FileSize int64
	// MimeType is optional.
	MimeType *string
	// FolderID points at the containing folder, nil for the storage root.
	FolderID *string
	// Hidden marks cache entries, which are not listed as user files.
	Hidden bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
