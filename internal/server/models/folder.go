package models

import "time"

// Folder is one segment of a folder path. Root-level folders have a nil ParentID.
type Folder struct {
	ID        string
	Name      string
	ParentID  *string
	CreatedAt time.Time
}
