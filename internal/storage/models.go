package storage

import (
	"github.com/google/uuid"
)

// BackendInstance is one configured connection to a remote account. Created
// at configuration time; the reconciliation core never mutates it.
type BackendInstance struct {
	UUID        uuid.UUID
	Kind        string
	Name        string
	IsEnabled   bool
	Credentials string // JSON blob, opaque to storage
	Settings    string // JSON blob, opaque to storage
}

// Project is a locally cached project row.
type Project struct {
	UUID           uuid.UUID
	BackendUUID    uuid.UUID
	RemoteID       string
	Name           string
	IsFavorite     bool
	IsInboxProject bool
	OrderIndex     int
	ParentUUID     *uuid.UUID
}

// Section is a locally cached section row. A section belongs to exactly one
// project.
type Section struct {
	UUID        uuid.UUID
	BackendUUID uuid.UUID
	RemoteID    string
	ProjectUUID uuid.UUID
	Name        string
	OrderIndex  int
}

// Label is a locally cached label row.
type Label struct {
	UUID        uuid.UUID
	BackendUUID uuid.UUID
	RemoteID    string
	Name        string
	Color       string
}

// Task is a locally cached task row. Every task belongs to a project.
// IsDeleted marks a local-only soft delete: the remote copy is gone but the
// row is preserved so the task can be restored by recreation.
type Task struct {
	UUID        uuid.UUID
	BackendUUID uuid.UUID
	RemoteID    string
	Content     string
	Description *string
	ProjectUUID uuid.UUID
	SectionUUID *uuid.UUID
	ParentUUID  *uuid.UUID
	Priority    int // 1-4, 4 = highest urgency
	OrderIndex  int
	DueDate     *string // plain calendar date, YYYY-MM-DD
	DueDatetime *string
	IsRecurring bool
	Deadline    *string
	Duration    *string
	IsCompleted bool
	IsDeleted   bool
}
