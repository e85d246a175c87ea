// Package backend defines the remote gateway capability for task-management
// services. A Backend speaks only the remote id vocabulary; translation to
// local ids happens in the sync layer.
package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Task is the canonical remote representation of a task.
type Task struct {
	RemoteID        string
	Content         string
	Description     *string
	ProjectRemoteID string
	SectionRemoteID *string
	ParentRemoteID  *string
	Priority        int
	OrderIndex      int
	DueDate         *string // plain calendar date, YYYY-MM-DD
	DueDatetime     *string // RFC3339 date+time
	IsRecurring     bool
	Deadline        *string
	Duration        *string
	IsCompleted     bool
	Labels          []string
}

// Project is the canonical remote representation of a project.
type Project struct {
	RemoteID       string
	Name           string
	IsFavorite     bool
	IsInboxProject bool
	OrderIndex     int
	ParentRemoteID *string
}

// Section is the canonical remote representation of a project section.
type Section struct {
	RemoteID        string
	Name            string
	ProjectRemoteID string
	OrderIndex      int
}

// Label is the canonical remote representation of a label.
type Label struct {
	RemoteID string
	Name     string
	Color    string
}

// CreateTaskArgs holds the fields sent when creating a task. Nil pointer
// fields are not sent. An empty ProjectRemoteID means "use the inbox".
type CreateTaskArgs struct {
	Content         string
	Description     *string
	ProjectRemoteID string
	SectionRemoteID *string
	ParentRemoteID  *string
	Priority        *int
	DueDate         *string
	DueDatetime     *string
	DueString       *string
	Duration        *string
	Labels          []string
}

// UpdateTaskArgs holds the fields sent when updating a task. Nil pointer
// fields are left unchanged on the remote side.
type UpdateTaskArgs struct {
	Content         *string
	Description     *string
	ProjectRemoteID *string
	SectionRemoteID *string
	ParentRemoteID  *string
	Priority        *int
	DueDate         *string
	DueDatetime     *string
	DueString       *string
	Duration        *string
	Labels          []string
}

// CreateProjectArgs holds the fields sent when creating a project.
type CreateProjectArgs struct {
	Name           string
	ParentRemoteID *string
	IsFavorite     *bool
}

// UpdateProjectArgs holds the fields sent when updating a project.
type UpdateProjectArgs struct {
	Name       *string
	IsFavorite *bool
}

// CreateLabelArgs holds the fields sent when creating a label.
type CreateLabelArgs struct {
	Name  string
	Color *string
}

// UpdateLabelArgs holds the fields sent when updating a label.
type UpdateLabelArgs struct {
	Name  *string
	Color *string
}

// Error is an opaque failure reported by a remote backend. The message may
// contain sensitive detail; redaction is the presentation layer's job.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Errorf creates a backend Error with a formatted message.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Backend is the remote gateway for one connected account. All operations
// address entities by remote id and return the canonical remote
// representation of the affected entity.
type Backend interface {
	// Kind identifies the backend implementation (e.g. "todoist").
	Kind() string

	FetchProjects(ctx context.Context) ([]Project, error)
	FetchTasks(ctx context.Context) ([]Task, error)
	FetchLabels(ctx context.Context) ([]Label, error)
	FetchSections(ctx context.Context) ([]Section, error)

	CreateProject(ctx context.Context, args CreateProjectArgs) (*Project, error)
	UpdateProject(ctx context.Context, remoteID string, args UpdateProjectArgs) (*Project, error)
	DeleteProject(ctx context.Context, remoteID string) error

	CreateTask(ctx context.Context, args CreateTaskArgs) (*Task, error)
	UpdateTask(ctx context.Context, remoteID string, args UpdateTaskArgs) (*Task, error)
	DeleteTask(ctx context.Context, remoteID string) error
	CompleteTask(ctx context.Context, remoteID string) error
	ReopenTask(ctx context.Context, remoteID string) error

	CreateLabel(ctx context.Context, args CreateLabelArgs) (*Label, error)
	UpdateLabel(ctx context.Context, remoteID string, args UpdateLabelArgs) (*Label, error)
	DeleteLabel(ctx context.Context, remoteID string) error

	// Connection management
	Close() error
}

// GenerateID generates a unique identifier using UUID v4. Used for local ids
// assigned when a row is first cached.
func GenerateID() uuid.UUID {
	return uuid.New()
}
