// Package testutil provides shared fixtures for tests: an in-memory store
// with seeding helpers, and a scriptable in-memory backend gateway that
// records the arguments it was called with.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/backend"
	"github.com/dapp-whisperer/terminalist/internal/storage"
)

// OpenStore opens an in-memory store that closes with the test.
func OpenStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedInstance inserts a backend instance row and returns its id.
func SeedInstance(t *testing.T, store *storage.Store) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := storage.InsertBackendInstance(context.Background(), store.DB(), storage.BackendInstance{
		UUID:      id,
		Kind:      "mock",
		Name:      "test instance",
		IsEnabled: true,
	})
	if err != nil {
		t.Fatalf("failed to seed backend instance: %v", err)
	}
	return id
}

// SeedProject inserts a project row and returns its local id.
func SeedProject(t *testing.T, store *storage.Store, instanceID uuid.UUID, remoteID, name string, inbox bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := storage.UpsertProject(context.Background(), store.DB(), storage.Project{
		UUID:           id,
		BackendUUID:    instanceID,
		RemoteID:       remoteID,
		Name:           name,
		IsInboxProject: inbox,
	})
	if err != nil {
		t.Fatalf("failed to seed project %s: %v", name, err)
	}
	return id
}

// SeedTask inserts a task row and returns its local id. The task is mutated
// through mut before insertion when mut is non-nil.
func SeedTask(t *testing.T, store *storage.Store, instanceID, projectUUID uuid.UUID, remoteID, content string, mut func(*storage.Task)) uuid.UUID {
	t.Helper()
	task := storage.Task{
		UUID:        uuid.New(),
		BackendUUID: instanceID,
		RemoteID:    remoteID,
		Content:     content,
		ProjectUUID: projectUUID,
		Priority:    1,
	}
	if mut != nil {
		mut(&task)
	}
	if err := storage.UpsertTask(context.Background(), store.DB(), task); err != nil {
		t.Fatalf("failed to seed task %s: %v", content, err)
	}
	return task.UUID
}

// SeedLabel inserts a label row and returns its local id.
func SeedLabel(t *testing.T, store *storage.Store, instanceID uuid.UUID, remoteID, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := storage.UpsertLabel(context.Background(), store.DB(), storage.Label{
		UUID:        id,
		BackendUUID: instanceID,
		RemoteID:    remoteID,
		Name:        name,
	})
	if err != nil {
		t.Fatalf("failed to seed label %s: %v", name, err)
	}
	return id
}

// UpdateTaskCall records one UpdateTask invocation on the mock.
type UpdateTaskCall struct {
	RemoteID string
	Args     backend.UpdateTaskArgs
}

// MockBackend is an in-memory backend.Backend. It serves the seeded remote
// state, synthesizes responses for mutations, and records every call so
// tests can assert on exactly what was sent over the wire.
type MockBackend struct {
	mu sync.Mutex

	// Remote state served by fetches and used as the base for updates.
	Projects []backend.Project
	Sections []backend.Section
	Labels   []backend.Label
	Tasks    []backend.Task

	// InboxRemoteID is the project a create with an empty project id lands
	// in.
	InboxRemoteID string

	// Overrides. When set, the corresponding call returns these instead of
	// a synthesized response.
	CreateTaskResponse *backend.Task
	UpdateTaskResponse *backend.Task
	Err                error

	CreateTaskCalls    []backend.CreateTaskArgs
	UpdateTaskCalls    []UpdateTaskCall
	CompletedIDs       []string
	ReopenedIDs        []string
	DeletedTaskIDs     []string
	DeletedProjectIDs  []string
	DeletedLabelIDs    []string
	CreateProjectCalls []backend.CreateProjectArgs

	nextID int
}

var _ backend.Backend = (*MockBackend)(nil)

// Lock and Unlock expose the mock's mutex so tests can inspect captured
// calls while background workers are still running.
func (m *MockBackend) Lock()   { m.mu.Lock() }
func (m *MockBackend) Unlock() { m.mu.Unlock() }

func (m *MockBackend) Kind() string { return "mock" }

func (m *MockBackend) newID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *MockBackend) FetchProjects(ctx context.Context) ([]backend.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]backend.Project(nil), m.Projects...), nil
}

func (m *MockBackend) FetchSections(ctx context.Context) ([]backend.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]backend.Section(nil), m.Sections...), nil
}

func (m *MockBackend) FetchLabels(ctx context.Context) ([]backend.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]backend.Label(nil), m.Labels...), nil
}

func (m *MockBackend) FetchTasks(ctx context.Context) ([]backend.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]backend.Task(nil), m.Tasks...), nil
}

func (m *MockBackend) CreateTask(ctx context.Context, args backend.CreateTaskArgs) (*backend.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.CreateTaskCalls = append(m.CreateTaskCalls, args)
	if m.CreateTaskResponse != nil {
		resp := *m.CreateTaskResponse
		return &resp, nil
	}

	projectID := args.ProjectRemoteID
	if projectID == "" {
		projectID = m.InboxRemoteID
	}
	priority := 1
	if args.Priority != nil {
		priority = *args.Priority
	}
	task := backend.Task{
		RemoteID:        m.newID("task"),
		Content:         args.Content,
		Description:     args.Description,
		ProjectRemoteID: projectID,
		SectionRemoteID: args.SectionRemoteID,
		ParentRemoteID:  args.ParentRemoteID,
		Priority:        priority,
		DueDate:         args.DueDate,
		DueDatetime:     args.DueDatetime,
		Duration:        args.Duration,
		Labels:          args.Labels,
	}
	m.Tasks = append(m.Tasks, task)
	resp := task
	return &resp, nil
}

func (m *MockBackend) UpdateTask(ctx context.Context, remoteID string, args backend.UpdateTaskArgs) (*backend.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.UpdateTaskCalls = append(m.UpdateTaskCalls, UpdateTaskCall{RemoteID: remoteID, Args: args})
	if m.UpdateTaskResponse != nil {
		resp := *m.UpdateTaskResponse
		return &resp, nil
	}

	for i := range m.Tasks {
		if m.Tasks[i].RemoteID != remoteID {
			continue
		}
		t := &m.Tasks[i]
		if args.Content != nil {
			t.Content = *args.Content
		}
		if args.Description != nil {
			t.Description = args.Description
		}
		if args.ProjectRemoteID != nil {
			t.ProjectRemoteID = *args.ProjectRemoteID
		}
		if args.SectionRemoteID != nil {
			t.SectionRemoteID = args.SectionRemoteID
		}
		if args.Priority != nil {
			t.Priority = *args.Priority
		}
		if args.DueDate != nil {
			t.DueDate = args.DueDate
		}
		if args.Duration != nil {
			t.Duration = args.Duration
		}
		if args.Labels != nil {
			t.Labels = args.Labels
		}
		resp := *t
		return &resp, nil
	}
	return nil, backend.Errorf("task %s does not exist", remoteID)
}

func (m *MockBackend) DeleteTask(ctx context.Context, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.DeletedTaskIDs = append(m.DeletedTaskIDs, remoteID)
	for i := range m.Tasks {
		if m.Tasks[i].RemoteID == remoteID {
			m.Tasks = append(m.Tasks[:i], m.Tasks[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockBackend) CompleteTask(ctx context.Context, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.CompletedIDs = append(m.CompletedIDs, remoteID)
	return nil
}

func (m *MockBackend) ReopenTask(ctx context.Context, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.ReopenedIDs = append(m.ReopenedIDs, remoteID)
	return nil
}

func (m *MockBackend) CreateProject(ctx context.Context, args backend.CreateProjectArgs) (*backend.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.CreateProjectCalls = append(m.CreateProjectCalls, args)
	p := backend.Project{
		RemoteID:       m.newID("project"),
		Name:           args.Name,
		ParentRemoteID: args.ParentRemoteID,
	}
	if args.IsFavorite != nil {
		p.IsFavorite = *args.IsFavorite
	}
	m.Projects = append(m.Projects, p)
	resp := p
	return &resp, nil
}

func (m *MockBackend) UpdateProject(ctx context.Context, remoteID string, args backend.UpdateProjectArgs) (*backend.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for i := range m.Projects {
		if m.Projects[i].RemoteID != remoteID {
			continue
		}
		p := &m.Projects[i]
		if args.Name != nil {
			p.Name = *args.Name
		}
		if args.IsFavorite != nil {
			p.IsFavorite = *args.IsFavorite
		}
		resp := *p
		return &resp, nil
	}
	return nil, backend.Errorf("project %s does not exist", remoteID)
}

func (m *MockBackend) DeleteProject(ctx context.Context, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.DeletedProjectIDs = append(m.DeletedProjectIDs, remoteID)
	return nil
}

func (m *MockBackend) CreateLabel(ctx context.Context, args backend.CreateLabelArgs) (*backend.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	l := backend.Label{RemoteID: m.newID("label"), Name: args.Name}
	if args.Color != nil {
		l.Color = *args.Color
	}
	m.Labels = append(m.Labels, l)
	resp := l
	return &resp, nil
}

func (m *MockBackend) UpdateLabel(ctx context.Context, remoteID string, args backend.UpdateLabelArgs) (*backend.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for i := range m.Labels {
		if m.Labels[i].RemoteID != remoteID {
			continue
		}
		l := &m.Labels[i]
		if args.Name != nil {
			l.Name = *args.Name
		}
		if args.Color != nil {
			l.Color = *args.Color
		}
		resp := *l
		return &resp, nil
	}
	return nil, backend.Errorf("label %s does not exist", remoteID)
}

func (m *MockBackend) DeleteLabel(ctx context.Context, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.DeletedLabelIDs = append(m.DeletedLabelIDs, remoteID)
	return nil
}

func (m *MockBackend) Close() error { return nil }

// Ptr returns a pointer to v. Shorthand for building args in tests.
func Ptr[T any](v T) *T { return &v }
