package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dapp-whisperer/terminalist/backend"
)

// =============================================================================
// Todoist REST API Mock Server for Tests
// =============================================================================

// mockTodoistServer simulates the Todoist REST API v2
type mockTodoistServer struct {
	server      *httptest.Server
	apiToken    string
	mu          sync.Mutex
	rateLimited int // number of 429 responses to serve before succeeding
	requestLog  []string
	lastBody    map[string]interface{}
	response    string
	status      int
}

func newMockTodoistServer(apiToken string) *mockTodoistServer {
	m := &mockTodoistServer{
		apiToken:   apiToken,
		requestLog: []string{},
		status:     http.StatusOK,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handler))
	return m
}

func (m *mockTodoistServer) Close() {
	m.server.Close()
}

func (m *mockTodoistServer) SetResponse(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.response = body
}

func (m *mockTodoistServer) SetRateLimited(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited = count
}

func (m *mockTodoistServer) LastBody() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBody
}

func (m *mockTodoistServer) RequestLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.requestLog...)
}

func (m *mockTodoistServer) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestLog = append(m.requestLog, r.Method+" "+r.URL.Path)

	if m.rateLimited > 0 {
		m.rateLimited--
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+m.apiToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if r.Method == http.MethodPost {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		m.lastBody = body
	}

	w.WriteHeader(m.status)
	_, _ = w.Write([]byte(m.response))
}

func newTestBackend(t *testing.T, srv *mockTodoistServer) *Backend {
	t.Helper()
	b, err := New(Config{
		APIToken:   "test-token",
		BaseURL:    srv.server.URL,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	return b
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected error for missing API token")
	}
}

func TestFetchTasksMapsDueFields(t *testing.T) {
	srv := newMockTodoistServer("test-token")
	defer srv.Close()

	srv.SetResponse(http.StatusOK, `[
		{
			"id": "task-1",
			"project_id": "project-a",
			"content": "Water plants",
			"description": "",
			"is_completed": false,
			"priority": 3,
			"order": 2,
			"labels": ["home"],
			"due": {"date": "2026-09-01", "datetime": "2026-09-01T09:00:00Z", "is_recurring": true},
			"deadline": {"date": "2026-09-05"},
			"duration": {"amount": 30, "unit": "minute"}
		}
	]`)

	b := newTestBackend(t, srv)
	tasks, err := b.FetchTasks(context.Background())
	if err != nil {
		t.Fatalf("FetchTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}

	task := tasks[0]
	if task.RemoteID != "task-1" || task.ProjectRemoteID != "project-a" {
		t.Errorf("unexpected ids: %q %q", task.RemoteID, task.ProjectRemoteID)
	}
	if task.Description != nil {
		t.Errorf("empty description should map to nil, got %q", *task.Description)
	}
	if task.DueDate == nil || *task.DueDate != "2026-09-01" {
		t.Errorf("unexpected due date: %v", task.DueDate)
	}
	if task.DueDatetime == nil || *task.DueDatetime != "2026-09-01T09:00:00Z" {
		t.Errorf("unexpected due datetime: %v", task.DueDatetime)
	}
	if !task.IsRecurring {
		t.Error("expected recurring flag")
	}
	if task.Deadline == nil || *task.Deadline != "2026-09-05" {
		t.Errorf("unexpected deadline: %v", task.Deadline)
	}
	if task.Duration == nil || *task.Duration != "30 minute" {
		t.Errorf("unexpected duration: %v", task.Duration)
	}
}

func TestFetchProjectsMapsInboxFlag(t *testing.T) {
	srv := newMockTodoistServer("test-token")
	defer srv.Close()

	srv.SetResponse(http.StatusOK, `[
		{"id": "inbox-1", "name": "Inbox", "is_inbox_project": true, "order": 0},
		{"id": "project-a", "name": "Work", "is_favorite": true, "order": 1}
	]`)

	b := newTestBackend(t, srv)
	projects, err := b.FetchProjects(context.Background())
	if err != nil {
		t.Fatalf("FetchProjects failed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if !projects[0].IsInboxProject || projects[1].IsInboxProject {
		t.Error("inbox flag mapped incorrectly")
	}
	if !projects[1].IsFavorite {
		t.Error("favorite flag mapped incorrectly")
	}
}

func TestCreateTaskSendsOnlyPresentFields(t *testing.T) {
	srv := newMockTodoistServer("test-token")
	defer srv.Close()
	srv.SetResponse(http.StatusOK, `{"id": "new-1", "project_id": "inbox-1", "content": "Buy milk", "priority": 1}`)

	b := newTestBackend(t, srv)
	dueString := "tomorrow"
	task, err := b.CreateTask(context.Background(), backend.CreateTaskArgs{
		Content:   "Buy milk",
		DueString: &dueString,
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.RemoteID != "new-1" {
		t.Errorf("unexpected remote id %q", task.RemoteID)
	}

	body := srv.LastBody()
	if body["content"] != "Buy milk" {
		t.Errorf("unexpected content: %v", body["content"])
	}
	if body["due_string"] != "tomorrow" {
		t.Errorf("unexpected due_string: %v", body["due_string"])
	}
	for _, absent := range []string{"description", "project_id", "priority", "due_date", "labels"} {
		if _, ok := body[absent]; ok {
			t.Errorf("field %q should not be sent when unset", absent)
		}
	}
}

func TestUpdateTaskOmitsProjectWhenNil(t *testing.T) {
	srv := newMockTodoistServer("test-token")
	defer srv.Close()
	srv.SetResponse(http.StatusOK, `{"id": "task-1", "project_id": "project-a", "content": "Updated", "priority": 1}`)

	b := newTestBackend(t, srv)
	content := "Updated"
	_, err := b.UpdateTask(context.Background(), "task-1", backend.UpdateTaskArgs{Content: &content})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	body := srv.LastBody()
	if _, ok := body["project_id"]; ok {
		t.Error("project_id should not be sent for an unchanged project")
	}
}

func TestCompleteAndReopenUseExpectedPaths(t *testing.T) {
	srv := newMockTodoistServer("test-token")
	defer srv.Close()
	srv.SetResponse(http.StatusNoContent, "")

	b := newTestBackend(t, srv)
	if err := b.CompleteTask(context.Background(), "task-1"); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if err := b.ReopenTask(context.Background(), "task-1"); err != nil {
		t.Fatalf("ReopenTask failed: %v", err)
	}

	log := srv.RequestLog()
	if len(log) != 2 || log[0] != "POST /rest/v2/tasks/task-1/close" || log[1] != "POST /rest/v2/tasks/task-1/reopen" {
		t.Errorf("unexpected request log: %v", log)
	}
}

func TestRetriesOnRateLimit(t *testing.T) {
	srv := newMockTodoistServer("test-token")
	defer srv.Close()
	srv.SetRateLimited(1)
	srv.SetResponse(http.StatusOK, `[]`)

	b := newTestBackend(t, srv)
	if _, err := b.FetchProjects(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed after 429, got %v", err)
	}
	if got := len(srv.RequestLog()); got != 2 {
		t.Errorf("expected 2 requests (429 then retry), got %d", got)
	}
}

func TestUnauthorizedReturnsBackendError(t *testing.T) {
	srv := newMockTodoistServer("other-token")
	defer srv.Close()

	b := newTestBackend(t, srv)
	_, err := b.FetchProjects(context.Background())
	if err == nil {
		t.Fatal("expected authentication error")
	}
	var berr *backend.Error
	if !errors.As(err, &berr) {
		t.Fatalf("expected *backend.Error, got %T", err)
	}
}
