// Package todoist implements the remote gateway over the Todoist REST API v2.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dapp-whisperer/terminalist/backend"
)

const (
	// DefaultBaseURL is the Todoist REST API v2 base URL
	DefaultBaseURL = "https://api.todoist.com"
)

// Config holds Todoist connection settings
type Config struct {
	APIToken   string
	BaseURL    string // Override for testing
	MaxRetries int
	RetryDelay time.Duration
}

// ConfigFromEnv creates a Config from environment variables
func ConfigFromEnv() Config {
	return Config{
		APIToken: os.Getenv("TERMINALIST_TODOIST_TOKEN"),
	}
}

// Backend implements backend.Backend using the Todoist REST API v2
type Backend struct {
	config  Config
	client  *http.Client
	baseURL string
}

// New creates a new Todoist gateway
func New(cfg Config) (*Backend, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("todoist API token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Backend{
		config:  cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}, nil
}

// Kind identifies this gateway implementation.
func (b *Backend) Kind() string {
	return "todoist"
}

// Close closes the gateway
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	if transport, ok := b.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// doRequest performs an authenticated Todoist API request, retrying on 429
func (b *Backend) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	url := b.baseURL + path

	maxRetries := b.config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 1
	}
	retryDelay := b.config.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			jsonBody, marshalErr := json.Marshal(body)
			if marshalErr != nil {
				return nil, marshalErr
			}
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, reqErr := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if reqErr != nil {
			return nil, reqErr
		}

		req.Header.Set("Authorization", "Bearer "+b.config.APIToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err = b.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			if attempt < maxRetries {
				time.Sleep(retryDelay)
				continue
			}
		}

		break
	}

	return resp, err
}

// apiError converts a non-success response into a backend.Error
func apiError(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return backend.Errorf("%s: authentication failed: invalid API token", op)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(msg) > 0 {
		return backend.Errorf("%s: status %d: %s", op, resp.StatusCode, string(msg))
	}
	return backend.Errorf("%s: status %d", op, resp.StatusCode)
}

// =============================================================================
// Wire representations
// =============================================================================

type apiDue struct {
	Date        string  `json:"date"`
	Datetime    *string `json:"datetime,omitempty"`
	String      string  `json:"string,omitempty"`
	IsRecurring bool    `json:"is_recurring"`
}

type apiDeadline struct {
	Date string `json:"date"`
}

type apiDuration struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"`
}

type apiTask struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	SectionID   *string      `json:"section_id"`
	ParentID    *string      `json:"parent_id"`
	Content     string       `json:"content"`
	Description string       `json:"description"`
	IsCompleted bool         `json:"is_completed"`
	Priority    int          `json:"priority"`
	Order       int          `json:"order"`
	Labels      []string     `json:"labels"`
	Due         *apiDue      `json:"due"`
	Deadline    *apiDeadline `json:"deadline"`
	Duration    *apiDuration `json:"duration"`
}

type apiProject struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	IsFavorite     bool    `json:"is_favorite"`
	IsInboxProject bool    `json:"is_inbox_project"`
	Order          int     `json:"order"`
	ParentID       *string `json:"parent_id"`
}

type apiSection struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
}

type apiLabel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (t *apiTask) toBackendTask() backend.Task {
	task := backend.Task{
		RemoteID:        t.ID,
		Content:         t.Content,
		ProjectRemoteID: t.ProjectID,
		SectionRemoteID: t.SectionID,
		ParentRemoteID:  t.ParentID,
		Priority:        t.Priority,
		OrderIndex:      t.Order,
		IsCompleted:     t.IsCompleted,
		Labels:          t.Labels,
	}
	if t.Description != "" {
		desc := t.Description
		task.Description = &desc
	}
	if t.Due != nil {
		date := t.Due.Date
		task.DueDate = &date
		task.DueDatetime = t.Due.Datetime
		task.IsRecurring = t.Due.IsRecurring
	}
	if t.Deadline != nil {
		deadline := t.Deadline.Date
		task.Deadline = &deadline
	}
	if t.Duration != nil {
		duration := fmt.Sprintf("%d %s", t.Duration.Amount, t.Duration.Unit)
		task.Duration = &duration
	}
	return task
}

func (p *apiProject) toBackendProject() backend.Project {
	return backend.Project{
		RemoteID:       p.ID,
		Name:           p.Name,
		IsFavorite:     p.IsFavorite,
		IsInboxProject: p.IsInboxProject,
		OrderIndex:     p.Order,
		ParentRemoteID: p.ParentID,
	}
}

// =============================================================================
// Fetch operations
// =============================================================================

// FetchProjects returns all Todoist projects
func (b *Backend) FetchProjects(ctx context.Context) ([]backend.Project, error) {
	resp, err := b.doRequest(ctx, http.MethodGet, "/rest/v2/projects", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("fetch projects", resp)
	}

	var apiProjects []apiProject
	if err := json.NewDecoder(resp.Body).Decode(&apiProjects); err != nil {
		return nil, err
	}

	projects := make([]backend.Project, len(apiProjects))
	for i, p := range apiProjects {
		projects[i] = p.toBackendProject()
	}
	return projects, nil
}

// FetchTasks returns all active Todoist tasks
func (b *Backend) FetchTasks(ctx context.Context) ([]backend.Task, error) {
	resp, err := b.doRequest(ctx, http.MethodGet, "/rest/v2/tasks", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("fetch tasks", resp)
	}

	var apiTasks []apiTask
	if err := json.NewDecoder(resp.Body).Decode(&apiTasks); err != nil {
		return nil, err
	}

	tasks := make([]backend.Task, len(apiTasks))
	for i, t := range apiTasks {
		tasks[i] = t.toBackendTask()
	}
	return tasks, nil
}

// FetchLabels returns all Todoist labels
func (b *Backend) FetchLabels(ctx context.Context) ([]backend.Label, error) {
	resp, err := b.doRequest(ctx, http.MethodGet, "/rest/v2/labels", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("fetch labels", resp)
	}

	var apiLabels []apiLabel
	if err := json.NewDecoder(resp.Body).Decode(&apiLabels); err != nil {
		return nil, err
	}

	labels := make([]backend.Label, len(apiLabels))
	for i, l := range apiLabels {
		labels[i] = backend.Label{RemoteID: l.ID, Name: l.Name, Color: l.Color}
	}
	return labels, nil
}

// FetchSections returns all Todoist sections
func (b *Backend) FetchSections(ctx context.Context) ([]backend.Section, error) {
	resp, err := b.doRequest(ctx, http.MethodGet, "/rest/v2/sections", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("fetch sections", resp)
	}

	var apiSections []apiSection
	if err := json.NewDecoder(resp.Body).Decode(&apiSections); err != nil {
		return nil, err
	}

	sections := make([]backend.Section, len(apiSections))
	for i, s := range apiSections {
		sections[i] = backend.Section{
			RemoteID:        s.ID,
			Name:            s.Name,
			ProjectRemoteID: s.ProjectID,
			OrderIndex:      s.Order,
		}
	}
	return sections, nil
}

// =============================================================================
// Project operations
// =============================================================================

// CreateProject creates a new Todoist project
func (b *Backend) CreateProject(ctx context.Context, args backend.CreateProjectArgs) (*backend.Project, error) {
	body := map[string]interface{}{"name": args.Name}
	if args.ParentRemoteID != nil {
		body["parent_id"] = *args.ParentRemoteID
	}
	if args.IsFavorite != nil {
		body["is_favorite"] = *args.IsFavorite
	}

	resp, err := b.doRequest(ctx, http.MethodPost, "/rest/v2/projects", body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("create project", resp)
	}

	var p apiProject
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	project := p.toBackendProject()
	return &project, nil
}

// UpdateProject updates a Todoist project
func (b *Backend) UpdateProject(ctx context.Context, remoteID string, args backend.UpdateProjectArgs) (*backend.Project, error) {
	body := map[string]interface{}{}
	if args.Name != nil {
		body["name"] = *args.Name
	}
	if args.IsFavorite != nil {
		body["is_favorite"] = *args.IsFavorite
	}

	resp, err := b.doRequest(ctx, http.MethodPost, "/rest/v2/projects/"+remoteID, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("update project", resp)
	}

	var p apiProject
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	project := p.toBackendProject()
	return &project, nil
}

// DeleteProject deletes a Todoist project (permanent)
func (b *Backend) DeleteProject(ctx context.Context, remoteID string) error {
	resp, err := b.doRequest(ctx, http.MethodDelete, "/rest/v2/projects/"+remoteID, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError("delete project", resp)
	}
	return nil
}

// =============================================================================
// Task operations
// =============================================================================

// taskBody builds the JSON body shared by create and update task calls.
// Only non-nil optional fields are included.
func taskBody(content, description, projectRemoteID, sectionRemoteID, parentRemoteID *string,
	priority *int, dueDate, dueDatetime, dueString, duration *string, labels []string) map[string]interface{} {
	body := map[string]interface{}{}
	if content != nil {
		body["content"] = *content
	}
	if description != nil {
		body["description"] = *description
	}
	if projectRemoteID != nil && *projectRemoteID != "" {
		body["project_id"] = *projectRemoteID
	}
	if sectionRemoteID != nil {
		body["section_id"] = *sectionRemoteID
	}
	if parentRemoteID != nil {
		body["parent_id"] = *parentRemoteID
	}
	if priority != nil {
		body["priority"] = *priority
	}
	if dueDate != nil {
		body["due_date"] = *dueDate
	}
	if dueDatetime != nil {
		body["due_datetime"] = *dueDatetime
	}
	if dueString != nil {
		body["due_string"] = *dueString
	}
	if duration != nil {
		body["duration"] = *duration
	}
	if len(labels) > 0 {
		body["labels"] = labels
	}
	return body
}

// CreateTask creates a new Todoist task
func (b *Backend) CreateTask(ctx context.Context, args backend.CreateTaskArgs) (*backend.Task, error) {
	body := taskBody(&args.Content, args.Description, &args.ProjectRemoteID, args.SectionRemoteID,
		args.ParentRemoteID, args.Priority, args.DueDate, args.DueDatetime, args.DueString,
		args.Duration, args.Labels)

	resp, err := b.doRequest(ctx, http.MethodPost, "/rest/v2/tasks", body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("create task", resp)
	}

	var t apiTask
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, err
	}
	task := t.toBackendTask()
	return &task, nil
}

// UpdateTask updates a Todoist task
func (b *Backend) UpdateTask(ctx context.Context, remoteID string, args backend.UpdateTaskArgs) (*backend.Task, error) {
	body := taskBody(args.Content, args.Description, args.ProjectRemoteID, args.SectionRemoteID,
		args.ParentRemoteID, args.Priority, args.DueDate, args.DueDatetime, args.DueString,
		args.Duration, args.Labels)

	resp, err := b.doRequest(ctx, http.MethodPost, "/rest/v2/tasks/"+remoteID, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("update task", resp)
	}

	var t apiTask
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, err
	}
	task := t.toBackendTask()
	return &task, nil
}

// DeleteTask permanently deletes a Todoist task
func (b *Backend) DeleteTask(ctx context.Context, remoteID string) error {
	resp, err := b.doRequest(ctx, http.MethodDelete, "/rest/v2/tasks/"+remoteID, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError("delete task", resp)
	}
	return nil
}

// CompleteTask closes a Todoist task. The remote side cascades to subtasks.
func (b *Backend) CompleteTask(ctx context.Context, remoteID string) error {
	resp, err := b.doRequest(ctx, http.MethodPost, "/rest/v2/tasks/"+remoteID+"/close", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError("complete task", resp)
	}
	return nil
}

// ReopenTask reopens a completed Todoist task
func (b *Backend) ReopenTask(ctx context.Context, remoteID string) error {
	resp, err := b.doRequest(ctx, http.MethodPost, "/rest/v2/tasks/"+remoteID+"/reopen", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError("reopen task", resp)
	}
	return nil
}

// =============================================================================
// Label operations
// =============================================================================

// CreateLabel creates a new Todoist label
func (b *Backend) CreateLabel(ctx context.Context, args backend.CreateLabelArgs) (*backend.Label, error) {
	body := map[string]interface{}{"name": args.Name}
	if args.Color != nil {
		body["color"] = *args.Color
	}

	resp, err := b.doRequest(ctx, http.MethodPost, "/rest/v2/labels", body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("create label", resp)
	}

	var l apiLabel
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, err
	}
	return &backend.Label{RemoteID: l.ID, Name: l.Name, Color: l.Color}, nil
}

// UpdateLabel updates a Todoist label
func (b *Backend) UpdateLabel(ctx context.Context, remoteID string, args backend.UpdateLabelArgs) (*backend.Label, error) {
	body := map[string]interface{}{}
	if args.Name != nil {
		body["name"] = *args.Name
	}
	if args.Color != nil {
		body["color"] = *args.Color
	}

	resp, err := b.doRequest(ctx, http.MethodPost, "/rest/v2/labels/"+remoteID, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("update label", resp)
	}

	var l apiLabel
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, err
	}
	return &backend.Label{RemoteID: l.ID, Name: l.Name, Color: l.Color}, nil
}

// DeleteLabel deletes a Todoist label
func (b *Backend) DeleteLabel(ctx context.Context, remoteID string) error {
	resp, err := b.doRequest(ctx, http.MethodDelete, "/rest/v2/labels/"+remoteID, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError("delete label", resp)
	}
	return nil
}
