package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const taskColumns = `uuid, backend_uuid, remote_id, content, description, project_uuid, section_uuid,
	parent_uuid, priority, order_index, due_date, due_datetime, is_recurring, deadline, duration,
	is_completed, is_deleted`

func scanTask(row interface{ Scan(...interface{}) error }) (*Task, error) {
	var t Task
	var uuidStr, backendStr, projectStr string
	var description, sectionStr, parentStr, dueDate, dueDatetime, deadline, duration sql.NullString
	if err := row.Scan(&uuidStr, &backendStr, &t.RemoteID, &t.Content, &description,
		&projectStr, &sectionStr, &parentStr, &t.Priority, &t.OrderIndex,
		&dueDate, &dueDatetime, &t.IsRecurring, &deadline, &duration,
		&t.IsCompleted, &t.IsDeleted); err != nil {
		return nil, err
	}

	var err error
	if t.UUID, err = uuid.Parse(uuidStr); err != nil {
		return nil, err
	}
	if t.BackendUUID, err = uuid.Parse(backendStr); err != nil {
		return nil, err
	}
	if t.ProjectUUID, err = uuid.Parse(projectStr); err != nil {
		return nil, err
	}
	if t.SectionUUID, err = uuidPtr(sectionStr); err != nil {
		return nil, err
	}
	if t.ParentUUID, err = uuidPtr(parentStr); err != nil {
		return nil, err
	}
	t.Description = strPtr(description)
	t.DueDate = strPtr(dueDate)
	t.DueDatetime = strPtr(dueDatetime)
	t.Deadline = strPtr(deadline)
	t.Duration = strPtr(duration)
	return &t, nil
}

func queryTasks(ctx context.Context, q DBTX, query string, args ...interface{}) ([]Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}

	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, rows.Err()
}

// GetTaskByID returns a task by local id, or nil if absent.
func GetTaskByID(ctx context.Context, q DBTX, id uuid.UUID) (*Task, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE uuid = ?", id.String())
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTaskByRemoteID returns a task by (backend instance, remote id), or nil
// if absent.
func GetTaskByRemoteID(ctx context.Context, q DBTX, backendUUID uuid.UUID, remoteID string) (*Task, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE backend_uuid = ? AND remote_id = ?",
		backendUUID.String(), remoteID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTaskRemoteID returns the remote id for a local task id, erroring when
// the task is unknown.
func GetTaskRemoteID(ctx context.Context, q DBTX, id uuid.UUID) (string, error) {
	var remoteID string
	err := q.QueryRowContext(ctx,
		"SELECT remote_id FROM tasks WHERE uuid = ?", id.String()).Scan(&remoteID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("task not found in local storage: %s", id)
	}
	return remoteID, err
}

// GetTasksForProject returns a project's visible (not soft-deleted) tasks.
func GetTasksForProject(ctx context.Context, q DBTX, projectUUID uuid.UUID) ([]Task, error) {
	return queryTasks(ctx, q,
		"SELECT "+taskColumns+" FROM tasks WHERE project_uuid = ? AND is_deleted = 0 ORDER BY order_index",
		projectUUID.String())
}

// GetAllTasks returns every visible task across all projects of an instance.
func GetAllTasks(ctx context.Context, q DBTX, backendUUID uuid.UUID) ([]Task, error) {
	return queryTasks(ctx, q,
		"SELECT "+taskColumns+" FROM tasks WHERE backend_uuid = ? AND is_deleted = 0 ORDER BY order_index",
		backendUUID.String())
}

// SearchTasks performs a case-insensitive substring match on task content.
func SearchTasks(ctx context.Context, q DBTX, backendUUID uuid.UUID, query string) ([]Task, error) {
	return queryTasks(ctx, q,
		"SELECT "+taskColumns+` FROM tasks
		WHERE backend_uuid = ? AND is_deleted = 0 AND LOWER(content) LIKE '%' || LOWER(?) || '%'
		ORDER BY order_index`,
		backendUUID.String(), query)
}

// GetTasksWithLabel returns visible tasks linked to a label.
func GetTasksWithLabel(ctx context.Context, q DBTX, labelUUID uuid.UUID) ([]Task, error) {
	return queryTasks(ctx, q,
		"SELECT "+taskColumns+` FROM tasks
		JOIN task_labels ON task_labels.task_uuid = tasks.uuid
		WHERE task_labels.label_uuid = ? AND is_deleted = 0
		ORDER BY order_index`,
		labelUUID.String())
}

// GetTasksForToday returns overdue tasks followed by tasks due exactly
// today. Overdue tasks come strictly first.
func GetTasksForToday(ctx context.Context, q DBTX, backendUUID uuid.UUID, today string) ([]Task, error) {
	return queryTasks(ctx, q,
		"SELECT "+taskColumns+` FROM tasks
		WHERE backend_uuid = ? AND is_deleted = 0 AND is_completed = 0
			AND due_date IS NOT NULL AND due_date <= ?
		ORDER BY CASE WHEN due_date < ? THEN 0 ELSE 1 END, due_date, order_index`,
		backendUUID.String(), today, today)
}

// GetTasksForTomorrow returns tasks due exactly on the given date.
func GetTasksForTomorrow(ctx context.Context, q DBTX, backendUUID uuid.UUID, tomorrow string) ([]Task, error) {
	return queryTasks(ctx, q,
		"SELECT "+taskColumns+` FROM tasks
		WHERE backend_uuid = ? AND is_deleted = 0 AND is_completed = 0 AND due_date = ?
		ORDER BY order_index`,
		backendUUID.String(), tomorrow)
}

// GetTasksForUpcoming returns overdue tasks, then tasks due today, then
// tasks due before the horizon date (exclusive). A task due today appears
// only once, in the today segment.
func GetTasksForUpcoming(ctx context.Context, q DBTX, backendUUID uuid.UUID, today, horizon string) ([]Task, error) {
	return queryTasks(ctx, q,
		"SELECT "+taskColumns+` FROM tasks
		WHERE backend_uuid = ? AND is_deleted = 0 AND is_completed = 0
			AND due_date IS NOT NULL AND due_date < ?
		ORDER BY CASE WHEN due_date < ? THEN 0 WHEN due_date = ? THEN 1 ELSE 2 END, due_date, order_index`,
		backendUUID.String(), horizon, today, today)
}

// UpsertTask inserts a task row, updating the existing row when the
// (backend_uuid, remote_id) pair is already cached, so a retried create
// cannot duplicate. The existing row's local uuid is preserved on conflict.
func UpsertTask(ctx context.Context, q DBTX, t Task) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tasks (uuid, backend_uuid, remote_id, content, description, project_uuid,
			section_uuid, parent_uuid, priority, order_index, due_date, due_datetime,
			is_recurring, deadline, duration, is_completed, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(backend_uuid, remote_id) DO UPDATE SET
			content = excluded.content,
			description = excluded.description,
			project_uuid = excluded.project_uuid,
			section_uuid = excluded.section_uuid,
			parent_uuid = excluded.parent_uuid,
			priority = excluded.priority,
			order_index = excluded.order_index,
			due_date = excluded.due_date,
			due_datetime = excluded.due_datetime,
			is_recurring = excluded.is_recurring,
			deadline = excluded.deadline,
			duration = excluded.duration,
			is_completed = excluded.is_completed,
			is_deleted = excluded.is_deleted`,
		t.UUID.String(), t.BackendUUID.String(), t.RemoteID, t.Content, nullStr(t.Description),
		t.ProjectUUID.String(), nullUUID(t.SectionUUID), nullUUID(t.ParentUUID),
		t.Priority, t.OrderIndex, nullStr(t.DueDate), nullStr(t.DueDatetime),
		t.IsRecurring, nullStr(t.Deadline), nullStr(t.Duration), t.IsCompleted, t.IsDeleted,
	)
	return err
}

// UpdateTask rewrites the mutable fields of a task row addressed by local id.
func UpdateTask(ctx context.Context, q DBTX, t Task) error {
	_, err := q.ExecContext(ctx, `
		UPDATE tasks SET content = ?, description = ?, project_uuid = ?, section_uuid = ?,
			parent_uuid = ?, priority = ?, order_index = ?, due_date = ?, due_datetime = ?,
			is_recurring = ?, deadline = ?, duration = ?, is_completed = ?, is_deleted = ?
		WHERE uuid = ?`,
		t.Content, nullStr(t.Description), t.ProjectUUID.String(), nullUUID(t.SectionUUID),
		nullUUID(t.ParentUUID), t.Priority, t.OrderIndex, nullStr(t.DueDate), nullStr(t.DueDatetime),
		t.IsRecurring, nullStr(t.Deadline), nullStr(t.Duration), t.IsCompleted, t.IsDeleted,
		t.UUID.String(),
	)
	return err
}

// DeleteTask hard-deletes a task row. Subtasks cascade at the schema level;
// the caller does not walk the subtask tree.
func DeleteTask(ctx context.Context, q DBTX, id uuid.UUID) error {
	_, err := q.ExecContext(ctx, "DELETE FROM tasks WHERE uuid = ?", id.String())
	return err
}

// DeleteTasksNotIn removes the instance's task rows whose remote ids are no
// longer present remotely. Soft-deleted rows are exempt: their remote copy is
// gone on purpose and the row must survive sync so the task stays restorable.
func DeleteTasksNotIn(ctx context.Context, q DBTX, backendUUID uuid.UUID, remoteIDs []string) error {
	if len(remoteIDs) == 0 {
		_, err := q.ExecContext(ctx,
			"DELETE FROM tasks WHERE backend_uuid = ? AND is_deleted = 0", backendUUID.String())
		return err
	}

	args := make([]interface{}, 0, len(remoteIDs)+1)
	args = append(args, backendUUID.String())
	placeholders := ""
	for i, id := range remoteIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, id)
	}

	_, err := q.ExecContext(ctx,
		"DELETE FROM tasks WHERE backend_uuid = ? AND is_deleted = 0 AND remote_id NOT IN ("+placeholders+")",
		args...)
	return err
}
