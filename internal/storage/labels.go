package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const labelColumns = "uuid, backend_uuid, remote_id, name, color"

func scanLabel(row interface{ Scan(...interface{}) error }) (*Label, error) {
	var l Label
	var uuidStr, backendStr string
	if err := row.Scan(&uuidStr, &backendStr, &l.RemoteID, &l.Name, &l.Color); err != nil {
		return nil, err
	}

	var err error
	if l.UUID, err = uuid.Parse(uuidStr); err != nil {
		return nil, err
	}
	if l.BackendUUID, err = uuid.Parse(backendStr); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLabelByID returns a label by local id, or nil if absent.
func GetLabelByID(ctx context.Context, q DBTX, id uuid.UUID) (*Label, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+labelColumns+" FROM labels WHERE uuid = ?", id.String())
	l, err := scanLabel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// GetLabelByName returns a label by name within one backend instance, or nil.
func GetLabelByName(ctx context.Context, q DBTX, backendUUID uuid.UUID, name string) (*Label, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+labelColumns+" FROM labels WHERE backend_uuid = ? AND LOWER(name) = LOWER(?)",
		backendUUID.String(), name)
	l, err := scanLabel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// GetLabels returns all labels for a backend instance.
func GetLabels(ctx context.Context, q DBTX, backendUUID uuid.UUID) ([]Label, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+labelColumns+" FROM labels WHERE backend_uuid = ? ORDER BY name",
		backendUUID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var labels []Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, *l)
	}

	if labels == nil {
		labels = []Label{}
	}
	return labels, rows.Err()
}

// UpsertLabel inserts a label row, updating on (backend_uuid, remote_id)
// conflict.
func UpsertLabel(ctx context.Context, q DBTX, l Label) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO labels (uuid, backend_uuid, remote_id, name, color)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(backend_uuid, remote_id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color`,
		l.UUID.String(), l.BackendUUID.String(), l.RemoteID, l.Name, l.Color,
	)
	return err
}

// DeleteLabel removes a label row. Task links cascade.
func DeleteLabel(ctx context.Context, q DBTX, id uuid.UUID) error {
	_, err := q.ExecContext(ctx, "DELETE FROM labels WHERE uuid = ?", id.String())
	return err
}

// DeleteLabelsNotIn removes the instance's label rows whose remote ids are
// no longer present remotely. Used by full sync.
func DeleteLabelsNotIn(ctx context.Context, q DBTX, backendUUID uuid.UUID, remoteIDs []string) error {
	return deleteRowsNotIn(ctx, q, "labels", backendUUID, remoteIDs)
}

// LinkTaskLabel records a task-label association, ignoring duplicates.
func LinkTaskLabel(ctx context.Context, q DBTX, taskUUID, labelUUID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO task_labels (task_uuid, label_uuid) VALUES (?, ?)
		ON CONFLICT(task_uuid, label_uuid) DO NOTHING`,
		taskUUID.String(), labelUUID.String(),
	)
	return err
}

// UnlinkTaskLabels clears all label links for a task.
func UnlinkTaskLabels(ctx context.Context, q DBTX, taskUUID uuid.UUID) error {
	_, err := q.ExecContext(ctx, "DELETE FROM task_labels WHERE task_uuid = ?", taskUUID.String())
	return err
}
