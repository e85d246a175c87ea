package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const projectColumns = "uuid, backend_uuid, remote_id, name, is_favorite, is_inbox_project, order_index, parent_uuid"

func scanProject(row interface{ Scan(...interface{}) error }) (*Project, error) {
	var p Project
	var uuidStr, backendStr string
	var parent sql.NullString
	if err := row.Scan(&uuidStr, &backendStr, &p.RemoteID, &p.Name, &p.IsFavorite,
		&p.IsInboxProject, &p.OrderIndex, &parent); err != nil {
		return nil, err
	}

	var err error
	if p.UUID, err = uuid.Parse(uuidStr); err != nil {
		return nil, err
	}
	if p.BackendUUID, err = uuid.Parse(backendStr); err != nil {
		return nil, err
	}
	if p.ParentUUID, err = uuidPtr(parent); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProjectByID returns a project by local id, or nil if absent.
func GetProjectByID(ctx context.Context, q DBTX, id uuid.UUID) (*Project, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE uuid = ?", id.String())
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetProjectByRemoteID returns a project by (backend instance, remote id),
// or nil if absent.
func GetProjectByRemoteID(ctx context.Context, q DBTX, backendUUID uuid.UUID, remoteID string) (*Project, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE backend_uuid = ? AND remote_id = ?",
		backendUUID.String(), remoteID)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetProjectRemoteID returns the remote id for a local project id. Unlike
// the nil-tolerant getters this errors when the project is unknown, since
// callers need the remote id to address the backend.
func GetProjectRemoteID(ctx context.Context, q DBTX, id uuid.UUID) (string, error) {
	var remoteID string
	err := q.QueryRowContext(ctx,
		"SELECT remote_id FROM projects WHERE uuid = ?", id.String()).Scan(&remoteID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("project not found in local storage: %s", id)
	}
	return remoteID, err
}

// GetInboxProject returns the backend instance's inbox project, or nil when
// none is cached. Exactly one inbox project per instance is a backend
// convention, not a schema constraint; when several rows carry the flag the
// first by order_index wins.
func GetInboxProject(ctx context.Context, q DBTX, backendUUID uuid.UUID) (*Project, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE backend_uuid = ? AND is_inbox_project = 1 ORDER BY order_index LIMIT 1",
		backendUUID.String())
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetProjects returns all projects for a backend instance, ordered.
func GetProjects(ctx context.Context, q DBTX, backendUUID uuid.UUID) ([]Project, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE backend_uuid = ? ORDER BY order_index, name",
		backendUUID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}

	if projects == nil {
		projects = []Project{}
	}
	return projects, rows.Err()
}

// UpsertProject inserts a project row, updating the existing row when the
// (backend_uuid, remote_id) pair is already cached. The local uuid of an
// existing row is preserved.
func UpsertProject(ctx context.Context, q DBTX, p Project) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO projects (uuid, backend_uuid, remote_id, name, is_favorite, is_inbox_project, order_index, parent_uuid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(backend_uuid, remote_id) DO UPDATE SET
			name = excluded.name,
			is_favorite = excluded.is_favorite,
			is_inbox_project = excluded.is_inbox_project,
			order_index = excluded.order_index,
			parent_uuid = excluded.parent_uuid`,
		p.UUID.String(), p.BackendUUID.String(), p.RemoteID, p.Name,
		p.IsFavorite, p.IsInboxProject, p.OrderIndex, nullUUID(p.ParentUUID),
	)
	return err
}

// UpdateProject rewrites the mutable fields of a project row.
func UpdateProject(ctx context.Context, q DBTX, p Project) error {
	_, err := q.ExecContext(ctx, `
		UPDATE projects SET name = ?, is_favorite = ?, is_inbox_project = ?, order_index = ?, parent_uuid = ?
		WHERE uuid = ?`,
		p.Name, p.IsFavorite, p.IsInboxProject, p.OrderIndex, nullUUID(p.ParentUUID), p.UUID.String(),
	)
	return err
}

// DeleteProject removes a project row. Tasks and sections cascade.
func DeleteProject(ctx context.Context, q DBTX, id uuid.UUID) error {
	_, err := q.ExecContext(ctx, "DELETE FROM projects WHERE uuid = ?", id.String())
	return err
}

// DeleteProjectsNotIn removes the instance's project rows whose remote ids
// are no longer present remotely. Used by full sync.
func DeleteProjectsNotIn(ctx context.Context, q DBTX, backendUUID uuid.UUID, remoteIDs []string) error {
	return deleteRowsNotIn(ctx, q, "projects", backendUUID, remoteIDs)
}

// deleteRowsNotIn removes rows scoped to one instance whose remote id is not
// in the keep set. With an empty keep set all rows of the instance go.
func deleteRowsNotIn(ctx context.Context, q DBTX, table string, backendUUID uuid.UUID, remoteIDs []string) error {
	if len(remoteIDs) == 0 {
		_, err := q.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE backend_uuid = ?", backendUUID.String())
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
		"DELETE FROM "+table+" WHERE backend_uuid = ? AND remote_id NOT IN ("+placeholders+")", args...)
	return err
}
