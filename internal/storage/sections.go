package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const sectionColumns = "uuid, backend_uuid, remote_id, project_uuid, name, order_index"

func scanSection(row interface{ Scan(...interface{}) error }) (*Section, error) {
	var s Section
	var uuidStr, backendStr, projectStr string
	if err := row.Scan(&uuidStr, &backendStr, &s.RemoteID, &projectStr, &s.Name, &s.OrderIndex); err != nil {
		return nil, err
	}

	var err error
	if s.UUID, err = uuid.Parse(uuidStr); err != nil {
		return nil, err
	}
	if s.BackendUUID, err = uuid.Parse(backendStr); err != nil {
		return nil, err
	}
	if s.ProjectUUID, err = uuid.Parse(projectStr); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSectionByRemoteID returns a section by (backend instance, remote id),
// or nil if absent.
func GetSectionByRemoteID(ctx context.Context, q DBTX, backendUUID uuid.UUID, remoteID string) (*Section, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+sectionColumns+" FROM sections WHERE backend_uuid = ? AND remote_id = ?",
		backendUUID.String(), remoteID)
	s, err := scanSection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// GetSectionRemoteID returns the remote id for a local section id, or nil
// when the section is unknown (missing sections are tolerated).
func GetSectionRemoteID(ctx context.Context, q DBTX, id uuid.UUID) (*string, error) {
	var remoteID string
	err := q.QueryRowContext(ctx,
		"SELECT remote_id FROM sections WHERE uuid = ?", id.String()).Scan(&remoteID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &remoteID, nil
}

// GetSectionsForProject returns a project's sections, ordered.
func GetSectionsForProject(ctx context.Context, q DBTX, projectUUID uuid.UUID) ([]Section, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+sectionColumns+" FROM sections WHERE project_uuid = ? ORDER BY order_index",
		projectUUID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sections []Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *s)
	}

	if sections == nil {
		sections = []Section{}
	}
	return sections, rows.Err()
}

// GetSections returns all sections for a backend instance.
func GetSections(ctx context.Context, q DBTX, backendUUID uuid.UUID) ([]Section, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+sectionColumns+" FROM sections WHERE backend_uuid = ? ORDER BY order_index",
		backendUUID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sections []Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *s)
	}

	if sections == nil {
		sections = []Section{}
	}
	return sections, rows.Err()
}

// UpsertSection inserts a section row, updating on (backend_uuid, remote_id)
// conflict.
func UpsertSection(ctx context.Context, q DBTX, s Section) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sections (uuid, backend_uuid, remote_id, project_uuid, name, order_index)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(backend_uuid, remote_id) DO UPDATE SET
			project_uuid = excluded.project_uuid,
			name = excluded.name,
			order_index = excluded.order_index`,
		s.UUID.String(), s.BackendUUID.String(), s.RemoteID, s.ProjectUUID.String(), s.Name, s.OrderIndex,
	)
	return err
}

// DeleteSectionsNotIn removes the instance's section rows whose remote ids
// are no longer present remotely. Used by full sync.
func DeleteSectionsNotIn(ctx context.Context, q DBTX, backendUUID uuid.UUID, remoteIDs []string) error {
	return deleteRowsNotIn(ctx, q, "sections", backendUUID, remoteIDs)
}
