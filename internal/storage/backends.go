package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// InsertBackendInstance stores a configured backend instance. Re-inserting
// the same uuid updates the mutable fields.
func InsertBackendInstance(ctx context.Context, q DBTX, b BackendInstance) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO backends (uuid, kind, name, is_enabled, credentials, settings)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			is_enabled = excluded.is_enabled,
			credentials = excluded.credentials,
			settings = excluded.settings`,
		b.UUID.String(), b.Kind, b.Name, b.IsEnabled, b.Credentials, b.Settings,
	)
	return err
}

// GetBackendInstance returns a backend instance by id, or nil if absent.
func GetBackendInstance(ctx context.Context, q DBTX, id uuid.UUID) (*BackendInstance, error) {
	var b BackendInstance
	var uuidStr string
	err := q.QueryRowContext(ctx,
		"SELECT uuid, kind, name, is_enabled, credentials, settings FROM backends WHERE uuid = ?",
		id.String(),
	).Scan(&uuidStr, &b.Kind, &b.Name, &b.IsEnabled, &b.Credentials, &b.Settings)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.UUID, err = uuid.Parse(uuidStr)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBackendInstances returns all configured backend instances.
func GetBackendInstances(ctx context.Context, q DBTX) ([]BackendInstance, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT uuid, kind, name, is_enabled, credentials, settings FROM backends ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var instances []BackendInstance
	for rows.Next() {
		var b BackendInstance
		var uuidStr string
		if err := rows.Scan(&uuidStr, &b.Kind, &b.Name, &b.IsEnabled, &b.Credentials, &b.Settings); err != nil {
			return nil, err
		}
		if b.UUID, err = uuid.Parse(uuidStr); err != nil {
			return nil, err
		}
		instances = append(instances, b)
	}

	if instances == nil {
		instances = []BackendInstance{}
	}
	return instances, rows.Err()
}
