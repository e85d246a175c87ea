package sync

import (
	"context"

	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/backend"
	"github.com/dapp-whisperer/terminalist/internal/storage"
)

// Labels returns the instance's cached labels, ordered by name.
func (s *Service) Labels(ctx context.Context, instanceID uuid.UUID) ([]storage.Label, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetLabels(ctx, s.store.DB(), instanceID)
}

// CreateLabel creates a label remotely and caches the response.
func (s *Service) CreateLabel(ctx context.Context, instanceID uuid.UUID, name string, color *string) (*storage.Label, error) {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return nil, err
	}

	rl, err := gw.CreateLabel(ctx, backend.CreateLabelArgs{Name: name, Color: color})
	if err != nil {
		return nil, wrapBackend("label create", err)
	}

	s.store.Lock()
	defer s.store.Unlock()
	db := s.store.DB()

	if err := upsertRemoteLabel(ctx, db, instanceID, rl); err != nil {
		return nil, err
	}
	return storage.GetLabelByName(ctx, db, instanceID, rl.Name)
}

// UpdateLabel renames or recolors a label remotely, then caches the response.
func (s *Service) UpdateLabel(ctx context.Context, instanceID uuid.UUID, labelUUID uuid.UUID, name, color *string) (*storage.Label, error) {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return nil, err
	}

	s.store.Lock()
	label, err := storage.GetLabelByID(ctx, s.store.DB(), labelUUID)
	s.store.Unlock()
	if err != nil {
		return nil, err
	}
	if label == nil {
		return nil, &NotFoundError{Entity: "Label", ID: labelUUID}
	}

	rl, err := gw.UpdateLabel(ctx, label.RemoteID, backend.UpdateLabelArgs{Name: name, Color: color})
	if err != nil {
		return nil, wrapBackend("label update", err)
	}

	s.store.Lock()
	defer s.store.Unlock()
	db := s.store.DB()

	if err := upsertRemoteLabel(ctx, db, instanceID, rl); err != nil {
		return nil, err
	}
	return storage.GetLabelByID(ctx, db, labelUUID)
}

// DeleteLabel deletes a label remotely, then drops its row. Task links
// cascade away.
func (s *Service) DeleteLabel(ctx context.Context, instanceID uuid.UUID, labelUUID uuid.UUID) error {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return err
	}

	s.store.Lock()
	label, err := storage.GetLabelByID(ctx, s.store.DB(), labelUUID)
	s.store.Unlock()
	if err != nil {
		return err
	}
	if label == nil {
		return &NotFoundError{Entity: "Label", ID: labelUUID}
	}

	if err := gw.DeleteLabel(ctx, label.RemoteID); err != nil {
		return wrapBackend("label delete", err)
	}

	s.store.Lock()
	defer s.store.Unlock()
	return storage.DeleteLabel(ctx, s.store.DB(), labelUUID)
}

func upsertRemoteLabel(ctx context.Context, q storage.DBTX, instanceID uuid.UUID, rl *backend.Label) error {
	return storage.UpsertLabel(ctx, q, storage.Label{
		UUID:        backend.GenerateID(),
		BackendUUID: instanceID,
		RemoteID:    rl.RemoteID,
		Name:        rl.Name,
		Color:       rl.Color,
	})
}
