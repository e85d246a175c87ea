package sync

import (
	"context"

	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/backend"
	"github.com/dapp-whisperer/terminalist/internal/storage"
)

// Projects returns the instance's cached projects, ordered.
func (s *Service) Projects(ctx context.Context, instanceID uuid.UUID) ([]storage.Project, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetProjects(ctx, s.store.DB(), instanceID)
}

// InboxProject returns the instance's inbox project, or nil when none is
// cached.
func (s *Service) InboxProject(ctx context.Context, instanceID uuid.UUID) (*storage.Project, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetInboxProject(ctx, s.store.DB(), instanceID)
}

// Sections returns all of the instance's cached sections.
func (s *Service) Sections(ctx context.Context, instanceID uuid.UUID) ([]storage.Section, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetSections(ctx, s.store.DB(), instanceID)
}

// SectionsForProject returns a project's cached sections.
func (s *Service) SectionsForProject(ctx context.Context, projectUUID uuid.UUID) ([]storage.Section, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetSectionsForProject(ctx, s.store.DB(), projectUUID)
}

// CreateProject creates a project remotely and caches the response.
func (s *Service) CreateProject(ctx context.Context, instanceID uuid.UUID, name string, parentUUID *uuid.UUID, favorite *bool) (*storage.Project, error) {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return nil, err
	}

	var parentRemoteID *string
	if parentUUID != nil {
		s.store.Lock()
		rid, err := storage.GetProjectRemoteID(ctx, s.store.DB(), *parentUUID)
		s.store.Unlock()
		if err != nil {
			return nil, err
		}
		parentRemoteID = &rid
	}

	rp, err := gw.CreateProject(ctx, backend.CreateProjectArgs{
		Name:           name,
		ParentRemoteID: parentRemoteID,
		IsFavorite:     favorite,
	})
	if err != nil {
		return nil, wrapBackend("project create", err)
	}

	s.store.Lock()
	defer s.store.Unlock()
	db := s.store.DB()

	if err := upsertRemoteProject(ctx, db, instanceID, rp); err != nil {
		return nil, err
	}
	return storage.GetProjectByRemoteID(ctx, db, instanceID, rp.RemoteID)
}

// UpdateProject renames a project or toggles its favorite flag remotely, then
// caches the response.
func (s *Service) UpdateProject(ctx context.Context, instanceID uuid.UUID, projectUUID uuid.UUID, name *string, favorite *bool) (*storage.Project, error) {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return nil, err
	}

	s.store.Lock()
	remoteID, err := storage.GetProjectRemoteID(ctx, s.store.DB(), projectUUID)
	s.store.Unlock()
	if err != nil {
		return nil, err
	}

	rp, err := gw.UpdateProject(ctx, remoteID, backend.UpdateProjectArgs{
		Name:       name,
		IsFavorite: favorite,
	})
	if err != nil {
		return nil, wrapBackend("project update", err)
	}

	s.store.Lock()
	defer s.store.Unlock()
	db := s.store.DB()

	if err := upsertRemoteProject(ctx, db, instanceID, rp); err != nil {
		return nil, err
	}
	return storage.GetProjectByRemoteID(ctx, db, instanceID, rp.RemoteID)
}

// DeleteProject deletes a project remotely, then drops its row. Tasks and
// sections of the project cascade away with it; project deletion is the one
// delete with no local undo.
func (s *Service) DeleteProject(ctx context.Context, instanceID uuid.UUID, projectUUID uuid.UUID) error {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return err
	}

	s.store.Lock()
	remoteID, err := storage.GetProjectRemoteID(ctx, s.store.DB(), projectUUID)
	s.store.Unlock()
	if err != nil {
		return err
	}

	if err := gw.DeleteProject(ctx, remoteID); err != nil {
		return wrapBackend("project delete", err)
	}

	s.store.Lock()
	defer s.store.Unlock()
	return storage.DeleteProject(ctx, s.store.DB(), projectUUID)
}

// upsertRemoteProject folds a backend project into the cache, resolving the
// parent best-effort.
func upsertRemoteProject(ctx context.Context, q storage.DBTX, instanceID uuid.UUID, rp *backend.Project) error {
	var parentUUID *uuid.UUID
	if rp.ParentRemoteID != nil {
		parent, err := storage.GetProjectByRemoteID(ctx, q, instanceID, *rp.ParentRemoteID)
		if err != nil {
			return err
		}
		if parent != nil {
			id := parent.UUID
			parentUUID = &id
		}
	}

	return storage.UpsertProject(ctx, q, storage.Project{
		UUID:           backend.GenerateID(),
		BackendUUID:    instanceID,
		RemoteID:       rp.RemoteID,
		Name:           rp.Name,
		IsFavorite:     rp.IsFavorite,
		IsInboxProject: rp.IsInboxProject,
		OrderIndex:     rp.OrderIndex,
		ParentUUID:     parentUUID,
	})
}
