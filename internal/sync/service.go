// Package sync is the reconciliation core between the local sqlite cache and
// the remote backends. Every mutation follows the same shape: resolve local
// ids to remote ids under the store lock, release the lock for the network
// call, then re-acquire it and fold the backend's response back into the
// cache. The backend's response, not the request, is what gets persisted, so
// the cache always reflects what the remote side actually accepted.
package sync

import (
	"context"

	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/backend"
	"github.com/dapp-whisperer/terminalist/internal/storage"
)

// Service coordinates one local cache with the registered backend gateways.
type Service struct {
	store    *storage.Store
	registry *backend.Registry
}

// NewService creates a sync service over the given store and registry.
func NewService(store *storage.Store, registry *backend.Registry) *Service {
	return &Service{store: store, registry: registry}
}

// Store exposes the underlying store for read-only consumers.
func (s *Service) Store() *storage.Store {
	return s.store
}

func (s *Service) gateway(instanceID uuid.UUID) (backend.Backend, error) {
	return s.registry.Get(instanceID)
}

// lookupProjectUUID maps a remote project id to its local row, failing with a
// ResolutionError when the project has never been synced.
func lookupProjectUUID(ctx context.Context, q storage.DBTX, instanceID uuid.UUID, remoteID, op string) (uuid.UUID, error) {
	p, err := storage.GetProjectByRemoteID(ctx, q, instanceID, remoteID)
	if err != nil {
		return uuid.Nil, err
	}
	if p == nil {
		return uuid.Nil, &ResolutionError{Entity: "Project", RemoteID: remoteID, Op: op}
	}
	return p.UUID, nil
}

// lookupSectionUUID maps a remote section id to its local row. Missing
// sections are tolerated: the task is still usable without one.
func lookupSectionUUID(ctx context.Context, q storage.DBTX, instanceID uuid.UUID, remoteID *string) (*uuid.UUID, error) {
	if remoteID == nil {
		return nil, nil
	}
	sec, err := storage.GetSectionByRemoteID(ctx, q, instanceID, *remoteID)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, nil
	}
	id := sec.UUID
	return &id, nil
}

// lookupParentTaskUUID maps a remote parent task id to its local row. Missing
// parents are tolerated; the task is cached as a top-level task.
func lookupParentTaskUUID(ctx context.Context, q storage.DBTX, instanceID uuid.UUID, remoteID *string) (*uuid.UUID, error) {
	if remoteID == nil {
		return nil, nil
	}
	parent, err := storage.GetTaskByRemoteID(ctx, q, instanceID, *remoteID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, nil
	}
	id := parent.UUID
	return &id, nil
}
