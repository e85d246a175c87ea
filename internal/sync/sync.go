package sync

import (
	"context"

	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/backend"
	"github.com/dapp-whisperer/terminalist/internal/storage"
	"github.com/dapp-whisperer/terminalist/internal/utils"
)

// Stats summarizes what one full sync brought in.
type Stats struct {
	Projects int
	Sections int
	Labels   int
	Tasks    int
}

// FullSync replaces the instance's cache with the remote state. All fetches
// happen with the lock released; the cache swap is one transaction, so
// readers see either the old state or the new one. Rows whose remote ids are
// gone are dropped, except soft-deleted tasks, which stay restorable.
func (s *Service) FullSync(ctx context.Context, instanceID uuid.UUID) (*Stats, error) {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return nil, err
	}

	projects, err := gw.FetchProjects(ctx)
	if err != nil {
		return nil, wrapBackend("project fetch", err)
	}
	sections, err := gw.FetchSections(ctx)
	if err != nil {
		return nil, wrapBackend("section fetch", err)
	}
	labels, err := gw.FetchLabels(ctx)
	if err != nil {
		return nil, wrapBackend("label fetch", err)
	}
	tasks, err := gw.FetchTasks(ctx)
	if err != nil {
		return nil, wrapBackend("task fetch", err)
	}

	s.store.Lock()
	defer s.store.Unlock()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyProjects(ctx, tx, instanceID, projects); err != nil {
		return nil, err
	}
	if err := applySections(ctx, tx, instanceID, sections); err != nil {
		return nil, err
	}
	for i := range labels {
		if err := upsertRemoteLabel(ctx, tx, instanceID, &labels[i]); err != nil {
			return nil, err
		}
	}
	if err := applyTasks(ctx, tx, instanceID, tasks); err != nil {
		return nil, err
	}

	if err := pruneStale(ctx, tx, instanceID, projects, sections, labels, tasks); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	stats := &Stats{
		Projects: len(projects),
		Sections: len(sections),
		Labels:   len(labels),
		Tasks:    len(tasks),
	}
	utils.Debugf("synced instance %s: %d projects, %d sections, %d labels, %d tasks",
		instanceID, stats.Projects, stats.Sections, stats.Labels, stats.Tasks)
	return stats, nil
}

// applyProjects upserts project rows in two passes: rows first, then parent
// links, so a child arriving before its parent still resolves.
func applyProjects(ctx context.Context, tx storage.DBTX, instanceID uuid.UUID, projects []backend.Project) error {
	for _, rp := range projects {
		flat := rp
		flat.ParentRemoteID = nil
		if err := upsertRemoteProject(ctx, tx, instanceID, &flat); err != nil {
			return err
		}
	}
	for i := range projects {
		if projects[i].ParentRemoteID == nil {
			continue
		}
		if err := upsertRemoteProject(ctx, tx, instanceID, &projects[i]); err != nil {
			return err
		}
	}
	return nil
}

// applySections upserts section rows. A section whose project did not come
// back in the same sync is skipped; it would violate the schema and cannot be
// displayed anyway.
func applySections(ctx context.Context, tx storage.DBTX, instanceID uuid.UUID, sections []backend.Section) error {
	for _, rs := range sections {
		project, err := storage.GetProjectByRemoteID(ctx, tx, instanceID, rs.ProjectRemoteID)
		if err != nil {
			return err
		}
		if project == nil {
			utils.Warnf("section %s references unknown project %s; skipped", rs.RemoteID, rs.ProjectRemoteID)
			continue
		}
		if err := storage.UpsertSection(ctx, tx, storage.Section{
			UUID:        backend.GenerateID(),
			BackendUUID: instanceID,
			RemoteID:    rs.RemoteID,
			ProjectUUID: project.UUID,
			Name:        rs.Name,
			OrderIndex:  rs.OrderIndex,
		}); err != nil {
			return err
		}
	}
	return nil
}

// applyTasks upserts task rows in two passes, like projects, so subtask
// parent links survive arbitrary fetch order.
func applyTasks(ctx context.Context, tx storage.DBTX, instanceID uuid.UUID, tasks []backend.Task) error {
	for _, rt := range tasks {
		flat := rt
		flat.ParentRemoteID = nil
		if _, err := upsertRemoteTask(ctx, tx, instanceID, &flat, "full sync"); err != nil {
			// A task in a project the fetch didn't return cannot be
			// cached; drop it rather than fail the whole sync.
			if _, ok := err.(*ResolutionError); ok {
				utils.Warnf("task %s references unknown project %s; skipped", rt.RemoteID, rt.ProjectRemoteID)
				continue
			}
			return err
		}
	}
	for i := range tasks {
		if tasks[i].ParentRemoteID == nil {
			continue
		}
		if _, err := upsertRemoteTask(ctx, tx, instanceID, &tasks[i], "full sync"); err != nil {
			if _, ok := err.(*ResolutionError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// pruneStale removes rows whose remote ids no longer exist, children before
// parents. Soft-deleted tasks are kept by DeleteTasksNotIn itself.
func pruneStale(ctx context.Context, tx storage.DBTX, instanceID uuid.UUID,
	projects []backend.Project, sections []backend.Section, labels []backend.Label, tasks []backend.Task) error {

	taskIDs := make([]string, len(tasks))
	for i := range tasks {
		taskIDs[i] = tasks[i].RemoteID
	}
	if err := storage.DeleteTasksNotIn(ctx, tx, instanceID, taskIDs); err != nil {
		return err
	}

	sectionIDs := make([]string, len(sections))
	for i := range sections {
		sectionIDs[i] = sections[i].RemoteID
	}
	if err := storage.DeleteSectionsNotIn(ctx, tx, instanceID, sectionIDs); err != nil {
		return err
	}

	labelIDs := make([]string, len(labels))
	for i := range labels {
		labelIDs[i] = labels[i].RemoteID
	}
	if err := storage.DeleteLabelsNotIn(ctx, tx, instanceID, labelIDs); err != nil {
		return err
	}

	projectIDs := make([]string, len(projects))
	for i := range projects {
		projectIDs[i] = projects[i].RemoteID
	}
	return storage.DeleteProjectsNotIn(ctx, tx, instanceID, projectIDs)
}
