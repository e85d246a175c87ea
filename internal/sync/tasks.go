package sync

import (
	"context"

	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/backend"
	"github.com/dapp-whisperer/terminalist/internal/storage"
	"github.com/dapp-whisperer/terminalist/internal/utils"
)

// upcomingHorizonDays bounds the upcoming view to dates strictly before
// today + this many days.
const upcomingHorizonDays = 90

// ProjectIntent says what should happen to a task's project during a full
// update. The zero value leaves the project alone.
type ProjectIntent int

const (
	// ProjectUnchanged leaves the task in its current project.
	ProjectUnchanged ProjectIntent = iota
	// ProjectSet moves the task to a specific project.
	ProjectSet
	// ProjectMoveToInbox moves the task to the instance's inbox project.
	ProjectMoveToInbox
)

// ProjectUpdate carries a ProjectIntent plus the target project for
// ProjectSet.
type ProjectUpdate struct {
	Intent ProjectIntent
	UUID   uuid.UUID
}

// KeepProject returns a ProjectUpdate that leaves the project unchanged.
func KeepProject() ProjectUpdate { return ProjectUpdate{Intent: ProjectUnchanged} }

// SetProject returns a ProjectUpdate targeting a specific project.
func SetProject(id uuid.UUID) ProjectUpdate { return ProjectUpdate{Intent: ProjectSet, UUID: id} }

// MoveToInbox returns a ProjectUpdate targeting the inbox project.
func MoveToInbox() ProjectUpdate { return ProjectUpdate{Intent: ProjectMoveToInbox} }

// CreateTaskInput holds the user-facing fields for a new task. All ids are
// local; nil ProjectUUID means the backend's inbox.
type CreateTaskInput struct {
	Content     string
	Description *string
	ProjectUUID *uuid.UUID
	SectionUUID *uuid.UUID
	ParentUUID  *uuid.UUID
	Priority    *int
	DueDate     *string
	DueString   *string
	Duration    *string
	Labels      []string
}

// UpdateTaskInput holds the user-facing fields for a full task update. Nil
// pointer fields are left unchanged.
type UpdateTaskInput struct {
	Content     *string
	Description *string
	Project     ProjectUpdate
	SectionUUID *uuid.UUID
	Priority    *int
	DueDate     *string
	DueString   *string
	Duration    *string
	Labels      []string
}

// =============================================================================
// Read views
// =============================================================================

// TasksForProject returns a project's visible tasks.
func (s *Service) TasksForProject(ctx context.Context, projectUUID uuid.UUID) ([]storage.Task, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetTasksForProject(ctx, s.store.DB(), projectUUID)
}

// AllTasks returns every visible task of a backend instance.
func (s *Service) AllTasks(ctx context.Context, instanceID uuid.UUID) ([]storage.Task, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetAllTasks(ctx, s.store.DB(), instanceID)
}

// SearchTasks returns visible tasks whose content contains the query,
// case-insensitively.
func (s *Service) SearchTasks(ctx context.Context, instanceID uuid.UUID, query string) ([]storage.Task, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.SearchTasks(ctx, s.store.DB(), instanceID, query)
}

// TasksWithLabel returns visible tasks carrying a label.
func (s *Service) TasksWithLabel(ctx context.Context, labelUUID uuid.UUID) ([]storage.Task, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetTasksWithLabel(ctx, s.store.DB(), labelUUID)
}

// TodayTasks returns overdue tasks followed by tasks due today. Overdue
// strictly first.
func (s *Service) TodayTasks(ctx context.Context, instanceID uuid.UUID) ([]storage.Task, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetTasksForToday(ctx, s.store.DB(), instanceID, utils.FormatToday())
}

// TomorrowTasks returns tasks due exactly tomorrow.
func (s *Service) TomorrowTasks(ctx context.Context, instanceID uuid.UUID) ([]storage.Task, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetTasksForTomorrow(ctx, s.store.DB(), instanceID, utils.FormatDateWithOffset(1))
}

// UpcomingTasks returns overdue tasks, then tasks due today, then tasks due
// within the next ninety days (exclusive horizon).
func (s *Service) UpcomingTasks(ctx context.Context, instanceID uuid.UUID) ([]storage.Task, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return storage.GetTasksForUpcoming(ctx, s.store.DB(), instanceID,
		utils.FormatToday(), utils.FormatDateWithOffset(upcomingHorizonDays))
}

// =============================================================================
// Mutations
// =============================================================================

// CreateTask creates a task remotely and caches the backend's response. The
// target project must already be cached (nil means inbox); a missing section
// or parent is tolerated and simply not sent.
func (s *Service) CreateTask(ctx context.Context, instanceID uuid.UUID, in CreateTaskInput) (*storage.Task, error) {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return nil, err
	}
	if in.Priority != nil {
		if err := utils.ValidatePriority(*in.Priority); err != nil {
			return nil, err
		}
	}

	// Resolve local ids to remote ids under the lock. The empty project id
	// is the backend's "use the inbox" sentinel.
	s.store.Lock()
	db := s.store.DB()

	projectRemoteID := ""
	if in.ProjectUUID != nil {
		projectRemoteID, err = storage.GetProjectRemoteID(ctx, db, *in.ProjectUUID)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
	}

	var sectionRemoteID *string
	if in.SectionUUID != nil {
		sectionRemoteID, err = storage.GetSectionRemoteID(ctx, db, *in.SectionUUID)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
	}

	var parentRemoteID *string
	if in.ParentUUID != nil {
		parent, err := storage.GetTaskByID(ctx, db, *in.ParentUUID)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
		if parent != nil {
			rid := parent.RemoteID
			parentRemoteID = &rid
		}
	}
	s.store.Unlock()

	// Network call with the lock released.
	rt, err := gw.CreateTask(ctx, backend.CreateTaskArgs{
		Content:         in.Content,
		Description:     in.Description,
		ProjectRemoteID: projectRemoteID,
		SectionRemoteID: sectionRemoteID,
		ParentRemoteID:  parentRemoteID,
		Priority:        in.Priority,
		DueDate:         in.DueDate,
		DueString:       in.DueString,
		Duration:        in.Duration,
		Labels:          in.Labels,
	})
	if err != nil {
		return nil, wrapBackend("task create", err)
	}

	return s.cacheRemoteTask(ctx, instanceID, rt, "task creation")
}

// UpdateTaskFull updates every mutable field of a task in one remote call,
// then writes the response onto the existing row. A row that vanished while
// the remote call was in flight is left alone. The project moves according to
// in.Project; a MoveToInbox with no cached inbox row leaves the project
// unchanged.
func (s *Service) UpdateTaskFull(ctx context.Context, instanceID uuid.UUID, taskUUID uuid.UUID, in UpdateTaskInput) (*storage.Task, error) {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return nil, err
	}
	if in.Priority != nil {
		if err := utils.ValidatePriority(*in.Priority); err != nil {
			return nil, err
		}
	}

	s.store.Lock()
	db := s.store.DB()

	task, err := storage.GetTaskByID(ctx, db, taskUUID)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}
	if task == nil {
		s.store.Unlock()
		return nil, &NotFoundError{Entity: "Task", ID: taskUUID}
	}

	var projectRemoteID *string
	switch in.Project.Intent {
	case ProjectSet:
		rid, err := storage.GetProjectRemoteID(ctx, db, in.Project.UUID)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
		projectRemoteID = &rid
	case ProjectMoveToInbox:
		inbox, err := storage.GetInboxProject(ctx, db, instanceID)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
		// No cached inbox row means there is nothing to address the move
		// with; the project field is left unchanged.
		if inbox != nil {
			rid := inbox.RemoteID
			projectRemoteID = &rid
		} else {
			utils.Debugf("move to inbox requested but no inbox project is cached for instance %s", instanceID)
		}
	}

	var sectionRemoteID *string
	if in.SectionUUID != nil {
		sectionRemoteID, err = storage.GetSectionRemoteID(ctx, db, *in.SectionUUID)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
	}
	remoteID := task.RemoteID
	s.store.Unlock()

	rt, err := gw.UpdateTask(ctx, remoteID, backend.UpdateTaskArgs{
		Content:         in.Content,
		Description:     in.Description,
		ProjectRemoteID: projectRemoteID,
		SectionRemoteID: sectionRemoteID,
		Priority:        in.Priority,
		DueDate:         in.DueDate,
		DueString:       in.DueString,
		Duration:        in.Duration,
		Labels:          in.Labels,
	})
	if err != nil {
		return nil, wrapBackend("task update", err)
	}

	s.store.Lock()
	defer s.store.Unlock()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Re-read by local id: a row removed while the lock was released means
	// the update has nowhere to land. Writing the response back anyway would
	// resurrect a task some other actor just pruned, so the update is
	// dropped; the remote change stands.
	task, err = storage.GetTaskByID(ctx, tx, taskUUID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		utils.Debugf("task %s disappeared during task update; remote change stands", taskUUID)
		return nil, nil
	}

	// The acknowledged project must resolve; a stale reference here is a
	// data-integrity error and the row stays untouched.
	projectUUID, err := lookupProjectUUID(ctx, tx, instanceID, rt.ProjectRemoteID, "task update")
	if err != nil {
		return nil, err
	}
	sectionUUID, err := lookupSectionUUID(ctx, tx, instanceID, rt.SectionRemoteID)
	if err != nil {
		return nil, err
	}

	task.Content = rt.Content
	task.Description = rt.Description
	task.ProjectUUID = projectUUID
	task.SectionUUID = sectionUUID
	task.Priority = rt.Priority
	task.Duration = rt.Duration
	applyRemoteDueFields(task, rt)
	if err := storage.UpdateTask(ctx, tx, *task); err != nil {
		return nil, err
	}
	if err := relinkTaskLabels(ctx, tx, instanceID, task.UUID, rt.Labels); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTaskDueDate sets a task's plain-date due date. A task missing from
// the cache is logged and skipped; the remote side is the source of truth for
// what was actually scheduled.
func (s *Service) UpdateTaskDueDate(ctx context.Context, instanceID uuid.UUID, taskUUID uuid.UUID, dueDate string) error {
	if !utils.ValidDate(dueDate) {
		return utils.ErrInvalidDate(dueDate)
	}
	return s.updateSingleField(ctx, instanceID, taskUUID, "task due date update",
		backend.UpdateTaskArgs{DueDate: &dueDate},
		func(t *storage.Task, rt *backend.Task) {
			t.DueDate = rt.DueDate
		})
}

// UpdateTaskDueString sets a task's due date from a natural-language phrase
// ("every friday", "tomorrow 9am"). The backend interprets the phrase; all
// scheduling fields of the response are copied back verbatim since a phrase
// can change any of them.
func (s *Service) UpdateTaskDueString(ctx context.Context, instanceID uuid.UUID, taskUUID uuid.UUID, dueString string) error {
	return s.updateSingleField(ctx, instanceID, taskUUID, "task due string update",
		backend.UpdateTaskArgs{DueString: &dueString},
		applyRemoteDueFields)
}

// UpdateTaskPriority sets a task's priority (1-4, 4 highest).
func (s *Service) UpdateTaskPriority(ctx context.Context, instanceID uuid.UUID, taskUUID uuid.UUID, priority int) error {
	if err := utils.ValidatePriority(priority); err != nil {
		return err
	}
	return s.updateSingleField(ctx, instanceID, taskUUID, "task priority update",
		backend.UpdateTaskArgs{Priority: &priority},
		func(t *storage.Task, rt *backend.Task) {
			t.Priority = rt.Priority
		})
}

// applyRemoteDueFields copies every scheduling field from the backend's
// response onto the local row.
func applyRemoteDueFields(t *storage.Task, rt *backend.Task) {
	t.DueDate = rt.DueDate
	t.DueDatetime = rt.DueDatetime
	t.IsRecurring = rt.IsRecurring
	t.Deadline = rt.Deadline
}

// updateSingleField is the shared remote-then-local path for the narrow task
// updates. The task vanishing from the cache between calls is not an error.
func (s *Service) updateSingleField(ctx context.Context, instanceID uuid.UUID, taskUUID uuid.UUID, op string,
	args backend.UpdateTaskArgs, apply func(*storage.Task, *backend.Task)) error {

	gw, err := s.gateway(instanceID)
	if err != nil {
		return err
	}

	s.store.Lock()
	task, err := storage.GetTaskByID(ctx, s.store.DB(), taskUUID)
	s.store.Unlock()
	if err != nil {
		return err
	}
	if task == nil {
		utils.Debugf("skipping %s: task %s is not cached", op, taskUUID)
		return nil
	}

	rt, err := gw.UpdateTask(ctx, task.RemoteID, args)
	if err != nil {
		return wrapBackend(op, err)
	}

	s.store.Lock()
	defer s.store.Unlock()
	db := s.store.DB()

	// Re-read: the row may have changed while the lock was released. Last
	// local write wins.
	task, err = storage.GetTaskByID(ctx, db, taskUUID)
	if err != nil {
		return err
	}
	if task == nil {
		utils.Debugf("task %s disappeared during %s; remote change stands", taskUUID, op)
		return nil
	}
	apply(task, rt)
	return storage.UpdateTask(ctx, db, *task)
}

// CompleteTask completes a task remotely and flips only the completed flag
// locally, keeping the row for the completed view and for restore.
func (s *Service) CompleteTask(ctx context.Context, instanceID uuid.UUID, taskUUID uuid.UUID) error {
	return s.flipFlag(ctx, instanceID, taskUUID, "task complete",
		func(gw backend.Backend, remoteID string) error { return gw.CompleteTask(ctx, remoteID) },
		func(t *storage.Task) { t.IsCompleted = true })
}

// DeleteTask deletes a task remotely and soft-deletes it locally. The row
// stays, flagged, so RestoreTask can recreate the task later.
func (s *Service) DeleteTask(ctx context.Context, instanceID uuid.UUID, taskUUID uuid.UUID) error {
	return s.flipFlag(ctx, instanceID, taskUUID, "task delete",
		func(gw backend.Backend, remoteID string) error { return gw.DeleteTask(ctx, remoteID) },
		func(t *storage.Task) { t.IsDeleted = true })
}

// flipFlag is the shared remote-then-local path for complete and delete: one
// remote call addressed by remote id, then a single flag change on the row.
func (s *Service) flipFlag(ctx context.Context, instanceID uuid.UUID, taskUUID uuid.UUID, op string,
	remote func(backend.Backend, string) error, apply func(*storage.Task)) error {

	gw, err := s.gateway(instanceID)
	if err != nil {
		return err
	}

	s.store.Lock()
	task, err := storage.GetTaskByID(ctx, s.store.DB(), taskUUID)
	s.store.Unlock()
	if err != nil {
		return err
	}
	if task == nil {
		utils.Debugf("skipping %s: task %s is not cached", op, taskUUID)
		return nil
	}

	if err := remote(gw, task.RemoteID); err != nil {
		return wrapBackend(op, err)
	}

	s.store.Lock()
	defer s.store.Unlock()
	db := s.store.DB()

	task, err = storage.GetTaskByID(ctx, db, taskUUID)
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}
	apply(task)
	return storage.UpdateTask(ctx, db, *task)
}

// RestoreTask undoes a completion or a deletion. A completed task is
// reopened remotely and keeps its row and remote id. A soft-deleted task no
// longer exists remotely, so it is recreated from the preserved row: the new
// remote task replaces the old row, under a fresh remote id. A missing row is
// fatal here, since there is nothing left to restore from.
func (s *Service) RestoreTask(ctx context.Context, instanceID uuid.UUID, taskUUID uuid.UUID) (*storage.Task, error) {
	gw, err := s.gateway(instanceID)
	if err != nil {
		return nil, err
	}

	s.store.Lock()
	db := s.store.DB()

	task, err := storage.GetTaskByID(ctx, db, taskUUID)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}
	if task == nil {
		s.store.Unlock()
		return nil, &NotFoundError{Entity: "Task", ID: taskUUID}
	}

	if !task.IsDeleted {
		remoteID := task.RemoteID
		s.store.Unlock()

		if !task.IsCompleted {
			return task, nil
		}
		if err := gw.ReopenTask(ctx, remoteID); err != nil {
			return nil, wrapBackend("task restore", err)
		}

		s.store.Lock()
		defer s.store.Unlock()
		db = s.store.DB()
		task, err = storage.GetTaskByID(ctx, db, taskUUID)
		if err != nil {
			return nil, err
		}
		if task == nil {
			return nil, &NotFoundError{Entity: "Task", ID: taskUUID}
		}
		task.IsCompleted = false
		if err := storage.UpdateTask(ctx, db, *task); err != nil {
			return nil, err
		}
		return task, nil
	}

	// Deleted remotely: recreate from the preserved row.
	projectRemoteID, err := storage.GetProjectRemoteID(ctx, db, task.ProjectUUID)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}
	var sectionRemoteID *string
	if task.SectionUUID != nil {
		sectionRemoteID, err = storage.GetSectionRemoteID(ctx, db, *task.SectionUUID)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
	}
	var parentRemoteID *string
	if task.ParentUUID != nil {
		parent, err := storage.GetTaskByID(ctx, db, *task.ParentUUID)
		if err != nil {
			s.store.Unlock()
			return nil, err
		}
		if parent != nil {
			rid := parent.RemoteID
			parentRemoteID = &rid
		}
	}
	s.store.Unlock()

	priority := task.Priority
	rt, err := gw.CreateTask(ctx, backend.CreateTaskArgs{
		Content:         task.Content,
		Description:     nonEmpty(task.Description),
		ProjectRemoteID: projectRemoteID,
		SectionRemoteID: sectionRemoteID,
		ParentRemoteID:  parentRemoteID,
		Priority:        &priority,
		DueDate:         task.DueDate,
		DueDatetime:     task.DueDatetime,
		Duration:        task.Duration,
	})
	if err != nil {
		return nil, wrapBackend("task restore", err)
	}

	s.store.Lock()
	defer s.store.Unlock()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// The old row is dead weight once the recreation succeeds; the new
	// remote id gets its own row through the shared upsert.
	if err := storage.DeleteTask(ctx, tx, taskUUID); err != nil {
		return nil, err
	}
	restored, err := upsertRemoteTask(ctx, tx, instanceID, rt, "task restore")
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return restored, nil
}

// cacheRemoteTask folds a backend task response into the cache inside one
// transaction.
func (s *Service) cacheRemoteTask(ctx context.Context, instanceID uuid.UUID, rt *backend.Task, op string) (*storage.Task, error) {
	s.store.Lock()
	defer s.store.Unlock()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	task, err := upsertRemoteTask(ctx, tx, instanceID, rt, op)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return task, nil
}

// upsertRemoteTask is the one routine that turns a backend task into a cached
// row: the project must resolve or the whole operation fails, section and
// parent resolve best-effort, and the (backend_uuid, remote_id) unique index
// makes a retried call land on the same row. Label links are rebuilt from the
// response.
func upsertRemoteTask(ctx context.Context, q storage.DBTX, instanceID uuid.UUID, rt *backend.Task, op string) (*storage.Task, error) {
	projectUUID, err := lookupProjectUUID(ctx, q, instanceID, rt.ProjectRemoteID, op)
	if err != nil {
		return nil, err
	}
	sectionUUID, err := lookupSectionUUID(ctx, q, instanceID, rt.SectionRemoteID)
	if err != nil {
		return nil, err
	}
	parentUUID, err := lookupParentTaskUUID(ctx, q, instanceID, rt.ParentRemoteID)
	if err != nil {
		return nil, err
	}

	if err := storage.UpsertTask(ctx, q, storage.Task{
		UUID:        backend.GenerateID(),
		BackendUUID: instanceID,
		RemoteID:    rt.RemoteID,
		Content:     rt.Content,
		Description: rt.Description,
		ProjectUUID: projectUUID,
		SectionUUID: sectionUUID,
		ParentUUID:  parentUUID,
		Priority:    rt.Priority,
		OrderIndex:  rt.OrderIndex,
		DueDate:     rt.DueDate,
		DueDatetime: rt.DueDatetime,
		IsRecurring: rt.IsRecurring,
		Deadline:    rt.Deadline,
		Duration:    rt.Duration,
		IsCompleted: rt.IsCompleted,
	}); err != nil {
		return nil, err
	}

	// Re-read through the remote id: on conflict the existing row keeps its
	// local uuid, and that uuid is what callers hold on to.
	task, err := storage.GetTaskByRemoteID(ctx, q, instanceID, rt.RemoteID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, &ResolutionError{Entity: "Task", RemoteID: rt.RemoteID, Op: op}
	}

	if err := relinkTaskLabels(ctx, q, instanceID, task.UUID, rt.Labels); err != nil {
		return nil, err
	}
	return task, nil
}

// relinkTaskLabels rebuilds a task's label links from the backend's label
// names. Names without a cached label row are skipped.
func relinkTaskLabels(ctx context.Context, q storage.DBTX, instanceID uuid.UUID, taskUUID uuid.UUID, names []string) error {
	if err := storage.UnlinkTaskLabels(ctx, q, taskUUID); err != nil {
		return err
	}
	for _, name := range names {
		label, err := storage.GetLabelByName(ctx, q, instanceID, name)
		if err != nil {
			return err
		}
		if label == nil {
			utils.Debugf("label %q on task %s is not cached; link skipped", name, taskUUID)
			continue
		}
		if err := storage.LinkTaskLabel(ctx, q, taskUUID, label.UUID); err != nil {
			return err
		}
	}
	return nil
}

// nonEmpty filters out empty strings; backends treat an empty description as
// "unset" and reject or mangle it on create.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
