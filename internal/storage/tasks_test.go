package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) (*Store, uuid.UUID, uuid.UUID) {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	instanceID := uuid.New()
	if err := InsertBackendInstance(ctx, store.DB(), BackendInstance{
		UUID: instanceID, Kind: "mock", Name: "test", IsEnabled: true,
	}); err != nil {
		t.Fatalf("failed to insert instance: %v", err)
	}

	projectUUID := uuid.New()
	if err := UpsertProject(ctx, store.DB(), Project{
		UUID: projectUUID, BackendUUID: instanceID, RemoteID: "p-1", Name: "Work",
	}); err != nil {
		t.Fatalf("failed to insert project: %v", err)
	}
	return store, instanceID, projectUUID
}

func insertTask(t *testing.T, store *Store, instanceID, projectUUID uuid.UUID, remoteID, content string, dueDate *string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := UpsertTask(context.Background(), store.DB(), Task{
		UUID: id, BackendUUID: instanceID, RemoteID: remoteID,
		Content: content, ProjectUUID: projectUUID, Priority: 1, DueDate: dueDate,
	}); err != nil {
		t.Fatalf("failed to insert task %s: %v", content, err)
	}
	return id
}

func strp(s string) *string { return &s }

func TestUpsertTaskIsIdempotentPerRemoteID(t *testing.T) {
	store, instanceID, projectUUID := openTestStore(t)
	ctx := context.Background()

	first := insertTask(t, store, instanceID, projectUUID, "t-1", "version one", nil)

	// Same remote id, different local uuid and content: the existing row
	// wins the identity, the new payload wins the fields.
	if err := UpsertTask(ctx, store.DB(), Task{
		UUID: uuid.New(), BackendUUID: instanceID, RemoteID: "t-1",
		Content: "version two", ProjectUUID: projectUUID, Priority: 2,
	}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	tasks, err := GetTasksForProject(ctx, store.DB(), projectUUID)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one row, got %d", len(tasks))
	}
	if tasks[0].UUID != first {
		t.Errorf("local uuid should be preserved on conflict: %s vs %s", tasks[0].UUID, first)
	}
	if tasks[0].Content != "version two" || tasks[0].Priority != 2 {
		t.Errorf("fields should reflect the second payload: %+v", tasks[0])
	}
}

func TestTodayViewOverdueStrictlyFirst(t *testing.T) {
	store, instanceID, projectUUID := openTestStore(t)
	ctx := context.Background()
	today := "2026-08-30"

	insertTask(t, store, instanceID, projectUUID, "t-1", "due today", strp(today))
	insertTask(t, store, instanceID, projectUUID, "t-2", "long overdue", strp("2026-08-01"))
	insertTask(t, store, instanceID, projectUUID, "t-3", "slightly overdue", strp("2026-08-29"))
	insertTask(t, store, instanceID, projectUUID, "t-4", "due later", strp("2026-09-15"))
	insertTask(t, store, instanceID, projectUUID, "t-5", "undated", nil)

	tasks, err := GetTasksForToday(ctx, store.DB(), instanceID, today)
	if err != nil {
		t.Fatalf("today view failed: %v", err)
	}

	var got []string
	for _, task := range tasks {
		got = append(got, task.Content)
	}
	want := []string{"long overdue", "slightly overdue", "due today"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestTomorrowViewExactDateOnly(t *testing.T) {
	store, instanceID, projectUUID := openTestStore(t)
	ctx := context.Background()

	insertTask(t, store, instanceID, projectUUID, "t-1", "tomorrow", strp("2026-08-31"))
	insertTask(t, store, instanceID, projectUUID, "t-2", "today", strp("2026-08-30"))
	insertTask(t, store, instanceID, projectUUID, "t-3", "day after", strp("2026-09-01"))

	tasks, err := GetTasksForTomorrow(ctx, store.DB(), instanceID, "2026-08-31")
	if err != nil {
		t.Fatalf("tomorrow view failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Content != "tomorrow" {
		t.Errorf("expected only the task due tomorrow, got %+v", tasks)
	}
}

func TestUpcomingViewSegmentsAndHorizon(t *testing.T) {
	store, instanceID, projectUUID := openTestStore(t)
	ctx := context.Background()
	today := "2026-08-30"
	horizon := "2026-11-28" // today + 90

	insertTask(t, store, instanceID, projectUUID, "t-1", "overdue", strp("2026-08-20"))
	insertTask(t, store, instanceID, projectUUID, "t-2", "today", strp(today))
	insertTask(t, store, instanceID, projectUUID, "t-3", "next week", strp("2026-09-05"))
	insertTask(t, store, instanceID, projectUUID, "t-4", "on the horizon", strp(horizon))
	insertTask(t, store, instanceID, projectUUID, "t-5", "beyond", strp("2027-01-01"))

	tasks, err := GetTasksForUpcoming(ctx, store.DB(), instanceID, today, horizon)
	if err != nil {
		t.Fatalf("upcoming view failed: %v", err)
	}

	var got []string
	for _, task := range tasks {
		got = append(got, task.Content)
	}
	// Overdue, then today, then future; the horizon itself is excluded and
	// the today task appears exactly once.
	want := []string{"overdue", "today", "next week"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestCompletedAndDeletedExcludedFromDateViews(t *testing.T) {
	store, instanceID, projectUUID := openTestStore(t)
	ctx := context.Background()
	today := "2026-08-30"

	done := insertTask(t, store, instanceID, projectUUID, "t-1", "done", strp(today))
	gone := insertTask(t, store, instanceID, projectUUID, "t-2", "gone", strp(today))
	insertTask(t, store, instanceID, projectUUID, "t-3", "open", strp(today))

	for _, pair := range []struct {
		id   uuid.UUID
		mut  func(*Task)
		name string
	}{
		{done, func(task *Task) { task.IsCompleted = true }, "done"},
		{gone, func(task *Task) { task.IsDeleted = true }, "gone"},
	} {
		task, err := GetTaskByID(ctx, store.DB(), pair.id)
		if err != nil || task == nil {
			t.Fatalf("failed to load %s: %v", pair.name, err)
		}
		pair.mut(task)
		if err := UpdateTask(ctx, store.DB(), *task); err != nil {
			t.Fatalf("failed to flag %s: %v", pair.name, err)
		}
	}

	tasks, err := GetTasksForToday(ctx, store.DB(), instanceID, today)
	if err != nil {
		t.Fatalf("today view failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Content != "open" {
		t.Errorf("only the open task should show, got %+v", tasks)
	}
}

func TestSearchTasksCaseInsensitive(t *testing.T) {
	store, instanceID, projectUUID := openTestStore(t)
	ctx := context.Background()

	insertTask(t, store, instanceID, projectUUID, "t-1", "Buy MILK at the store", nil)
	insertTask(t, store, instanceID, projectUUID, "t-2", "walk the dog", nil)

	tasks, err := SearchTasks(ctx, store.DB(), instanceID, "milk")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].RemoteID != "t-1" {
		t.Errorf("expected the milk task, got %+v", tasks)
	}

	none, err := SearchTasks(ctx, store.DB(), instanceID, "groceries")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no matches, got %+v", none)
	}
}

func TestDeleteTasksNotInSparesSoftDeleted(t *testing.T) {
	store, instanceID, projectUUID := openTestStore(t)
	ctx := context.Background()

	insertTask(t, store, instanceID, projectUUID, "t-1", "kept", nil)
	stale := insertTask(t, store, instanceID, projectUUID, "t-2", "stale", nil)
	soft := insertTask(t, store, instanceID, projectUUID, "t-3", "soft deleted", nil)

	task, err := GetTaskByID(ctx, store.DB(), soft)
	if err != nil || task == nil {
		t.Fatalf("failed to load soft-deleted task: %v", err)
	}
	task.IsDeleted = true
	if err := UpdateTask(ctx, store.DB(), *task); err != nil {
		t.Fatalf("failed to flag task: %v", err)
	}

	if err := DeleteTasksNotIn(ctx, store.DB(), instanceID, []string{"t-1"}); err != nil {
		t.Fatalf("prune failed: %v", err)
	}

	if task, _ := GetTaskByID(ctx, store.DB(), stale); task != nil {
		t.Error("stale task should be pruned")
	}
	if task, _ := GetTaskByID(ctx, store.DB(), soft); task == nil {
		t.Error("soft-deleted task must survive pruning")
	}
}

func TestProjectCascadeDeletesTasks(t *testing.T) {
	store, instanceID, projectUUID := openTestStore(t)
	ctx := context.Background()

	taskUUID := insertTask(t, store, instanceID, projectUUID, "t-1", "cascades", nil)

	if err := DeleteProject(ctx, store.DB(), projectUUID); err != nil {
		t.Fatalf("project delete failed: %v", err)
	}
	if task, _ := GetTaskByID(ctx, store.DB(), taskUUID); task != nil {
		t.Error("tasks should cascade with their project")
	}
}
