package sync

import (
	"context"
	"testing"

	"github.com/dapp-whisperer/terminalist/internal/storage"
	"github.com/dapp-whisperer/terminalist/internal/testutil"
)

func TestCreateProjectCachesResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	project, err := f.svc.CreateProject(ctx, f.instanceID, "Side quests", nil, testutil.Ptr(true))
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if project.Name != "Side quests" || !project.IsFavorite {
		t.Errorf("cached project does not reflect the response: %+v", project)
	}
	if project.RemoteID == "" {
		t.Error("cached project should carry the remote id")
	}

	listed, err := f.svc.Projects(ctx, f.instanceID)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("expected 1 project, got %d", len(listed))
	}
}

func TestUpdateProjectRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateProject(ctx, f.instanceID, "Old name", nil, nil)
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	updated, err := f.svc.UpdateProject(ctx, f.instanceID, created.UUID, testutil.Ptr("New name"), nil)
	if err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	if updated.Name != "New name" {
		t.Errorf("rename not applied: %q", updated.Name)
	}
	if updated.UUID != created.UUID {
		t.Errorf("local id must survive a rename: %s vs %s", updated.UUID, created.UUID)
	}
}

func TestDeleteProjectCascadesTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	workUUID := testutil.SeedProject(t, f.store, f.instanceID, "rw-1", "Work", false)
	taskUUID := testutil.SeedTask(t, f.store, f.instanceID, workUUID, "t-1", "doomed", nil)

	if err := f.svc.DeleteProject(ctx, f.instanceID, workUUID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	if len(f.mock.DeletedProjectIDs) != 1 || f.mock.DeletedProjectIDs[0] != "rw-1" {
		t.Errorf("expected remote delete of rw-1, got %v", f.mock.DeletedProjectIDs)
	}
	project, err := storage.GetProjectByID(ctx, f.store.DB(), workUUID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if project != nil {
		t.Error("project row should be gone")
	}
	if f.task(t, taskUUID) != nil {
		t.Error("tasks of a deleted project should cascade away")
	}
}

func TestLabelLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	label, err := f.svc.CreateLabel(ctx, f.instanceID, "urgent", testutil.Ptr("red"))
	if err != nil {
		t.Fatalf("CreateLabel failed: %v", err)
	}
	if label.Name != "urgent" || label.Color != "red" {
		t.Errorf("cached label does not reflect the response: %+v", label)
	}

	renamed, err := f.svc.UpdateLabel(ctx, f.instanceID, label.UUID, testutil.Ptr("blocking"), nil)
	if err != nil {
		t.Fatalf("UpdateLabel failed: %v", err)
	}
	if renamed.Name != "blocking" || renamed.UUID != label.UUID {
		t.Errorf("rename not applied in place: %+v", renamed)
	}

	if err := f.svc.DeleteLabel(ctx, f.instanceID, label.UUID); err != nil {
		t.Fatalf("DeleteLabel failed: %v", err)
	}
	labels, err := f.svc.Labels(ctx, f.instanceID)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(labels) != 0 {
		t.Errorf("expected no labels left, got %d", len(labels))
	}
}
