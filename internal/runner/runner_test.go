package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/backend"
	tasksync "github.com/dapp-whisperer/terminalist/internal/sync"
	"github.com/dapp-whisperer/terminalist/internal/testutil"
)

func newRunner(t *testing.T) (*Runner, *testutil.MockBackend, uuid.UUID) {
	t.Helper()
	store := testutil.OpenStore(t)
	instanceID := testutil.SeedInstance(t, store)
	mock := &testutil.MockBackend{}
	registry := backend.NewRegistry()
	registry.Register(instanceID, mock)
	r := New(tasksync.NewService(store, registry), 2)
	t.Cleanup(r.Stop)
	return r, mock, instanceID
}

func waitEvent(t *testing.T, r *Runner) Event {
	t.Helper()
	select {
	case ev := <-r.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a runner event")
		return nil
	}
}

func TestSyncReportsCompletion(t *testing.T) {
	r, mock, instanceID := newRunner(t)
	mock.Projects = []backend.Project{{RemoteID: "rw-1", Name: "Work"}}
	mock.Tasks = []backend.Task{{RemoteID: "t-1", Content: "hello", ProjectRemoteID: "rw-1", Priority: 1}}

	r.Sync(instanceID)

	ev := waitEvent(t, r)
	done, ok := ev.(SyncCompleted)
	if !ok {
		t.Fatalf("expected SyncCompleted, got %T: %+v", ev, ev)
	}
	if done.Stats.Projects != 1 || done.Stats.Tasks != 1 {
		t.Errorf("unexpected stats: %+v", done.Stats)
	}
}

func TestSyncReportsFailure(t *testing.T) {
	r, mock, instanceID := newRunner(t)
	mock.Err = backend.Errorf("boom")

	r.Sync(instanceID)

	ev := waitEvent(t, r)
	failed, ok := ev.(SyncFailed)
	if !ok {
		t.Fatalf("expected SyncFailed, got %T", ev)
	}
	if failed.Err == nil {
		t.Error("failure event should carry the error")
	}
}

func TestLoadTasksDeliversViewAndProjects(t *testing.T) {
	r, mock, instanceID := newRunner(t)
	mock.Projects = []backend.Project{{RemoteID: "rw-1", Name: "Work"}}
	mock.Labels = []backend.Label{{RemoteID: "l-1", Name: "errand"}}
	mock.Tasks = []backend.Task{{RemoteID: "t-1", Content: "listed", ProjectRemoteID: "rw-1", Priority: 1}}

	r.Sync(instanceID)
	if _, ok := waitEvent(t, r).(SyncCompleted); !ok {
		t.Fatal("sync should complete first")
	}

	r.LoadTasks(instanceID, ViewAll, uuid.Nil)
	ev := waitEvent(t, r)
	loaded, ok := ev.(DataLoaded)
	if !ok {
		t.Fatalf("expected DataLoaded, got %T", ev)
	}
	if len(loaded.Tasks) != 1 || loaded.Tasks[0].Content != "listed" {
		t.Errorf("unexpected tasks: %+v", loaded.Tasks)
	}
	if len(loaded.Projects) != 1 {
		t.Errorf("expected project list alongside tasks, got %+v", loaded.Projects)
	}
	if len(loaded.Labels) != 1 || loaded.Labels[0].Name != "errand" {
		t.Errorf("expected label list alongside tasks, got %+v", loaded.Labels)
	}
}

func TestSearchDeliversMatches(t *testing.T) {
	r, mock, instanceID := newRunner(t)
	mock.Projects = []backend.Project{{RemoteID: "rw-1", Name: "Work"}}
	mock.Tasks = []backend.Task{
		{RemoteID: "t-1", Content: "buy milk", ProjectRemoteID: "rw-1", Priority: 1},
		{RemoteID: "t-2", Content: "walk dog", ProjectRemoteID: "rw-1", Priority: 1},
	}

	r.Sync(instanceID)
	if _, ok := waitEvent(t, r).(SyncCompleted); !ok {
		t.Fatal("sync should complete first")
	}

	r.Search(instanceID, "milk")
	ev := waitEvent(t, r)
	results, ok := ev.(SearchResultsLoaded)
	if !ok {
		t.Fatalf("expected SearchResultsLoaded, got %T", ev)
	}
	if results.Query != "milk" || len(results.Tasks) != 1 {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestDoReportsOutcome(t *testing.T) {
	r, _, _ := newRunner(t)

	r.Do("succeed", func(ctx context.Context) error { return nil })
	if ev := waitEvent(t, r); ev != (OpCompleted{Desc: "succeed"}) {
		t.Errorf("expected OpCompleted, got %+v", ev)
	}

	wantErr := errors.New("nope")
	r.Do("fail", func(ctx context.Context) error { return wantErr })
	ev := waitEvent(t, r)
	failed, ok := ev.(OpFailed)
	if !ok {
		t.Fatalf("expected OpFailed, got %T", ev)
	}
	if failed.Desc != "fail" || !errors.Is(failed.Err, wantErr) {
		t.Errorf("unexpected failure event: %+v", failed)
	}
}

func TestStopIsIdempotentAndClosesEvents(t *testing.T) {
	store := testutil.OpenStore(t)
	instanceID := testutil.SeedInstance(t, store)
	registry := backend.NewRegistry()
	registry.Register(instanceID, &testutil.MockBackend{})
	r := New(tasksync.NewService(store, registry), 1)

	r.Stop()
	r.Stop()

	if _, open := <-r.Events(); open {
		t.Error("event channel should be closed after Stop")
	}
}
