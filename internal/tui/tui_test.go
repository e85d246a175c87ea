package tui_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/backend"
	"github.com/dapp-whisperer/terminalist/internal/runner"
	"github.com/dapp-whisperer/terminalist/internal/storage"
	tasksync "github.com/dapp-whisperer/terminalist/internal/sync"
	"github.com/dapp-whisperer/terminalist/internal/testutil"
	"github.com/dapp-whisperer/terminalist/internal/tui"
)

// sendKeyAndWait sends a key message and waits briefly for processing.
func sendKeyAndWait(tm *teatest.TestModel, key tea.KeyMsg) {
	tm.Send(key)
	time.Sleep(20 * time.Millisecond)
}

func sendRunesAndWait(tm *teatest.TestModel, runes []rune) {
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyRunes, Runes: runes})
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return out
}

// newTestTUI wires a model over an in-memory cache with two projects and a
// few tasks already synced.
func newTestTUI(t *testing.T) (*teatest.TestModel, *testutil.MockBackend, uuid.UUID) {
	t.Helper()
	store := testutil.OpenStore(t)
	instanceID := testutil.SeedInstance(t, store)
	workUUID := testutil.SeedProject(t, store, instanceID, "rw-1", "Work", false)
	testutil.SeedProject(t, store, instanceID, "inbox-1", "Inbox", true)
	testutil.SeedTask(t, store, instanceID, workUUID, "t-1", "Review PR", func(task *storage.Task) {
		task.Priority = 3
	})
	testutil.SeedTask(t, store, instanceID, workUUID, "t-2", "Write tests", nil)

	mock := &testutil.MockBackend{}
	registry := backend.NewRegistry()
	registry.Register(instanceID, mock)

	svc := tasksync.NewService(store, registry)
	run := runner.New(svc, 1)
	t.Cleanup(run.Stop)

	model := tui.New(run, svc, instanceID, runner.ViewAll)
	tm := teatest.NewTestModel(t, model, teatest.WithInitialTermSize(80, 24))
	return tm, mock, instanceID
}

func TestTUIShowsCachedTasks(t *testing.T) {
	tm, _, _ := newTestTUI(t)

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Review PR"))
	}, teatest.WithDuration(3*time.Second))

	sendRunesAndWait(tm, []rune{'q'})

	out := readAll(t, tm.FinalOutput(t, teatest.WithFinalTimeout(time.Second)))
	if !bytes.Contains(out, []byte("Work")) {
		t.Error("expected the Work project to be visible")
	}
	if !bytes.Contains(out, []byte("Write tests")) {
		t.Error("expected all tasks of the view to be visible")
	}
}

func TestTUICompleteTask(t *testing.T) {
	tm, mock, _ := newTestTUI(t)

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Review PR"))
	}, teatest.WithDuration(3*time.Second))

	sendRunesAndWait(tm, []rune{'c'})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("complete done"))
	}, teatest.WithDuration(3*time.Second))

	sendRunesAndWait(tm, []rune{'q'})
	tm.WaitFinished(t, teatest.WithFinalTimeout(time.Second))

	mock.Lock()
	defer mock.Unlock()
	if len(mock.CompletedIDs) != 1 {
		t.Errorf("expected one remote complete, got %v", mock.CompletedIDs)
	}
}

func TestTUIDeleteNeedsConfirmation(t *testing.T) {
	tm, mock, _ := newTestTUI(t)

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Review PR"))
	}, teatest.WithDuration(3*time.Second))

	// d then n: nothing deleted.
	sendRunesAndWait(tm, []rune{'d'})
	sendRunesAndWait(tm, []rune{'n'})

	// d then y: delete goes through.
	sendRunesAndWait(tm, []rune{'d'})
	sendRunesAndWait(tm, []rune{'y'})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("delete done"))
	}, teatest.WithDuration(3*time.Second))

	sendRunesAndWait(tm, []rune{'q'})
	tm.WaitFinished(t, teatest.WithFinalTimeout(time.Second))

	mock.Lock()
	defer mock.Unlock()
	if len(mock.DeletedTaskIDs) != 1 {
		t.Errorf("expected exactly one remote delete, got %v", mock.DeletedTaskIDs)
	}
}

func TestTUIPriorityCycles(t *testing.T) {
	tm, _, _ := newTestTUI(t)

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Review PR"))
	}, teatest.WithDuration(3*time.Second))

	// First task has priority 3; one cycle lands on 4.
	sendRunesAndWait(tm, []rune{'p'})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("priority 4 done"))
	}, teatest.WithDuration(3*time.Second))

	sendRunesAndWait(tm, []rune{'q'})
	tm.WaitFinished(t, teatest.WithFinalTimeout(time.Second))
}

func TestTUISearchFiltersTasks(t *testing.T) {
	tm, _, _ := newTestTUI(t)

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Write tests"))
	}, teatest.WithDuration(3*time.Second))

	sendRunesAndWait(tm, []rune{'/'})
	for _, r := range "review" {
		tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("1 matches"))
	}, teatest.WithDuration(3*time.Second))

	sendRunesAndWait(tm, []rune{'q'})
	tm.WaitFinished(t, teatest.WithFinalTimeout(time.Second))
}

func TestTUIHelpScreen(t *testing.T) {
	tm, _, _ := newTestTUI(t)

	sendRunesAndWait(tm, []rune{'?'})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("terminalist keys"))
	}, teatest.WithDuration(3*time.Second))

	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEsc})
	sendRunesAndWait(tm, []rune{'q'})
	tm.WaitFinished(t, teatest.WithFinalTimeout(time.Second))
}
