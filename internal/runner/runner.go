// Package runner executes sync and mutation work on background workers and
// reports outcomes on a single event channel. The TUI stays responsive: it
// enqueues work, keeps drawing, and folds events in as they arrive.
package runner

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dapp-whisperer/terminalist/internal/storage"
	tasksync "github.com/dapp-whisperer/terminalist/internal/sync"
	"github.com/dapp-whisperer/terminalist/internal/utils"
)

// View selects which task listing a load request should produce.
type View int

const (
	ViewAll View = iota
	ViewToday
	ViewTomorrow
	ViewUpcoming
	ViewProject
)

// Event is the interface all runner events implement. Consumers switch on
// the concrete type.
type Event interface{ runnerEvent() }

// SyncCompleted reports a finished full sync.
type SyncCompleted struct {
	InstanceID uuid.UUID
	Stats      tasksync.Stats
}

// SyncFailed reports a failed full sync.
type SyncFailed struct {
	InstanceID uuid.UUID
	Err        error
}

// DataLoaded carries a fresh task listing plus the projects, labels and
// sections the view needs for context.
type DataLoaded struct {
	InstanceID uuid.UUID
	View       View
	Tasks      []storage.Task
	Projects   []storage.Project
	Labels     []storage.Label
	Sections   []storage.Section
}

// SearchResultsLoaded carries the matches for one search query.
type SearchResultsLoaded struct {
	InstanceID uuid.UUID
	Query      string
	Tasks      []storage.Task
}

// OpCompleted reports a finished mutation, named for display.
type OpCompleted struct {
	Desc string
}

// OpFailed reports a failed mutation.
type OpFailed struct {
	Desc string
	Err  error
}

func (SyncCompleted) runnerEvent()       {}
func (SyncFailed) runnerEvent()          {}
func (DataLoaded) runnerEvent()          {}
func (SearchResultsLoaded) runnerEvent() {}
func (OpCompleted) runnerEvent()         {}
func (OpFailed) runnerEvent()            {}

// Runner owns the worker pool. Jobs run in submission order per worker but
// across workers complete in any order; consumers must not assume ordering.
type Runner struct {
	svc    *tasksync.Service
	events chan Event
	jobs   chan func(context.Context)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New creates a runner with the given number of workers. One worker gives
// strict job ordering; more trade ordering for throughput.
func New(svc *tasksync.Service, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		svc:    svc,
		events: make(chan Event, 64),
		jobs:   make(chan func(context.Context), 64),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case job, ok := <-r.jobs:
			if !ok {
				return
			}
			job(r.ctx)
		}
	}
}

// Events returns the channel the runner reports on.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Stop cancels in-flight work and waits for the workers to drain. The event
// channel is closed once the last worker exits.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	close(r.events)
}

// submit enqueues a job unless the runner is stopped.
func (r *Runner) submit(job func(context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		utils.Debugf("runner stopped; job dropped")
		return
	}
	r.jobs <- job
}

func (r *Runner) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

// Sync enqueues a full sync of one instance.
func (r *Runner) Sync(instanceID uuid.UUID) {
	r.submit(func(ctx context.Context) {
		stats, err := r.svc.FullSync(ctx, instanceID)
		if err != nil {
			r.emit(SyncFailed{InstanceID: instanceID, Err: err})
			return
		}
		r.emit(SyncCompleted{InstanceID: instanceID, Stats: *stats})
	})
}

// LoadTasks enqueues a cache read for the given view. For ViewProject,
// projectUUID selects the project; it is ignored otherwise.
func (r *Runner) LoadTasks(instanceID uuid.UUID, view View, projectUUID uuid.UUID) {
	r.submit(func(ctx context.Context) {
		var tasks []storage.Task
		var err error
		switch view {
		case ViewToday:
			tasks, err = r.svc.TodayTasks(ctx, instanceID)
		case ViewTomorrow:
			tasks, err = r.svc.TomorrowTasks(ctx, instanceID)
		case ViewUpcoming:
			tasks, err = r.svc.UpcomingTasks(ctx, instanceID)
		case ViewProject:
			tasks, err = r.svc.TasksForProject(ctx, projectUUID)
		default:
			tasks, err = r.svc.AllTasks(ctx, instanceID)
		}
		if err != nil {
			r.emit(OpFailed{Desc: "load tasks", Err: err})
			return
		}

		projects, err := r.svc.Projects(ctx, instanceID)
		if err != nil {
			r.emit(OpFailed{Desc: "load projects", Err: err})
			return
		}
		labels, err := r.svc.Labels(ctx, instanceID)
		if err != nil {
			r.emit(OpFailed{Desc: "load labels", Err: err})
			return
		}
		sections, err := r.svc.Sections(ctx, instanceID)
		if err != nil {
			r.emit(OpFailed{Desc: "load sections", Err: err})
			return
		}
		r.emit(DataLoaded{
			InstanceID: instanceID,
			View:       view,
			Tasks:      tasks,
			Projects:   projects,
			Labels:     labels,
			Sections:   sections,
		})
	})
}

// Search enqueues a content search over the cache.
func (r *Runner) Search(instanceID uuid.UUID, query string) {
	r.submit(func(ctx context.Context) {
		tasks, err := r.svc.SearchTasks(ctx, instanceID, query)
		if err != nil {
			r.emit(OpFailed{Desc: "search", Err: err})
			return
		}
		r.emit(SearchResultsLoaded{InstanceID: instanceID, Query: query, Tasks: tasks})
	})
}

// Do enqueues an arbitrary mutation, reported under desc.
func (r *Runner) Do(desc string, fn func(context.Context) error) {
	r.submit(func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			r.emit(OpFailed{Desc: desc, Err: err})
			return
		}
		r.emit(OpCompleted{Desc: desc})
	})
}
