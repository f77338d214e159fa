// Package task tracks in-flight long-running operations and drives their
// pause/resume in response to application lifecycle transitions.
package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the state of a background task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// AppState is the two-valued application lifecycle signal.
type AppState string

const (
	Foreground AppState = "foreground"
	Background AppState = "background"
)

// Controller is the capability a task owner provides for suspending and
// resuming its work. Both calls are awaited before the task status flips.
type Controller interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// Task is the registry's bookkeeping record for one operation.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"` // 0-100
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Listener observes task updates. At most one listener per task id.
type Listener func(Task)

type entry struct {
	task        Task
	ctrl        Controller
	listener    Listener
	listenerGen int // bumped on every Subscribe; stale unsubscribes no-op
}

// Registry tracks zero or more concurrently active tasks.
type Registry struct {
	mu       sync.Mutex
	tasks    map[string]*entry
	appState AppState
	log      *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		tasks:    make(map[string]*entry),
		appState: Foreground,
		log:      log,
	}
}

// Register creates a task in running state. Registering an id that already
// exists replaces the record but keeps any existing listener.
func (r *Registry) Register(id, name string, ctrl Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	e, ok := r.tasks[id]
	if !ok {
		e = &entry{}
		r.tasks[id] = e
	}
	e.task = Task{
		ID:        id,
		Name:      name,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.ctrl = ctrl
}

// UpdateProgress sets progress and auto-promotes to completed at 100.
func (r *Registry) UpdateProgress(id string, pct int) {
	r.mu.Lock()
	e, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.task.Progress = pct
	if pct >= 100 {
		e.task.Status = StatusCompleted
	}
	e.task.UpdatedAt = time.Now()
	snap, listener := e.task, e.listener
	r.mu.Unlock()

	if listener != nil {
		listener(snap)
	}
}

// UpdateStatus sets the task status directly.
func (r *Registry) UpdateStatus(id string, status Status) {
	r.mu.Lock()
	e, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.task.Status = status
	e.task.UpdatedAt = time.Now()
	snap, listener := e.task, e.listener
	r.mu.Unlock()

	if listener != nil {
		listener(snap)
	}
}

// Pause invokes the task's pause capability and flips it to paused.
// No-op unless the task is currently running.
func (r *Registry) Pause(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.tasks[id]
	if !ok || e.task.Status != StatusRunning {
		r.mu.Unlock()
		return nil
	}
	ctrl := e.ctrl
	r.mu.Unlock()

	if ctrl != nil {
		if err := ctrl.Pause(ctx); err != nil {
			return err
		}
	}
	r.UpdateStatus(id, StatusPaused)
	return nil
}

// Resume invokes the task's resume capability and flips it to running.
// No-op unless the task is currently paused.
func (r *Registry) Resume(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.tasks[id]
	if !ok || e.task.Status != StatusPaused {
		r.mu.Unlock()
		return nil
	}
	ctrl := e.ctrl
	r.mu.Unlock()

	if ctrl != nil {
		if err := ctrl.Resume(ctx); err != nil {
			return err
		}
	}
	r.UpdateStatus(id, StatusRunning)
	return nil
}

// Remove discards the task and its listener.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// Get returns a snapshot of one task.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

// List returns snapshots of all tracked tasks.
func (r *Registry) List() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.tasks))
	for _, e := range r.tasks {
		out = append(out, e.task)
	}
	return out
}

// Subscribe registers the single listener for a task id, replacing any
// previous one. The returned function removes the listener; it is a no-op
// once a newer subscription has replaced this one.
func (r *Registry) Subscribe(id string, fn Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[id]
	if !ok {
		e = &entry{task: Task{ID: id}}
		r.tasks[id] = e
	}
	e.listenerGen++
	gen := e.listenerGen
	e.listener = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if e, ok := r.tasks[id]; ok && e.listenerGen == gen {
			e.listener = nil
		}
	}
}

// SetAppState reacts to a foreground/background transition: backgrounding
// pauses every running task, foregrounding resumes every paused one.
// Redundant signals of the current state are no-ops. Per-task pause/resume
// runs concurrently; one task's failure never blocks the others.
func (r *Registry) SetAppState(ctx context.Context, state AppState) {
	r.mu.Lock()
	if r.appState == state {
		r.mu.Unlock()
		return
	}
	r.appState = state

	var ids []string
	want := StatusRunning
	if state == Foreground {
		want = StatusPaused
	}
	for id, e := range r.tasks {
		if e.task.Status == want {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			var err error
			if state == Background {
				err = r.Pause(gctx, id)
			} else {
				err = r.Resume(gctx, id)
			}
			if err != nil {
				// Logged, not propagated: the other tasks still settle.
				r.log.Error("lifecycle transition failed", "task_id", id, "state", state, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

// AppState returns the last observed lifecycle state.
func (r *Registry) AppState() AppState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appState
}
