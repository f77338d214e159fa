package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
)

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeController records pause/resume invocations.
type fakeController struct {
	mu        sync.Mutex
	pauses    int
	resumes   int
	pauseErr  error
	resumeErr error
}

func (c *fakeController) Pause(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauses++
	return c.pauseErr
}

func (c *fakeController) Resume(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumes++
	return c.resumeErr
}

func (c *fakeController) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauses, c.resumes
}

func TestRegistry_RegisterStartsRunning(t *testing.T) {
	r := newTestRegistry()
	r.Register("t1", "Document 1", &fakeController{})

	task, ok := r.Get("t1")
	if !ok {
		t.Fatal("expected task to exist")
	}
	if task.Status != StatusRunning {
		t.Errorf("expected running, got %q", task.Status)
	}
	if task.Progress != 0 {
		t.Errorf("expected progress 0, got %d", task.Progress)
	}
}

func TestRegistry_UpdateProgressAutoCompletes(t *testing.T) {
	r := newTestRegistry()
	r.Register("t1", "doc", &fakeController{})

	r.UpdateProgress("t1", 40)
	task, _ := r.Get("t1")
	if task.Status != StatusRunning || task.Progress != 40 {
		t.Errorf("expected running/40, got %q/%d", task.Status, task.Progress)
	}

	r.UpdateProgress("t1", 100)
	task, _ = r.Get("t1")
	if task.Status != StatusCompleted {
		t.Errorf("expected auto-completion at 100, got %q", task.Status)
	}
}

func TestRegistry_PauseResumeInvokeController(t *testing.T) {
	r := newTestRegistry()
	ctrl := &fakeController{}
	r.Register("t1", "doc", ctrl)

	if err := r.Pause(context.Background(), "t1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	task, _ := r.Get("t1")
	if task.Status != StatusPaused {
		t.Errorf("expected paused, got %q", task.Status)
	}

	if err := r.Resume(context.Background(), "t1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	task, _ = r.Get("t1")
	if task.Status != StatusRunning {
		t.Errorf("expected running, got %q", task.Status)
	}

	pauses, resumes := ctrl.counts()
	if pauses != 1 || resumes != 1 {
		t.Errorf("expected 1 pause and 1 resume, got %d/%d", pauses, resumes)
	}
}

func TestRegistry_PauseWrongStateIsNoop(t *testing.T) {
	r := newTestRegistry()
	ctrl := &fakeController{}
	r.Register("t1", "doc", ctrl)
	r.UpdateStatus("t1", StatusPaused)

	r.Pause(context.Background(), "t1")
	if pauses, _ := ctrl.counts(); pauses != 0 {
		t.Errorf("expected pause no-op on paused task, controller called %d times", pauses)
	}

	r.UpdateStatus("t1", StatusRunning)
	r.Resume(context.Background(), "t1")
	if _, resumes := ctrl.counts(); resumes != 0 {
		t.Errorf("expected resume no-op on running task, controller called %d times", resumes)
	}
}

func TestRegistry_PauseUnknownIDIsNoop(t *testing.T) {
	r := newTestRegistry()
	if err := r.Pause(context.Background(), "ghost"); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestRegistry_SubscribeReplacesListener(t *testing.T) {
	r := newTestRegistry()
	r.Register("t1", "doc", &fakeController{})

	var first, second atomic.Int32
	r.Subscribe("t1", func(Task) { first.Add(1) })
	unsub := r.Subscribe("t1", func(Task) { second.Add(1) })

	r.UpdateProgress("t1", 10)
	if first.Load() != 0 {
		t.Error("expected first listener to be replaced")
	}
	if second.Load() != 1 {
		t.Errorf("expected second listener to fire once, got %d", second.Load())
	}

	unsub()
	r.UpdateProgress("t1", 20)
	if second.Load() != 1 {
		t.Error("expected no delivery after unsubscribe")
	}
}

func TestRegistry_StaleUnsubscribeKeepsReplacement(t *testing.T) {
	r := newTestRegistry()
	r.Register("t1", "doc", &fakeController{})

	var first, second atomic.Int32
	staleUnsub := r.Subscribe("t1", func(Task) { first.Add(1) })
	r.Subscribe("t1", func(Task) { second.Add(1) })

	staleUnsub()
	r.UpdateProgress("t1", 10)
	if second.Load() != 1 {
		t.Errorf("expected replacement listener to survive stale unsubscribe, got %d deliveries", second.Load())
	}
	if first.Load() != 0 {
		t.Errorf("expected replaced listener silent, got %d deliveries", first.Load())
	}
}

func TestRegistry_RegisterKeepsListener(t *testing.T) {
	r := newTestRegistry()
	var calls atomic.Int32
	r.Subscribe("t1", func(Task) { calls.Add(1) })
	r.Register("t1", "doc", &fakeController{})
	r.UpdateProgress("t1", 5)
	if calls.Load() != 1 {
		t.Errorf("expected listener to survive registration, got %d calls", calls.Load())
	}
}

func TestRegistry_RemoveDiscardsTask(t *testing.T) {
	r := newTestRegistry()
	r.Register("t1", "doc", &fakeController{})
	r.Remove("t1")
	if _, ok := r.Get("t1"); ok {
		t.Error("expected task removed")
	}
}

func TestRegistry_BackgroundPausesAllRunning(t *testing.T) {
	r := newTestRegistry()
	ctrls := map[string]*fakeController{}
	for _, id := range []string{"a", "b", "c"} {
		ctrls[id] = &fakeController{}
		r.Register(id, id, ctrls[id])
	}
	r.UpdateStatus("c", StatusPaused) // already paused, must be untouched

	r.SetAppState(context.Background(), Background)

	for _, id := range []string{"a", "b"} {
		task, _ := r.Get(id)
		if task.Status != StatusPaused {
			t.Errorf("task %s: expected paused, got %q", id, task.Status)
		}
	}
	if pauses, _ := ctrls["c"].counts(); pauses != 0 {
		t.Error("expected already-paused task to be untouched")
	}
}

func TestRegistry_ForegroundResumesAllPaused(t *testing.T) {
	r := newTestRegistry()
	ctrls := map[string]*fakeController{}
	for _, id := range []string{"a", "b"} {
		ctrls[id] = &fakeController{}
		r.Register(id, id, ctrls[id])
	}
	r.SetAppState(context.Background(), Background)
	r.SetAppState(context.Background(), Foreground)

	for _, id := range []string{"a", "b"} {
		task, _ := r.Get(id)
		if task.Status != StatusRunning {
			t.Errorf("task %s: expected running after foreground, got %q", id, task.Status)
		}
		if _, resumes := ctrls[id].counts(); resumes != 1 {
			t.Errorf("task %s: expected 1 resume, got %d", id, resumes)
		}
	}
}

func TestRegistry_RedundantAppStateIsNoop(t *testing.T) {
	r := newTestRegistry()
	ctrl := &fakeController{}
	r.Register("a", "a", ctrl)

	r.SetAppState(context.Background(), Foreground) // already foreground
	if pauses, resumes := ctrl.counts(); pauses != 0 || resumes != 0 {
		t.Errorf("expected redundant signal to be a no-op, got %d/%d", pauses, resumes)
	}
}

func TestRegistry_OneFailureDoesNotBlockOthers(t *testing.T) {
	r := newTestRegistry()
	bad := &fakeController{pauseErr: errors.New("stuck")}
	good := &fakeController{}
	r.Register("bad", "bad", bad)
	r.Register("good", "good", good)

	r.SetAppState(context.Background(), Background)

	task, _ := r.Get("good")
	if task.Status != StatusPaused {
		t.Errorf("expected healthy task paused despite sibling failure, got %q", task.Status)
	}
	task, _ = r.Get("bad")
	if task.Status != StatusRunning {
		t.Errorf("expected failed pause to leave task running, got %q", task.Status)
	}
}
