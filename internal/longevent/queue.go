package longevent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/tilefilter/internal/logger"
)

// ErrStopped is returned for tasks queued on, or dropped by, a stopped queue.
var ErrStopped = errors.New("long event queue stopped")

// Status is the lifecycle state of a task
type Status int

const (
	StatusQueued Status = iota
	StatusRunning
	StatusDone
	StatusFailed
	StatusDropped
)

// String returns the string representation of a Status
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Task is one named unit of background work.
type Task struct {
	ID   uuid.UUID
	Name string

	fn     func() error
	onDone func(*Task)
	done   chan struct{}

	mu       sync.RWMutex
	status   Status
	err      error
	queued   time.Time
	started  time.Time
	finished time.Time
}

// Done is closed once the task has finished, failed or been dropped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the task's current state
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the error the task finished with
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Elapsed returns how long the task ran, or zero if it never started.
func (t *Task) Elapsed() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.started.IsZero() {
		return 0
	}
	if t.finished.IsZero() {
		return time.Since(t.started)
	}
	return t.finished.Sub(t.started)
}

func (t *Task) finish(status Status, err error) {
	t.mu.Lock()
	t.status = status
	t.err = err
	t.finished = time.Now()
	t.mu.Unlock()

	if t.onDone != nil {
		t.onDone(t)
	}
	close(t.done)
}

// Queue runs tasks one at a time, in submission order, on a single worker.
type Queue struct {
	mu      sync.Mutex
	pending []*Task
	current *Task
	started bool
	stopped bool

	wake     chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewQueue creates a queue. Call Start to begin processing.
func NewQueue() *Queue {
	return &Queue{
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.run()
}

// Stop ends the worker after the running task completes. Pending tasks are
// dropped with ErrStopped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	dropped := q.pending
	q.pending = nil
	close(q.stopChan)
	q.mu.Unlock()

	q.wg.Wait()
	for _, t := range dropped {
		t.finish(StatusDropped, ErrStopped)
	}
}

// Run starts the worker and blocks until ctx ends, then stops the queue.
func (q *Queue) Run(ctx context.Context) error {
	q.Start()
	<-ctx.Done()
	q.Stop()
	return nil
}

// Enqueue submits fn under name. onDone, if set, is called on the worker once
// the task has finished, before Done is closed.
func (q *Queue) Enqueue(name string, fn func() error, onDone func(*Task)) (*Task, error) {
	if fn == nil {
		return nil, fmt.Errorf("task %q has no function", name)
	}
	t := &Task{
		ID:     uuid.New(),
		Name:   name,
		fn:     fn,
		onDone: onDone,
		done:   make(chan struct{}),
		status: StatusQueued,
		queued: time.Now(),
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil, ErrStopped
	}
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t, nil
}

// Pending returns the number of tasks waiting to run
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Current returns the running task, or nil.
func (q *Queue) Current() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// Busy reports whether a task is running or waiting.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current != nil || len(q.pending) > 0
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		t := q.next()
		if t == nil {
			select {
			case <-q.wake:
				continue
			case <-q.stopChan:
				return
			}
		}
		q.execute(t)
	}
}

func (q *Queue) next() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || len(q.pending) == 0 {
		return nil
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	q.current = t
	return t
}

func (q *Queue) execute(t *Task) {
	log := logger.Component("longevent")

	t.mu.Lock()
	t.status = StatusRunning
	t.started = time.Now()
	t.mu.Unlock()

	log.Debug("task started", "task", t.Name, "id", t.ID)
	err := safeCall(t.fn)

	q.mu.Lock()
	q.current = nil
	q.mu.Unlock()

	if err != nil {
		log.Warn("task failed", "task", t.Name, "id", t.ID, "error", err)
		t.finish(StatusFailed, err)
		return
	}
	log.Debug("task done", "task", t.Name, "id", t.ID, "elapsed", t.Elapsed())
	t.finish(StatusDone, nil)
}

// safeCall converts a panic in fn into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn()
}
