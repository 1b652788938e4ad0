package longevent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitTask(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("task %q did not finish", task.Name)
	}
	return err
}

func TestQueueRunsInOrder(t *testing.T) {
	q := NewQueue()
	q.Start()
	defer q.Stop()

	var mu sync.Mutex
	var order []string
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	var last *Task
	for _, name := range []string{"prefilter", "filter", "random"} {
		task, err := q.Enqueue(name, record(name), nil)
		if err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
		last = task
	}
	if err := waitTask(t, last); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"prefilter", "filter", "random"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestTaskStatusAndCallback(t *testing.T) {
	q := NewQueue()
	q.Start()
	defer q.Stop()

	boom := errors.New("boom")
	var called Status
	task, err := q.Enqueue("failing", func() error { return boom }, func(task *Task) {
		called = task.Status()
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := waitTask(t, task); !errors.Is(err, boom) {
		t.Errorf("Wait() = %v, want %v", err, boom)
	}
	if task.Status() != StatusFailed {
		t.Errorf("Status() = %s, want failed", task.Status())
	}
	if called != StatusFailed {
		t.Errorf("callback saw %s, want failed", called)
	}
	if task.ID.String() == "" {
		t.Error("task should carry an id")
	}
}

func TestPanicIsReported(t *testing.T) {
	q := NewQueue()
	q.Start()
	defer q.Stop()

	task, _ := q.Enqueue("panics", func() error { panic("bad tile") }, nil)
	if err := waitTask(t, task); err == nil {
		t.Error("panicking task should report an error")
	}

	// The worker keeps going
	next, _ := q.Enqueue("after", func() error { return nil }, nil)
	if err := waitTask(t, next); err != nil {
		t.Errorf("Wait() error: %v", err)
	}
}

func TestStopDropsPending(t *testing.T) {
	q := NewQueue()
	// Not started: tasks stay pending
	task, err := q.Enqueue("never", func() error { return nil }, nil)
	if err != nil {
		t.Fatal(err)
	}
	if q.Pending() != 1 || !q.Busy() {
		t.Errorf("Pending() = %d, Busy() = %v", q.Pending(), q.Busy())
	}

	q.Stop()
	if err := waitTask(t, task); !errors.Is(err, ErrStopped) {
		t.Errorf("Wait() = %v, want ErrStopped", err)
	}
	if task.Status() != StatusDropped {
		t.Errorf("Status() = %s, want dropped", task.Status())
	}

	if _, err := q.Enqueue("late", func() error { return nil }, nil); !errors.Is(err, ErrStopped) {
		t.Errorf("Enqueue() after Stop = %v, want ErrStopped", err)
	}
	q.Stop()
}

func TestEnqueueNilFunc(t *testing.T) {
	if _, err := NewQueue().Enqueue("nil", nil, nil); err == nil {
		t.Error("nil function should be rejected")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- q.Run(ctx) }()

	task, err := q.Enqueue("work", func() error { return nil }, nil)
	if err != nil {
		t.Fatal(err)
	}
	waitTask(t, task)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
	}
}
