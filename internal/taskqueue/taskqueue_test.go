package taskqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/objectfs/objectfs/pkg/types"
)

func waitForStatus(t *testing.T, q *Queue, id string, want types.TaskStatus) *types.Task {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		task, ok := q.Get(id)
		if ok && task.Status == want {
			return task
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %s did not reach status %s in time", id, want)
	return nil
}

func TestEnqueueRunsThroughToSuccess(t *testing.T) {
	q := New(10)
	q.RegisterHandler("echo", func(ctx context.Context, task *types.Task) (string, error) {
		return fmt.Sprintf("ran %v", task.TaskInfo["msg"]), nil
	})

	if err := q.StartWorker(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.StopWorker()

	id, err := q.Enqueue("echo", map[string]any{"msg": "hello"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	task := waitForStatus(t, q, id, types.TaskSuccess)
	if task.Result != "ran hello" {
		t.Errorf("result = %v, want %q", task.Result, "ran hello")
	}
}

func TestUnregisteredTaskNameFails(t *testing.T) {
	q := New(10)
	if err := q.StartWorker(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.StopWorker()

	id, err := q.Enqueue("nonexistent", nil)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	task := waitForStatus(t, q, id, types.TaskFailed)
	if task.Error == "" {
		t.Error("expected a failure error message")
	}
}

func TestStartWorkerTwiceIsRejected(t *testing.T) {
	q := New(10)
	if err := q.StartWorker(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.StopWorker()

	if err := q.StartWorker(context.Background()); err == nil {
		t.Error("expected second StartWorker to fail")
	}
}

func TestStopWorkerWithoutStartIsRejected(t *testing.T) {
	q := New(10)
	if err := q.StopWorker(); err == nil {
		t.Error("expected StopWorker without Start to fail")
	}
}

func TestTasksRunInFIFOOrder(t *testing.T) {
	q := New(10)
	var order []string
	done := make(chan struct{}, 3)
	q.RegisterHandler("record", func(ctx context.Context, task *types.Task) (string, error) {
		order = append(order, task.TaskInfo["tag"].(string))
		done <- struct{}{}
		return "ok", nil
	})

	if err := q.StartWorker(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer q.StopWorker()

	for _, tag := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue("record", map[string]any{"tag": tag}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		<-done
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("order = %v, want [a b c]", order)
	}
}
