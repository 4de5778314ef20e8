// Package taskqueue runs named background jobs one at a time off a single
// FIFO channel (spec §4.H). It is a direct simplification of
// internal/batch's windowed, type-keyed batching: instead of coalescing
// many small storage operations into batches, it serializes whole jobs
// (thumbnail generation, watermarking, vector indexing) through one worker
// so a slow job never starves a fast one's ordering guarantee.
package taskqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/objectfs/objectfs/pkg/types"
)

// Handler executes one task by name and returns a human-readable result.
type Handler func(ctx context.Context, task *types.Task) (result string, err error)

// Queue is a single-worker FIFO task queue.
type Queue struct {
	mu       sync.RWMutex
	tasks    map[string]*types.Task
	handlers map[string]Handler

	pending chan string
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New creates a Queue with room for backlog pending tasks; once that many
// are waiting, Enqueue returns an error instead of blocking.
func New(backlog int) *Queue {
	return &Queue{
		tasks:    make(map[string]*types.Task),
		handlers: make(map[string]Handler),
		pending:  make(chan string, backlog),
		stopCh:   make(chan struct{}),
	}
}

// RegisterHandler associates taskName with the function that runs it.
func (q *Queue) RegisterHandler(taskName string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskName] = h
}

// StartWorker starts the single background worker. Calling it twice
// without an intervening StopWorker is a no-op error, matching the
// idempotency the batch processor enforces on Start/Stop.
func (q *Queue) StartWorker(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("task queue already started")
	}
	q.started = true
	q.stopCh = make(chan struct{})
	q.mu.Unlock()

	q.wg.Add(1)
	go q.runWorker(ctx)
	return nil
}

// StopWorker stops the worker and waits for any in-flight task to finish.
func (q *Queue) StopWorker() error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("task queue not started")
	}
	q.started = false
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()
	return nil
}

// Enqueue adds a task to the queue in pending state and returns its id.
func (q *Queue) Enqueue(name string, info map[string]any) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	task := &types.Task{
		ID:        id,
		Name:      name,
		Status:    types.TaskPending,
		TaskInfo:  info,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	q.tasks[id] = task
	q.mu.Unlock()

	select {
	case q.pending <- id:
	default:
		return "", fmt.Errorf("task queue backlog full")
	}
	return id, nil
}

// Get returns a snapshot of a task's current state.
func (q *Queue) Get(id string) (*types.Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	t, ok := q.tasks[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (q *Queue) runWorker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pending:
			q.run(ctx, id)
		}
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	task.Status = types.TaskRunning
	task.UpdatedAt = time.Now()
	handler := q.handlers[task.Name]
	q.mu.Unlock()

	if handler == nil {
		q.finish(id, "", fmt.Errorf("no handler registered for task %q", task.Name))
		return
	}

	result, err := handler(ctx, task)
	q.finish(id, result, err)
}

func (q *Queue) finish(id, result string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return
	}
	task.UpdatedAt = time.Now()
	if err != nil {
		task.Status = types.TaskFailed
		task.Error = err.Error()
		return
	}
	task.Status = types.TaskSuccess
	task.Result = result
}
