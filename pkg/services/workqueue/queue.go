package workqueue

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/retry"
)

var (
	// ErrQueueClosed is returned when enqueueing after Shutdown or Cancel.
	ErrQueueClosed = errors.New("work queue is closed")
	// ErrQueueFull is returned when the pending backlog is at capacity.
	ErrQueueFull = errors.New("work queue is full")
)

// RetryConfig configures retry behavior for failed tasks.
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration (cap)
	BackoffFactor  float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns a backoff schedule of 2s, 4s, 8s capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Queue runs background tasks with bounded concurrency and retries transient
// failures. It is long-lived: finished tasks are dropped from its bookkeeping.
type Queue struct {
	mu       sync.Mutex
	tasks    []*TaskState
	capacity int
	closed   bool

	strategy    ConcurrencyStrategy
	retryConfig RetryConfig

	// idle is closed whenever no task is pending or running.
	idle chan struct{}
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) QueueOption {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(config RetryConfig) QueueOption {
	return func(q *Queue) {
		q.retryConfig = config
	}
}

// WithCapacity bounds the number of pending tasks. Zero means unbounded.
func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		q.capacity = n
	}
}

// New creates a new work queue with the given options.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:       make([]*TaskState, 0),
		strategy:    NewSerializedStrategy(),
		retryConfig: DefaultRetryConfig(),
		idle:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("workqueue"),
	}
	close(q.idle)

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue adds a task to the queue and attempts to start eligible tasks.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("queue closed, rejecting task",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return ErrQueueClosed
	}

	if q.capacity > 0 && q.pendingCountLocked() >= q.capacity {
		q.logger.Warn("queue full, rejecting task",
			zap.String("task_name", task.Name()),
			zap.Int("capacity", q.capacity))
		return ErrQueueFull
	}

	select {
	case <-q.idle:
		q.idle = make(chan struct{})
	default:
	}

	q.tasks = append(q.tasks, NewTaskState(task))

	q.logger.Debug("task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.Bool("requires_llm", task.RequiresLLM()))

	q.tryStartTasksLocked()
	return nil
}

// tryStartTasksLocked starts every pending task the strategy admits.
// Must be called with lock held.
func (q *Queue) tryStartTasksLocked() {
	if q.ctx.Err() != nil {
		return
	}

	for _, ts := range q.tasks {
		if ts.GetStatus() != TaskStatusPending {
			continue
		}

		needsLLM := ts.Task.RequiresLLM()
		if !q.strategy.CanStart(needsLLM) {
			continue
		}

		q.strategy.OnStart(needsLLM)
		ts.SetStatus(TaskStatusRunning)

		q.wg.Add(1)
		go q.runTask(ts)
	}
}

// runTask executes a task with retry logic for transient errors.
func (q *Queue) runTask(ts *TaskState) {
	defer q.wg.Done()

	var lastErr error

	for attempt := 0; attempt <= q.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := q.calculateBackoff(attempt)
			q.logger.Info("retrying task after backoff",
				zap.String("task_id", ts.Task.ID()),
				zap.String("task_name", ts.Task.Name()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))

			select {
			case <-q.ctx.Done():
				q.completeTask(ts, q.ctx.Err())
				return
			case <-time.After(backoff):
			}
		}

		err := ts.Task.Execute(q.ctx, q)
		if err == nil {
			q.completeTask(ts, nil)
			return
		}
		lastErr = err

		if errors.Is(err, context.Canceled) {
			break
		}

		if !retry.IsRetryable(err) {
			q.logger.Warn("non-retryable error, failing task immediately",
				zap.String("task_id", ts.Task.ID()),
				zap.String("task_name", ts.Task.Name()),
				zap.Error(err))
			break
		}

		if attempt < q.retryConfig.MaxRetries {
			ts.IncrementRetryCount()
		}
	}

	q.completeTask(ts, lastErr)
}

// calculateBackoff computes exponential backoff with +/-10% jitter.
func (q *Queue) calculateBackoff(attempt int) time.Duration {
	backoff := float64(q.retryConfig.InitialBackoff) *
		math.Pow(q.retryConfig.BackoffFactor, float64(attempt-1))

	if backoff > float64(q.retryConfig.MaxBackoff) {
		backoff = float64(q.retryConfig.MaxBackoff)
	}

	jitter := backoff * 0.1 * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}

// completeTask records the outcome, drops the task from bookkeeping and
// starts whatever can run next.
func (q *Queue) completeTask(ts *TaskState, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.strategy.OnComplete(ts.Task.RequiresLLM())

	switch {
	case err == nil:
		ts.SetStatus(TaskStatusCompleted)
		q.logger.Debug("task completed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Int("retry_count", ts.RetryCount))
	case errors.Is(err, context.Canceled):
		ts.SetStatus(TaskStatusCancelled)
		q.logger.Info("task cancelled",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()))
	default:
		ts.SetStatus(TaskStatusFailed)
		ts.SetError(err)
		q.logger.Error("task failed",
			zap.String("task_id", ts.Task.ID()),
			zap.String("task_name", ts.Task.Name()),
			zap.Int("retry_count", ts.RetryCount),
			zap.Error(err))
	}

	q.removeLocked(ts)

	if len(q.tasks) == 0 {
		q.closeIdleLocked()
		return
	}
	q.tryStartTasksLocked()
}

func (q *Queue) removeLocked(target *TaskState) {
	for i, ts := range q.tasks {
		if ts == target {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return
		}
	}
}

func (q *Queue) closeIdleLocked() {
	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

func (q *Queue) snapshotLocked() []TaskSnapshot {
	snapshots := make([]TaskSnapshot, len(q.tasks))
	for i, ts := range q.tasks {
		snapshots[i] = ts.Snapshot()
	}
	return snapshots
}

func (q *Queue) pendingCountLocked() int {
	count := 0
	for _, ts := range q.tasks {
		if ts.GetStatus() == TaskStatusPending {
			count++
		}
	}
	return count
}

// GetTasks returns a snapshot of queued and running tasks.
func (q *Queue) GetTasks() []TaskSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Wait blocks until the queue is idle or ctx ends.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and drains the backlog. If ctx ends first,
// running tasks are cancelled and Shutdown waits for them to return.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	err := q.Wait(ctx)
	if err != nil {
		q.Cancel()
	}
	q.wg.Wait()
	return err
}

// Cancel stops accepting tasks, signals running tasks to stop and drops pending ones.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	if q.ctx.Err() != nil {
		return
	}

	q.logger.Info("queue cancelled, signaling running tasks to stop")
	q.cancel()

	remaining := q.tasks[:0]
	for _, ts := range q.tasks {
		if ts.GetStatus() == TaskStatusPending {
			ts.SetStatus(TaskStatusCancelled)
			continue
		}
		remaining = append(remaining, ts)
	}
	q.tasks = remaining

	if len(q.tasks) == 0 {
		q.closeIdleLocked()
	}
}

// Len returns the number of pending and running tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
