package taskqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"aria/internal/logging"
)

// Priority selects the scheduling band for a task.
type Priority int

const (
	// PriorityInteractive is for work the user is actively waiting on.
	PriorityInteractive Priority = iota
	// PriorityAmbient is for prefetch and backfill work.
	PriorityAmbient
)

func (p Priority) String() string {
	switch p {
	case PriorityInteractive:
		return "interactive"
	case PriorityAmbient:
		return "ambient"
	default:
		return "unknown"
	}
}

// Task is a unit of background work. The context passed to Run is cancelled
// when the queue stops.
type Task struct {
	ID    string
	Label string
	Run   func(ctx context.Context) error
}

// ErrNotRunning is returned by Submit after Stop or before Start.
var ErrNotRunning = errors.New("task queue not running")

// Queue schedules tasks across a fixed worker pool.
type Queue struct {
	workers     int
	interactive chan Task
	ambient     chan Task
	logger      *slog.Logger

	mu        sync.Mutex
	running   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	producers sync.WaitGroup

	executed atomic.Uint64
	failed   atomic.Uint64
}

// New constructs a queue with the given worker count and per-band depth.
func New(workers, depth int, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if depth <= 0 {
		depth = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{
		workers:     workers,
		interactive: make(chan Task, depth),
		ambient:     make(chan Task, depth),
		logger:      logging.NewComponentLogger(logger, "taskqueue"),
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("task queue already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.runCtx = runCtx
	q.cancel = cancel
	q.running = true
	q.wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go q.runWorker(runCtx)
	}
	return nil
}

// Stop cancels in-flight task contexts and waits for the workers to exit.
// Tasks still sitting in a band are not discarded: they run with the
// cancelled context so their owners observe the shutdown instead of waiting
// on a completion that will never come.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	cancel := q.cancel
	runCtx := q.runCtx
	q.running = false
	q.cancel = nil
	q.runCtx = nil
	q.mu.Unlock()

	cancel()
	q.wg.Wait()

	// New submissions are refused now, but Submit calls that passed the
	// running check may still be landing tasks. Drain the bands until the
	// last of them has returned, then sweep whatever remains.
	idle := make(chan struct{})
	go func() {
		q.producers.Wait()
		close(idle)
	}()
	for {
		select {
		case task := <-q.interactive:
			q.execute(runCtx, task)
		case task := <-q.ambient:
			q.execute(runCtx, task)
		case <-idle:
			q.drainPending(runCtx)
			return
		}
	}
}

func (q *Queue) drainPending(ctx context.Context) {
	for {
		select {
		case task := <-q.interactive:
			q.execute(ctx, task)
		case task := <-q.ambient:
			q.execute(ctx, task)
		default:
			return
		}
	}
}

// Submit places task on the band for priority. When the band is full, Submit
// blocks until a worker drains it or ctx ends. The task ID is assigned if
// empty.
func (q *Queue) Submit(ctx context.Context, priority Priority, task Task) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return ErrNotRunning
	}
	q.producers.Add(1)
	q.mu.Unlock()
	defer q.producers.Done()
	if task.Run == nil {
		return errors.New("task has no run function")
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	band := q.ambient
	if priority == PriorityInteractive {
		band = q.interactive
	}
	select {
	case band <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports execution counters and current band depths.
type Stats struct {
	Workers            uint64
	Executed           uint64
	Failed             uint64
	PendingInteractive int
	PendingAmbient     int
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Workers:            uint64(q.workers),
		Executed:           q.executed.Load(),
		Failed:             q.failed.Load(),
		PendingInteractive: len(q.interactive),
		PendingAmbient:     len(q.ambient),
	}
}

func (q *Queue) runWorker(ctx context.Context) {
	defer q.wg.Done()
	for {
		// Drain the interactive band first so it wins whenever both have work.
		select {
		case task := <-q.interactive:
			q.execute(ctx, task)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case task := <-q.interactive:
			q.execute(ctx, task)
		case task := <-q.ambient:
			q.execute(ctx, task)
		}
	}
}

// execute always invokes Run, even with a cancelled context; tasks observe
// cancellation themselves and report back to whoever is waiting on them.
func (q *Queue) execute(ctx context.Context, task Task) {
	q.executed.Add(1)
	if err := task.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		q.failed.Add(1)
		q.logger.Warn("background task failed",
			logging.Error(err),
			logging.String(logging.FieldTaskID, task.ID),
			logging.String("label", task.Label),
		)
	}
}
