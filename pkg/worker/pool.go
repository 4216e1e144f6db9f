// Package worker provides a supervised pool of background workers that run
// memoir's fire-and-forget tasks (summarization checks, recall memory saves,
// event publishing) off the request path.
//
// The pool is owned by the process: it is created once at startup and shut
// down with a bounded grace period, so tasks are never silently orphaned.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/metrics"
)

var (
	defaultNumWorkers    uint = 3
	defaultTaskQueueSize uint = 256
)

var (
	// ErrPoolClosed is returned when a task is submitted after Shutdown.
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrQueueFull is returned when the task queue has no room.
	ErrQueueFull = errors.New("worker queue is full")

	// ErrShutdownTimeout is returned by Shutdown when the grace period expired
	// before every in-flight task finished.
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")
)

// Task is a unit of background work.
type Task struct {
	// Name identifies the kind of task in logs and metrics, e.g. "summarize".
	Name string

	// UserID is the conversation the task belongs to, if any.
	UserID string

	// Run does the work. The context is cancelled when Shutdown gives up on
	// in-flight tasks.
	Run func(ctx context.Context) error
}

// Result reports the outcome of a finished task.
type Result struct {
	Name     string
	UserID   string
	Err      error
	Duration time.Duration
}

// Config is the configuration options for the worker pool.
type Config struct {
	// NumWorkers is the number of background workers in the pool (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the buffered task channel (defaults to 256).
	QueueSize uint

	// ResultBuffer enables the Results channel with the given capacity.
	// Zero disables it.
	ResultBuffer uint

	// Logger is the provided zap logger
	Logger *zap.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Pool runs tasks asynchronously on a fixed set of workers.
type Pool struct {
	config  *Config
	queue   chan Task
	results chan Result
	wg      sync.WaitGroup
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultTaskQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	wp := &Pool{
		config: c,
		queue:  make(chan Task, c.QueueSize),
		logger: c.Logger.With(zap.String("component", "worker")),
		ctx:    ctx,
		cancel: cancel,
	}

	if c.ResultBuffer > 0 {
		wp.results = make(chan Result, c.ResultBuffer)
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a task for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is shut
// down, resulting in the task being dropped.
func (p *Pool) Enqueue(task Task) bool {
	return p.Submit(task) == nil
}

// Submit is Enqueue with the reason for a rejected task.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("task not queued, pool closed",
			zap.String("task", task.Name),
			zap.String("user_id", task.UserID),
		)
		p.config.Metrics.Task(task.Name, "dropped")
		return ErrPoolClosed
	}

	select {
	case p.queue <- task:
		p.logger.Debug("task queued",
			zap.String("task", task.Name),
			zap.String("user_id", task.UserID),
		)
		return nil
	default:
		p.logger.Error("task not queued, queue full, task dropped",
			zap.String("task", task.Name),
			zap.String("user_id", task.UserID),
		)
		p.config.Metrics.Task(task.Name, "dropped")
		return fmt.Errorf("%w (%d): %s", ErrQueueFull, cap(p.queue), task.Name)
	}
}

// Results returns the task status channel, or nil when ResultBuffer is zero.
// Sends are non-blocking: results are dropped when nobody is reading.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Shutdown stops intake and waits for queued and in-flight tasks to finish.
// If ctx expires first, running tasks are cancelled and ErrShutdownTimeout is
// returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.closeResults()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Error("shutdown grace period expired, abandoning tasks",
			zap.Int("queued", len(p.queue)),
		)
		return ErrShutdownTimeout
	}
}

// Close shuts the pool down, waiting without a deadline.
func (p *Pool) Close() {
	_ = p.Shutdown(context.Background())
}

func (p *Pool) closeResults() {
	if p.results != nil {
		close(p.results)
	}
}

// worker is the inner worker thread that continuously pulls tasks off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for task := range p.queue {
		if p.ctx.Err() != nil {
			p.logger.Warn("task abandoned during shutdown",
				zap.String("task", task.Name),
				zap.String("user_id", task.UserID),
			)
			p.config.Metrics.Task(task.Name, "dropped")
			continue
		}
		p.process(task)
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}

// process runs a single task, recovering panics so one bad task cannot take
// down the worker.
func (p *Pool) process(task Task) {
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return task.Run(p.ctx)
	}()

	res := Result{
		Name:     task.Name,
		UserID:   task.UserID,
		Err:      err,
		Duration: time.Since(start),
	}

	if err != nil {
		p.logger.Error("background task failed",
			zap.String("task", task.Name),
			zap.String("user_id", task.UserID),
			zap.Duration("duration", res.Duration),
			zap.Error(err),
		)
		p.config.Metrics.Task(task.Name, "error")
	} else {
		p.logger.Debug("background task finished",
			zap.String("task", task.Name),
			zap.String("user_id", task.UserID),
			zap.Duration("duration", res.Duration),
		)
		p.config.Metrics.Task(task.Name, "ok")
	}

	if p.results != nil {
		select {
		case p.results <- res:
		default:
		}
	}
}
