package orderflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when every local worker is busy and the backlog is full.
	ErrQueueFull = errors.New("orderflow: job queue full")
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("orderflow: dispatcher closed")
)

// Dispatcher hands a job off for processing without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Processor runs a job to completion.
type Processor interface {
	Process(ctx context.Context, job Job) (Outcome, error)
}

// JSONSender publishes JSON to a queue.
type JSONSender interface {
	SendJSON(ctx context.Context, v any, attributes map[string]string) (string, error)
}

// QueueDispatcher enqueues jobs on SQS for cmd/worker.
type QueueDispatcher struct {
	queue  JSONSender
	logger *zap.Logger
}

func NewQueueDispatcher(queue JSONSender, logger *zap.Logger) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueDispatcher{queue: queue, logger: logger}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	id, err := d.queue.SendJSON(ctx, job, map[string]string{
		"message_id": job.Message.ID,
		"store_id":   strconv.FormatInt(job.StoreID, 10),
	})
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	d.logger.Debug("job enqueued", zap.String("sqs_message_id", id), zap.String("message_id", job.Message.ID))
	return nil
}

// LocalDispatcher runs jobs in-process on a fixed number of goroutines. Each job
// gets its own context bounded by the job timeout, detached from the request.
type LocalDispatcher struct {
	proc    Processor
	jobs    chan Job
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocalDispatcher starts workers goroutines with a backlog of backlog jobs.
func NewLocalDispatcher(proc Processor, workers, backlog int, timeout time.Duration, logger *zap.Logger) *LocalDispatcher {
	if workers < 1 {
		workers = 1
	}
	if backlog < 0 {
		backlog = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &LocalDispatcher{
		proc:    proc,
		jobs:    make(chan Job, backlog),
		timeout: timeout,
		logger:  logger,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.run()
	}
	return d
}

// Dispatch queues job without blocking.
func (d *LocalDispatcher) Dispatch(ctx context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued and in-flight jobs to finish.
func (d *LocalDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *LocalDispatcher) run() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.process(job)
	}
}

func (d *LocalDispatcher) process(job Job) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("job panicked", zap.Any("panic", r), zap.String("message_id", job.Message.ID))
		}
	}()

	outcome, err := d.proc.Process(ctx, job)
	if err != nil {
		d.logger.Error("job failed", zap.String("message_id", job.Message.ID), zap.Error(err))
		return
	}
	d.logger.Debug("job finished", zap.String("message_id", job.Message.ID), zap.String("outcome", string(outcome)))
}
