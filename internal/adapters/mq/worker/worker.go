// Package worker runs OPR jobs taken off the queue on a bounded pool.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scoutstat/internal/domain/model"
	"github.com/okian/scoutstat/pkg/logger"
	"github.com/okian/scoutstat/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultJobTimeout       = 30 * time.Second
	metricsUpdateInterval   = 5 * time.Second
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.Job

// Calculator computes single statistic OPR.
type Calculator interface {
	CalcSingleStatOPR(ctx context.Context, eventCode, statistic string, season int) (map[int]float64, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs and replies with their results.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for OPR jobs.
type InMemoryWorker struct {
	queue      Queue
	calc       Calculator
	name       string
	jobTimeout time.Duration
	onDone     func()

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, calc Calculator, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      queue,
		calc:       calc,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, &job); err != nil {
				w.logger.Debug(ctx, "job failed", logger.String("job", job.ID), logger.Error(err))
			}
		}
	}
}

// stop signals Run to return. Safe to call more than once.
func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Shutdown gracefully stops the worker. It may be called again, also after
// the owning Pool has shut down.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob computes one job and replies. The returned error is the one
// sent to the caller.
func (w *InMemoryWorker) processJob(ctx context.Context, job *Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
		if w.onDone != nil {
			w.onDone()
		}
	}()

	if !job.Enqueued.IsZero() && time.Since(job.Enqueued) > w.jobTimeout {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "job_expired")
		job.Respond(model.Result{Err: ErrJobExpired})
		return ErrJobExpired
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	ratings, err := w.calc.CalcSingleStatOPR(jobCtx, job.EventCode, job.Statistic, job.Season)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "opr_error")
		job.Respond(model.Result{Err: err})
		return fmt.Errorf("opr %s/%s: %w", job.EventCode, job.Statistic, err)
	}

	if !job.Respond(model.Result{Ratings: ratings}) {
		w.logger.Debug(ctx, "reply dropped", logger.String("job", job.ID))
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once

	// Metrics tracking
	processedCount    atomic.Int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a new worker pool. Options apply to every worker.
func NewPool(workerCount int, queue Queue, calc Calculator, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             queue,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{}, opts...)
		workerOpts = append(workerOpts, WithName("worker-"+strconv.Itoa(i)))
		w := NewInMemoryWorker(queue, calc, workerOpts...)
		w.onDone = pool.RecordProcessedMessage
		pool.workers[i] = w
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}

	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

// updateMetrics updates worker-related metrics.
func (p *Pool) updateMetrics() {
	now := time.Now()
	timeDiff := now.Sub(p.lastProcessedTime).Seconds()
	if timeDiff > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(p.processedCount.Swap(0)) / timeDiff)
	}
	p.lastProcessedTime = now
}

// RecordProcessedMessage increments the processed job count.
func (p *Pool) RecordProcessedMessage() {
	p.processedCount.Add(1)
}

// Shutdown closes the queue and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	p.stopOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
		}
	}

	metrics.UpdateWorkerActiveCount(0)
	return nil
}
