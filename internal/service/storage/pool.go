package storage

import (
	"errors"
	"sync"

	"crowdcounter/internal/logger"
	"crowdcounter/internal/metrics"
)

const (
	// DefaultWorkers is the save worker count when none is configured.
	DefaultWorkers = 4
	// DefaultQueueSize bounds the number of jobs waiting for a worker.
	DefaultQueueSize = 64
)

// ErrPoolClosed is returned by Enqueue once Drain has started.
var ErrPoolClosed = errors.New("save pool closed")

// SavePool runs SaveJobs on a fixed set of workers. Enqueue blocks while the
// queue is full.
type SavePool struct {
	jobs       chan SaveJob
	numWorkers int
	logger     *logger.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	closed  bool

	drainOnce sync.Once
	wg        sync.WaitGroup
}

// NewSavePool starts workers goroutines reading from a queue of queueSize.
func NewSavePool(workers, queueSize int, logger *logger.Logger, metrics *metrics.Metrics) *SavePool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	pool := &SavePool{
		jobs:       make(chan SaveJob, queueSize),
		numWorkers: workers,
		logger:     logger,
		metrics:    metrics,
	}
	pool.idle = sync.NewCond(&pool.mu)

	for i := 0; i < pool.numWorkers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	pool.logger.Info("💾 Save pool started with %d workers (queue %d)", workers, queueSize)
	return pool
}

// Enqueue hands a job to the workers. On error the job is released here.
func (p *SavePool) Enqueue(job SaveJob) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		job.Release()
		return ErrPoolClosed
	}
	p.pending++
	p.mu.Unlock()

	// Drain waits for pending to reach zero before closing the channel, so the
	// send below cannot hit a closed channel.
	p.jobs <- job
	if p.metrics != nil {
		p.metrics.SaveJobsQueued.Add(1)
	}
	return nil
}

// Wait blocks until every job enqueued so far has finished.
func (p *SavePool) Wait() {
	p.mu.Lock()
	for p.pending > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// Drain rejects new jobs, finishes the queued ones and stops the workers.
// Safe to call more than once.
func (p *SavePool) Drain() {
	p.drainOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.Wait()
		close(p.jobs)
		p.wg.Wait()
		p.logger.Info("🛑 All save workers stopped")
	})
}

// Workers returns the number of worker goroutines.
func (p *SavePool) Workers() int {
	return p.numWorkers
}

func (p *SavePool) worker(workerID int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.run(job, workerID)
	}
}

// run executes one job. A panicking job counts as failed and the worker
// carries on with the next one.
func (p *SavePool) run(job SaveJob, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Save worker %d panicked on %s: %v", workerID, job.Path(), r)
			if p.metrics != nil {
				p.metrics.SaveJobsFailed.Add(1)
			}
		}
		job.Release()
		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}()

	if err := job.Execute(); err != nil {
		p.logger.Error("Save worker %d failed on %s: %v", workerID, job.Path(), err)
		if p.metrics != nil {
			p.metrics.SaveJobsFailed.Add(1)
		}
		return
	}
	if p.metrics != nil {
		p.metrics.SaveJobsDone.Add(1)
	}
}
