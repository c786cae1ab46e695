// Package worker owns all blocking and CPU-bound job work: the worker
// pool, the per-job state machine, content acquisition, analysis, and
// plan persistence.
package worker

import (
	"context"
	"sync"

	"github.com/AsarMichil/jockee/internal/logger"
	"github.com/google/uuid"
)

const jobQueueSize = 64

// Pool runs analysis jobs on a fixed set of workers. Each job executes on
// a single worker end to end, so per-job state needs no cross-worker
// coordination.
type Pool struct {
	runner  *Runner
	workers int

	jobs    chan uuid.UUID
	cancels sync.Map // jobID -> context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(runner *Runner, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		runner:  runner,
		workers: workers,
		jobs:    make(chan uuid.UUID, jobQueueSize),
	}
}

// Start launches the workers. They drain the queue until ctx is done.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case jobID, ok := <-p.jobs:
					if !ok {
						return
					}
					p.run(ctx, worker, jobID)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, worker int, jobID uuid.UUID) {
	jobCtx, cancel := context.WithCancel(ctx)
	p.cancels.Store(jobID, cancel)
	defer func() {
		cancel()
		p.cancels.Delete(jobID)
	}()

	logger.Info("Worker picked up job", logger.Fields{
		"worker": worker, "job_id": jobID.String(),
	})

	if err := p.runner.Run(jobCtx, jobID); err != nil {
		logger.Error("Job run failed", err, logger.Fields{
			"worker": worker, "job_id": jobID.String(),
		})
	}
}

// Enqueue schedules a job. Returns false when the queue is full.
func (p *Pool) Enqueue(jobID uuid.UUID) bool {
	select {
	case p.jobs <- jobID:
		return true
	default:
		return false
	}
}

// Cancel signals the worker running the job, if any. The caller records
// the failed status first; the worker notices at the next track boundary.
func (p *Pool) Cancel(jobID uuid.UUID) {
	if cancel, ok := p.cancels.Load(jobID); ok {
		cancel.(context.CancelFunc)()
	}
}

// Stop closes the queue and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
