package matching

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
)

type Job interface {
	Execute(ctx context.Context) error
}

type WorkerPool struct {
	workers  int
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWorkerPool starts size workers. A size of zero or less sizes the pool
// from the CPU count, leaving a quarter for the rest of the process.
func NewWorkerPool(ctx context.Context, size int) *WorkerPool {
	if size <= 0 {
		totalCPU := runtime.NumCPU()
		systemReserve := max(1, totalCPU/4)
		size = max(1, totalCPU-systemReserve)
	}
	log.Info().
		Int("workers", size).
		Msg("Worker pool initialized")
	poolCtx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  size,
		jobQueue: make(chan Job, size*2),
		ctx:      poolCtx,
		cancel:   cancel,
	}

	pool.start()

	return pool
}

func (p *WorkerPool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			if err := job.Execute(p.ctx); err != nil {
				log.Debug().Err(err).Int("worker", id).Msg("Job failed")
			}
		}
	}
}

// ErrPoolClosed is returned by Submit once Close has been called.
var ErrPoolClosed = errors.New("worker pool closed")

// Submit queues a job, blocking while the queue is full. It gives up when
// ctx is done or the pool is closed.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	if p.ctx.Err() != nil {
		return ErrPoolClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	case p.jobQueue <- job:
		return nil
	}
}

// Close stops accepting jobs and waits for the workers to exit.
func (p *WorkerPool) Close() {
	p.cancel()
	p.wg.Wait()
}

// Done is closed once the pool is closed.
func (p *WorkerPool) Done() <-chan struct{} {
	return p.ctx.Done()
}

func (p *WorkerPool) Size() int {
	return p.workers
}
