// Package processing runs thumbnail jobs on an in-process worker pool. It is
// the default when no Redis queue is configured.
package processing

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

// ErrQueueFull is returned by Submit when every buffer slot is taken.
var ErrQueueFull = errors.New("processing queue full")

// HandlerFunc processes one job.
type HandlerFunc func(ctx context.Context, job model.ThumbnailJob) error

// Pool consumes jobs with a fixed number of goroutines.
type Pool struct {
	handle  HandlerFunc
	queue   chan model.ThumbnailJob
	workers int
	logger  *slog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// New builds a Pool with queue capacity tied to worker count.
func New(handle HandlerFunc, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		handle:  handle,
		queue:   make(chan model.ThumbnailJob, workers*16),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the workers. They exit once ctx is cancelled; calling Start
// again is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx)
		}
	})
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Submit queues a job without blocking.
func (p *Pool) Submit(_ context.Context, job model.ThumbnailJob) error {
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			if err := p.handle(ctx, job); err != nil {
				p.logger.Error("thumbnail job failed", "id", job.FileID, "err", err)
			}
		}
	}
}
