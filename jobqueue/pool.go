package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/weavehub/weave/common"
)

// Processor executes one job's work, reporting progress through report and
// honoring ctx cancellation at the next await/yield point.
type Processor interface {
	Process(ctx context.Context, job *Job, report func(percent int, step string)) (resultDataJSON string, documentsProcessed, chunksCreated int, err error)
}

// Pool runs up to MaxConcurrent jobs at a time, pulling from queue in
// enqueue order; completion may interleave freely once started.
type Pool struct {
	store         *Store
	queue         *Queue
	processor     Processor
	maxConcurrent int
	logger        *common.ContextLogger

	mu        sync.Mutex
	cancelFns map[string]context.CancelFunc

	sem chan struct{}
}

func NewPool(store *Store, queue *Queue, processor Processor, maxConcurrent int, logger *common.ContextLogger) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Pool{
		store:         store,
		queue:         queue,
		processor:     processor,
		maxConcurrent: maxConcurrent,
		logger:        logger,
		cancelFns:     make(map[string]context.CancelFunc),
		sem:           make(chan struct{}, maxConcurrent),
	}
}

// Run pulls from the durable queue until ctx is cancelled, dispatching each
// job to a worker goroutine bounded by the semaphore.
func (p *Pool) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := p.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if p.logger != nil {
				p.logger.WithError(err).Error("dequeue failed")
			}
			time.Sleep(time.Second)
			continue
		}
		if jobID == "" {
			continue
		}

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func(id string) {
			defer func() { <-p.sem }()
			p.runJob(ctx, id)
		}(jobID)
	}
}

func (p *Pool) runJob(parent context.Context, jobID string) {
	job, err := p.store.Get(parent, jobID)
	if err != nil {
		return
	}
	if job.Status == StatusCancelled {
		return
	}

	jobCtx, cancel := context.WithCancel(parent)
	p.mu.Lock()
	p.cancelFns[jobID] = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.cancelFns, jobID)
		p.mu.Unlock()
		cancel()
	}()

	if err := p.store.Start(jobCtx, jobID); err != nil {
		return
	}

	start := time.Now()
	report := func(percent int, step string) {
		_ = p.store.UpdateProgress(jobCtx, jobID, percent, step)
	}

	resultJSON, docs, chunks, err := p.processor.Process(jobCtx, job, report)
	duration := time.Since(start).Seconds()

	if jobCtx.Err() != nil {
		_, _ = p.store.CancelPending(parent, jobID)
		_ = p.store.CancelProcessing(parent, jobID)
		return
	}
	if err != nil {
		_ = p.store.Fail(parent, jobID, err.Error())
		return
	}
	_ = p.store.Complete(parent, jobID, resultJSON, docs, chunks, duration)
}

// Cancel requests cancellation of jobID: a still-pending job transitions to
// cancelled immediately; a processing job's context is cancelled so the
// worker can honor it at its next await/yield point.
func (p *Pool) Cancel(ctx context.Context, jobID string) error {
	cancelled, err := p.store.CancelPending(ctx, jobID)
	if err != nil {
		return err
	}
	if cancelled {
		return nil
	}

	p.mu.Lock()
	cancel, ok := p.cancelFns[jobID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}
