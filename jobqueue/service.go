package jobqueue

import (
	"context"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/auth"
)

// Service is the caller-facing API: submission persists a pending row and
// either starts a worker immediately (handled by Pool.Run's queue-pull loop)
// or leaves it queued, reflecting queue position in current_step.
type Service struct {
	store *Store
	queue *Queue
	pool  *Pool
}

func NewService(store *Store, queue *Queue, pool *Pool) *Service {
	return &Service{store: store, queue: queue, pool: pool}
}

func (s *Service) Submit(ctx context.Context, actor auth.Actor, in SubmitInput) (*Job, error) {
	in.UserID = actor.Identity
	job, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	depth, err := s.queue.Depth(ctx)
	if err == nil {
		_ = s.store.UpdateCurrentStep(ctx, job.ID, queuePositionStep(depth))
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		return nil, err
	}
	return job, nil
}

func queuePositionStep(depth int64) string {
	if depth == 0 {
		return "starting"
	}
	return "queued"
}

// Get returns job if it belongs to actor, or unconditionally for a service
// principal acting as admin.
func (s *Service) Get(ctx context.Context, actor auth.Actor, jobID string) (*Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isAdmin(actor) && job.UserID != actor.Identity {
		return nil, apperr.NewForbidden("job %s does not belong to this actor", jobID)
	}
	return job, nil
}

// List returns actor's own jobs, or every job for a service principal.
func (s *Service) List(ctx context.Context, actor auth.Actor, limit, offset int) ([]Job, error) {
	return s.store.List(ctx, actor.Identity, isAdmin(actor), limit, offset)
}

// Cancel requires ownership unless actor is a service principal.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, jobID string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !isAdmin(actor) && job.UserID != actor.Identity {
		return apperr.NewForbidden("job %s does not belong to this actor", jobID)
	}
	if job.IsTerminal() {
		return apperr.NewConflict("job %s is already %s", jobID, job.Status)
	}
	return s.pool.Cancel(ctx, jobID)
}

func isAdmin(actor auth.Actor) bool {
	return actor.IsService()
}
