package summarizer

import (
	"context"
	"time"

	"github.com/weavehub/weave/common"
)

// CacheVersionBumper signals clients that thread listings changed. Mirror's
// Service implements this via BumpThreadsVersion.
type CacheVersionBumper interface {
	BumpThreadsVersion(ctx context.Context)
}

// Config holds the sweeper's tunables. Of these, only MinInterval is read
// from configuration (NAMING_MIN_INTERVAL_SECONDS); cmd/weaved sets Enabled
// itself and leaves the rest to the defaults below.
type Config struct {
	Enabled      bool
	Model        string
	TokenBudget  int
	MinInterval  time.Duration
	BatchLimit   int
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TokenBudget <= 0 {
		c.TokenBudget = 20000
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 60 * time.Second
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	return c
}

// Sweeper periodically names threads that need it.
type Sweeper struct {
	store    *Store
	history  HistoryProvider
	namer    Namer
	versions CacheVersionBumper
	cfg      Config
	logger   *common.ContextLogger
}

func NewSweeper(store *Store, history HistoryProvider, namer Namer, versions CacheVersionBumper, cfg Config, logger *common.ContextLogger) *Sweeper {
	return &Sweeper{store: store, history: history, namer: namer, versions: versions, cfg: cfg.withDefaults(), logger: logger}
}

func (s *Sweeper) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			named, err := s.Sweep(ctx)
			if err != nil {
				s.logger.WithError(err).Error("thread naming sweep failed")
				continue
			}
			if named > 0 {
				s.logger.WithField("named", named).Info("swept thread naming batch")
			}
		}
	}
}

// Sweep names at most cfg.BatchLimit threads due for naming, returning how
// many were successfully named.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.MinInterval)
	threads, err := s.store.PickDue(ctx, cutoff, s.cfg.BatchLimit)
	if err != nil {
		return 0, err
	}

	named := 0
	for _, thread := range threads {
		if s.nameThread(ctx, thread) {
			named++
		}
	}
	return named, nil
}

func (s *Sweeper) nameThread(ctx context.Context, thread Thread) bool {
	now := time.Now()

	messages, err := s.history.History(ctx, thread.ID)
	if err != nil {
		s.logger.WithField("thread_id", thread.ID).WithError(err).Warn("failed fetching thread history")
		_ = s.store.MarkAttempted(ctx, thread.ID, now)
		return false
	}

	trimmed := TrimToBudget(messages, s.cfg.TokenBudget)
	result, err := s.namer.Name(ctx, trimmed)
	if err != nil {
		s.logger.WithField("thread_id", thread.ID).WithError(err).Warn("naming model call failed")
		_ = s.store.MarkAttempted(ctx, thread.ID, now)
		return false
	}

	if err := s.store.ApplyNaming(ctx, thread.ID, result, now); err != nil {
		s.logger.WithField("thread_id", thread.ID).WithError(err).Error("failed applying thread naming")
		return false
	}
	s.versions.BumpThreadsVersion(ctx)
	return true
}
