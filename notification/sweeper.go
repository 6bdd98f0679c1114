package notification

import (
	"context"
	"time"

	"github.com/weavehub/weave/common"
)

// Sweeper runs ExpireDue on a fixed interval until the context is cancelled.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *common.ContextLogger
}

func NewSweeper(service *Service, interval time.Duration, logger *common.ContextLogger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{service: service, interval: interval, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := s.service.ExpireDue(ctx)
			if err != nil {
				s.logger.WithError(err).Error("notification expiry sweep failed")
				continue
			}
			if expired > 0 {
				s.logger.WithField("expired", expired).Info("swept expired notifications")
			}
		}
	}
}
