package service

import (
	"context"
	"time"

	"github.com/diagnosis/puffit/internal/repository"
	"github.com/diagnosis/puffit/pkg/logger"
)

// Sweeper periodically removes pending registrations whose token expired
// without being used.
type Sweeper struct {
	pending  repository.PendingUserRepository
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(pending repository.PendingUserRepository, interval time.Duration) *Sweeper {
	return &Sweeper{pending: pending, interval: interval, now: nowUTC}
}

// Run blocks until ctx is done. A non-positive interval disables sweeping.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) int64 {
	n, err := s.pending.DeleteExpired(ctx, s.now())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to sweep expired pending users", "error", err)
		return 0
	}
	if n > 0 {
		PendingSweptTotal.Add(float64(n))
		logger.InfoContext(ctx, "Swept expired pending users", "count", n)
	}
	return n
}
