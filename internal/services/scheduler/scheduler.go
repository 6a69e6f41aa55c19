// Package scheduler периодически переводит в expired подписки, срок которых
// закончился, даже если пользователь больше не обращается к сервису.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/quota"
)

// maxBatchesPerRun сколько пачек подряд обрабатывается за один проход.
const maxBatchesPerRun = 100

// Expirer переводит просроченные подписки в expired.
type Expirer interface {
	ExpireOverdue(ctx context.Context, finder quota.OverdueFinder, limit int) (int, error)
}

// SchedulerService запускает проход по просроченным подпискам раз в interval.
type SchedulerService struct {
	expirer  Expirer
	finder   quota.OverdueFinder
	log      *slog.Logger
	interval time.Duration
	batch    int
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(expirer Expirer, finder quota.OverdueFinder, log *slog.Logger,
	interval time.Duration, batch int) *SchedulerService {
	return &SchedulerService{
		expirer:  expirer,
		finder:   finder,
		log:      log.With(slog.String("component", "scheduler")),
		interval: interval,
		batch:    max(batch, 1),
	}
}

// Run выполняет проход сразу и затем раз в interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.runExpireOverdue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping subscription expiry scheduler")
			return
		case <-ticker.C:
			s.runExpireOverdue(ctx)
		}
	}
}

// runExpireOverdue обрабатывает пачки, пока очередная пачка не окажется неполной.
func (s *SchedulerService) runExpireOverdue(ctx context.Context) int {
	const op = "scheduler.runExpireOverdue"
	total := 0

	for range maxBatchesPerRun {
		if ctx.Err() != nil {
			break
		}
		n, err := s.expirer.ExpireOverdue(ctx, s.finder, s.batch)
		total += n
		if err != nil {
			s.log.Error("failed to expire overdue subscriptions", sl.Op(op), sl.Err(err))
			break
		}
		if n < s.batch {
			break
		}
	}

	if total > 0 {
		s.log.Info("expired overdue subscriptions", slog.Int("count", total))
	} else {
		s.log.Debug("no overdue subscriptions found")
	}
	return total
}
