package reminder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lendingdesk/internal/models"
)

// ActiveIssues lists the outstanding issues
type ActiveIssues interface {
	ActiveIssues(ctx context.Context) ([]models.Issue, error)
}

// Scheduler periodically reminds holders of books that are due soon
type Scheduler struct {
	source    ActiveIssues
	evaluator *Evaluator
	logger    *zap.Logger

	interval time.Duration
	leadDays int
	now      func() time.Time
}

// NewScheduler creates a scheduler; an interval of zero disables Run
func NewScheduler(source ActiveIssues, evaluator *Evaluator, logger *zap.Logger, interval time.Duration, leadDays int) *Scheduler {
	return &Scheduler{
		source:    source,
		evaluator: evaluator,
		logger:    logger,
		interval:  interval,
		leadDays:  leadDays,
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("Reminder scheduler disabled")
		return nil
	}

	s.logger.Info("Reminder scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("lead_days", s.leadDays),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Reminder sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep evaluates every issue selected by SelectDue and returns how many
// reminders were delivered. Individual failures are logged and skipped.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	active, err := s.source.ActiveIssues(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, issue := range SelectDue(active, s.now(), s.leadDays, s.evaluator.loanDays) {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		outcome, err := s.evaluator.Evaluate(ctx, issue.BookID)
		if err != nil {
			s.logger.Warn("Scheduled reminder skipped",
				zap.String("book_id", issue.BookID),
				zap.Error(err),
			)
			continue
		}
		if outcome.Status == StatusSent {
			sent++
		}
	}

	s.logger.Debug("Reminder sweep finished", zap.Int("sent", sent))
	return sent, nil
}
