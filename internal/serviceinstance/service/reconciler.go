package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
)

// ReconcileUnclaimed moves SCHEDULED, unclaimed instances older than the end
// of the previous day to the default slot on the current day, appending one
// audit line per move. The repository guard (scheduled_date < cutoff) makes a
// rerun within the same day a no-op for already-moved instances.
func (s *Service) ReconcileUnclaimed(ctx context.Context) (domain.ReconcileResult, error) {
	now := s.clock.Now(ctx).In(s.loc)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc).UTC()
	newDate := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.DefaultServiceHour, 0, 0, 0, s.loc).UTC()

	stale, err := s.repo.ListStaleUnclaimed(ctx, s.db, cutoff)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	result := domain.ReconcileResult{}
	for _, inst := range stale {
		itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)

		note := domain.NoteLine(now, "rescheduled from "+inst.ScheduledDate.In(s.loc).Format("2006-01-02 15:04")+" (unclaimed)")
		moved, err := s.repo.Reschedule(itemCtx, s.db, inst.ID, newDate, cutoff, note, now.UTC())
		cancel()

		if err != nil {
			s.log.Warn("failed to reschedule unclaimed instance",
				zap.String("instance_id", inst.ID.String()), zap.Error(err))
			result.Failed = append(result.Failed, domain.ItemError{
				InstanceID: inst.ID, Reason: "reschedule_failed",
			})
			continue
		}
		if !moved {
			// Claimed or moved between the list and the update.
			result.Skipped++
			continue
		}
		result.Moved = append(result.Moved, inst.ID)
	}

	s.log.Info("unclaimed reconcile finished",
		zap.Int("moved", len(result.Moved)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}
