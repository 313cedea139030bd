package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tidyroundlabs/tidyround/internal/earnings"
	notificationdomain "github.com/tidyroundlabs/tidyround/internal/notification/domain"
	"github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
	subscriptiondomain "github.com/tidyroundlabs/tidyround/internal/subscription/domain"
	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

// GenerateWeek expands the ISO week containing target into at most one
// service instance per active subscription. A single subscription's failure
// is logged and collected; it never aborts the rest of the batch.
func (s *Service) GenerateWeek(ctx context.Context, target time.Time) (domain.GenerateResult, error) {
	weekStart := startOfISOWeek(target.In(s.loc))
	result := domain.GenerateResult{}

	for offset := 0; offset < 7; offset++ {
		day := weekStart.AddDate(0, 0, offset)

		subs, err := s.subRepo.ListActiveByServiceDay(ctx, s.db, int(day.Weekday()))
		if err != nil {
			// A failed day query poisons the whole run; report it up.
			return result, err
		}

		for _, sub := range subs {
			if !sub.ActiveOn(day) {
				continue
			}
			s.generateOne(ctx, sub, day, &result)
		}
	}

	s.log.Info("service generation finished",
		zap.String("period", domain.PeriodKeyFor(weekStart)),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *Service) generateOne(
	ctx context.Context,
	sub subscriptiondomain.Subscription,
	day time.Time,
	result *domain.GenerateResult,
) {
	itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
	defer cancel()

	plan, err := s.subRepo.FindPlan(itemCtx, s.db, sub.PlanID)
	if err != nil || plan == nil {
		s.log.Warn("skipping subscription without plan",
			zap.String("subscription_id", sub.ID.String()), zap.Error(err))
		result.Failed = append(result.Failed, domain.ItemError{
			SubscriptionID: sub.ID, Reason: subscriptiondomain.ErrPlanNotFound.Code,
		})
		return
	}

	breakdown, err := s.calc.Compute(earnings.PaymentMethod(sub.PaymentMethod), plan.PriceAmount)
	if err != nil {
		// Exclude the subscription from the batch and keep going. A broken
		// invariant is louder than bad subscription data.
		logAt := s.log.Warn
		if errs.IsKind(err, errs.KindInvariant) {
			logAt = s.log.Error
		}
		logAt("earnings computation failed for subscription",
			zap.String("subscription_id", sub.ID.String()),
			zap.Int64("price_amount", plan.PriceAmount),
			zap.Error(err),
		)
		result.Failed = append(result.Failed, domain.ItemError{
			SubscriptionID: sub.ID, Reason: err.Error(),
		})
		return
	}

	scheduled := time.Date(day.Year(), day.Month(), day.Day(), s.cfg.DefaultServiceHour, 0, 0, 0, s.loc)
	subIDCopy := sub.ID
	inst := &domain.ServiceInstance{
		ID:                s.genID.Generate(),
		CustomerID:        sub.CustomerID,
		PeriodKey:         domain.PeriodKeyFor(day),
		SubscriptionID:    &subIDCopy,
		ServicePlanID:     sub.PlanID,
		Status:            domain.StatusScheduled,
		PaymentStatus:     domain.PaymentStatusPending,
		ScheduledDate:     scheduled.UTC(),
		PotentialEarnings: breakdown.PerInstanceEarnings,
		Currency:          plan.Currency,
		CreatedAt:         s.clock.Now(ctx),
		UpdatedAt:         s.clock.Now(ctx),
	}

	created, err := s.repo.Insert(itemCtx, s.db, inst)
	if err != nil {
		s.log.Warn("instance insert failed",
			zap.String("subscription_id", sub.ID.String()), zap.Error(err))
		result.Failed = append(result.Failed, domain.ItemError{
			SubscriptionID: sub.ID, Reason: "insert_failed",
		})
		return
	}
	if !created {
		// Lost the (customer, period) uniqueness race or the instance was
		// generated by an earlier run. Already handled, not an error.
		result.Skipped++
		s.metrics.GenerationSkipped.Inc()
		return
	}

	result.Created = append(result.Created, inst.ID)
	s.metrics.InstancesGenerated.Inc()
	result.Events = append(result.Events, notificationdomain.Event{
		UserID: sub.CustomerID,
		Kind:   notificationdomain.KindServiceScheduled,
		Payload: map[string]any{
			"instance_id":    inst.ID.String(),
			"scheduled_date": inst.ScheduledDate,
		},
	})
}

// startOfISOWeek returns Monday 00:00 of the week containing t, in t's
// location.
func startOfISOWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, 1-weekday)
}
