package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/clock"
	"github.com/tidyroundlabs/tidyround/internal/config"
	employeedomain "github.com/tidyroundlabs/tidyround/internal/employee/domain"
	"github.com/tidyroundlabs/tidyround/internal/metrics"
	notificationdomain "github.com/tidyroundlabs/tidyround/internal/notification/domain"
	"github.com/tidyroundlabs/tidyround/internal/payout/domain"
	instancedomain "github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	cfg   config.PayoutConfig

	repo         domain.Repository
	instanceRepo instancedomain.Repository
	employeeRepo employeedomain.Repository
	metrics      *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config

	Repo         domain.Repository
	InstanceRepo instancedomain.Repository
	EmployeeRepo employeedomain.Repository
	Metrics      *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payout.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		cfg:          p.Cfg.Payout,
		repo:         p.Repo,
		instanceRepo: p.InstanceRepo,
		employeeRepo: p.EmployeeRepo,
		metrics:      p.Metrics,
	}
}

// RequestPayout validates the request against the store, then settles it in
// one transaction: every referenced instance advances
// PENDING→PAYOUT_REQUESTED or none do.
func (s *Service) RequestPayout(ctx context.Context, input domain.RequestPayoutInput) (domain.RequestPayoutResult, error) {
	if len(input.ServiceInstanceIDs) == 0 {
		return domain.RequestPayoutResult{}, errs.Validation("empty_payout_request", "payout request must reference at least one instance")
	}

	emp, err := s.employeeRepo.FindByID(ctx, s.db, input.EmployeeID)
	if err != nil {
		return domain.RequestPayoutResult{}, err
	}
	if emp == nil {
		return domain.RequestPayoutResult{}, employeedomain.ErrEmployeeNotFound
	}
	if emp.PayoutAccountRef == "" {
		return domain.RequestPayoutResult{}, errs.Validation("missing_payout_account", "employee has no payout account on file")
	}

	eligible, err := s.instanceRepo.ListCompletedPending(ctx, s.db, input.EmployeeID, input.ServiceInstanceIDs)
	if err != nil {
		return domain.RequestPayoutResult{}, err
	}
	if len(eligible) != len(input.ServiceInstanceIDs) {
		return domain.RequestPayoutResult{}, domain.ErrInstanceNotEligible
	}

	var earningsTotal int64
	for _, inst := range eligible {
		earningsTotal += inst.PotentialEarnings
	}

	if diff := earningsTotal - input.ClaimedTotalCents; diff > s.cfg.ToleranceCents || diff < -s.cfg.ToleranceCents {
		return domain.RequestPayoutResult{}, errs.Validationf(
			"payout_amount_mismatch",
			"computed total %d does not match requested total %d",
			earningsTotal, input.ClaimedTotalCents,
		)
	}

	commissions, err := s.repo.ListPendingCommissions(ctx, s.db, input.EmployeeID)
	if err != nil {
		return domain.RequestPayoutResult{}, err
	}
	var commissionTotal int64
	commissionIDs := make([]snowflake.ID, 0, len(commissions))
	for _, c := range commissions {
		commissionTotal += c.Amount
		commissionIDs = append(commissionIDs, c.ID)
	}

	if earningsTotal+commissionTotal < s.cfg.MinimumAmountCents {
		return domain.RequestPayoutResult{}, domain.ErrBelowMinimum
	}

	now := s.clock.Now(ctx)
	payout := domain.Payout{
		ID:               s.genID.Generate(),
		Reference:        uuid.NewString(),
		EmployeeID:       input.EmployeeID,
		Status:           domain.PayoutStatusRequested,
		EarningsAmount:   earningsTotal,
		CommissionAmount: commissionTotal,
		TotalAmount:      earningsTotal + commissionTotal,
		InstanceIDs:      datatypes.NewJSONSlice(input.ServiceInstanceIDs),
		CreatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := s.instanceRepo.AdvancePaymentStatus(ctx, tx, input.ServiceInstanceIDs,
			instancedomain.PaymentStatusPending, instancedomain.PaymentStatusPayoutRequested, now)
		if err != nil {
			return err
		}
		if moved != int64(len(input.ServiceInstanceIDs)) {
			// Some instance was settled concurrently; roll everything back.
			return domain.ErrPayoutConflict
		}

		attached, err := s.repo.AttachCommissions(ctx, tx, commissionIDs, payout.ID, now)
		if err != nil {
			return err
		}
		if attached != int64(len(commissionIDs)) {
			// A concurrent payout already claimed some of these commissions;
			// the recorded totals would overstate what MarkPaid settles.
			return domain.ErrPayoutConflict
		}
		return s.repo.InsertPayout(ctx, tx, &payout)
	})
	if err != nil {
		return domain.RequestPayoutResult{}, err
	}

	s.metrics.PayoutsAccepted.Inc()
	s.log.Info("payout accepted",
		zap.String("payout_id", payout.ID.String()),
		zap.String("employee_id", input.EmployeeID.String()),
		zap.Int64("total", payout.TotalAmount),
	)

	return domain.RequestPayoutResult{
		Payout: payout,
		Events: []notificationdomain.Event{{
			UserID: input.EmployeeID,
			Kind:   notificationdomain.KindPayoutRequested,
			Payload: map[string]any{
				"payout_id": payout.ID.String(),
				"total":     payout.TotalAmount,
			},
		}},
	}, nil
}

func (s *Service) MarkPaid(ctx context.Context, payoutID snowflake.ID) (domain.Payout, error) {
	payout, err := s.repo.FindPayout(ctx, s.db, payoutID)
	if err != nil {
		return domain.Payout{}, err
	}
	if payout == nil {
		return domain.Payout{}, domain.ErrPayoutNotFound
	}
	if payout.Status == domain.PayoutStatusPaid {
		return domain.Payout{}, domain.ErrAlreadyPaid
	}

	now := s.clock.Now(ctx)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkPayoutPaid(ctx, tx, payoutID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyPaid
		}

		ids := []snowflake.ID(payout.InstanceIDs)
		moved, err := s.instanceRepo.AdvancePaymentStatus(ctx, tx, ids,
			instancedomain.PaymentStatusPayoutRequested, instancedomain.PaymentStatusPaid, now)
		if err != nil {
			return err
		}
		if moved != int64(len(ids)) {
			return domain.ErrPayoutConflict
		}

		return s.repo.AdvanceCommissions(ctx, tx, payoutID,
			domain.CommissionStatusPayoutRequested, domain.CommissionStatusPaid, now)
	})
	if err != nil {
		return domain.Payout{}, err
	}

	payout.Status = domain.PayoutStatusPaid
	payout.PaidAt = &now
	return *payout, nil
}

func (s *Service) AccrueCommission(ctx context.Context, input domain.AccrueCommissionInput) (domain.ReferralCommission, error) {
	if input.Amount <= 0 {
		return domain.ReferralCommission{}, errs.Validation("invalid_amount", "commission amount must be positive")
	}

	now := s.clock.Now(ctx)
	commission := domain.ReferralCommission{
		ID:               s.genID.Generate(),
		EmployeeID:       input.EmployeeID,
		SourceEmployeeID: input.SourceEmployeeID,
		Amount:           input.Amount,
		Status:           domain.CommissionStatusPending,
		Note:             input.Note,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertCommission(ctx, s.db, &commission); err != nil {
		return domain.ReferralCommission{}, err
	}
	return commission, nil
}

// EarningsSummary reports completed-job earnings by ISO week, newest week
// last, with a per-day breakdown.
func (s *Service) EarningsSummary(ctx context.Context, employeeID snowflake.ID, since time.Time) (domain.EarningsSummary, error) {
	instances, err := s.instanceRepo.ListCompletedSince(ctx, s.db, employeeID, since)
	if err != nil {
		return domain.EarningsSummary{}, err
	}

	summary := domain.EarningsSummary{EmployeeID: employeeID}

	type weekAgg struct {
		week *domain.WeeklyEarnings
		days map[string]*domain.DailyEarnings
	}
	weeks := make(map[string]*weekAgg)
	var order []string

	for _, inst := range instances {
		if inst.CompletedDate == nil {
			continue
		}
		completed := inst.CompletedDate.UTC()
		weekStart := completed.AddDate(0, 0, -mondayOffset(completed))
		key := weekStart.Format("2006-01-02")

		agg, ok := weeks[key]
		if !ok {
			agg = &weekAgg{
				week: &domain.WeeklyEarnings{
					WeekStart: key,
					WeekEnd:   weekStart.AddDate(0, 0, 6).Format("2006-01-02"),
				},
				days: make(map[string]*domain.DailyEarnings),
			}
			weeks[key] = agg
			order = append(order, key)
		}

		agg.week.WeeklyTotal += inst.PotentialEarnings
		agg.week.JobCount++
		summary.Total += inst.PotentialEarnings

		dayKey := completed.Format("2006-01-02")
		day, ok := agg.days[dayKey]
		if !ok {
			day = &domain.DailyEarnings{Date: dayKey}
			agg.days[dayKey] = day
		}
		day.TotalAmount += inst.PotentialEarnings
		day.JobCount++
	}

	sort.Strings(order)
	for _, key := range order {
		agg := weeks[key]
		for _, day := range sortedDays(agg.days) {
			agg.week.DailyBreakdown = append(agg.week.DailyBreakdown, *day)
		}
		summary.Weeks = append(summary.Weeks, *agg.week)
	}
	return summary, nil
}

func mondayOffset(t time.Time) int {
	weekday := int(t.Weekday())
	if weekday == 0 {
		return 6
	}
	return weekday - 1
}

func sortedDays(days map[string]*domain.DailyEarnings) []*domain.DailyEarnings {
	keys := make([]string, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	// Dates are zero-padded ISO strings; lexical order is chronological.
	sort.Strings(keys)
	out := make([]*domain.DailyEarnings, len(keys))
	for i, key := range keys {
		out[i] = days[key]
	}
	return out
}
