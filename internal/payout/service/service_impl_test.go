package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/clock"
	"github.com/tidyroundlabs/tidyround/internal/config"
	employeedomain "github.com/tidyroundlabs/tidyround/internal/employee/domain"
	employeerepo "github.com/tidyroundlabs/tidyround/internal/employee/repository"
	"github.com/tidyroundlabs/tidyround/internal/metrics"
	"github.com/tidyroundlabs/tidyround/internal/payout/domain"
	"github.com/tidyroundlabs/tidyround/internal/payout/repository"
	instancedomain "github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
	instancerepo "github.com/tidyroundlabs/tidyround/internal/serviceinstance/repository"
	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

func openPayoutDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&instancedomain.ServiceInstance{},
		&employeedomain.Employee{},
		&domain.Payout{},
		&domain.ReferralCommission{},
	))
	return db
}

func newPayoutService(t *testing.T, db *gorm.DB, clk clock.Clock) (*Service, *snowflake.Node) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Cfg: config.Config{
			Payout: config.PayoutConfig{MinimumAmountCents: 50, ToleranceCents: 1},
		},
		Repo:         repository.Provide(),
		InstanceRepo: instancerepo.Provide(),
		EmployeeRepo: employeerepo.Provide(),
		Metrics:      metrics.New(),
	})
	return svc.(*Service), node
}

func seedPayoutEmployee(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()
	now := time.Now().UTC()
	emp := employeedomain.Employee{
		ID:               node.Generate(),
		Name:             "Worker",
		Email:            "worker@example.com",
		ServiceAreaReady: true,
		PayoutAccountRef: "acct_" + node.Generate().String(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, db.Create(&emp).Error)
	return emp.ID
}

func seedCompletedInstance(t *testing.T, db *gorm.DB, node *snowflake.Node, employeeID snowflake.ID, earnings int64, completedAt time.Time) instancedomain.ServiceInstance {
	t.Helper()
	inst := instancedomain.ServiceInstance{
		ID:                node.Generate(),
		CustomerID:        node.Generate(),
		PeriodKey:         instancedomain.PeriodKeyFor(completedAt),
		ServicePlanID:     node.Generate(),
		EmployeeID:        &employeeID,
		Status:            instancedomain.StatusCompleted,
		PaymentStatus:     instancedomain.PaymentStatusPending,
		ScheduledDate:     completedAt.Add(-2 * time.Hour),
		CompletedDate:     &completedAt,
		PotentialEarnings: earnings,
		Currency:          "usd",
		CreatedAt:         completedAt.Add(-24 * time.Hour),
		UpdatedAt:         completedAt,
	}
	require.NoError(t, db.Create(&inst).Error)
	return inst
}

func TestRequestPayout_ValidatesAndSettles(t *testing.T) {
	db := openPayoutDB(t, "payout_settle")
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	svc, node := newPayoutService(t, db, clock.Fixed(now))
	ctx := context.Background()

	employeeID := seedPayoutEmployee(t, db, node)
	a := seedCompletedInstance(t, db, node, employeeID, 984, now.Add(-72*time.Hour))
	b := seedCompletedInstance(t, db, node, employeeID, 984, now.Add(-48*time.Hour))
	ids := []snowflake.ID{a.ID, b.ID}

	t.Run("claimed total outside tolerance", func(t *testing.T) {
		_, err := svc.RequestPayout(ctx, domain.RequestPayoutInput{
			EmployeeID:         employeeID,
			ServiceInstanceIDs: ids,
			ClaimedTotalCents:  1900,
		})
		require.Error(t, err)
		assert.Equal(t, "payout_amount_mismatch", errs.CodeOf(err))
	})

	t.Run("within tolerance settles atomically", func(t *testing.T) {
		result, err := svc.RequestPayout(ctx, domain.RequestPayoutInput{
			EmployeeID:         employeeID,
			ServiceInstanceIDs: ids,
			ClaimedTotalCents:  1967,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PayoutStatusRequested, result.Payout.Status)
		assert.Equal(t, int64(1968), result.Payout.EarningsAmount)
		assert.Equal(t, int64(1968), result.Payout.TotalAmount)
		assert.NotEmpty(t, result.Payout.Reference)
		require.Len(t, result.Events, 1)

		var instances []instancedomain.ServiceInstance
		require.NoError(t, db.Find(&instances, "id IN ?", ids).Error)
		for _, inst := range instances {
			assert.Equal(t, instancedomain.PaymentStatusPayoutRequested, inst.PaymentStatus)
		}
	})

	t.Run("instances already settled are not eligible again", func(t *testing.T) {
		_, err := svc.RequestPayout(ctx, domain.RequestPayoutInput{
			EmployeeID:         employeeID,
			ServiceInstanceIDs: ids,
			ClaimedTotalCents:  1968,
		})
		assert.ErrorIs(t, err, domain.ErrInstanceNotEligible)
	})
}

func TestRequestPayout_OwnershipAndEligibility(t *testing.T) {
	db := openPayoutDB(t, "payout_ownership")
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	svc, node := newPayoutService(t, db, clock.Fixed(now))
	ctx := context.Background()

	owner := seedPayoutEmployee(t, db, node)
	other := seedPayoutEmployee(t, db, node)
	inst := seedCompletedInstance(t, db, node, owner, 984, now.Add(-24*time.Hour))

	_, err := svc.RequestPayout(ctx, domain.RequestPayoutInput{
		EmployeeID:         other,
		ServiceInstanceIDs: []snowflake.ID{inst.ID},
		ClaimedTotalCents:  984,
	})
	assert.ErrorIs(t, err, domain.ErrInstanceNotEligible)

	_, err = svc.RequestPayout(ctx, domain.RequestPayoutInput{
		EmployeeID:        owner,
		ClaimedTotalCents: 0,
	})
	require.Error(t, err)
	assert.Equal(t, "empty_payout_request", errs.CodeOf(err))

	// The owner's untouched instance is still PENDING.
	var stored instancedomain.ServiceInstance
	require.NoError(t, db.First(&stored, "id = ?", inst.ID).Error)
	assert.Equal(t, instancedomain.PaymentStatusPending, stored.PaymentStatus)
}

func TestRequestPayout_RequiresPayoutAccount(t *testing.T) {
	db := openPayoutDB(t, "payout_account")
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	svc, node := newPayoutService(t, db, clock.Fixed(now))
	ctx := context.Background()

	_, err := svc.RequestPayout(ctx, domain.RequestPayoutInput{
		EmployeeID:         node.Generate(),
		ServiceInstanceIDs: []snowflake.ID{node.Generate()},
		ClaimedTotalCents:  984,
	})
	assert.ErrorIs(t, err, employeedomain.ErrEmployeeNotFound)

	noAccount := employeedomain.Employee{
		ID:        node.Generate(),
		Name:      "No Account",
		Email:     "noaccount@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(&noAccount).Error)
	inst := seedCompletedInstance(t, db, node, noAccount.ID, 984, now.Add(-24*time.Hour))

	_, err = svc.RequestPayout(ctx, domain.RequestPayoutInput{
		EmployeeID:         noAccount.ID,
		ServiceInstanceIDs: []snowflake.ID{inst.ID},
		ClaimedTotalCents:  984,
	})
	require.Error(t, err)
	assert.Equal(t, "missing_payout_account", errs.CodeOf(err))
}

func TestRequestPayout_BelowMinimum(t *testing.T) {
	db := openPayoutDB(t, "payout_minimum")
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	svc, node := newPayoutService(t, db, clock.Fixed(now))
	ctx := context.Background()

	employeeID := seedPayoutEmployee(t, db, node)
	inst := seedCompletedInstance(t, db, node, employeeID, 30, now.Add(-24*time.Hour))

	_, err := svc.RequestPayout(ctx, domain.RequestPayoutInput{
		EmployeeID:         employeeID,
		ServiceInstanceIDs: []snowflake.ID{inst.ID},
		ClaimedTotalCents:  30,
	})
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
}

func TestRequestPayout_IncludesPendingCommissions(t *testing.T) {
	db := openPayoutDB(t, "payout_commissions")
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	svc, node := newPayoutService(t, db, clock.Fixed(now))
	ctx := context.Background()

	employeeID := seedPayoutEmployee(t, db, node)
	inst := seedCompletedInstance(t, db, node, employeeID, 984, now.Add(-24*time.Hour))

	commission, err := svc.AccrueCommission(ctx, domain.AccrueCommissionInput{
		EmployeeID:       employeeID,
		SourceEmployeeID: node.Generate(),
		Amount:           250,
		Note:             "referred worker first month",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CommissionStatusPending, commission.Status)

	result, err := svc.RequestPayout(ctx, domain.RequestPayoutInput{
		EmployeeID:         employeeID,
		ServiceInstanceIDs: []snowflake.ID{inst.ID},
		ClaimedTotalCents:  984,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(984), result.Payout.EarningsAmount)
	assert.Equal(t, int64(250), result.Payout.CommissionAmount)
	assert.Equal(t, int64(1234), result.Payout.TotalAmount)

	var stored domain.ReferralCommission
	require.NoError(t, db.First(&stored, "id = ?", commission.ID).Error)
	assert.Equal(t, domain.CommissionStatusPayoutRequested, stored.Status)
	require.NotNil(t, stored.PayoutID)
	assert.Equal(t, result.Payout.ID, *stored.PayoutID)
}

// stealingRepo lets another payout claim the listed commissions between the
// pending read and the settlement transaction.
type stealingRepo struct {
	domain.Repository
	db    *gorm.DB
	node  *snowflake.Node
	stole bool
}

func (r *stealingRepo) ListPendingCommissions(ctx context.Context, db *gorm.DB, employeeID snowflake.ID) ([]domain.ReferralCommission, error) {
	pending, err := r.Repository.ListPendingCommissions(ctx, db, employeeID)
	if err != nil || r.stole {
		return pending, err
	}
	r.stole = true
	rival := r.node.Generate()
	for _, c := range pending {
		err := r.db.Model(&domain.ReferralCommission{}).
			Where("id = ?", c.ID).
			Updates(map[string]any{
				"status":    domain.CommissionStatusPayoutRequested,
				"payout_id": rival,
			}).Error
		if err != nil {
			return nil, err
		}
	}
	return pending, nil
}

func TestRequestPayout_ConcurrentCommissionClaimRollsBack(t *testing.T) {
	db := openPayoutDB(t, "payout_commission_race")
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	svc, node := newPayoutService(t, db, clock.Fixed(now))
	svc.repo = &stealingRepo{Repository: svc.repo, db: db, node: node}
	ctx := context.Background()

	employeeID := seedPayoutEmployee(t, db, node)
	inst := seedCompletedInstance(t, db, node, employeeID, 984, now.Add(-24*time.Hour))
	_, err := svc.AccrueCommission(ctx, domain.AccrueCommissionInput{
		EmployeeID:       employeeID,
		SourceEmployeeID: node.Generate(),
		Amount:           250,
	})
	require.NoError(t, err)

	_, err = svc.RequestPayout(ctx, domain.RequestPayoutInput{
		EmployeeID:         employeeID,
		ServiceInstanceIDs: []snowflake.ID{inst.ID},
		ClaimedTotalCents:  984,
	})
	assert.ErrorIs(t, err, domain.ErrPayoutConflict)

	// The whole settlement rolled back: the instance is still PENDING and no
	// payout row exists.
	var stored instancedomain.ServiceInstance
	require.NoError(t, db.First(&stored, "id = ?", inst.ID).Error)
	assert.Equal(t, instancedomain.PaymentStatusPending, stored.PaymentStatus)

	var payouts int64
	require.NoError(t, db.Model(&domain.Payout{}).Count(&payouts).Error)
	assert.Zero(t, payouts)
}

func TestMarkPaid_AdvancesEverything(t *testing.T) {
	db := openPayoutDB(t, "payout_paid")
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	svc, node := newPayoutService(t, db, clock.Fixed(now))
	ctx := context.Background()

	employeeID := seedPayoutEmployee(t, db, node)
	inst := seedCompletedInstance(t, db, node, employeeID, 984, now.Add(-24*time.Hour))
	_, err := svc.AccrueCommission(ctx, domain.AccrueCommissionInput{
		EmployeeID:       employeeID,
		SourceEmployeeID: node.Generate(),
		Amount:           100,
	})
	require.NoError(t, err)

	requested, err := svc.RequestPayout(ctx, domain.RequestPayoutInput{
		EmployeeID:         employeeID,
		ServiceInstanceIDs: []snowflake.ID{inst.ID},
		ClaimedTotalCents:  984,
	})
	require.NoError(t, err)

	paid, err := svc.MarkPaid(ctx, requested.Payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	var storedInst instancedomain.ServiceInstance
	require.NoError(t, db.First(&storedInst, "id = ?", inst.ID).Error)
	assert.Equal(t, instancedomain.PaymentStatusPaid, storedInst.PaymentStatus)

	var storedCommission domain.ReferralCommission
	require.NoError(t, db.First(&storedCommission, "employee_id = ?", employeeID).Error)
	assert.Equal(t, domain.CommissionStatusPaid, storedCommission.Status)

	_, err = svc.MarkPaid(ctx, requested.Payout.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)

	_, err = svc.MarkPaid(ctx, node.Generate())
	assert.ErrorIs(t, err, domain.ErrPayoutNotFound)
}

func TestEarningsSummary_GroupsByWeekAndDay(t *testing.T) {
	db := openPayoutDB(t, "payout_summary")
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	svc, node := newPayoutService(t, db, clock.Fixed(now))
	ctx := context.Background()

	employeeID := node.Generate()
	// Week of Feb 2: two jobs on Tuesday, one on Wednesday.
	seedCompletedInstance(t, db, node, employeeID, 984, time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC))
	seedCompletedInstance(t, db, node, employeeID, 984, time.Date(2026, 2, 3, 18, 0, 0, 0, time.UTC))
	seedCompletedInstance(t, db, node, employeeID, 1200, time.Date(2026, 2, 4, 15, 0, 0, 0, time.UTC))
	// Week of Feb 9.
	seedCompletedInstance(t, db, node, employeeID, 984, time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC))
	// Someone else's job stays out of the summary.
	seedCompletedInstance(t, db, node, node.Generate(), 5000, time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC))

	summary, err := svc.EarningsSummary(ctx, employeeID, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, employeeID, summary.EmployeeID)
	assert.Equal(t, int64(4152), summary.Total)
	require.Len(t, summary.Weeks, 2)

	first := summary.Weeks[0]
	assert.Equal(t, "2026-02-02", first.WeekStart)
	assert.Equal(t, "2026-02-08", first.WeekEnd)
	assert.Equal(t, int64(3168), first.WeeklyTotal)
	assert.Equal(t, 3, first.JobCount)
	require.Len(t, first.DailyBreakdown, 2)
	assert.Equal(t, "2026-02-03", first.DailyBreakdown[0].Date)
	assert.Equal(t, int64(1968), first.DailyBreakdown[0].TotalAmount)
	assert.Equal(t, 2, first.DailyBreakdown[0].JobCount)
	assert.Equal(t, "2026-02-04", first.DailyBreakdown[1].Date)

	second := summary.Weeks[1]
	assert.Equal(t, "2026-02-09", second.WeekStart)
	assert.Equal(t, int64(984), second.WeeklyTotal)
	assert.Equal(t, 1, second.JobCount)
}
