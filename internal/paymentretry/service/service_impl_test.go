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
	gatewaydomain "github.com/tidyroundlabs/tidyround/internal/gateway/domain"
	"github.com/tidyroundlabs/tidyround/internal/metrics"
	"github.com/tidyroundlabs/tidyround/internal/paymentretry/domain"
	"github.com/tidyroundlabs/tidyround/internal/paymentretry/repository"
	subscriptiondomain "github.com/tidyroundlabs/tidyround/internal/subscription/domain"
	subscriptionrepo "github.com/tidyroundlabs/tidyround/internal/subscription/repository"
)

// gatewayStub returns a canned outcome per payment reference.
type gatewayStub struct {
	results map[string]gatewaydomain.ChargeResult
	errs    map[string]error
	calls   int
}

func (g *gatewayStub) ChargeRetry(ctx context.Context, paymentReference string) (gatewaydomain.ChargeResult, error) {
	g.calls++
	if err, ok := g.errs[paymentReference]; ok {
		return gatewaydomain.ChargeResult{}, err
	}
	return g.results[paymentReference], nil
}

func openRetryDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.PaymentRetry{}, &subscriptiondomain.Subscription{}))
	return db
}

func newRetryService(t *testing.T, db *gorm.DB, clk clock.Clock, gw gatewaydomain.Gateway) (*Service, *snowflake.Node) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Cfg: config.Config{
			Retry:   config.RetryConfig{MaxAttempts: 3, Backoff: 24 * time.Hour},
			Gateway: config.GatewayConfig{Timeout: 5 * time.Second},
		},
		Repo:    repository.Provide(),
		SubRepo: subscriptionrepo.Provide(),
		Gateway: gw,
		Metrics: metrics.New(),
	})
	return svc.(*Service), node
}

func TestScheduleNext_BackoffAndAttemptBudget(t *testing.T) {
	db := openRetryDB(t, "retry_schedule")
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, node := newRetryService(t, db, clock.Fixed(now), &gatewayStub{})
	ctx := context.Background()

	paymentID := node.Generate()

	first, err := svc.ScheduleNext(ctx, domain.ScheduleRequest{
		PaymentID:        paymentID,
		PaymentReference: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, first.Status)
	assert.Equal(t, 1, first.AttemptCount)
	assert.Equal(t, now.Add(24*time.Hour), first.ScheduledDate)
	require.Len(t, first.StatusHistory, 1)
	assert.Equal(t, domain.StatusScheduled, first.StatusHistory[0].Status)

	second, err := svc.ScheduleNext(ctx, domain.ScheduleRequest{
		PaymentID:        paymentID,
		PaymentReference: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.AttemptCount)
	assert.Equal(t, now.Add(48*time.Hour), second.ScheduledDate)

	_, err = svc.ScheduleNext(ctx, domain.ScheduleRequest{PaymentID: paymentID, PaymentReference: "pi_1"})
	require.NoError(t, err)

	_, err = svc.ScheduleNext(ctx, domain.ScheduleRequest{PaymentID: paymentID, PaymentReference: "pi_1"})
	assert.ErrorIs(t, err, domain.ErrMaxAttempts)
}

func TestScheduleNext_RequiresReference(t *testing.T) {
	db := openRetryDB(t, "retry_reference")
	svc, node := newRetryService(t, db, clock.Fixed(time.Now().UTC()), &gatewayStub{})

	_, err := svc.ScheduleNext(context.Background(), domain.ScheduleRequest{PaymentID: node.Generate()})
	require.Error(t, err)

	missing := node.Generate()
	_, err = svc.ScheduleNext(context.Background(), domain.ScheduleRequest{
		PaymentID:        node.Generate(),
		PaymentReference: "pi_orphan",
		SubscriptionID:   &missing,
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)
}

func seedRetry(t *testing.T, db *gorm.DB, node *snowflake.Node, ref string, scheduled time.Time, mutate func(*domain.PaymentRetry)) domain.PaymentRetry {
	t.Helper()
	retry := domain.PaymentRetry{
		ID:               node.Generate(),
		PaymentID:        node.Generate(),
		PaymentReference: ref,
		Status:           domain.StatusScheduled,
		AttemptCount:     1,
		ScheduledDate:    scheduled,
		CreatedAt:        scheduled.Add(-24 * time.Hour),
		UpdatedAt:        scheduled.Add(-24 * time.Hour),
	}
	retry.AppendHistory(domain.StatusScheduled, retry.CreatedAt)
	if mutate != nil {
		mutate(&retry)
	}
	require.NoError(t, db.Create(&retry).Error)
	return retry
}

func TestProcessDue_Outcomes(t *testing.T) {
	db := openRetryDB(t, "retry_outcomes")
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	gw := &gatewayStub{
		results: map[string]gatewaydomain.ChargeResult{
			"pi_ok":      {Success: true, TransactionID: "txn_123"},
			"pi_decline": {Success: false, ReasonCode: "card_declined"},
		},
		errs: map[string]error{
			"pi_down": gatewaydomain.ErrGatewayUnavailable,
		},
	}
	svc, node := newRetryService(t, db, clock.Fixed(now), gw)
	ctx := context.Background()

	ok := seedRetry(t, db, node, "pi_ok", now.Add(-time.Hour), nil)
	declined := seedRetry(t, db, node, "pi_decline", now.Add(-time.Hour), nil)
	down := seedRetry(t, db, node, "pi_down", now.Add(-time.Hour), nil)
	// Not yet due; must stay untouched.
	pending := seedRetry(t, db, node, "pi_later", now.Add(time.Hour), nil)

	result, err := svc.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{ok.ID}, result.Succeeded)
	assert.ElementsMatch(t, []snowflake.ID{declined.ID, down.ID}, result.Failed)
	assert.Zero(t, result.Errors)

	var stored domain.PaymentRetry
	require.NoError(t, db.First(&stored, "id = ?", ok.ID).Error)
	assert.Equal(t, domain.StatusSuccess, stored.Status)
	require.NotNil(t, stored.TransactionID)
	assert.Equal(t, "txn_123", *stored.TransactionID)
	require.Len(t, stored.StatusHistory, 2)
	assert.Equal(t, domain.StatusScheduled, stored.StatusHistory[0].Status)
	assert.Equal(t, domain.StatusSuccess, stored.StatusHistory[1].Status)
	assert.False(t, stored.StatusHistory[1].Timestamp.Before(stored.StatusHistory[0].Timestamp))

	stored = domain.PaymentRetry{}
	require.NoError(t, db.First(&stored, "id = ?", declined.ID).Error)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, "card_declined", *stored.FailureReason)

	// Transport failure fails closed instead of leaving the row SCHEDULED.
	stored = domain.PaymentRetry{}
	require.NoError(t, db.First(&stored, "id = ?", down.ID).Error)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, "gateway_unavailable", *stored.FailureReason)

	stored = domain.PaymentRetry{}
	require.NoError(t, db.First(&stored, "id = ?", pending.ID).Error)
	assert.Equal(t, domain.StatusScheduled, stored.Status)

	// Terminal rows are never picked up again.
	gw.calls = 0
	rerun, err := svc.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, rerun.Succeeded)
	assert.Empty(t, rerun.Failed)
	assert.Zero(t, gw.calls)
}

func seedLinkedSubscription(t *testing.T, db *gorm.DB, node *snowflake.Node, status subscriptiondomain.SubscriptionStatus) subscriptiondomain.Subscription {
	t.Helper()
	now := time.Now().UTC()
	sub := subscriptiondomain.Subscription{
		ID:            node.Generate(),
		CustomerID:    node.Generate(),
		PlanID:        node.Generate(),
		Status:        status,
		PaymentMethod: "card",
		ServiceDay:    int(time.Monday),
		StartDate:     now.AddDate(0, -1, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, db.Create(&sub).Error)
	return sub
}

func TestProcessDue_SyncsSubscriptionStatus(t *testing.T) {
	db := openRetryDB(t, "retry_sub_sync")
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	gw := &gatewayStub{
		results: map[string]gatewaydomain.ChargeResult{
			"pi_recover": {Success: true, TransactionID: "txn_rec"},
			"pi_final":   {Success: false, ReasonCode: "card_declined"},
			"pi_midway":  {Success: false, ReasonCode: "card_declined"},
		},
	}
	svc, node := newRetryService(t, db, clock.Fixed(now), gw)
	ctx := context.Background()

	// A successful retry recovers a past-due subscription.
	pastDue := seedLinkedSubscription(t, db, node, subscriptiondomain.SubscriptionStatusPastDue)
	seedRetry(t, db, node, "pi_recover", now.Add(-time.Hour), func(r *domain.PaymentRetry) {
		r.SubscriptionID = &pastDue.ID
	})

	// Exhausting the attempt budget marks the subscription past due.
	active := seedLinkedSubscription(t, db, node, subscriptiondomain.SubscriptionStatusActive)
	seedRetry(t, db, node, "pi_final", now.Add(-time.Hour), func(r *domain.PaymentRetry) {
		r.SubscriptionID = &active.ID
		r.AttemptCount = 3
	})

	// A non-final failure leaves the subscription alone.
	untouched := seedLinkedSubscription(t, db, node, subscriptiondomain.SubscriptionStatusActive)
	seedRetry(t, db, node, "pi_midway", now.Add(-time.Hour), func(r *domain.PaymentRetry) {
		r.SubscriptionID = &untouched.ID
	})

	_, err := svc.ProcessDue(ctx)
	require.NoError(t, err)

	var stored subscriptiondomain.Subscription
	require.NoError(t, db.First(&stored, "id = ?", pastDue.ID).Error)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, stored.Status)

	stored = subscriptiondomain.Subscription{}
	require.NoError(t, db.First(&stored, "id = ?", active.ID).Error)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusPastDue, stored.Status)

	stored = subscriptiondomain.Subscription{}
	require.NoError(t, db.First(&stored, "id = ?", untouched.ID).Error)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, stored.Status)
}

func TestReport_AggregatesHistory(t *testing.T) {
	db := openRetryDB(t, "retry_report")
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, node := newRetryService(t, db, clock.Fixed(now), &gatewayStub{})
	ctx := context.Background()

	base := now.Add(-48 * time.Hour)
	withHistory := func(terminal domain.Status, after time.Duration) func(*domain.PaymentRetry) {
		return func(r *domain.PaymentRetry) {
			r.Status = terminal
			r.StatusHistory = nil
			r.AppendHistory(domain.StatusScheduled, base)
			r.AppendHistory(terminal, base.Add(after))
		}
	}
	seedRetry(t, db, node, "pi_a", base, withHistory(domain.StatusSuccess, 2*time.Hour))
	seedRetry(t, db, node, "pi_b", base, withHistory(domain.StatusSuccess, 4*time.Hour))
	seedRetry(t, db, node, "pi_c", base, withHistory(domain.StatusFailed, time.Hour))

	report, err := svc.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalRetries)
	assert.Equal(t, 2, report.TransitionCounts["SCHEDULED->SUCCESS"])
	assert.Equal(t, 1, report.TransitionCounts["SCHEDULED->FAILED"])
	assert.Equal(t, 3*time.Hour, report.AvgTimeInTransition["SCHEDULED->SUCCESS"])
	require.NotNil(t, report.MostCommonSuccessPath)
	assert.Equal(t, []domain.Status{domain.StatusScheduled, domain.StatusSuccess}, report.MostCommonSuccessPath.Path)
	assert.Equal(t, 2, report.MostCommonSuccessPath.Count)
}
