package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/subscription/domain"
)

func openSubDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.ServicePlan{}, &domain.Subscription{}))
	return db
}

func newSub(node *snowflake.Node, day int, status domain.SubscriptionStatus) domain.Subscription {
	now := time.Now().UTC()
	return domain.Subscription{
		ID:            node.Generate(),
		CustomerID:    node.Generate(),
		PlanID:        node.Generate(),
		Status:        status,
		PaymentMethod: "card",
		ServiceDay:    day,
		StartDate:     now.AddDate(0, -1, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestListActiveByServiceDay(t *testing.T) {
	db := openSubDB(t, "sub_list")
	repo := Provide()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	monday := newSub(node, int(time.Monday), domain.SubscriptionStatusActive)
	require.NoError(t, repo.Insert(ctx, db, &monday))
	tuesday := newSub(node, int(time.Tuesday), domain.SubscriptionStatusActive)
	require.NoError(t, repo.Insert(ctx, db, &tuesday))
	pastDue := newSub(node, int(time.Monday), domain.SubscriptionStatusPastDue)
	require.NoError(t, repo.Insert(ctx, db, &pastDue))

	subs, err := repo.ListActiveByServiceDay(ctx, db, int(time.Monday))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, monday.ID, subs[0].ID)
}

func TestPlanRoundTrip(t *testing.T) {
	db := openSubDB(t, "sub_plan")
	repo := Provide()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now().UTC()
	plan := domain.ServicePlan{
		ID:          node.Generate(),
		Name:        "Weekly Standard",
		PriceAmount: 5500,
		Currency:    "usd",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.InsertPlan(ctx, db, &plan))

	stored, err := repo.FindPlan(ctx, db, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(5500), stored.PriceAmount)

	missing, err := repo.FindPlan(ctx, db, node.Generate())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateStatus_ConditionalTransitions(t *testing.T) {
	db := openSubDB(t, "sub_status")
	repo := Provide()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	sub := newSub(node, int(time.Monday), domain.SubscriptionStatusActive)
	require.NoError(t, repo.Insert(ctx, db, &sub))

	now := time.Now().UTC()

	// A failed charge marks the subscription past due.
	ok, err := repo.UpdateStatus(ctx, db, sub.ID,
		[]domain.SubscriptionStatus{domain.SubscriptionStatusActive},
		domain.SubscriptionStatusPastDue, nil, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// Recovery only lands from PAST_DUE; a stale transition from ACTIVE does not.
	ok, err = repo.UpdateStatus(ctx, db, sub.ID,
		[]domain.SubscriptionStatus{domain.SubscriptionStatusCancelled},
		domain.SubscriptionStatusActive, nil, now)
	require.NoError(t, err)
	assert.False(t, ok)

	endDate := now.AddDate(0, 0, 30)
	ok, err = repo.UpdateStatus(ctx, db, sub.ID,
		[]domain.SubscriptionStatus{domain.SubscriptionStatusPastDue, domain.SubscriptionStatusActive},
		domain.SubscriptionStatusCancelled, &endDate, now)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindByID(ctx, db, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.SubscriptionStatusCancelled, stored.Status)
	require.NotNil(t, stored.EndDate)

	// Cancellation is terminal; ActiveOn never reports true afterwards.
	assert.False(t, stored.ActiveOn(time.Now().UTC()))
}
