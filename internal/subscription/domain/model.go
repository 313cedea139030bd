// Package domain contains the subscription and plan models.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionStatusPaused    SubscriptionStatus = "PAUSED"
)

var (
	ErrSubscriptionNotFound = errs.NotFound("subscription_not_found", "subscription not found")
	ErrPlanNotFound         = errs.NotFound("plan_not_found", "service plan not found")
)

// ServicePlan is the priced recurring offering a customer subscribes to.
type ServicePlan struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Name        string       `gorm:"type:text;not null"`
	PriceAmount int64        `gorm:"not null"`
	Currency    string       `gorm:"type:text;not null"`
	CreatedAt   time.Time    `gorm:"not null"`
	UpdatedAt   time.Time    `gorm:"not null"`
}

func (ServicePlan) TableName() string { return "service_plans" }

// Subscription is never deleted, only status-transitioned.
type Subscription struct {
	ID            snowflake.ID       `gorm:"primaryKey"`
	CustomerID    snowflake.ID       `gorm:"not null;index"`
	PlanID        snowflake.ID       `gorm:"not null;index"`
	Status        SubscriptionStatus `gorm:"type:text;not null;index"`
	PaymentMethod string             `gorm:"type:text;not null"`
	// ServiceDay is the weekday the service runs, time.Weekday numbering
	// (Sunday = 0).
	ServiceDay int        `gorm:"not null"`
	StartDate  time.Time  `gorm:"not null"`
	EndDate    *time.Time `gorm:""`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// ActiveOn reports whether the subscription should be serviced on day.
func (s Subscription) ActiveOn(day time.Time) bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	if day.Before(s.StartDate) {
		return false
	}
	if s.EndDate != nil && day.After(*s.EndDate) {
		return false
	}
	return true
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	ListActiveByServiceDay(ctx context.Context, db *gorm.DB, serviceDay int) ([]Subscription, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []SubscriptionStatus, to SubscriptionStatus, endDate *time.Time, at time.Time) (bool, error)

	InsertPlan(ctx context.Context, db *gorm.DB, plan *ServicePlan) error
	FindPlan(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServicePlan, error)
}
