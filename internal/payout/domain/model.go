// Package domain contains payout batches and referral commissions.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

type PayoutStatus string

const (
	PayoutStatusRequested PayoutStatus = "REQUESTED"
	PayoutStatusPaid      PayoutStatus = "PAID"
)

type CommissionStatus string

const (
	CommissionStatusPending         CommissionStatus = "PENDING"
	CommissionStatusPayoutRequested CommissionStatus = "PAYOUT_REQUESTED"
	CommissionStatusPaid            CommissionStatus = "PAID"
)

var (
	ErrPayoutNotFound = errs.NotFound("payout_not_found", "payout not found")
	// ErrInstanceNotEligible covers instances missing, not owned by the
	// requester, or not COMPLETED+PENDING.
	ErrInstanceNotEligible = errs.Validation("instance_not_eligible", "one or more instances are not eligible for payout")
	ErrBelowMinimum        = errs.Validation("below_minimum_payout", "requested total is below the minimum payout amount")
	ErrPayoutConflict      = errs.Conflict("payout_conflict", "instances were settled by a concurrent payout")
	ErrAlreadyPaid         = errs.Conflict("payout_already_paid", "payout is already marked paid")
)

// Payout is a batched settlement of completed-instance earnings plus any
// pending referral commissions for one employee.
type Payout struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	Reference  string       `gorm:"type:text;not null;uniqueIndex"`
	EmployeeID snowflake.ID `gorm:"not null;index"`

	Status PayoutStatus `gorm:"type:text;not null;index"`

	// EarningsAmount is the validated sum over InstanceIDs;
	// CommissionAmount is added on top from pending referral commissions.
	EarningsAmount   int64 `gorm:"not null"`
	CommissionAmount int64 `gorm:"not null"`
	TotalAmount      int64 `gorm:"not null"`

	InstanceIDs datatypes.JSONSlice[snowflake.ID] `gorm:""`

	CreatedAt time.Time  `gorm:"not null"`
	PaidAt    *time.Time `gorm:""`
}

func (Payout) TableName() string { return "payouts" }

// ReferralCommission accrues when a referred worker produces revenue; it is
// settled alongside regular earnings.
type ReferralCommission struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	EmployeeID snowflake.ID `gorm:"not null;index"`
	// SourceEmployeeID is the referred worker whose activity earned this.
	SourceEmployeeID snowflake.ID     `gorm:"not null"`
	Amount           int64            `gorm:"not null"`
	Status           CommissionStatus `gorm:"type:text;not null;index"`
	PayoutID         *snowflake.ID    `gorm:"index"`
	Note             string           `gorm:"type:text"`
	CreatedAt        time.Time        `gorm:"not null"`
	UpdatedAt        time.Time        `gorm:"not null"`
}

func (ReferralCommission) TableName() string { return "referral_commissions" }

type Repository interface {
	InsertPayout(ctx context.Context, db *gorm.DB, payout *Payout) error
	FindPayout(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payout, error)
	MarkPayoutPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	InsertCommission(ctx context.Context, db *gorm.DB, commission *ReferralCommission) error
	ListPendingCommissions(ctx context.Context, db *gorm.DB, employeeID snowflake.ID) ([]ReferralCommission, error)
	AttachCommissions(ctx context.Context, db *gorm.DB, ids []snowflake.ID, payoutID snowflake.ID, at time.Time) (int64, error)
	AdvanceCommissions(ctx context.Context, db *gorm.DB, payoutID snowflake.ID, from, to CommissionStatus, at time.Time) error
}
