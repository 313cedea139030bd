// Package domain contains the payment-retry record and its processing
// contracts.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

var (
	ErrRetryNotFound   = errs.NotFound("retry_not_found", "payment retry not found")
	ErrMaxAttempts     = errs.Validation("max_attempts_reached", "retry chain exhausted its attempt budget")
	ErrAlreadyTerminal = errs.Conflict("retry_already_terminal", "payment retry already processed")
)

// StatusChange is one entry of the append-only status history. Entries are
// strictly chronological; AppendHistory enforces the ordering.
type StatusChange struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentRetry is one scheduled execution against a previously failed
// charge. Terminal records are never rescheduled; the billing policy opens a
// new record for the next attempt instead.
type PaymentRetry struct {
	ID               snowflake.ID  `gorm:"primaryKey"`
	PaymentID        snowflake.ID  `gorm:"not null;index"`
	PaymentReference string        `gorm:"type:text;not null"`
	SubscriptionID   *snowflake.ID `gorm:"index"`

	Status        Status     `gorm:"type:text;not null;index"`
	AttemptCount  int        `gorm:"not null"`
	ScheduledDate time.Time  `gorm:"not null;index"`
	ProcessedAt   *time.Time `gorm:""`
	FailureReason *string    `gorm:"type:text"`
	TransactionID *string    `gorm:"type:text"`

	StatusHistory datatypes.JSONSlice[StatusChange] `gorm:""`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (PaymentRetry) TableName() string { return "payment_retries" }

// AppendHistory adds an entry, keeping the history chronological. An entry
// older than the current tail is stamped at the tail's time instead of
// reordering the list.
func (r *PaymentRetry) AppendHistory(status Status, at time.Time) {
	if n := len(r.StatusHistory); n > 0 && at.Before(r.StatusHistory[n-1].Timestamp) {
		at = r.StatusHistory[n-1].Timestamp
	}
	r.StatusHistory = append(r.StatusHistory, StatusChange{Status: status, Timestamp: at})
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, retry *PaymentRetry) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentRetry, error)
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]PaymentRetry, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]PaymentRetry, error)
	CountAttempts(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error)

	// MarkProcessed persists the terminal outcome, conditioned on the row
	// still being SCHEDULED; the bool result reports whether it landed.
	MarkProcessed(ctx context.Context, db *gorm.DB, retry *PaymentRetry) (bool, error)
}
