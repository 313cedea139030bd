// Package domain contains the service-instance model and its lifecycle
// contracts.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusClaimed    Status = "CLAIMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether s admits no further lifecycle transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "PENDING"
	PaymentStatusPayoutRequested PaymentStatus = "PAYOUT_REQUESTED"
	PaymentStatusPaid            PaymentStatus = "PAID"
)

// ChecklistItem is one required or optional task configured on an instance.
type ChecklistItem struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// ServiceInstance is one concrete occurrence of a recurring service.
// The (customer_id, period_key) unique index makes concurrent generation
// races fail cleanly: the losing insert is treated as already generated.
type ServiceInstance struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	CustomerID     snowflake.ID  `gorm:"not null;uniqueIndex:idx_instance_customer_period"`
	PeriodKey      string        `gorm:"type:text;not null;uniqueIndex:idx_instance_customer_period"`
	SubscriptionID *snowflake.ID `gorm:"index"`
	ServicePlanID  snowflake.ID  `gorm:"not null"`
	EmployeeID     *snowflake.ID `gorm:"index"`

	Status        Status        `gorm:"type:text;not null;index"`
	PaymentStatus PaymentStatus `gorm:"type:text;not null;index"`

	ScheduledDate time.Time  `gorm:"not null;index"`
	ClaimedAt     *time.Time `gorm:""`
	CompletedDate *time.Time `gorm:""`

	PotentialEarnings int64  `gorm:"not null"`
	Currency          string `gorm:"type:text;not null"`

	Checklist datatypes.JSONSlice[ChecklistItem] `gorm:""`

	// Notes is an append-only audit trail, one line per entry.
	Notes    string `gorm:"type:text;not null;default:''"`
	IsLocked bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ServiceInstance) TableName() string { return "service_instances" }

// PeriodKeyFor returns the ISO-week key for t, e.g. "2026-W05". One service
// instance may exist per customer per key.
func PeriodKeyFor(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// NoteLine formats one audit-trail entry.
func NoteLine(at time.Time, text string) string {
	return at.Format("2006-01-02 15:04") + " " + text + "\n"
}
