// Package domain holds the field-worker model consumed by claim guards and
// payout settlement.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

var ErrEmployeeNotFound = errs.NotFound("employee_not_found", "employee not found")

type Employee struct {
	ID    snowflake.ID `gorm:"primaryKey"`
	Name  string       `gorm:"type:text;not null"`
	Email string       `gorm:"type:text;not null"`
	// ServiceAreaReady is set once the worker finishes service-area setup;
	// claiming is blocked until then.
	ServiceAreaReady bool `gorm:"not null;default:false"`
	// PayoutAccountRef identifies the worker's account at the payment
	// processor for settlement transfers.
	PayoutAccountRef string        `gorm:"type:text"`
	ReferredBy       *snowflake.ID `gorm:"index"`
	CreatedAt        time.Time     `gorm:"not null"`
	UpdatedAt        time.Time     `gorm:"not null"`
}

func (Employee) TableName() string { return "employees" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, emp *Employee) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Employee, error)
	SetServiceAreaReady(ctx context.Context, db *gorm.DB, id snowflake.ID, ready bool, at time.Time) error
}
