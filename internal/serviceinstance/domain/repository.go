package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository mutates instances with conditional updates: every transition is
// guarded by the expected current state and reports whether a row changed,
// so concurrent writers resolve to exactly one winner.
type Repository interface {
	// Insert creates the instance unless the (customer, period) slot is
	// already taken; the bool result reports whether a row was created.
	Insert(ctx context.Context, db *gorm.DB, inst *ServiceInstance) (bool, error)

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceInstance, error)
	ListAvailable(ctx context.Context, db *gorm.DB, from time.Time) ([]ServiceInstance, error)
	ListStaleUnclaimed(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]ServiceInstance, error)
	ListCompletedPending(ctx context.Context, db *gorm.DB, employeeID snowflake.ID, ids []snowflake.ID) ([]ServiceInstance, error)
	ListCompletedSince(ctx context.Context, db *gorm.DB, employeeID snowflake.ID, since time.Time) ([]ServiceInstance, error)

	// Claim sets the employee atomically, conditioned on the instance being
	// SCHEDULED, unclaimed, and unlocked.
	Claim(ctx context.Context, db *gorm.DB, id, employeeID snowflake.ID, at time.Time) (bool, error)
	Start(ctx context.Context, db *gorm.DB, id, employeeID snowflake.ID, at time.Time) (bool, error)
	Complete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, note string, at time.Time) (bool, error)

	// Reschedule moves a stale unclaimed instance forward, appending note to
	// the audit trail. Guarded on scheduled_date < cutoff so a rerun within
	// the same day is a no-op.
	Reschedule(ctx context.Context, db *gorm.DB, id snowflake.ID, newDate time.Time, cutoff time.Time, note string, at time.Time) (bool, error)

	AppendNote(ctx context.Context, db *gorm.DB, id snowflake.ID, note string, at time.Time) error

	// AdvancePaymentStatus moves the payment status ladder for the given
	// set and returns the number of rows moved.
	AdvancePaymentStatus(ctx context.Context, db *gorm.DB, ids []snowflake.ID, from, to PaymentStatus, at time.Time) (int64, error)
}
