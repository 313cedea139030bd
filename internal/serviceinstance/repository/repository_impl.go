package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, inst *domain.ServiceInstance) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}, {Name: "period_key"}},
			DoNothing: true,
		}).
		Create(inst)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ServiceInstance, error) {
	var inst domain.ServiceInstance
	err := db.WithContext(ctx).Model(&domain.ServiceInstance{}).
		Where("id = ?", id).
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inst, nil
}

func (r *repository) ListAvailable(ctx context.Context, db *gorm.DB, from time.Time) ([]domain.ServiceInstance, error) {
	var items []domain.ServiceInstance
	err := db.WithContext(ctx).Model(&domain.ServiceInstance{}).
		Where("status = ? AND employee_id IS NULL AND is_locked = ? AND scheduled_date >= ?",
			domain.StatusScheduled, false, from).
		Order("scheduled_date ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) ListStaleUnclaimed(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.ServiceInstance, error) {
	var items []domain.ServiceInstance
	err := db.WithContext(ctx).Model(&domain.ServiceInstance{}).
		Where("status = ? AND employee_id IS NULL AND scheduled_date < ?",
			domain.StatusScheduled, cutoff).
		Order("scheduled_date ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) ListCompletedPending(ctx context.Context, db *gorm.DB, employeeID snowflake.ID, ids []snowflake.ID) ([]domain.ServiceInstance, error) {
	var items []domain.ServiceInstance
	err := db.WithContext(ctx).Model(&domain.ServiceInstance{}).
		Where("id IN ? AND employee_id = ? AND status = ? AND payment_status = ?",
			ids, employeeID, domain.StatusCompleted, domain.PaymentStatusPending).
		Find(&items).Error
	return items, err
}

func (r *repository) ListCompletedSince(ctx context.Context, db *gorm.DB, employeeID snowflake.ID, since time.Time) ([]domain.ServiceInstance, error) {
	var items []domain.ServiceInstance
	err := db.WithContext(ctx).Model(&domain.ServiceInstance{}).
		Where("employee_id = ? AND status = ? AND completed_date >= ?",
			employeeID, domain.StatusCompleted, since).
		Order("completed_date ASC").
		Find(&items).Error
	return items, err
}

// Claim is the exclusivity point: the conditional update only lands when no
// employee holds the instance, so concurrent claimants resolve to one winner.
func (r *repository) Claim(ctx context.Context, db *gorm.DB, id, employeeID snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Model(&domain.ServiceInstance{}).
		Where("id = ? AND status = ? AND employee_id IS NULL AND is_locked = ?",
			id, domain.StatusScheduled, false).
		Updates(map[string]any{
			"status":      domain.StatusClaimed,
			"employee_id": employeeID,
			"claimed_at":  at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Start(ctx context.Context, db *gorm.DB, id, employeeID snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Model(&domain.ServiceInstance{}).
		Where("id = ? AND status = ? AND employee_id = ?",
			id, domain.StatusClaimed, employeeID).
		Updates(map[string]any{
			"status":     domain.StatusInProgress,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Complete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Model(&domain.ServiceInstance{}).
		Where("id = ? AND status = ?", id, domain.StatusInProgress).
		Updates(map[string]any{
			"status":         domain.StatusCompleted,
			"completed_date": at,
			"updated_at":     at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, note string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE service_instances
		 SET status = ?, notes = notes || ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		domain.StatusCancelled, note, at, id, from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Reschedule(ctx context.Context, db *gorm.DB, id snowflake.ID, newDate time.Time, cutoff time.Time, note string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE service_instances
		 SET scheduled_date = ?, notes = notes || ?, updated_at = ?
		 WHERE id = ? AND status = ? AND employee_id IS NULL AND scheduled_date < ?`,
		newDate, note, at, id, domain.StatusScheduled, cutoff,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AppendNote(ctx context.Context, db *gorm.DB, id snowflake.ID, note string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE service_instances SET notes = notes || ?, updated_at = ? WHERE id = ?`,
		note, at, id,
	).Error
}

func (r *repository) AdvancePaymentStatus(ctx context.Context, db *gorm.DB, ids []snowflake.ID, from, to domain.PaymentStatus, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Model(&domain.ServiceInstance{}).
		Where("id IN ? AND payment_status = ?", ids, from).
		Updates(map[string]any{
			"payment_status": to,
			"updated_at":     at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
