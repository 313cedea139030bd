package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/paymentretry/domain"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, retry *domain.PaymentRetry) error {
	return db.WithContext(ctx).Create(retry).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentRetry, error) {
	var retry domain.PaymentRetry
	err := db.WithContext(ctx).Model(&domain.PaymentRetry{}).
		Where("id = ?", id).
		First(&retry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &retry, nil
}

func (r *repository) ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.PaymentRetry, error) {
	if limit <= 0 {
		limit = 100
	}
	var retries []domain.PaymentRetry
	err := db.WithContext(ctx).Model(&domain.PaymentRetry{}).
		Where("status = ? AND scheduled_date <= ?", domain.StatusScheduled, now).
		Order("scheduled_date ASC").
		Limit(limit).
		Find(&retries).Error
	return retries, err
}

func (r *repository) ListAll(ctx context.Context, db *gorm.DB) ([]domain.PaymentRetry, error) {
	var retries []domain.PaymentRetry
	err := db.WithContext(ctx).Model(&domain.PaymentRetry{}).
		Order("created_at ASC").
		Find(&retries).Error
	return retries, err
}

func (r *repository) CountAttempts(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.PaymentRetry{}).
		Where("payment_id = ?", paymentID).
		Count(&count).Error
	return count, err
}

// MarkProcessed writes the terminal outcome. The status guard means a retry
// already moved to SUCCESS or FAILED elsewhere stays untouched: no terminal
// state ever goes back to SCHEDULED, and no terminal state is overwritten.
func (r *repository) MarkProcessed(ctx context.Context, db *gorm.DB, retry *domain.PaymentRetry) (bool, error) {
	result := db.WithContext(ctx).Model(&domain.PaymentRetry{}).
		Where("id = ? AND status = ?", retry.ID, domain.StatusScheduled).
		Updates(map[string]any{
			"status":         retry.Status,
			"processed_at":   retry.ProcessedAt,
			"failure_reason": retry.FailureReason,
			"transaction_id": retry.TransactionID,
			"status_history": retry.StatusHistory,
			"updated_at":     retry.ProcessedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
