package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/payout/domain"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) InsertPayout(ctx context.Context, db *gorm.DB, payout *domain.Payout) error {
	return db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindPayout(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payout, error) {
	var payout domain.Payout
	err := db.WithContext(ctx).Model(&domain.Payout{}).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) MarkPayoutPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Model(&domain.Payout{}).
		Where("id = ? AND status = ?", id, domain.PayoutStatusRequested).
		Updates(map[string]any{
			"status":  domain.PayoutStatusPaid,
			"paid_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) InsertCommission(ctx context.Context, db *gorm.DB, commission *domain.ReferralCommission) error {
	return db.WithContext(ctx).Create(commission).Error
}

func (r *repository) ListPendingCommissions(ctx context.Context, db *gorm.DB, employeeID snowflake.ID) ([]domain.ReferralCommission, error) {
	var commissions []domain.ReferralCommission
	err := db.WithContext(ctx).Model(&domain.ReferralCommission{}).
		Where("employee_id = ? AND status = ?", employeeID, domain.CommissionStatusPending).
		Order("created_at ASC").
		Find(&commissions).Error
	return commissions, err
}

func (r *repository) AttachCommissions(ctx context.Context, db *gorm.DB, ids []snowflake.ID, payoutID snowflake.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Model(&domain.ReferralCommission{}).
		Where("id IN ? AND status = ?", ids, domain.CommissionStatusPending).
		Updates(map[string]any{
			"status":     domain.CommissionStatusPayoutRequested,
			"payout_id":  payoutID,
			"updated_at": at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) AdvanceCommissions(ctx context.Context, db *gorm.DB, payoutID snowflake.ID, from, to domain.CommissionStatus, at time.Time) error {
	return db.WithContext(ctx).Model(&domain.ReferralCommission{}).
		Where("payout_id = ? AND status = ?", payoutID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at,
		}).Error
}
