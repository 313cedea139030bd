package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/subscription/domain"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("id = ?", id).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListActiveByServiceDay(ctx context.Context, db *gorm.DB, serviceDay int) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("status = ? AND service_day = ?", domain.SubscriptionStatusActive, serviceDay).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

// UpdateStatus transitions the subscription status conditionally. The update
// only lands when the current status is one of from; the bool result reports
// whether a row changed.
func (r *repository) UpdateStatus(
	ctx context.Context,
	db *gorm.DB,
	id snowflake.ID,
	from []domain.SubscriptionStatus,
	to domain.SubscriptionStatus,
	endDate *time.Time,
	at time.Time,
) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	if endDate != nil {
		updates["end_date"] = *endDate
	}

	result := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) InsertPlan(ctx context.Context, db *gorm.DB, plan *domain.ServicePlan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repository) FindPlan(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ServicePlan, error) {
	var plan domain.ServicePlan
	err := db.WithContext(ctx).Model(&domain.ServicePlan{}).
		Where("id = ?", id).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
