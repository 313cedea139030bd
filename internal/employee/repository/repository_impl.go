package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/employee/domain"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, emp *domain.Employee) error {
	return db.WithContext(ctx).Create(emp).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Employee, error) {
	var emp domain.Employee
	err := db.WithContext(ctx).Model(&domain.Employee{}).
		Where("id = ?", id).
		First(&emp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &emp, nil
}

func (r *repository) SetServiceAreaReady(ctx context.Context, db *gorm.DB, id snowflake.ID, ready bool, at time.Time) error {
	return db.WithContext(ctx).Model(&domain.Employee{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"service_area_ready": ready,
			"updated_at":         at,
		}).Error
}
