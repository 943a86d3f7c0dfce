package repository

import (
	"context"
	"time"

	"crmrt/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormLastSeenRepository struct {
	db *gorm.DB
}

func NewGormLastSeenRepository(db *gorm.DB) *GormLastSeenRepository {
	return &GormLastSeenRepository{db: db}
}

func (r *GormLastSeenRepository) Touch(ctx context.Context, username string, at time.Time) error {
	row := &models.LastSeen{Username: username, LastSeen: at.UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen"}),
	}).Create(row).Error
}

func (r *GormLastSeenRepository) List(ctx context.Context) ([]models.LastSeen, error) {
	var list []models.LastSeen
	err := r.db.WithContext(ctx).Order("username").Find(&list).Error
	return list, err
}
