package repository

import (
	"context"
	"time"

	querylogdomain "github.com/quotaapp/searchd/internal/querylog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() querylogdomain.Repository {
	return &repo{}
}

func (r *repo) CountSince(ctx context.Context, db *gorm.DB, userID string, sinceUTC time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&querylogdomain.QueryLog{}).
		Where("user_id = ? AND created_at_utc >= ?", userID, sinceUTC).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *querylogdomain.QueryLog) error {
	return db.WithContext(ctx).Create(record).Error
}
