package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository is the append-only log store consumed by the quota engine.
// Methods take the *gorm.DB handle so the caller decides whether they run
// on the shared connection or inside an open transaction.
type Repository interface {
	// CountSince counts records for userID with created_at_utc >= sinceUTC.
	CountSince(ctx context.Context, db *gorm.DB, userID string, sinceUTC time.Time) (int64, error)
	// Insert appends one record. Store failures propagate to the caller.
	Insert(ctx context.Context, db *gorm.DB, record *QueryLog) error
}
