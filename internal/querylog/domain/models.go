// Package domain contains the persistence model for the append-only query log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// QueryLog records a single search query charged against a user's quota.
// Rows are append-only: never updated and never deleted by this service.
type QueryLog struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	UserID       string            `gorm:"type:text;not null;index:idx_query_logs_user_created,priority:1"`
	Term         string            `gorm:"type:text;not null"`
	CreatedAtUTC time.Time         `gorm:"column:created_at_utc;not null;index:idx_query_logs_user_created,priority:2"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
}

// TableName sets the database table name.
func (QueryLog) TableName() string { return "query_logs" }
