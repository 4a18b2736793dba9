package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository methods take the *gorm.DB handle so callers choose the
// transaction scope.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	Update(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByHash(ctx context.Context, db *gorm.DB, keyHash string) (*APIKey, error)
	FindByKeyID(ctx context.Context, db *gorm.DB, keyID string) (*APIKey, error)
}
