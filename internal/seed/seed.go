// Package seed bootstraps development credentials so a fresh checkout
// can authenticate without a key-provisioning step.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/quotaapp/searchd/internal/apikey/domain"
	"github.com/quotaapp/searchd/internal/config"
	"gorm.io/gorm"
)

const devKeyName = "development"

// EnsureDevAPIKey installs the DEV_API_KEY credential for DEV_USER_ID
// when configured. Production environments never seed keys.
func EnsureDevAPIKey(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if cfg.IsProduction() || cfg.DevAPIKey == "" {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	hash := apikeydomain.HashAPIKey(cfg.DevAPIKey)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&apikeydomain.APIKey{}).
			Where("key_hash = ?", hash).
			Count(&count).Error
		if err != nil || count > 0 {
			return err
		}

		now := time.Now().UTC()
		id := node.Generate()
		return tx.Create(&apikeydomain.APIKey{
			ID:        id,
			UserID:    cfg.DevUserID,
			KeyID:     "key_dev_" + id.String(),
			Name:      devKeyName,
			KeyHash:   hash,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
	})
}
