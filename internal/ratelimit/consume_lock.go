package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quotaapp/searchd/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyConsumeUser = "quota:consume:user:%s"

// ConsumeLocker serializes quota consumption per user across processes.
// It is an alternative to relying on the store's serializable isolation
// and is off by default; a nil ConsumeLocker is a valid no-op.
type ConsumeLocker struct {
	enabled bool
	locker  *Locker
	ttl     time.Duration
}

func NewConsumeLocker(cfg config.Config) (*ConsumeLocker, error) {
	lockCfg := cfg.QuotaLock
	if !lockCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(lockCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("quota lock redis addr is required")
	}
	if lockCfg.TTLSeconds <= 0 {
		return nil, errors.New("quota lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(lockCfg.RedisPassword),
		DB:       lockCfg.RedisDB,
	})

	return &ConsumeLocker{
		enabled: true,
		locker:  NewLocker(client),
		ttl:     time.Duration(lockCfg.TTLSeconds) * time.Second,
	}, nil
}

func (l *ConsumeLocker) Enabled() bool {
	return l != nil && l.enabled
}

func (l *ConsumeLocker) TryLockUser(ctx context.Context, userID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyConsumeUser, strings.TrimSpace(userID)), l.ttl)
}

func (l *ConsumeLocker) ReleaseUser(ctx context.Context, userID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyConsumeUser, strings.TrimSpace(userID)), token)
}
