// Package scheduler runs periodic housekeeping jobs: expiring stale
// API keys and reporting aggregate usage counters.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	apikeydomain "github.com/quotaapp/searchd/internal/apikey/domain"
	"github.com/quotaapp/searchd/internal/clock"
	querylogdomain "github.com/quotaapp/searchd/internal/querylog/domain"
	"github.com/quotaapp/searchd/internal/quota/window"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config Config `optional:"true"`
}

type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   Config
	clock clock.Clock
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:    p.DB,
		log:   p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:   p.Config.withDefaults(),
		clock: p.Clock,
	}, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	err = errors.Join(err, s.runJob(parent, "key_expiry_sweep", s.KeyExpirySweepJob))
	err = errors.Join(err, s.runJob(parent, "usage_stats", s.UsageStatsJob))
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		if err != nil {
			s.log.Warn("job failed",
				zap.String("job", name),
				zap.Duration("duration", s.clock.Now().Sub(start)),
				zap.Error(err))
		}
	}()

	return fn(ctx)
}

// KeyExpirySweepJob deactivates API keys whose expiry has passed so
// expired credentials stop matching the active-key lookup.
func (s *Scheduler) KeyExpirySweepJob(ctx context.Context) error {
	now := s.clock.Now().UTC()

	result := s.db.WithContext(ctx).
		Model(&apikeydomain.APIKey{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Updates(map[string]any{"is_active": false, "updated_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Info("expired api keys deactivated", zap.Int64("count", result.RowsAffected))
	}
	return nil
}

// UsageStatsJob logs aggregate query counts for the current quota
// windows. Per-user numbers stay out of the logs.
func (s *Scheduler) UsageStatsJob(ctx context.Context) error {
	w := window.Compute(s.clock.Now())

	var dayQueries, monthQueries, activeUsers int64
	db := s.db.WithContext(ctx).Model(&querylogdomain.QueryLog{})

	if err := db.Session(&gorm.Session{}).
		Where("created_at_utc >= ?", w.DayStartUTC).
		Count(&dayQueries).Error; err != nil {
		return err
	}
	if err := db.Session(&gorm.Session{}).
		Where("created_at_utc >= ?", w.MonthStartUTC).
		Count(&monthQueries).Error; err != nil {
		return err
	}
	if err := db.Session(&gorm.Session{}).
		Where("created_at_utc >= ?", w.MonthStartUTC).
		Distinct("user_id").
		Count(&activeUsers).Error; err != nil {
		return err
	}

	s.log.Info("usage stats",
		zap.Int64("day_queries", dayQueries),
		zap.Int64("month_queries", monthQueries),
		zap.Int64("month_active_users", activeUsers))
	return nil
}
