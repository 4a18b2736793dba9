package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quotaapp/searchd/internal/clock"
	obsmetrics "github.com/quotaapp/searchd/internal/observability/metrics"
	querylogdomain "github.com/quotaapp/searchd/internal/querylog/domain"
	quotadomain "github.com/quotaapp/searchd/internal/quota/domain"
	"github.com/quotaapp/searchd/internal/quota/window"
	"github.com/quotaapp/searchd/internal/ratelimit"
	pkgdb "github.com/quotaapp/searchd/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Logs    querylogdomain.Repository
	Locker  *ratelimit.ConsumeLocker `optional:"true"`
	Metrics *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	logs    querylogdomain.Repository
	locker  *ratelimit.ConsumeLocker
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) quotadomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("quota.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		logs:    p.Logs,
		locker:  p.Locker,
		metrics: p.Metrics,
	}
}

func (s *Service) GetUsage(ctx context.Context, userID string) (quotadomain.Snapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return quotadomain.Snapshot{}, quotadomain.ErrInvalidUser
	}

	if s.metrics != nil {
		s.metrics.RecordUsageLookup(ctx)
	}

	return s.snapshot(ctx, s.db, userID)
}

func (s *Service) TryConsume(ctx context.Context, req quotadomain.ConsumeRequest) (quotadomain.Snapshot, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return quotadomain.Snapshot{}, quotadomain.ErrInvalidUser
	}

	if s.locker.Enabled() {
		token, ok, err := s.locker.TryLockUser(ctx, userID)
		if err != nil {
			return quotadomain.Snapshot{}, err
		}
		if !ok {
			return quotadomain.Snapshot{}, quotadomain.ErrContended
		}
		defer func() {
			if err := s.locker.ReleaseUser(ctx, userID, token); err != nil {
				s.log.Warn("consume lock release failed", zap.Error(err))
			}
		}()
	}

	err := s.consume(ctx, userID, req)
	if err != nil && pkgdb.IsSerializationErr(err) {
		// One fresh attempt after a transaction conflict; the second
		// conflict propagates as a store error.
		s.log.Debug("retrying consume after transaction conflict", zap.Error(err))
		err = s.consume(ctx, userID, req)
	}
	if err != nil {
		if quotadomain.IsQuotaExceeded(err) && s.metrics != nil {
			s.metrics.RecordConsumeDenied(ctx, quotadomain.ExceededScope(err))
		}
		return quotadomain.Snapshot{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordConsumeAllowed(ctx)
	}

	// Post-commit recompute so the caller sees the just-inserted record.
	return s.snapshot(ctx, s.db, userID)
}

// consume runs the check-then-insert sequence inside one serializable
// transaction. gorm commits on a nil return and rolls back on error or
// panic, so a rejection or insert failure persists nothing.
func (s *Service) consume(ctx context.Context, userID string, req quotadomain.ConsumeRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()
		current, err := s.snapshotAt(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		// Day before month when both are exhausted.
		if current.DayRemaining <= 0 {
			return quotadomain.ErrDailyQuotaExceeded
		}
		if current.MonthRemaining <= 0 {
			return quotadomain.ErrMonthlyQuotaExceeded
		}

		record := &querylogdomain.QueryLog{
			ID:           s.genID.Generate(),
			UserID:       userID,
			Term:         req.Term,
			CreatedAtUTC: now,
		}
		if len(req.Metadata) > 0 {
			record.Metadata = datatypes.JSONMap(req.Metadata)
		}

		return s.logs.Insert(ctx, tx, record)
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (s *Service) snapshot(ctx context.Context, db *gorm.DB, userID string) (quotadomain.Snapshot, error) {
	return s.snapshotAt(ctx, db, userID, s.clock.Now().UTC())
}

func (s *Service) snapshotAt(ctx context.Context, db *gorm.DB, userID string, now time.Time) (quotadomain.Snapshot, error) {
	w := window.Compute(now)

	dayUsed, err := s.logs.CountSince(ctx, db, userID, w.DayStartUTC)
	if err != nil {
		return quotadomain.Snapshot{}, err
	}
	monthUsed, err := s.logs.CountSince(ctx, db, userID, w.MonthStartUTC)
	if err != nil {
		return quotadomain.Snapshot{}, err
	}

	return quotadomain.Snapshot{
		DayUsed:        int(dayUsed),
		DayRemaining:   remaining(quotadomain.DailyLimit, dayUsed),
		MonthUsed:      int(monthUsed),
		MonthRemaining: remaining(quotadomain.MonthlyLimit, monthUsed),

		DayResetAtLocal:   w.DayResetLocal,
		MonthResetAtLocal: w.MonthResetLocal,
	}, nil
}

func remaining(limit int, used int64) int {
	if left := limit - int(used); left > 0 {
		return left
	}
	return 0
}
