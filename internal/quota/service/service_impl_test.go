package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quotaapp/searchd/internal/clock"
	querylogdomain "github.com/quotaapp/searchd/internal/querylog/domain"
	querylogrepo "github.com/quotaapp/searchd/internal/querylog/repository"
	quotadomain "github.com/quotaapp/searchd/internal/quota/domain"
	"github.com/quotaapp/searchd/internal/quota/window"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// baseTime is mid-month and mid-day in the quota zone, far from any
// window boundary.
var baseTime = time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)

func TestGetUsageEmpty(t *testing.T) {
	svc, _, _ := setupService(t, baseTime)

	snap, err := svc.GetUsage(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if snap.DayUsed != 0 || snap.DayRemaining != quotadomain.DailyLimit {
		t.Fatalf("expected empty day usage, got %+v", snap)
	}
	if snap.MonthUsed != 0 || snap.MonthRemaining != quotadomain.MonthlyLimit {
		t.Fatalf("expected empty month usage, got %+v", snap)
	}

	w := window.Compute(baseTime)
	if !snap.DayResetAtLocal.Equal(w.DayResetLocal) {
		t.Fatalf("expected day reset %v, got %v", w.DayResetLocal, snap.DayResetAtLocal)
	}
	if !snap.MonthResetAtLocal.Equal(w.MonthResetLocal) {
		t.Fatalf("expected month reset %v, got %v", w.MonthResetLocal, snap.MonthResetAtLocal)
	}
}

func TestGetUsageInvalidUser(t *testing.T) {
	svc, _, _ := setupService(t, baseTime)

	for _, userID := range []string{"", "   "} {
		if _, err := svc.GetUsage(context.Background(), userID); !errors.Is(err, quotadomain.ErrInvalidUser) {
			t.Fatalf("expected ErrInvalidUser for %q, got %v", userID, err)
		}
	}
}

func TestTryConsumeRecordsUsage(t *testing.T) {
	svc, db, _ := setupService(t, baseTime)

	snap, err := svc.TryConsume(context.Background(), quotadomain.ConsumeRequest{
		UserID: "user-1",
		Term:   "golang generics",
		Metadata: map[string]any{
			"client_ip": "127.0.0.1",
		},
	})
	if err != nil {
		t.Fatalf("try consume: %v", err)
	}
	if snap.DayUsed != 1 || snap.DayRemaining != 4 {
		t.Fatalf("expected day usage 1/4, got %+v", snap)
	}
	if snap.MonthUsed != 1 || snap.MonthRemaining != 19 {
		t.Fatalf("expected month usage 1/19, got %+v", snap)
	}

	var record querylogdomain.QueryLog
	if err := db.First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.UserID != "user-1" || record.Term != "golang generics" {
		t.Fatalf("unexpected record %+v", record)
	}
	if !record.CreatedAtUTC.Equal(baseTime) {
		t.Fatalf("expected created_at_utc %v, got %v", baseTime, record.CreatedAtUTC)
	}
}

func TestTryConsumeInvalidUser(t *testing.T) {
	svc, _, _ := setupService(t, baseTime)

	_, err := svc.TryConsume(context.Background(), quotadomain.ConsumeRequest{UserID: "  ", Term: "x"})
	if !errors.Is(err, quotadomain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestTryConsumeDailyLimit(t *testing.T) {
	svc, _, _ := setupService(t, baseTime)
	ctx := context.Background()

	for i := 0; i < quotadomain.DailyLimit; i++ {
		if _, err := svc.TryConsume(ctx, quotadomain.ConsumeRequest{UserID: "user-1", Term: fmt.Sprintf("q%d", i)}); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}

	_, err := svc.TryConsume(ctx, quotadomain.ConsumeRequest{UserID: "user-1", Term: "over"})
	if !errors.Is(err, quotadomain.ErrDailyQuotaExceeded) {
		t.Fatalf("expected ErrDailyQuotaExceeded, got %v", err)
	}
	if scope := quotadomain.ExceededScope(err); scope != "day" {
		t.Fatalf("expected scope day, got %q", scope)
	}

	// The rejected attempt must not be persisted.
	snap, err := svc.GetUsage(ctx, "user-1")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if snap.DayUsed != quotadomain.DailyLimit || snap.MonthUsed != quotadomain.DailyLimit {
		t.Fatalf("expected %d recorded queries, got %+v", quotadomain.DailyLimit, snap)
	}

	// A different user is unaffected.
	if _, err := svc.TryConsume(ctx, quotadomain.ConsumeRequest{UserID: "user-2", Term: "other"}); err != nil {
		t.Fatalf("consume for other user: %v", err)
	}
}

func TestTryConsumeMonthlyLimit(t *testing.T) {
	svc, _, clk := setupService(t, baseTime)
	ctx := context.Background()

	// Five queries a day for four days exhausts the month while each
	// day stays within its own limit.
	for day := 0; day < 4; day++ {
		for i := 0; i < quotadomain.DailyLimit; i++ {
			if _, err := svc.TryConsume(ctx, quotadomain.ConsumeRequest{UserID: "user-1", Term: "q"}); err != nil {
				t.Fatalf("day %d consume %d: %v", day, i, err)
			}
		}
		clk.Advance(24 * time.Hour)
	}

	snap, err := svc.GetUsage(ctx, "user-1")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if snap.DayUsed != 0 || snap.MonthUsed != quotadomain.MonthlyLimit || snap.MonthRemaining != 0 {
		t.Fatalf("expected exhausted month with fresh day, got %+v", snap)
	}

	_, err = svc.TryConsume(ctx, quotadomain.ConsumeRequest{UserID: "user-1", Term: "over"})
	if !errors.Is(err, quotadomain.ErrMonthlyQuotaExceeded) {
		t.Fatalf("expected ErrMonthlyQuotaExceeded, got %v", err)
	}
	if scope := quotadomain.ExceededScope(err); scope != "month" {
		t.Fatalf("expected scope month, got %q", scope)
	}
}

func TestTryConsumeDayLimitWinsWhenBothExhausted(t *testing.T) {
	svc, db, _ := setupService(t, baseTime)
	ctx := context.Background()
	node := newTestNode(t)

	// Seed a month's worth of queries all inside the current day, so
	// both windows are over their limits at once.
	repo := querylogrepo.Provide()
	for i := 0; i < quotadomain.MonthlyLimit; i++ {
		err := repo.Insert(ctx, db, &querylogdomain.QueryLog{
			ID:           node.Generate(),
			UserID:       "user-1",
			Term:         "seed",
			CreatedAtUTC: baseTime.Add(-time.Minute),
		})
		if err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	_, err := svc.TryConsume(ctx, quotadomain.ConsumeRequest{UserID: "user-1", Term: "over"})
	if !errors.Is(err, quotadomain.ErrDailyQuotaExceeded) {
		t.Fatalf("expected daily rejection to win, got %v", err)
	}
}

func TestTryConsumeRollsBackOnInsertFailure(t *testing.T) {
	svc, db, _ := setupService(t, baseTime)
	impl := svc.(*Service)
	impl.logs = &failingInsertRepo{inner: impl.logs}

	_, err := svc.TryConsume(context.Background(), quotadomain.ConsumeRequest{UserID: "user-1", Term: "q"})
	if err == nil {
		t.Fatal("expected insert failure")
	}

	var count int64
	if err := db.Model(&querylogdomain.QueryLog{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to leave no rows, got %d", count)
	}
}

func TestTryConsumeConcurrent(t *testing.T) {
	svc, _, _ := setupService(t, baseTime)

	const attempts = quotadomain.DailyLimit + 3

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.TryConsume(context.Background(), quotadomain.ConsumeRequest{
				UserID: "user-1",
				Term:   fmt.Sprintf("q%d", i),
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	allowed, denied := 0, 0
	for err := range results {
		switch {
		case err == nil:
			allowed++
		case errors.Is(err, quotadomain.ErrDailyQuotaExceeded):
			denied++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if allowed != quotadomain.DailyLimit || denied != attempts-quotadomain.DailyLimit {
		t.Fatalf("expected %d allowed and %d denied, got %d/%d",
			quotadomain.DailyLimit, attempts-quotadomain.DailyLimit, allowed, denied)
	}

	snap, err := svc.GetUsage(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if snap.DayUsed != quotadomain.DailyLimit {
		t.Fatalf("expected exactly %d recorded queries, got %d", quotadomain.DailyLimit, snap.DayUsed)
	}
}

func TestGetUsageWindowRollover(t *testing.T) {
	svc, _, clk := setupService(t, baseTime)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.TryConsume(ctx, quotadomain.ConsumeRequest{UserID: "user-1", Term: "q"}); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}

	// Next local day: the day counter resets, the month counter keeps
	// the earlier queries.
	clk.Advance(24 * time.Hour)
	snap, err := svc.GetUsage(ctx, "user-1")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if snap.DayUsed != 0 || snap.MonthUsed != 2 {
		t.Fatalf("expected day reset with month carry-over, got %+v", snap)
	}

	// Next local month: both counters reset.
	clk.Set(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	snap, err = svc.GetUsage(ctx, "user-1")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if snap.DayUsed != 0 || snap.MonthUsed != 0 {
		t.Fatalf("expected fresh month, got %+v", snap)
	}
}

type failingInsertRepo struct {
	inner querylogdomain.Repository
}

func (r *failingInsertRepo) CountSince(ctx context.Context, db *gorm.DB, userID string, sinceUTC time.Time) (int64, error) {
	return r.inner.CountSince(ctx, db, userID, sinceUTC)
}

func (r *failingInsertRepo) Insert(ctx context.Context, db *gorm.DB, record *querylogdomain.QueryLog) error {
	return errors.New("insert failed")
}

func newTestNode(t *testing.T) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func setupService(t *testing.T, now time.Time) (quotadomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	_ = db.Exec("PRAGMA journal_mode = WAL").Error
	if err := db.AutoMigrate(&querylogdomain.QueryLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clk := clock.NewFakeClock(now)
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: newTestNode(t),
		Clock: clk,
		Logs:  querylogrepo.Provide(),
	})

	return svc, db, clk
}
