package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	querylogdomain "github.com/quotaapp/searchd/internal/querylog/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCountSinceBoundaryIsInclusive(t *testing.T) {
	db, node := setupRepo(t)
	repo := Provide()
	ctx := context.Background()

	cutoff := time.Date(2025, time.June, 14, 21, 0, 0, 0, time.UTC)
	rows := []querylogdomain.QueryLog{
		{ID: node.Generate(), UserID: "u1", Term: "before", CreatedAtUTC: cutoff.Add(-time.Second)},
		{ID: node.Generate(), UserID: "u1", Term: "exact", CreatedAtUTC: cutoff},
		{ID: node.Generate(), UserID: "u1", Term: "after", CreatedAtUTC: cutoff.Add(time.Second)},
		{ID: node.Generate(), UserID: "u2", Term: "other user", CreatedAtUTC: cutoff.Add(time.Second)},
	}
	for i := range rows {
		assert.NoError(t, repo.Insert(ctx, db, &rows[i]))
	}

	count, err := repo.CountSince(ctx, db, "u1", cutoff)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountSince(ctx, db, "u2", cutoff)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountSince(ctx, db, "nobody", cutoff)
	assert.NoError(t, err)
	assert.Zero(t, count)
}

func TestInsertHonorsTransactionHandle(t *testing.T) {
	db, node := setupRepo(t)
	repo := Provide()
	ctx := context.Background()

	// An insert inside a rolled-back transaction leaves no trace.
	err := db.Transaction(func(tx *gorm.DB) error {
		record := &querylogdomain.QueryLog{
			ID: node.Generate(), UserID: "u1", Term: "doomed", CreatedAtUTC: time.Now().UTC(),
		}
		if err := repo.Insert(ctx, tx, record); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	assert.Error(t, err)

	count, err := repo.CountSince(ctx, db, "u1", time.Time{})
	assert.NoError(t, err)
	assert.Zero(t, count)
}

func setupRepo(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	assert.NoError(t, db.AutoMigrate(&querylogdomain.QueryLog{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)
	return db, node
}
