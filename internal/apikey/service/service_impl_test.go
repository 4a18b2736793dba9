package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/quotaapp/searchd/internal/apikey/domain"
	apikeyrepo "github.com/quotaapp/searchd/internal/apikey/repository"
	"github.com/quotaapp/searchd/internal/cache"
	"github.com/quotaapp/searchd/internal/clock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCreateAndAuthenticate(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{UserID: "user-1", Name: "dev key"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(secret.APIKey, "sk_live_key_") {
		t.Fatalf("unexpected key format %q", secret.APIKey)
	}

	identity, err := svc.Authenticate(ctx, secret.APIKey)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.UserID != "user-1" || identity.KeyID != secret.KeyID {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestAuthenticateUnknownKey(t *testing.T) {
	svc, _, _ := setupService(t)

	for _, raw := range []string{"", "   ", "sk_live_key_bogus"} {
		if _, err := svc.Authenticate(context.Background(), raw); !errors.Is(err, apikeydomain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for %q, got %v", raw, err)
		}
	}
}

func TestAuthenticateRevokedKey(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{UserID: "user-1", Name: "dev key"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Revoke(ctx, secret.KeyID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := svc.Authenticate(ctx, secret.APIKey); !errors.Is(err, apikeydomain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after revoke, got %v", err)
	}
}

func TestAuthenticateExpiredKey(t *testing.T) {
	svc, _, clk := setupService(t)
	ctx := context.Background()

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{UserID: "user-1", Name: "dev key"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Revoke(ctx, secret.KeyID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// Revocation stamps expires_at with the current instant; any later
	// authentication sees an expired key.
	clk.Advance(time.Second)
	if _, err := svc.Authenticate(ctx, secret.APIKey); !errors.Is(err, apikeydomain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after expiry, got %v", err)
	}
}

func TestAuthenticateTouchesLastUsed(t *testing.T) {
	svc, db, clk := setupService(t)
	ctx := context.Background()

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{UserID: "user-1", Name: "dev key"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Authenticate(ctx, secret.APIKey); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	var key apikeydomain.APIKey
	if err := db.Where("key_id = ?", secret.KeyID).First(&key).Error; err != nil {
		t.Fatalf("load key: %v", err)
	}
	if key.LastUsedAt == nil || !key.LastUsedAt.Equal(clk.Now()) {
		t.Fatalf("expected last_used_at %v, got %v", clk.Now(), key.LastUsedAt)
	}
}

func TestAuthenticateCachedIdentityInvalidatedOnRevoke(t *testing.T) {
	svc, _, _ := setupService(t)
	impl := svc.(*Service)
	impl.cache = cache.NewAPIKeyAuthCache()
	ctx := context.Background()

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{UserID: "user-1", Name: "dev key"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Prime the cache, then revoke; the cached identity must not
	// outlive the key.
	if _, err := svc.Authenticate(ctx, secret.APIKey); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := svc.Revoke(ctx, secret.KeyID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Authenticate(ctx, secret.APIKey); !errors.Is(err, apikeydomain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after revoke, got %v", err)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, apikeydomain.CreateRequest{UserID: " ", Name: "x"}); !errors.Is(err, apikeydomain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if _, err := svc.Create(ctx, apikeydomain.CreateRequest{UserID: "user-1", Name: " "}); !errors.Is(err, apikeydomain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := svc.Revoke(ctx, "missing"); !errors.Is(err, apikeydomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func setupService(t *testing.T) (apikeydomain.Service, *gorm.DB, *clock.FakeClock) {
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
	if err := db.AutoMigrate(&apikeydomain.APIKey{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  apikeyrepo.Provide(),
	})

	return svc, db, clk
}
