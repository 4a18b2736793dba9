package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/quotaapp/searchd/internal/apikey/domain"
	"github.com/quotaapp/searchd/internal/cache"
	"github.com/quotaapp/searchd/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	apiKeyPrefix      = "sk_live_key_"
	apiKeySecretBytes = 32

	// lastUsedWriteInterval throttles last_used_at writes so the auth
	// path does not turn every request into an update.
	lastUsedWriteInterval = time.Minute
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  apikeydomain.Repository
	Cache cache.APIKeyAuthCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  apikeydomain.Repository
	genID *snowflake.Node
	clock clock.Clock
	cache cache.APIKeyAuthCache
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
		cache: p.Cache,
	}
}

func (s *Service) Authenticate(ctx context.Context, rawKey string) (apikeydomain.Identity, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return apikeydomain.Identity{}, apikeydomain.ErrUnauthorized
	}

	hash := apikeydomain.HashAPIKey(rawKey)
	if s.cache != nil {
		if identity, ok := s.cache.GetIdentity(hash); ok {
			return identity, nil
		}
	}

	key, err := s.repo.FindByHash(ctx, s.db, hash)
	if err != nil {
		return apikeydomain.Identity{}, err
	}
	now := s.clock.Now().UTC()
	if key == nil || !key.IsActive || isExpired(key.ExpiresAt, now) {
		return apikeydomain.Identity{}, apikeydomain.ErrUnauthorized
	}

	s.touchLastUsed(ctx, key, now)

	identity := apikeydomain.Identity{UserID: key.UserID, KeyID: key.KeyID}
	if s.cache != nil {
		s.cache.SetIdentity(hash, identity)
	}
	return identity, nil
}

func (s *Service) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, apikeydomain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apikeydomain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	id := s.genID.Generate()
	keyID := newKeyID(id)
	plain, hash, err := generateAPIKey(keyID)
	if err != nil {
		return nil, err
	}

	key := &apikeydomain.APIKey{
		ID:        id,
		UserID:    userID,
		KeyID:     keyID,
		Name:      name,
		KeyHash:   hash,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	return &apikeydomain.SecretResponse{KeyID: key.KeyID, APIKey: plain}, nil
}

func (s *Service) Revoke(ctx context.Context, keyID string) error {
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return apikeydomain.ErrInvalidKeyID
	}

	key, err := s.repo.FindByKeyID(ctx, s.db, trimmed)
	if err != nil {
		return err
	}
	if key == nil {
		return apikeydomain.ErrNotFound
	}

	now := s.clock.Now().UTC()
	key.IsActive = false
	key.UpdatedAt = now
	if key.ExpiresAt == nil || key.ExpiresAt.After(now) {
		key.ExpiresAt = &now
	}
	if err := s.repo.Update(ctx, s.db, key); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(key.KeyHash)
	}
	return nil
}

func (s *Service) touchLastUsed(ctx context.Context, key *apikeydomain.APIKey, now time.Time) {
	if key.LastUsedAt != nil && now.Sub(*key.LastUsedAt) < lastUsedWriteInterval {
		return
	}

	key.LastUsedAt = &now
	key.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, key); err != nil {
		s.log.Warn("update last_used_at failed", zap.String("key_id", key.KeyID), zap.Error(err))
	}
}

func generateAPIKey(keyID string) (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	secretPart := hex.EncodeToString(secret)
	trimmed := strings.TrimPrefix(keyID, "key_")
	plain := fmt.Sprintf("%s%s_%s", apiKeyPrefix, trimmed, secretPart)
	return plain, apikeydomain.HashAPIKey(plain), nil
}

func newKeyID(id snowflake.ID) string {
	return "key_" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}

func isExpired(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return now.After(*expiresAt)
}
