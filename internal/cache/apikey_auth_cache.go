package cache

import (
	"time"

	apikeydomain "github.com/quotaapp/searchd/internal/apikey/domain"
)

const defaultIdentityTTL = 30 * time.Second

// APIKeyAuthCache memoizes key-hash to identity lookups so the auth
// middleware does not hit the database on every request. The TTL bounds
// how long a revoked key keeps authenticating.
type APIKeyAuthCache interface {
	GetIdentity(keyHash string) (apikeydomain.Identity, bool)
	SetIdentity(keyHash string, identity apikeydomain.Identity)
	Invalidate(keyHash string)
}

type apiKeyAuthCache struct {
	identities Cache[string, apikeydomain.Identity]
	ttl        time.Duration
}

func NewAPIKeyAuthCache() APIKeyAuthCache {
	return &apiKeyAuthCache{
		identities: NewTTLCache[string, apikeydomain.Identity](),
		ttl:        defaultIdentityTTL,
	}
}

func (c *apiKeyAuthCache) GetIdentity(keyHash string) (apikeydomain.Identity, bool) {
	return c.identities.Get(keyHash)
}

func (c *apiKeyAuthCache) SetIdentity(keyHash string, identity apikeydomain.Identity) {
	c.identities.Set(keyHash, identity, c.ttl)
}

func (c *apiKeyAuthCache) Invalidate(keyHash string) {
	c.identities.Delete(keyHash)
}
