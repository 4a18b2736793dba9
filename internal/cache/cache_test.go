package cache

import (
	"testing"
	"time"

	apikeydomain "github.com/quotaapp/searchd/internal/apikey/domain"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, 20*time.Millisecond)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Minute)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to be gone")
	}
}

func TestAPIKeyAuthCacheInvalidate(t *testing.T) {
	c := NewAPIKeyAuthCache()
	identity := apikeydomain.Identity{UserID: "user-1", KeyID: "key_A"}

	c.SetIdentity("hash-a", identity)
	if got, ok := c.GetIdentity("hash-a"); !ok || got != identity {
		t.Fatalf("expected cached identity, got %v %v", got, ok)
	}

	c.Invalidate("hash-a")
	if _, ok := c.GetIdentity("hash-a"); ok {
		t.Fatal("expected identity to be invalidated")
	}
}
