package cache

import (
	"testing"
	"time"

	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTLCache(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Minute)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCacheRejectsNonPositiveTTL(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestIdentityCacheNormalizesKey(t *testing.T) {
	c := NewIdentityCache()

	c.SetAccountID(accountdomain.AccountIdentity{
		OAuthProvider: "AgentHub",
		ExternalID:    " user-1 ",
	}, 42)

	id, ok := c.GetAccountID(accountdomain.AccountIdentity{
		OAuthProvider: "agenthub",
		ExternalID:    "user-1",
	})
	assert.True(t, ok)
	assert.Equal(t, int64(42), int64(id))
}

func TestIdentityCacheIgnoresZeroID(t *testing.T) {
	c := NewIdentityCache()

	c.SetAccountID(accountdomain.AccountIdentity{
		OAuthProvider: "agenthub",
		ExternalID:    "user-1",
	}, 0)

	_, ok := c.GetAccountID(accountdomain.AccountIdentity{
		OAuthProvider: "agenthub",
		ExternalID:    "user-1",
	})
	assert.False(t, ok)
}
