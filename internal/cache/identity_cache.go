package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
)

const defaultIdentityTTL = 5 * time.Minute

// IdentityCache stores identity-to-account-id resolutions for read paths.
// Balances are never cached; only the immutable identity mapping is.
type IdentityCache interface {
	GetAccountID(identity accountdomain.AccountIdentity) (snowflake.ID, bool)
	SetAccountID(identity accountdomain.AccountIdentity, id snowflake.ID)
}

type identityCache struct {
	ids Cache[string, snowflake.ID]
	ttl time.Duration
}

func NewIdentityCache() IdentityCache {
	return &identityCache{
		ids: NewTTLCache[string, snowflake.ID](),
		ttl: defaultIdentityTTL,
	}
}

func (c *identityCache) GetAccountID(identity accountdomain.AccountIdentity) (snowflake.ID, bool) {
	return c.ids.Get(cacheKey(identity))
}

func (c *identityCache) SetAccountID(identity accountdomain.AccountIdentity, id snowflake.ID) {
	if id == 0 {
		return
	}
	c.ids.Set(cacheKey(identity), id, c.ttl)
}

func cacheKey(identity accountdomain.AccountIdentity) string {
	identity = identity.Normalize()
	return identity.OAuthProvider + "|" + identity.ExternalID
}
