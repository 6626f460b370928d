package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/creditrail/creditgate/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyCreditCheckAccount = "credit:check:%s:%s"

// CheckLimiter throttles credit checks per identity at the edge. A nil
// limiter (redis not configured) allows everything.
type CheckLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewCheckLimiter(cfg config.Config) (*CheckLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.CheckRate <= 0 || limitCfg.CheckBurst <= 0 {
		return nil, errors.New("credit check rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &CheckLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.CheckRate,
		burst:   limitCfg.CheckBurst,
	}, nil
}

func (l *CheckLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow fails open on redis errors: throttling is protective, not
// load-bearing.
func (l *CheckLimiter) Allow(ctx context.Context, oauthProvider, externalID string) bool {
	if !l.Enabled() {
		return true
	}
	key := fmt.Sprintf(keyCreditCheckAccount, oauthProvider, externalID)
	res, err := l.bucket.Take(ctx, key, l.rate, l.burst)
	if err != nil {
		return true
	}
	return res.Allowed
}
