package markets

import (
	"context"
	"strings"
	"time"

	"github.com/mselser95/polymarket-redeemer/pkg/cache"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// Fetcher is anything that can look a market up.
type Fetcher interface {
	FetchMarket(ctx context.Context, conditionID, slug string) (*types.Market, error)
}

// CachedClient memoises successful market lookups for a short TTL so one
// classification pass fetches each market once across wallets.
type CachedClient struct {
	client Fetcher
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedClient wraps client. A nil cache or non-positive TTL disables caching.
func NewCachedClient(client Fetcher, c cache.Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  c,
		ttl:    ttl,
	}
}

// FetchMarket returns the cached snapshot for conditionID or fetches it.
// Failures are never cached.
func (c *CachedClient) FetchMarket(ctx context.Context, conditionID, slug string) (*types.Market, error) {
	if !c.enabled() {
		return c.client.FetchMarket(ctx, conditionID, slug)
	}

	key := cacheKey(conditionID)
	if cached, ok := c.cache.Get(key); ok {
		if market, ok := cached.(*types.Market); ok {
			MarketCacheHitsTotal.Inc()
			return market, nil
		}
	}
	MarketCacheMissesTotal.Inc()

	market, err := c.client.FetchMarket(ctx, conditionID, slug)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, market, c.ttl)
	return market, nil
}

// Invalidate drops the cached snapshot for conditionID.
func (c *CachedClient) Invalidate(conditionID string) {
	if c.enabled() {
		c.cache.Delete(cacheKey(conditionID))
	}
}

func (c *CachedClient) enabled() bool {
	return c.cache != nil && c.ttl > 0
}

func cacheKey(conditionID string) string {
	return "market:" + strings.ToLower(strings.TrimSpace(conditionID))
}
