package market

import (
	"context"
	"strings"
	"sync"
	"time"

	"stacker/internal/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL = time.Hour
	DefaultPriceTTL = time.Minute
)

type cacheEntry struct {
	value   any
	expires time.Time
}

// CachedProvider memoizes a Provider per key and collapses concurrent misses
// for the same key into a single upstream call. Errors are not cached.
type CachedProvider struct {
	inner    Provider
	ttl      time.Duration
	priceTTL time.Duration
	nowFn    func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	items map[string]cacheEntry
}

var _ Provider = (*CachedProvider)(nil)

func NewCachedProvider(inner Provider, ttl, priceTTL time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if priceTTL <= 0 {
		priceTTL = DefaultPriceTTL
	}
	return &CachedProvider{
		inner:    inner,
		ttl:      ttl,
		priceTTL: priceTTL,
		nowFn:    time.Now,
		items:    make(map[string]cacheEntry),
	}
}

func (c *CachedProvider) CurrentPrice(ctx context.Context, crypto, fiat string) (decimal.Decimal, error) {
	v, err := c.load(ctx, cacheKey("price", crypto, fiat), c.priceTTL, func(ctx context.Context) (any, error) {
		return c.inner.CurrentPrice(ctx, crypto, fiat)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func (c *CachedProvider) AllTimeHigh(ctx context.Context, crypto, fiat string) (*decimal.Decimal, error) {
	v, err := c.load(ctx, cacheKey("ath", crypto, fiat), c.ttl, func(ctx context.Context) (any, error) {
		return c.inner.AllTimeHigh(ctx, crypto, fiat)
	})
	if err != nil {
		return nil, err
	}
	return v.(*decimal.Decimal), nil
}

func (c *CachedProvider) FearGreedIndex(ctx context.Context) (*int, error) {
	v, err := c.load(ctx, "fng", c.ttl, func(ctx context.Context) (any, error) {
		return c.inner.FearGreedIndex(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*int), nil
}

func (c *CachedProvider) load(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (any, error)) (any, error) {
	if v, ok := c.get(key); ok {
		return v, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		// The flight is shared by all waiters and outlives any single caller.
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			logger.Debugf("market: %s fetch failed: %v", key, err)
			return nil, err
		}
		c.mu.Lock()
		c.items[key] = cacheEntry{value: v, expires: c.nowFn().Add(ttl)}
		c.mu.Unlock()
		return v, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *CachedProvider) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !c.nowFn().Before(e.expires) {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops every cached value.
func (c *CachedProvider) Invalidate() {
	c.mu.Lock()
	c.items = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func cacheKey(kind, crypto, fiat string) string {
	return kind + ":" + strings.ToUpper(strings.TrimSpace(crypto)) + "/" + strings.ToUpper(strings.TrimSpace(fiat))
}
