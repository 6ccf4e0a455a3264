package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	ledgererrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// Cache key prefixes
const (
	cacheKeyPortfolio = "portfolio"
	cacheKeyAsset     = "asset"
	cacheKeyOwner     = "owner"
)

const minGenerationTTL = 24 * time.Hour

// PortfolioCache is a read-through JSON cache of committed ledger records.
// The store stays authoritative; entries are dropped after every commit
// that touches them and expire after the configured TTL otherwise.
// Each key carries a generation bumped on invalidation; a fill is written
// only if the generation it read before the store read is still current.
type PortfolioCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewPortfolioCache creates a cache over a Redis connection
func NewPortfolioCache(redis *RedisCache, ttl time.Duration) *PortfolioCache {
	return &PortfolioCache{redis: redis, ttl: ttl}
}

// PortfolioKey formats portfolio:<id>
func PortfolioKey(id types.PortfolioID) string {
	return fmt.Sprintf("%s:%d", cacheKeyPortfolio, id)
}

// AssetKey formats asset:<id>:<slot>
func AssetKey(id types.PortfolioID, slot types.Slot) string {
	return fmt.Sprintf("%s:%d:%d", cacheKeyAsset, id, slot)
}

// OwnerKey formats owner:<lowercase address>
func OwnerKey(owner types.Address) string {
	return fmt.Sprintf("%s:%s", cacheKeyOwner, strings.ToLower(owner.Hex()))
}

// Generation returns the invalidation generation of key. Read it before the
// store read whose result will fill the cache.
func (c *PortfolioCache) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.redis.Generation(ctx, key)
	if err != nil {
		return 0, ledgererrors.NewCacheError("read generation", err)
	}
	return gen, nil
}

// set fills key unless it was invalidated after gen was read
func (c *PortfolioCache) set(ctx context.Context, key string, value interface{}, gen int64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return ledgererrors.NewCacheError("marshal "+key, err)
	}
	if _, err := c.redis.SetIfGeneration(ctx, key, data, c.ttl, gen); err != nil {
		return ledgererrors.NewCacheError("set "+key, err)
	}
	return nil
}

// get reports false on a miss; other failures are returned
func (c *PortfolioCache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, ledgererrors.NewCacheError("get "+key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, ledgererrors.NewCacheError("unmarshal "+key, err)
	}
	return true, nil
}

// GetPortfolio returns a cached portfolio
func (c *PortfolioCache) GetPortfolio(ctx context.Context, id types.PortfolioID) (*models.Portfolio, bool, error) {
	var p models.Portfolio
	ok, err := c.get(ctx, PortfolioKey(id), &p)
	if !ok || err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

// SetPortfolio caches a portfolio read at generation gen
func (c *PortfolioCache) SetPortfolio(ctx context.Context, p *models.Portfolio, gen int64) error {
	return c.set(ctx, PortfolioKey(p.ID), p, gen)
}

// GetAsset returns a cached asset
func (c *PortfolioCache) GetAsset(ctx context.Context, id types.PortfolioID, slot types.Slot) (*models.PortfolioAsset, bool, error) {
	var a models.PortfolioAsset
	ok, err := c.get(ctx, AssetKey(id, slot), &a)
	if !ok || err != nil {
		return nil, false, err
	}
	return &a, true, nil
}

// SetAsset caches an asset read at generation gen
func (c *PortfolioCache) SetAsset(ctx context.Context, a *models.PortfolioAsset, gen int64) error {
	return c.set(ctx, AssetKey(a.PortfolioID, a.Slot), a, gen)
}

// GetOwnerPortfolios returns a cached owner index
func (c *PortfolioCache) GetOwnerPortfolios(ctx context.Context, owner types.Address) ([]types.PortfolioID, bool, error) {
	var ids []types.PortfolioID
	ok, err := c.get(ctx, OwnerKey(owner), &ids)
	if !ok || err != nil {
		return nil, false, err
	}
	if ids == nil {
		ids = []types.PortfolioID{}
	}
	return ids, true, nil
}

// SetOwnerPortfolios caches an owner index read at generation gen
func (c *PortfolioCache) SetOwnerPortfolios(ctx context.Context, owner types.Address, ids []types.PortfolioID, gen int64) error {
	return c.set(ctx, OwnerKey(owner), ids, gen)
}

// Invalidate removes keys from the cache and discards in-flight fills of them
func (c *PortfolioCache) Invalidate(ctx context.Context, keys ...string) error {
	if err := c.redis.Invalidate(ctx, c.generationTTL(), keys...); err != nil {
		return ledgererrors.NewCacheError("invalidate", err)
	}
	return nil
}

// generationTTL outlives any read-then-fill window by a wide margin
func (c *PortfolioCache) generationTTL() time.Duration {
	return max(minGenerationTTL, 2*c.ttl)
}
