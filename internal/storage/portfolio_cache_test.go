package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	ledgererrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*PortfolioCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return NewPortfolioCache(NewRedisCacheFromClient(client), time.Minute), mr
}

func TestCacheKeys(t *testing.T) {
	owner := types.HexToAddress("0xAbCdEf0000000000000000000000000000000001")

	assert.Equal(t, "portfolio:7", PortfolioKey(7))
	assert.Equal(t, "asset:7:3", AssetKey(7, 3))
	assert.Equal(t, "owner:0xabcdef0000000000000000000000000000000001", OwnerKey(owner))
}

func TestPortfolioCache_PortfolioRoundTrip(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := testContext(t)

	p := &models.Portfolio{
		ID:             1,
		Owner:          types.HexToAddress("0x00000000000000000000000000000000000000a1"),
		CreatedAt:      100,
		LastRebalanced: 100,
		Active:         true,
		TokenCount:     2,
	}

	_, ok, err := cache.GetPortfolio(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetPortfolio(ctx, p, 0))
	assert.True(t, mr.Exists("portfolio:1"))

	got, ok, err := cache.GetPortfolio(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.GetPortfolio(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after TTL")
}

func TestPortfolioCache_AssetAndOwner(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := testContext(t)

	owner := types.HexToAddress("0x00000000000000000000000000000000000000b2")
	asset := &models.PortfolioAsset{
		PortfolioID:      4,
		Slot:             1,
		TargetPercentage: 4000,
		AssetAddress:     types.HexToAddress("0x00000000000000000000000000000000000000c3"),
	}

	require.NoError(t, cache.SetAsset(ctx, asset, 0))
	require.NoError(t, cache.SetOwnerPortfolios(ctx, owner, []types.PortfolioID{2, 4}, 0))

	gotAsset, ok, err := cache.GetAsset(ctx, 4, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, asset, gotAsset)

	ids, ok, err := cache.GetOwnerPortfolios(ctx, owner)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []types.PortfolioID{2, 4}, ids)

	require.NoError(t, cache.Invalidate(ctx, AssetKey(4, 1), OwnerKey(owner)))

	_, ok, err = cache.GetAsset(ctx, 4, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = cache.GetOwnerPortfolios(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPortfolioCache_FillAfterInvalidateIsDiscarded(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := testContext(t)

	stale := &models.Portfolio{ID: 5, LastRebalanced: 100, Active: true, TokenCount: 2}

	gen, err := cache.Generation(ctx, PortfolioKey(5))
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	// a commit lands between the store read and the fill
	require.NoError(t, cache.Invalidate(ctx, PortfolioKey(5)))
	require.NoError(t, cache.SetPortfolio(ctx, stale, gen))
	assert.False(t, mr.Exists("portfolio:5"))

	gen, err = cache.Generation(ctx, PortfolioKey(5))
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	assert.Greater(t, mr.TTL("gen:portfolio:5"), time.Hour)

	fresh := &models.Portfolio{ID: 5, LastRebalanced: 400, Active: true, TokenCount: 2}
	require.NoError(t, cache.SetPortfolio(ctx, fresh, gen))
	got, ok, err := cache.GetPortfolio(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Height(400), got.LastRebalanced)
}

func TestPortfolioCache_CorruptEntry(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := testContext(t)

	require.NoError(t, mr.Set("portfolio:9", "not-json"))

	_, ok, err := cache.GetPortfolio(ctx, 9)
	assert.ErrorIs(t, err, &ledgererrors.LedgerError{Kind: ledgererrors.KindCache})
	assert.False(t, ok)
}

func TestPortfolioCache_RedisDown(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := testContext(t)

	mr.Close()

	_, ok, err := cache.GetPortfolio(ctx, 1)
	assert.Error(t, err)
	assert.False(t, ok)
}
