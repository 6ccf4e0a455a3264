package service

import (
	"context"
	stderrors "errors"
	"math/big"

	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/storage"
	"github.com/portfolio-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// QueryService answers read-only ledger queries. Absence is reported as
// found=false, never as an error. Reads go through the cache when one is set;
// cache failures fall back to the store.
type QueryService struct {
	store storage.Store
	index *OwnerIndexManager
	cache *storage.PortfolioCache
}

// NewQueryService creates a query service. cache may be nil.
func NewQueryService(store storage.Store, index *OwnerIndexManager, cache *storage.PortfolioCache) *QueryService {
	return &QueryService{store: store, index: index, cache: cache}
}

// AssetDetail is an asset with its weight rendered as a percent
type AssetDetail struct {
	*models.PortfolioAsset
	Percent string `json:"percent"`
}

// PortfolioDetail is a portfolio together with all of its assets
type PortfolioDetail struct {
	Portfolio       *models.Portfolio `json:"portfolio"`
	Assets          []AssetDetail     `json:"assets"`
	TotalPercentage types.BasisPoints `json:"totalPercentage"`
	TotalPercent    string            `json:"totalPercent"`
}

// GetPortfolio returns the portfolio stored under id
func (s *QueryService) GetPortfolio(ctx context.Context, id types.PortfolioID) (*models.Portfolio, bool, error) {
	var (
		gen  int64
		fill bool
	)
	if s.cache != nil {
		p, ok, err := s.cache.GetPortfolio(ctx, id)
		if err != nil {
			logCacheFailure(ctx, "get portfolio", err)
		} else if ok {
			return p, true, nil
		} else {
			gen, fill = s.fillGeneration(ctx, storage.PortfolioKey(id))
		}
	}

	var portfolio *models.Portfolio
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		portfolio, err = tx.GetPortfolio(ctx, id)
		return err
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, storeError("get portfolio", err)
	}

	if fill {
		if err := s.cache.SetPortfolio(ctx, portfolio, gen); err != nil {
			logCacheFailure(ctx, "set portfolio", err)
		}
	}
	return portfolio, true, nil
}

// GetPortfolioAsset returns the asset stored under (id, slot)
func (s *QueryService) GetPortfolioAsset(ctx context.Context, id types.PortfolioID, slot types.Slot) (*models.PortfolioAsset, bool, error) {
	var (
		gen  int64
		fill bool
	)
	if s.cache != nil {
		a, ok, err := s.cache.GetAsset(ctx, id, slot)
		if err != nil {
			logCacheFailure(ctx, "get asset", err)
		} else if ok {
			return a, true, nil
		} else {
			gen, fill = s.fillGeneration(ctx, storage.AssetKey(id, slot))
		}
	}

	var asset *models.PortfolioAsset
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		asset, err = tx.GetAsset(ctx, id, slot)
		return err
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, storeError("get asset", err)
	}

	if fill {
		if err := s.cache.SetAsset(ctx, asset, gen); err != nil {
			logCacheFailure(ctx, "set asset", err)
		}
	}
	return asset, true, nil
}

// GetUserPortfolios returns owner's portfolio IDs in creation order. Never nil.
func (s *QueryService) GetUserPortfolios(ctx context.Context, owner types.Address) ([]types.PortfolioID, error) {
	var (
		gen  int64
		fill bool
	)
	if s.cache != nil {
		ids, ok, err := s.cache.GetOwnerPortfolios(ctx, owner)
		if err != nil {
			logCacheFailure(ctx, "get owner portfolios", err)
		} else if ok {
			return ids, nil
		} else {
			gen, fill = s.fillGeneration(ctx, storage.OwnerKey(owner))
		}
	}

	var ids []types.PortfolioID
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		ids, err = s.index.OwnerPortfolios(ctx, tx, owner)
		return err
	})
	if err != nil {
		return nil, storeError("get user portfolios", err)
	}

	if fill {
		if err := s.cache.SetOwnerPortfolios(ctx, owner, ids, gen); err != nil {
			logCacheFailure(ctx, "set owner portfolios", err)
		}
	}
	return ids, nil
}

// GetPortfolioDetail returns a portfolio and its assets from one consistent read
func (s *QueryService) GetPortfolioDetail(ctx context.Context, id types.PortfolioID) (*PortfolioDetail, bool, error) {
	var (
		portfolio *models.Portfolio
		assets    []*models.PortfolioAsset
	)
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if portfolio, err = tx.GetPortfolio(ctx, id); err != nil {
			return err
		}
		assets, err = tx.ListAssets(ctx, id)
		return err
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, storeError("get portfolio detail", err)
	}

	detail := &PortfolioDetail{
		Portfolio: portfolio,
		Assets:    make([]AssetDetail, 0, len(assets)),
	}
	for _, a := range assets {
		detail.Assets = append(detail.Assets, AssetDetail{PortfolioAsset: a, Percent: FormatPercent(a.TargetPercentage)})
		detail.TotalPercentage += a.TargetPercentage
	}
	detail.TotalPercent = FormatPercent(detail.TotalPercentage)

	return detail, true, nil
}

// FormatPercent renders basis points as a percent with two decimals (2500 -> "25.00")
func FormatPercent(bp types.BasisPoints) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(bp)), -2).StringFixed(2)
}

// fillGeneration reads key's generation ahead of the store read. A result
// read without one is not cached.
func (s *QueryService) fillGeneration(ctx context.Context, key string) (int64, bool) {
	gen, err := s.cache.Generation(ctx, key)
	if err != nil {
		logCacheFailure(ctx, "read generation", err)
		return 0, false
	}
	return gen, true
}

func logCacheFailure(ctx context.Context, operation string, err error) {
	logging.FromContext(ctx).WithError(err).WithField("operation", operation).Warn("Cache unavailable, reading from store")
}
