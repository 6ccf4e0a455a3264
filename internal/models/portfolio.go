// Package models provides the persisted records of the portfolio ledger.
package models

import (
	"github.com/portfolio-ledger/internal/types"
)

// Portfolio is the metadata record of a weighted asset set
type Portfolio struct {
	ID             types.PortfolioID `json:"id" db:"id"`
	Owner          types.Address     `json:"owner" db:"owner"`
	CreatedAt      types.Height      `json:"createdAt" db:"created_at"`
	LastRebalanced types.Height      `json:"lastRebalanced" db:"last_rebalanced"`
	TotalValue     uint64            `json:"totalValue" db:"total_value"`
	Active         bool              `json:"active" db:"active"`
	TokenCount     uint8             `json:"tokenCount" db:"token_count"`
}

// Clone returns a copy of the portfolio
func (p *Portfolio) Clone() *Portfolio {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// IsOwnedBy reports whether actor is the stored owner
func (p *Portfolio) IsOwnedBy(actor types.Address) bool {
	return p.Owner == actor
}

// PortfolioAsset is one weighted asset of a portfolio, keyed by (PortfolioID, Slot)
type PortfolioAsset struct {
	PortfolioID      types.PortfolioID `json:"portfolioId" db:"portfolio_id"`
	Slot             types.Slot        `json:"slot" db:"slot"`
	TargetPercentage types.BasisPoints `json:"targetPercentage" db:"target_percentage"`
	CurrentAmount    uint64            `json:"currentAmount" db:"current_amount"`
	AssetAddress     types.Address     `json:"assetAddress" db:"asset_address"`
}

// Clone returns a copy of the asset
func (a *PortfolioAsset) Clone() *PortfolioAsset {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// AssetKey is the composite key of a PortfolioAsset
type AssetKey struct {
	PortfolioID types.PortfolioID
	Slot        types.Slot
}

// Key returns the composite key of the asset
func (a *PortfolioAsset) Key() AssetKey {
	return AssetKey{PortfolioID: a.PortfolioID, Slot: a.Slot}
}

// OwnerIndex lists the portfolios created by one owner, in creation order
type OwnerIndex struct {
	Owner        types.Address       `json:"owner"`
	PortfolioIDs []types.PortfolioID `json:"portfolioIds"`
}

// Clone returns a deep copy of the index
func (o *OwnerIndex) Clone() *OwnerIndex {
	if o == nil {
		return nil
	}
	ids := make([]types.PortfolioID, len(o.PortfolioIDs))
	copy(ids, o.PortfolioIDs)
	return &OwnerIndex{Owner: o.Owner, PortfolioIDs: ids}
}

// RebalanceStatus is the read-only eligibility projection of a portfolio
type RebalanceStatus struct {
	PortfolioID    types.PortfolioID `json:"portfolioId"`
	TotalValue     uint64            `json:"totalValue"`
	NeedsRebalance bool              `json:"needsRebalance"`
}
