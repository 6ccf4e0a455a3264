package models

import (
	"time"

	"github.com/portfolio-ledger/internal/types"
)

// LedgerEventType names a committed ledger mutation
type LedgerEventType string

const (
	// EventPortfolioCreated is recorded after a portfolio and its assets are created
	EventPortfolioCreated LedgerEventType = "portfolio_created"
	// EventAllocationUpdated is recorded after a single asset weight changes
	EventAllocationUpdated LedgerEventType = "allocation_updated"
	// EventPortfolioRebalanced is recorded after last_rebalanced is stamped
	EventPortfolioRebalanced LedgerEventType = "portfolio_rebalanced"
	// EventProtocolOwnerChanged is recorded after an initialize handoff
	EventProtocolOwnerChanged LedgerEventType = "protocol_owner_changed"
)

// LedgerEvent is an append-only journal entry describing a committed mutation
type LedgerEvent struct {
	ID          string             `json:"id"`
	Type        LedgerEventType    `json:"type"`
	Actor       types.Address      `json:"actor"`
	PortfolioID types.PortfolioID  `json:"portfolioId,omitempty"`
	Slot        *types.Slot        `json:"slot,omitempty"`
	Percentage  *types.BasisPoints `json:"percentage,omitempty"`
	NewOwner    *types.Address     `json:"newOwner,omitempty"`
	Height      types.Height       `json:"height"`
	RecordedAt  time.Time          `json:"recordedAt"`
}
