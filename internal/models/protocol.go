package models

import (
	"github.com/portfolio-ledger/internal/types"
)

// ProtocolState holds the ledger-wide scalars
type ProtocolState struct {
	PortfolioCounter types.PortfolioID `json:"portfolioCounter" db:"portfolio_counter"`
	ProtocolFeeBps   types.BasisPoints `json:"protocolFeeBps" db:"protocol_fee_bps"`
	ProtocolOwner    types.Address     `json:"protocolOwner" db:"protocol_owner"`
}

// Clone returns a copy of the state
func (s *ProtocolState) Clone() *ProtocolState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// NextPortfolioID returns the identifier the next created portfolio will receive
func (s *ProtocolState) NextPortfolioID() types.PortfolioID {
	return s.PortfolioCounter + 1
}
