// Package types provides common type definitions for the portfolio ledger.
package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger limits
const (
	// TotalBasisPoints is the exact sum a portfolio's target weights must reach at creation
	TotalBasisPoints BasisPoints = 10000
	// MinTokensPerPortfolio is the smallest number of assets a portfolio may hold
	MinTokensPerPortfolio = 2
	// MaxTokensPerPortfolio is the largest number of assets a portfolio may hold
	MaxTokensPerPortfolio = 10
	// MaxPortfoliosPerOwner bounds the owner index
	MaxPortfoliosPerOwner = 20
	// DefaultRebalanceCooldown is the number of heights that must elapse before a rebalance is due
	DefaultRebalanceCooldown Height = 144
	// DefaultProtocolFeeBps is the protocol fee applied when none is configured
	DefaultProtocolFeeBps BasisPoints = 25
)

// Address identifies an actor (portfolio owner, protocol owner) or an asset.
type Address = common.Address

// ZeroAddress is the unset address
var ZeroAddress = Address{}

// BasisPoints is a fraction of 10000 (10000 = 100%)
type BasisPoints uint64

// Height is the monotonically increasing logical clock used for cooldowns
type Height uint64

// PortfolioID identifies a portfolio. IDs are assigned sequentially starting at 1.
type PortfolioID uint64

// Slot is the zero-based position of an asset within a portfolio
type Slot uint64

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return ZeroAddress, &ServiceError{
			Code:    "INVALID_ADDRESS_FORMAT",
			Message: fmt.Sprintf("invalid address format: %s (must be 0x followed by 40 hexadecimal characters)", s),
			Details: map[string]interface{}{
				"address": s,
				"format":  "0x[a-fA-F0-9]{40}",
			},
		}
	}
	return common.HexToAddress(s), nil
}

// HexToAddress converts a stored hex string without validation
func HexToAddress(s string) Address {
	return common.HexToAddress(s)
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
