// Package validation holds the pure checks that guard every ledger write.
// None of these functions touch storage or the clock.
package validation

import (
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// ValidatePercentage reports whether p is a weight in [0, 10000] basis points.
func ValidatePercentage(p types.BasisPoints) bool {
	return p <= types.TotalBasisPoints
}

// ValidatePercentageSet reports whether percentages has expectedLen elements,
// each within bounds, summing to exactly 10000.
func ValidatePercentageSet(percentages []types.BasisPoints, expectedLen int) bool {
	if len(percentages) != expectedLen {
		return false
	}

	var sum types.BasisPoints
	for _, p := range percentages {
		// bounded elements keep the running sum far from overflow
		if !ValidatePercentage(p) {
			return false
		}
		sum += p
	}
	return sum == types.TotalBasisPoints
}

// ValidateTokenID reports whether slot addresses an asset of portfolio.
func ValidateTokenID(portfolio *models.Portfolio, slot types.Slot) bool {
	if portfolio == nil {
		return false
	}
	return slot < types.MaxTokensPerPortfolio && slot < types.Slot(portfolio.TokenCount)
}

// ValidateTokenCount reports whether n assets fit a portfolio.
func ValidateTokenCount(n int) bool {
	return n >= types.MinTokensPerPortfolio && n <= types.MaxTokensPerPortfolio
}

// SumPercentages returns the total of percentages. Callers validate bounds first.
func SumPercentages(percentages []types.BasisPoints) types.BasisPoints {
	var sum types.BasisPoints
	for _, p := range percentages {
		sum += p
	}
	return sum
}
