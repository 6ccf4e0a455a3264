package storage

import (
	"context"
	"errors"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// ErrNotFound is returned by Tx getters when no record exists under the key
var ErrNotFound = errors.New("record not found")

// Tx is one atomic unit of work against the ledger tables. Writes made
// through a Tx are visible to later reads of the same Tx.
type Tx interface {
	GetProtocolState(ctx context.Context) (*models.ProtocolState, error)
	PutProtocolState(ctx context.Context, state *models.ProtocolState) error

	GetPortfolio(ctx context.Context, id types.PortfolioID) (*models.Portfolio, error)
	PutPortfolio(ctx context.Context, portfolio *models.Portfolio) error

	GetAsset(ctx context.Context, id types.PortfolioID, slot types.Slot) (*models.PortfolioAsset, error)
	ListAssets(ctx context.Context, id types.PortfolioID) ([]*models.PortfolioAsset, error)
	PutAsset(ctx context.Context, asset *models.PortfolioAsset) error

	// GetOwnerIndex returns an empty index, not ErrNotFound, for unknown owners
	GetOwnerIndex(ctx context.Context, owner types.Address) (*models.OwnerIndex, error)
	PutOwnerIndex(ctx context.Context, index *models.OwnerIndex) error
}

// TxFunc is the body of an atomic unit
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the transactional record store backing the ledger.
// Update commits every write made by fn only if fn returns nil.
// View runs fn read-only; writes inside View fail.
type Store interface {
	Update(ctx context.Context, fn TxFunc) error
	View(ctx context.Context, fn TxFunc) error
}

// ErrReadOnly is returned by write methods of a Tx opened with View
var ErrReadOnly = errors.New("write attempted in read-only transaction")
