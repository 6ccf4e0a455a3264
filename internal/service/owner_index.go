package service

import (
	"context"
	"fmt"

	ledgererrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/storage"
	"github.com/portfolio-ledger/internal/types"
)

// OwnerIndexManager maintains the bounded per-owner list of created portfolios
type OwnerIndexManager struct {
	capacity int
}

// NewOwnerIndexManager creates a manager holding up to MaxPortfoliosPerOwner entries per owner
func NewOwnerIndexManager() *OwnerIndexManager {
	return &OwnerIndexManager{capacity: types.MaxPortfoliosPerOwner}
}

// AddToOwnerIndex appends id to owner's index inside tx.
// A full index returns IndexCapacityExceeded and writes nothing.
func (m *OwnerIndexManager) AddToOwnerIndex(ctx context.Context, tx storage.Tx, owner types.Address, id types.PortfolioID) error {
	index, err := tx.GetOwnerIndex(ctx, owner)
	if err != nil {
		return ledgererrors.NewDatabaseError("get owner index", err)
	}

	if len(index.PortfolioIDs) >= m.capacity {
		return ledgererrors.New(ledgererrors.KindIndexCapacityExceeded,
			fmt.Sprintf("owner %s already has %d portfolios", owner.Hex(), len(index.PortfolioIDs)),
			map[string]interface{}{
				"owner":    owner.Hex(),
				"capacity": m.capacity,
			})
	}

	index.PortfolioIDs = append(index.PortfolioIDs, id)
	if err := tx.PutOwnerIndex(ctx, index); err != nil {
		return ledgererrors.NewDatabaseError("put owner index", err)
	}
	return nil
}

// OwnerPortfolios returns owner's portfolio IDs in creation order, empty when none
func (m *OwnerIndexManager) OwnerPortfolios(ctx context.Context, tx storage.Tx, owner types.Address) ([]types.PortfolioID, error) {
	index, err := tx.GetOwnerIndex(ctx, owner)
	if err != nil {
		return nil, ledgererrors.NewDatabaseError("get owner index", err)
	}
	if index.PortfolioIDs == nil {
		return []types.PortfolioID{}, nil
	}
	return index.PortfolioIDs, nil
}
