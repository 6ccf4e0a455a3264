package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOwner = types.HexToAddress("0x00000000000000000000000000000000000000a1")
	testAsset = types.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func TestMemoryStore_EmptyReads(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)

	err := store.View(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.GetProtocolState(ctx)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = tx.GetPortfolio(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = tx.GetAsset(ctx, 1, 0)
		assert.ErrorIs(t, err, ErrNotFound)

		assets, err := tx.ListAssets(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, assets)

		idx, err := tx.GetOwnerIndex(ctx, testOwner)
		require.NoError(t, err)
		assert.NotNil(t, idx.PortfolioIDs)
		assert.Empty(t, idx.PortfolioIDs)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_ReadYourWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)

	err := store.Update(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.PutPortfolio(ctx, &models.Portfolio{ID: 1, Owner: testOwner, TokenCount: 2, Active: true}))
		require.NoError(t, tx.PutAsset(ctx, &models.PortfolioAsset{PortfolioID: 1, Slot: 1, TargetPercentage: 4000, AssetAddress: testAsset}))
		require.NoError(t, tx.PutAsset(ctx, &models.PortfolioAsset{PortfolioID: 1, Slot: 0, TargetPercentage: 6000, AssetAddress: testAsset}))

		p, err := tx.GetPortfolio(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, testOwner, p.Owner)

		assets, err := tx.ListAssets(ctx, 1)
		require.NoError(t, err)
		require.Len(t, assets, 2)
		assert.Equal(t, types.Slot(0), assets[0].Slot)
		assert.Equal(t, types.Slot(1), assets[1].Slot)
		return nil
	})
	require.NoError(t, err)

	err = store.View(ctx, func(ctx context.Context, tx Tx) error {
		a, err := tx.GetAsset(ctx, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, types.BasisPoints(6000), a.TargetPercentage)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_FailedUpdateDiscardsWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)
	boom := errors.New("boom")

	err := store.Update(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.PutProtocolState(ctx, &models.ProtocolState{PortfolioCounter: 1}))
		require.NoError(t, tx.PutPortfolio(ctx, &models.Portfolio{ID: 1, Owner: testOwner}))
		require.NoError(t, tx.PutOwnerIndex(ctx, &models.OwnerIndex{Owner: testOwner, PortfolioIDs: []types.PortfolioID{1}}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.View(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.GetProtocolState(ctx)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = tx.GetPortfolio(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)
		idx, err := tx.GetOwnerIndex(ctx, testOwner)
		require.NoError(t, err)
		assert.Empty(t, idx.PortfolioIDs)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_CancelledContextDiscardsWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := store.Update(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.PutPortfolio(ctx, &models.Portfolio{ID: 1}))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	err = store.View(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.GetPortfolio(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_ViewRejectsWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)

	err := store.View(ctx, func(ctx context.Context, tx Tx) error {
		assert.ErrorIs(t, tx.PutProtocolState(ctx, &models.ProtocolState{}), ErrReadOnly)
		assert.ErrorIs(t, tx.PutPortfolio(ctx, &models.Portfolio{ID: 1}), ErrReadOnly)
		assert.ErrorIs(t, tx.PutAsset(ctx, &models.PortfolioAsset{PortfolioID: 1}), ErrReadOnly)
		assert.ErrorIs(t, tx.PutOwnerIndex(ctx, &models.OwnerIndex{Owner: testOwner}), ErrReadOnly)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)

	require.NoError(t, store.Update(ctx, func(ctx context.Context, tx Tx) error {
		return tx.PutOwnerIndex(ctx, &models.OwnerIndex{Owner: testOwner, PortfolioIDs: []types.PortfolioID{1}})
	}))

	require.NoError(t, store.View(ctx, func(ctx context.Context, tx Tx) error {
		idx, err := tx.GetOwnerIndex(ctx, testOwner)
		require.NoError(t, err)
		idx.PortfolioIDs[0] = 99
		return nil
	}))

	require.NoError(t, store.View(ctx, func(ctx context.Context, tx Tx) error {
		idx, err := tx.GetOwnerIndex(ctx, testOwner)
		require.NoError(t, err)
		assert.Equal(t, []types.PortfolioID{1}, idx.PortfolioIDs)
		return nil
	}))
}

func TestMemoryStore_ConcurrentUpdatesSerialize(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)

	require.NoError(t, store.Update(ctx, func(ctx context.Context, tx Tx) error {
		return tx.PutProtocolState(ctx, &models.ProtocolState{})
	}))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(ctx, func(ctx context.Context, tx Tx) error {
				state, err := tx.GetProtocolState(ctx)
				if err != nil {
					return err
				}
				state.PortfolioCounter++
				return tx.PutProtocolState(ctx, state)
			})
		}()
	}
	wg.Wait()

	require.NoError(t, store.View(ctx, func(ctx context.Context, tx Tx) error {
		state, err := tx.GetProtocolState(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.PortfolioID(workers), state.PortfolioCounter)
		return nil
	}))
}
