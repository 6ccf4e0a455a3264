package service

import (
	"context"
	stderrors "errors"

	ledgererrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/storage"
	"github.com/portfolio-ledger/internal/types"
)

// ProtocolService administers the ledger-wide protocol state
type ProtocolService struct {
	store storage.Store
	hooks *CommitHooks
}

// NewProtocolService creates a protocol service. hooks may be nil.
func NewProtocolService(store storage.Store, hooks *CommitHooks) *ProtocolService {
	return &ProtocolService{store: store, hooks: hooks}
}

// EnsureProtocolState seeds the protocol row on first boot. On later boots the
// stored owner and counter are kept and only the fee is reset to feeBps.
func (s *ProtocolService) EnsureProtocolState(ctx context.Context, owner types.Address, feeBps types.BasisPoints) (*models.ProtocolState, error) {
	var state *models.ProtocolState
	err := s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		current, err := tx.GetProtocolState(ctx)
		switch {
		case stderrors.Is(err, storage.ErrNotFound):
			current = &models.ProtocolState{ProtocolOwner: owner}
		case err != nil:
			return ledgererrors.NewDatabaseError("get protocol state", err)
		}

		current.ProtocolFeeBps = feeBps
		if err := tx.PutProtocolState(ctx, current); err != nil {
			return ledgererrors.NewDatabaseError("put protocol state", err)
		}
		state = current
		return nil
	})
	if err != nil {
		return nil, storeError("ensure protocol state", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"protocolOwner":    state.ProtocolOwner.Hex(),
		"protocolFeeBps":   uint64(state.ProtocolFeeBps),
		"portfolioCounter": uint64(state.PortfolioCounter),
	}).Info("Protocol state ready")

	return state, nil
}

// Initialize hands protocol ownership from caller to newOwner.
// Only the current owner may call it, and only toward a different non-zero address.
func (s *ProtocolService) Initialize(ctx context.Context, caller, newOwner types.Address) error {
	err := s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		state, err := loadProtocolState(ctx, tx)
		if err != nil {
			return err
		}
		if state.ProtocolOwner != caller || newOwner == caller || newOwner == types.ZeroAddress {
			return ledgererrors.NewNotAuthorizedError(caller, "initialize protocol")
		}

		state.ProtocolOwner = newOwner
		if err := tx.PutProtocolState(ctx, state); err != nil {
			return ledgererrors.NewDatabaseError("put protocol state", err)
		}
		return nil
	})
	if err != nil {
		return storeError("initialize protocol", err)
	}

	logging.FromContext(ctx).WithActor(caller).
		WithField("newOwner", newOwner.Hex()).Info("Protocol owner changed")

	s.hooks.afterCommit(ctx, &models.LedgerEvent{
		Type:     models.EventProtocolOwnerChanged,
		Actor:    caller,
		NewOwner: &newOwner,
	})

	return nil
}

// GetProtocolInfo returns the current protocol state
func (s *ProtocolService) GetProtocolInfo(ctx context.Context) (*models.ProtocolState, error) {
	var state *models.ProtocolState
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		state, err = loadProtocolState(ctx, tx)
		return err
	})
	if err != nil {
		return nil, storeError("get protocol info", err)
	}
	return state, nil
}
