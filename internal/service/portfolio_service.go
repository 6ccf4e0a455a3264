package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/portfolio-ledger/internal/chain"
	ledgererrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/storage"
	"github.com/portfolio-ledger/internal/types"
	"github.com/portfolio-ledger/internal/validation"
)

// PortfolioService owns every portfolio mutation. Each operation runs as a
// single Store.Update; any failure leaves the ledger untouched.
type PortfolioService struct {
	store    storage.Store
	heights  chain.HeightSource
	index    *OwnerIndexManager
	hooks    *CommitHooks
	cooldown types.Height
}

// NewPortfolioService creates a portfolio service. hooks may be nil.
func NewPortfolioService(
	store storage.Store,
	heights chain.HeightSource,
	index *OwnerIndexManager,
	hooks *CommitHooks,
	cooldown types.Height,
) *PortfolioService {
	return &PortfolioService{
		store:    store,
		heights:  heights,
		index:    index,
		hooks:    hooks,
		cooldown: cooldown,
	}
}

// CreatePortfolio records a new portfolio owned by caller and returns its ID.
func (s *PortfolioService) CreatePortfolio(
	ctx context.Context,
	caller types.Address,
	tokens []types.Address,
	percentages []types.BasisPoints,
) (types.PortfolioID, error) {
	if err := validateCreateInput(tokens, percentages); err != nil {
		return 0, err
	}

	height, err := s.heights.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}

	var id types.PortfolioID
	err = s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		state, err := loadProtocolState(ctx, tx)
		if err != nil {
			return err
		}
		id = state.NextPortfolioID()

		portfolio := &models.Portfolio{
			ID:             id,
			Owner:          caller,
			CreatedAt:      height,
			LastRebalanced: height,
			TotalValue:     0,
			Active:         true,
			TokenCount:     uint8(len(tokens)), // #nosec G115 - bounded by MaxTokensPerPortfolio
		}
		if err := tx.PutPortfolio(ctx, portfolio); err != nil {
			return ledgererrors.NewDatabaseError("put portfolio", err)
		}

		for i, token := range tokens {
			asset := &models.PortfolioAsset{
				PortfolioID:      id,
				Slot:             types.Slot(i),
				TargetPercentage: percentages[i],
				CurrentAmount:    0,
				AssetAddress:     token,
			}
			if err := tx.PutAsset(ctx, asset); err != nil {
				return ledgererrors.NewDatabaseError("put asset", err)
			}
		}

		if err := s.index.AddToOwnerIndex(ctx, tx, caller, id); err != nil {
			if stderrors.Is(err, ledgererrors.ErrIndexCapacityExceeded) {
				return ledgererrors.Wrap(ledgererrors.KindUserStorageFull,
					fmt.Sprintf("owner %s has reached %d portfolios", caller.Hex(), types.MaxPortfoliosPerOwner), err)
			}
			return err
		}

		state.PortfolioCounter = id
		if err := tx.PutProtocolState(ctx, state); err != nil {
			return ledgererrors.NewDatabaseError("put protocol state", err)
		}
		return nil
	})
	if err != nil {
		return 0, storeError("create portfolio", err)
	}

	logging.FromContext(ctx).WithActor(caller).WithPortfolio(id).WithFields(map[string]interface{}{
		"tokenCount": len(tokens),
		"height":     uint64(height),
	}).Info("Portfolio created")

	s.hooks.afterCommit(ctx, &models.LedgerEvent{
		Type:        models.EventPortfolioCreated,
		Actor:       caller,
		PortfolioID: id,
		Height:      height,
	}, storage.PortfolioKey(id), storage.OwnerKey(caller))

	return id, nil
}

func validateCreateInput(tokens []types.Address, percentages []types.BasisPoints) error {
	if len(tokens) != len(percentages) {
		return ledgererrors.New(ledgererrors.KindLengthMismatch,
			fmt.Sprintf("got %d tokens and %d percentages", len(tokens), len(percentages)),
			map[string]interface{}{
				"tokens":      len(tokens),
				"percentages": len(percentages),
			})
	}

	if !validation.ValidateTokenCount(len(tokens)) {
		details := map[string]interface{}{
			"count": len(tokens),
			"min":   types.MinTokensPerPortfolio,
			"max":   types.MaxTokensPerPortfolio,
		}
		if len(tokens) > types.MaxTokensPerPortfolio {
			return ledgererrors.New(ledgererrors.KindMaxTokensExceeded,
				fmt.Sprintf("portfolio holds at most %d tokens, got %d", types.MaxTokensPerPortfolio, len(tokens)), details)
		}
		return ledgererrors.New(ledgererrors.KindInvalidTokenCount,
			fmt.Sprintf("portfolio needs at least %d tokens, got %d", types.MinTokensPerPortfolio, len(tokens)), details)
	}

	for i, p := range percentages {
		if !validation.ValidatePercentage(p) {
			return ledgererrors.NewInvalidPercentageError("weight out of range", map[string]interface{}{
				"slot":       i,
				"percentage": uint64(p),
			})
		}
	}
	if !validation.ValidatePercentageSet(percentages, len(tokens)) {
		return ledgererrors.NewInvalidPercentageError("weights must sum to 10000", map[string]interface{}{
			"sum": uint64(validation.SumPercentages(percentages)),
		})
	}

	for i, token := range tokens {
		if token == types.ZeroAddress {
			return ledgererrors.New(ledgererrors.KindInvalidToken,
				fmt.Sprintf("token at slot %d is the zero address", i),
				map[string]interface{}{"slot": i})
		}
	}
	return nil
}

// UpdatePortfolioAllocation replaces the target weight of one asset.
// The portfolio total is not re-checked afterwards.
func (s *PortfolioService) UpdatePortfolioAllocation(
	ctx context.Context,
	caller types.Address,
	id types.PortfolioID,
	slot types.Slot,
	newPercentage types.BasisPoints,
) error {
	height, err := s.heights.CurrentHeight(ctx)
	if err != nil {
		return err
	}

	err = s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		portfolio, err := loadPortfolio(ctx, tx, id)
		if err != nil {
			return err
		}
		if !portfolio.IsOwnedBy(caller) {
			return ledgererrors.NewNotAuthorizedError(caller, fmt.Sprintf("update portfolio %d", id))
		}
		if !validation.ValidatePercentage(newPercentage) {
			return ledgererrors.NewInvalidPercentageError("weight out of range", map[string]interface{}{
				"slot":       uint64(slot),
				"percentage": uint64(newPercentage),
			})
		}
		if !validation.ValidateTokenID(portfolio, slot) {
			return ledgererrors.NewInvalidTokenIDError(id, slot)
		}

		asset, err := tx.GetAsset(ctx, id, slot)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return ledgererrors.NewInvalidTokenIDError(id, slot)
			}
			return ledgererrors.NewDatabaseError("get asset", err)
		}

		asset.TargetPercentage = newPercentage
		if err := tx.PutAsset(ctx, asset); err != nil {
			return ledgererrors.NewDatabaseError("put asset", err)
		}
		return nil
	})
	if err != nil {
		return storeError("update allocation", err)
	}

	logging.FromContext(ctx).WithActor(caller).WithPortfolio(id).WithFields(map[string]interface{}{
		"slot":       uint64(slot),
		"percentage": uint64(newPercentage),
	}).Info("Portfolio allocation updated")

	s.hooks.afterCommit(ctx, &models.LedgerEvent{
		Type:        models.EventAllocationUpdated,
		Actor:       caller,
		PortfolioID: id,
		Slot:        &slot,
		Percentage:  &newPercentage,
		Height:      height,
	}, storage.AssetKey(id, slot))

	return nil
}

// RebalancePortfolio stamps last_rebalanced with the current height.
// No amounts move; trade execution belongs to an external collaborator.
func (s *PortfolioService) RebalancePortfolio(ctx context.Context, caller types.Address, id types.PortfolioID) error {
	height, err := s.heights.CurrentHeight(ctx)
	if err != nil {
		return err
	}

	err = s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		portfolio, err := loadPortfolio(ctx, tx, id)
		if err != nil {
			return err
		}
		if !portfolio.IsOwnedBy(caller) {
			return ledgererrors.NewNotAuthorizedError(caller, fmt.Sprintf("rebalance portfolio %d", id))
		}
		if !portfolio.Active {
			return ledgererrors.New(ledgererrors.KindInactivePortfolio,
				fmt.Sprintf("portfolio %d is inactive", id),
				map[string]interface{}{"portfolioId": uint64(id)})
		}

		portfolio.LastRebalanced = height
		if err := tx.PutPortfolio(ctx, portfolio); err != nil {
			return ledgererrors.NewDatabaseError("put portfolio", err)
		}
		return nil
	})
	if err != nil {
		return storeError("rebalance portfolio", err)
	}

	logging.FromContext(ctx).WithActor(caller).WithPortfolio(id).
		WithField("height", uint64(height)).Info("Portfolio rebalanced")

	s.hooks.afterCommit(ctx, &models.LedgerEvent{
		Type:        models.EventPortfolioRebalanced,
		Actor:       caller,
		PortfolioID: id,
		Height:      height,
	}, storage.PortfolioKey(id))

	return nil
}

// CalculateRebalanceEligibility reports whether more than the cooldown has
// elapsed since the last rebalance. It never writes.
func (s *PortfolioService) CalculateRebalanceEligibility(ctx context.Context, id types.PortfolioID) (*models.RebalanceStatus, error) {
	height, err := s.heights.CurrentHeight(ctx)
	if err != nil {
		return nil, err
	}

	var status *models.RebalanceStatus
	err = s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		portfolio, err := loadPortfolio(ctx, tx, id)
		if err != nil {
			return err
		}
		status = &models.RebalanceStatus{
			PortfolioID:    id,
			TotalValue:     portfolio.TotalValue,
			NeedsRebalance: NeedsRebalance(height, portfolio.LastRebalanced, s.cooldown),
		}
		return nil
	})
	if err != nil {
		return nil, storeError("calculate rebalance eligibility", err)
	}
	return status, nil
}

// NeedsRebalance reports whether strictly more than cooldown heights separate
// lastRebalanced from current. A current height below lastRebalanced is never due.
func NeedsRebalance(current, lastRebalanced, cooldown types.Height) bool {
	if current < lastRebalanced {
		return false
	}
	return current-lastRebalanced > cooldown
}

func loadPortfolio(ctx context.Context, tx storage.Tx, id types.PortfolioID) (*models.Portfolio, error) {
	portfolio, err := tx.GetPortfolio(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, ledgererrors.NewPortfolioNotFoundError(id)
		}
		return nil, ledgererrors.NewDatabaseError("get portfolio", err)
	}
	return portfolio, nil
}

func loadProtocolState(ctx context.Context, tx storage.Tx) (*models.ProtocolState, error) {
	state, err := tx.GetProtocolState(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, ledgererrors.NewInternalError("protocol state not initialized", err)
		}
		return nil, ledgererrors.NewDatabaseError("get protocol state", err)
	}
	return state, nil
}

// storeError passes ledger errors through and classifies the rest as database failures
func storeError(operation string, err error) error {
	var ledgerErr *ledgererrors.LedgerError
	if stderrors.As(err, &ledgerErr) {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ledgererrors.NewDatabaseError(operation, err)
}
