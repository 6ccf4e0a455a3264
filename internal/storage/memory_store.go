package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// Compile-time contract assertion
var _ Store = (*MemoryStore)(nil)

type memoryTables struct {
	state      *models.ProtocolState
	portfolios map[types.PortfolioID]*models.Portfolio
	assets     map[models.AssetKey]*models.PortfolioAsset
	owners     map[types.Address]*models.OwnerIndex
}

// MemoryStore is an in-process Store for tests and ephemeral deployments.
// Units of work are serialized; each buffers its writes and applies them
// only when the unit succeeds.
type MemoryStore struct {
	mu     sync.RWMutex
	tables memoryTables
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: memoryTables{
			portfolios: make(map[types.PortfolioID]*models.Portfolio),
			assets:     make(map[models.AssetKey]*models.PortfolioAsset),
			owners:     make(map[types.Address]*models.OwnerIndex),
		},
	}
}

// Update runs fn and applies its writes if it returns nil
func (s *MemoryStore) Update(ctx context.Context, fn TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newMemoryTx(&s.tables, false)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn against a consistent snapshot
func (s *MemoryStore) View(ctx context.Context, fn TxFunc) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, newMemoryTx(&s.tables, true))
}

// memoryTx overlays pending writes on the committed tables
type memoryTx struct {
	base     *memoryTables
	readOnly bool

	state      *models.ProtocolState
	portfolios map[types.PortfolioID]*models.Portfolio
	assets     map[models.AssetKey]*models.PortfolioAsset
	owners     map[types.Address]*models.OwnerIndex
}

func newMemoryTx(base *memoryTables, readOnly bool) *memoryTx {
	return &memoryTx{
		base:       base,
		readOnly:   readOnly,
		portfolios: make(map[types.PortfolioID]*models.Portfolio),
		assets:     make(map[models.AssetKey]*models.PortfolioAsset),
		owners:     make(map[types.Address]*models.OwnerIndex),
	}
}

func (t *memoryTx) commit() {
	if t.state != nil {
		t.base.state = t.state
	}
	for id, p := range t.portfolios {
		t.base.portfolios[id] = p
	}
	for k, a := range t.assets {
		t.base.assets[k] = a
	}
	for owner, idx := range t.owners {
		t.base.owners[owner] = idx
	}
}

func (t *memoryTx) GetProtocolState(ctx context.Context) (*models.ProtocolState, error) {
	if t.state != nil {
		return t.state.Clone(), nil
	}
	if t.base.state == nil {
		return nil, ErrNotFound
	}
	return t.base.state.Clone(), nil
}

func (t *memoryTx) PutProtocolState(ctx context.Context, state *models.ProtocolState) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.state = state.Clone()
	return nil
}

func (t *memoryTx) GetPortfolio(ctx context.Context, id types.PortfolioID) (*models.Portfolio, error) {
	if p, ok := t.portfolios[id]; ok {
		return p.Clone(), nil
	}
	if p, ok := t.base.portfolios[id]; ok {
		return p.Clone(), nil
	}
	return nil, ErrNotFound
}

func (t *memoryTx) PutPortfolio(ctx context.Context, portfolio *models.Portfolio) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.portfolios[portfolio.ID] = portfolio.Clone()
	return nil
}

func (t *memoryTx) GetAsset(ctx context.Context, id types.PortfolioID, slot types.Slot) (*models.PortfolioAsset, error) {
	key := models.AssetKey{PortfolioID: id, Slot: slot}
	if a, ok := t.assets[key]; ok {
		return a.Clone(), nil
	}
	if a, ok := t.base.assets[key]; ok {
		return a.Clone(), nil
	}
	return nil, ErrNotFound
}

func (t *memoryTx) ListAssets(ctx context.Context, id types.PortfolioID) ([]*models.PortfolioAsset, error) {
	merged := make(map[types.Slot]*models.PortfolioAsset)
	for k, a := range t.base.assets {
		if k.PortfolioID == id {
			merged[k.Slot] = a
		}
	}
	for k, a := range t.assets {
		if k.PortfolioID == id {
			merged[k.Slot] = a
		}
	}

	assets := make([]*models.PortfolioAsset, 0, len(merged))
	for _, a := range merged {
		assets = append(assets, a.Clone())
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Slot < assets[j].Slot })
	return assets, nil
}

func (t *memoryTx) PutAsset(ctx context.Context, asset *models.PortfolioAsset) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.assets[asset.Key()] = asset.Clone()
	return nil
}

func (t *memoryTx) GetOwnerIndex(ctx context.Context, owner types.Address) (*models.OwnerIndex, error) {
	if idx, ok := t.owners[owner]; ok {
		return idx.Clone(), nil
	}
	if idx, ok := t.base.owners[owner]; ok {
		return idx.Clone(), nil
	}
	return &models.OwnerIndex{Owner: owner, PortfolioIDs: []types.PortfolioID{}}, nil
}

func (t *memoryTx) PutOwnerIndex(ctx context.Context, index *models.OwnerIndex) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.owners[index.Owner] = index.Clone()
	return nil
}
