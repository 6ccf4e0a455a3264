package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/portfolio-ledger/internal/chain"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/storage"
	"github.com/portfolio-ledger/internal/types"
	"github.com/stretchr/testify/require"
)

var (
	protocolOwner = addr("0x00000000000000000000000000000000000000f0")
	alice         = addr("0x00000000000000000000000000000000000000a1")
	bob           = addr("0x00000000000000000000000000000000000000b2")
	tokenA        = addr("0x000000000000000000000000000000000000c001")
	tokenB        = addr("0x000000000000000000000000000000000000c002")
	tokenC        = addr("0x000000000000000000000000000000000000c003")
)

func addr(s string) types.Address {
	return types.HexToAddress(s)
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// recordingJournal captures journaled events
type recordingJournal struct {
	mu     sync.Mutex
	events []*models.LedgerEvent
	err    error
}

func (j *recordingJournal) Append(ctx context.Context, events ...*models.LedgerEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.events = append(j.events, events...)
	return nil
}

func (j *recordingJournal) Events() []*models.LedgerEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*models.LedgerEvent(nil), j.events...)
}

type failingHeight struct{}

func (failingHeight) CurrentHeight(ctx context.Context) (types.Height, error) {
	return 0, errors.New("node unreachable")
}

type testLedger struct {
	store     *storage.MemoryStore
	heights   *chain.ManualHeight
	journal   *recordingJournal
	cache     *storage.PortfolioCache
	portfolio *PortfolioService
	protocol  *ProtocolService
	query     *QueryService
}

func newTestLedger(t *testing.T) *testLedger {
	return newTestLedgerWithCache(t, nil)
}

func newTestLedgerWithCache(t *testing.T, cache *storage.PortfolioCache) *testLedger {
	t.Helper()

	store := storage.NewMemoryStore()
	heights := chain.NewManualHeight(1000)
	journal := &recordingJournal{}
	hooks := NewCommitHooks(cache, journal)
	index := NewOwnerIndexManager()

	l := &testLedger{
		store:     store,
		heights:   heights,
		journal:   journal,
		cache:     cache,
		portfolio: NewPortfolioService(store, heights, index, hooks, types.DefaultRebalanceCooldown),
		protocol:  NewProtocolService(store, hooks),
		query:     NewQueryService(store, index, cache),
	}

	_, err := l.protocol.EnsureProtocolState(testContext(t), protocolOwner, types.DefaultProtocolFeeBps)
	require.NoError(t, err)
	return l
}

func (l *testLedger) mustCreate(t *testing.T, owner types.Address, tokens []types.Address, pcts []types.BasisPoints) types.PortfolioID {
	t.Helper()
	id, err := l.portfolio.CreatePortfolio(testContext(t), owner, tokens, pcts)
	require.NoError(t, err)
	return id
}

func (l *testLedger) counter(t *testing.T) types.PortfolioID {
	t.Helper()
	state, err := l.protocol.GetProtocolInfo(testContext(t))
	require.NoError(t, err)
	return state.PortfolioCounter
}
