// Package chain supplies the logical height the ledger uses for cooldown timing.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/portfolio-ledger/internal/circuitbreaker"
	ledgererrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/retry"
	"github.com/portfolio-ledger/internal/types"
)

// HeightSource reports the current logical height. Heights never decrease.
type HeightSource interface {
	CurrentHeight(ctx context.Context) (types.Height, error)
}

// ManualHeight is a HeightSource advanced explicitly, used in development and tests
type ManualHeight struct {
	mu     sync.Mutex
	height types.Height
}

// NewManualHeight creates a manual source starting at h
func NewManualHeight(h types.Height) *ManualHeight {
	return &ManualHeight{height: h}
}

// CurrentHeight returns the current height
func (m *ManualHeight) CurrentHeight(ctx context.Context) (types.Height, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height, nil
}

// Advance moves the height forward by n and returns the new height
func (m *ManualHeight) Advance(n types.Height) types.Height {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height += n
	return m.height
}

// Set moves the height to h. Lower values are ignored.
func (m *ManualHeight) Set(h types.Height) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h > m.height {
		m.height = h
	}
}

// BlockNumberReader is the subset of ethclient.Client used for heights
type BlockNumberReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// RPCHeightSource reads the latest block number of an EVM node
type RPCHeightSource struct {
	client  BlockNumberReader
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.RetryConfig
	timeout time.Duration

	mu   sync.Mutex
	last types.Height
}

// NewRPCHeightSource wraps client with retry and a circuit breaker
func NewRPCHeightSource(client BlockNumberReader, timeout time.Duration) *RPCHeightSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RPCHeightSource{
		client:  client,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("chain-rpc")),
		retry:   retry.DefaultRetryConfig(),
		timeout: timeout,
	}
}

// DialRPCHeightSource connects to the node at rpcURL
func DialRPCHeightSource(ctx context.Context, rpcURL string, timeout time.Duration) (*RPCHeightSource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC: %w", err)
	}
	return NewRPCHeightSource(client, timeout), nil
}

// CurrentHeight returns the latest block number. A node lagging behind a
// previously observed height does not move the clock backwards.
func (s *RPCHeightSource) CurrentHeight(ctx context.Context) (types.Height, error) {
	var block uint64
	err := retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			n, err := s.client.BlockNumber(callCtx)
			if err != nil {
				return ledgererrors.NewProviderError("chain-rpc", err)
			}
			block = n
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return 0, ledgererrors.Wrap(ledgererrors.KindServiceUnavailable, "chain height source is unavailable", err)
		}
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h := types.Height(block); h > s.last {
		s.last = h
	}
	return s.last, nil
}
