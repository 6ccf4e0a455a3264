package service

import (
	"testing"

	ledgererrors "github.com/portfolio-ledger/internal/errors"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureProtocolState(t *testing.T) {
	l := newTestLedger(t)
	ctx := testContext(t)

	state, err := l.protocol.GetProtocolInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.ProtocolState{
		PortfolioCounter: 0,
		ProtocolFeeBps:   25,
		ProtocolOwner:    protocolOwner,
	}, state)

	l.mustCreate(t, alice, []types.Address{tokenA, tokenB}, []types.BasisPoints{5000, 5000})
	require.NoError(t, l.protocol.Initialize(ctx, protocolOwner, bob))

	// a restart with different settings keeps owner and counter, refreshes the fee
	state, err = l.protocol.EnsureProtocolState(ctx, alice, 40)
	require.NoError(t, err)
	assert.Equal(t, bob, state.ProtocolOwner)
	assert.Equal(t, types.PortfolioID(1), state.PortfolioCounter)
	assert.Equal(t, types.BasisPoints(40), state.ProtocolFeeBps)
}

func TestInitialize(t *testing.T) {
	l := newTestLedger(t)
	ctx := testContext(t)

	require.NoError(t, l.protocol.Initialize(ctx, protocolOwner, alice))

	state, err := l.protocol.GetProtocolInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, state.ProtocolOwner)

	// the previous owner lost the right
	assert.ErrorIs(t, l.protocol.Initialize(ctx, protocolOwner, bob), ledgererrors.ErrNotAuthorized)

	require.NoError(t, l.protocol.Initialize(ctx, alice, bob))

	events := l.journal.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventProtocolOwnerChanged, events[0].Type)
	assert.Equal(t, protocolOwner, events[0].Actor)
	require.NotNil(t, events[0].NewOwner)
	assert.Equal(t, alice, *events[0].NewOwner)
	require.NotNil(t, events[1].NewOwner)
	assert.Equal(t, bob, *events[1].NewOwner)
}

func TestInitialize_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		caller   types.Address
		newOwner types.Address
	}{
		{"non-owner", alice, bob},
		{"handoff to self", protocolOwner, protocolOwner},
		{"handoff to zero address", protocolOwner, types.ZeroAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			ctx := testContext(t)

			err := l.protocol.Initialize(ctx, tt.caller, tt.newOwner)
			assert.ErrorIs(t, err, ledgererrors.ErrNotAuthorized)

			state, err := l.protocol.GetProtocolInfo(ctx)
			require.NoError(t, err)
			assert.Equal(t, protocolOwner, state.ProtocolOwner)
			assert.Empty(t, l.journal.Events())
		})
	}
}
