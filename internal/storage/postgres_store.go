package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/types"
)

// Compile-time contract assertion
var _ Store = (*PostgresStore)(nil)

// PostgresStore persists the ledger in Postgres. Each unit of work is one
// database transaction; rows read during Update are locked FOR UPDATE so
// concurrent writers touching the same portfolio or the protocol row queue
// behind each other.
type PostgresStore struct {
	db *PostgresDB
}

// NewPostgresStore creates a store over an open connection pool
func NewPostgresStore(db *PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Update runs fn in a read-write transaction committed only when fn returns nil
func (s *PostgresStore) Update(ctx context.Context, fn TxFunc) error {
	return pgx.BeginFunc(ctx, s.db.Pool(), func(tx pgx.Tx) error {
		return fn(ctx, &postgresTx{tx: tx})
	})
}

// View runs fn in a read-only transaction
func (s *PostgresStore) View(ctx context.Context, fn TxFunc) error {
	opts := pgx.TxOptions{AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, s.db.Pool(), opts, func(tx pgx.Tx) error {
		return fn(ctx, &postgresTx{tx: tx, readOnly: true})
	})
}

type postgresTx struct {
	tx       pgx.Tx
	readOnly bool
}

// lockClause returns the row lock suffix for reads inside Update
func (t *postgresTx) lockClause() string {
	if t.readOnly {
		return ""
	}
	return " FOR UPDATE"
}

func addressKey(a types.Address) string {
	return strings.ToLower(a.Hex())
}

func (t *postgresTx) GetProtocolState(ctx context.Context) (*models.ProtocolState, error) {
	query := `
		SELECT portfolio_counter, protocol_fee_bps, protocol_owner
		FROM protocol_state
		WHERE id = 1` + t.lockClause()

	var counter, fee int64
	var owner string
	err := t.tx.QueryRow(ctx, query).Scan(&counter, &fee, &owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get protocol state: %w", err)
	}

	return &models.ProtocolState{
		PortfolioCounter: types.PortfolioID(counter),
		ProtocolFeeBps:   types.BasisPoints(fee),
		ProtocolOwner:    types.HexToAddress(owner),
	}, nil
}

func (t *postgresTx) PutProtocolState(ctx context.Context, state *models.ProtocolState) error {
	if t.readOnly {
		return ErrReadOnly
	}

	query := `
		INSERT INTO protocol_state (id, portfolio_counter, protocol_fee_bps, protocol_owner, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			portfolio_counter = EXCLUDED.portfolio_counter,
			protocol_fee_bps = EXCLUDED.protocol_fee_bps,
			protocol_owner = EXCLUDED.protocol_owner,
			updated_at = NOW()
	`

	_, err := t.tx.Exec(ctx, query,
		int64(state.PortfolioCounter), // #nosec G115 - sequential counter
		int64(state.ProtocolFeeBps),   // #nosec G115 - bounded by 10000
		addressKey(state.ProtocolOwner),
	)
	if err != nil {
		return fmt.Errorf("failed to put protocol state: %w", err)
	}
	return nil
}

func (t *postgresTx) GetPortfolio(ctx context.Context, id types.PortfolioID) (*models.Portfolio, error) {
	query := `
		SELECT id, owner, created_at, last_rebalanced, total_value, active, token_count
		FROM portfolios
		WHERE id = $1` + t.lockClause()

	var (
		pid, createdAt, lastRebalanced, totalValue int64
		owner                                      string
		active                                     bool
		tokenCount                                 int16
	)
	err := t.tx.QueryRow(ctx, query, int64(id)).Scan( // #nosec G115 - sequential id
		&pid,
		&owner,
		&createdAt,
		&lastRebalanced,
		&totalValue,
		&active,
		&tokenCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	return &models.Portfolio{
		ID:             types.PortfolioID(pid),
		Owner:          types.HexToAddress(owner),
		CreatedAt:      types.Height(createdAt),
		LastRebalanced: types.Height(lastRebalanced),
		TotalValue:     uint64(totalValue),
		Active:         active,
		TokenCount:     uint8(tokenCount),
	}, nil
}

func (t *postgresTx) PutPortfolio(ctx context.Context, p *models.Portfolio) error {
	if t.readOnly {
		return ErrReadOnly
	}

	query := `
		INSERT INTO portfolios (id, owner, created_at, last_rebalanced, total_value, active, token_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			created_at = EXCLUDED.created_at,
			last_rebalanced = EXCLUDED.last_rebalanced,
			total_value = EXCLUDED.total_value,
			active = EXCLUDED.active,
			token_count = EXCLUDED.token_count,
			updated_at = NOW()
	`

	// #nosec G115 - heights and ids stay far below MaxInt64
	_, err := t.tx.Exec(ctx, query,
		int64(p.ID),
		addressKey(p.Owner),
		int64(p.CreatedAt),
		int64(p.LastRebalanced),
		int64(p.TotalValue),
		p.Active,
		int16(p.TokenCount),
	)
	if err != nil {
		return fmt.Errorf("failed to put portfolio: %w", err)
	}
	return nil
}

func (t *postgresTx) GetAsset(ctx context.Context, id types.PortfolioID, slot types.Slot) (*models.PortfolioAsset, error) {
	query := `
		SELECT portfolio_id, slot, target_percentage, current_amount, asset_address
		FROM portfolio_assets
		WHERE portfolio_id = $1 AND slot = $2` + t.lockClause()

	// #nosec G115 - sequential id, slot below 10
	row := t.tx.QueryRow(ctx, query, int64(id), int64(slot))
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return asset, nil
}

func (t *postgresTx) ListAssets(ctx context.Context, id types.PortfolioID) ([]*models.PortfolioAsset, error) {
	query := `
		SELECT portfolio_id, slot, target_percentage, current_amount, asset_address
		FROM portfolio_assets
		WHERE portfolio_id = $1
		ORDER BY slot ASC
	`

	rows, err := t.tx.Query(ctx, query, int64(id)) // #nosec G115 - sequential id
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	assets := make([]*models.PortfolioAsset, 0, types.MaxTokensPerPortfolio)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}

func scanAsset(row pgx.Row) (*models.PortfolioAsset, error) {
	var pid, slot, target, amount int64
	var asset string
	if err := row.Scan(&pid, &slot, &target, &amount, &asset); err != nil {
		return nil, err
	}
	return &models.PortfolioAsset{
		PortfolioID:      types.PortfolioID(pid),
		Slot:             types.Slot(slot),
		TargetPercentage: types.BasisPoints(target),
		CurrentAmount:    uint64(amount),
		AssetAddress:     types.HexToAddress(asset),
	}, nil
}

func (t *postgresTx) PutAsset(ctx context.Context, a *models.PortfolioAsset) error {
	if t.readOnly {
		return ErrReadOnly
	}

	query := `
		INSERT INTO portfolio_assets (portfolio_id, slot, target_percentage, current_amount, asset_address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (portfolio_id, slot) DO UPDATE SET
			target_percentage = EXCLUDED.target_percentage,
			current_amount = EXCLUDED.current_amount,
			asset_address = EXCLUDED.asset_address
	`

	// #nosec G115 - values validated by the ledger before persisting
	_, err := t.tx.Exec(ctx, query,
		int64(a.PortfolioID),
		int64(a.Slot),
		int64(a.TargetPercentage),
		int64(a.CurrentAmount),
		addressKey(a.AssetAddress),
	)
	if err != nil {
		return fmt.Errorf("failed to put asset: %w", err)
	}
	return nil
}

func (t *postgresTx) GetOwnerIndex(ctx context.Context, owner types.Address) (*models.OwnerIndex, error) {
	query := `
		SELECT portfolio_id
		FROM owner_index
		WHERE owner = $1
		ORDER BY position ASC
	`

	rows, err := t.tx.Query(ctx, query, addressKey(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to get owner index: %w", err)
	}
	defer rows.Close()

	index := &models.OwnerIndex{Owner: owner, PortfolioIDs: []types.PortfolioID{}}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owner index: %w", err)
		}
		index.PortfolioIDs = append(index.PortfolioIDs, types.PortfolioID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owner index: %w", err)
	}
	return index, nil
}

func (t *postgresTx) PutOwnerIndex(ctx context.Context, index *models.OwnerIndex) error {
	if t.readOnly {
		return ErrReadOnly
	}

	owner := addressKey(index.Owner)
	if _, err := t.tx.Exec(ctx, `DELETE FROM owner_index WHERE owner = $1`, owner); err != nil {
		return fmt.Errorf("failed to clear owner index: %w", err)
	}

	batch := &pgx.Batch{}
	for pos, id := range index.PortfolioIDs {
		batch.Queue(
			`INSERT INTO owner_index (owner, position, portfolio_id) VALUES ($1, $2, $3)`,
			owner, int16(pos), int64(id), // #nosec G115 - index is bounded
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write owner index: %w", err)
	}
	return nil
}
