package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/portfolio-ledger/internal/models"
)

// EventJournal receives ledger events after their mutation has committed
type EventJournal interface {
	Append(ctx context.Context, events ...*models.LedgerEvent) error
}

// Compile-time contract assertion
var _ EventJournal = (*ClickHouseJournal)(nil)

// ClickHouseJournal appends ledger events to the ledger_events table
type ClickHouseJournal struct {
	conn driver.Conn
}

// NewClickHouseJournal creates a journal over an open ClickHouse connection
func NewClickHouseJournal(conn driver.Conn) *ClickHouseJournal {
	return &ClickHouseJournal{conn: conn}
}

// Append writes events in one batch. Missing IDs and timestamps are filled in.
func (j *ClickHouseJournal) Append(ctx context.Context, events ...*models.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := j.conn.PrepareBatch(ctx, `
		INSERT INTO ledger_events (
			event_id, event_type, actor, portfolio_id, slot, percentage, new_owner, height, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.RecordedAt.IsZero() {
			ev.RecordedAt = time.Now().UTC()
		}

		var slot, percentage *uint64
		if ev.Slot != nil {
			v := uint64(*ev.Slot)
			slot = &v
		}
		if ev.Percentage != nil {
			v := uint64(*ev.Percentage)
			percentage = &v
		}
		var newOwner *string
		if ev.NewOwner != nil {
			v := strings.ToLower(ev.NewOwner.Hex())
			newOwner = &v
		}

		if err := batch.Append(
			ev.ID,
			string(ev.Type),
			strings.ToLower(ev.Actor.Hex()),
			uint64(ev.PortfolioID),
			slot,
			percentage,
			newOwner,
			uint64(ev.Height),
			ev.RecordedAt,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append event %s: %w", ev.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
