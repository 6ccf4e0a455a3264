package service

import (
	"context"

	"github.com/portfolio-ledger/internal/logging"
	"github.com/portfolio-ledger/internal/models"
	"github.com/portfolio-ledger/internal/storage"
)

// CommitHooks runs the side effects that follow a committed mutation.
// Both are best effort: the ledger store is authoritative, so failures here
// are logged and never reported to the caller.
type CommitHooks struct {
	cache   *storage.PortfolioCache
	journal storage.EventJournal
}

// NewCommitHooks creates hooks; either collaborator may be nil
func NewCommitHooks(cache *storage.PortfolioCache, journal storage.EventJournal) *CommitHooks {
	return &CommitHooks{cache: cache, journal: journal}
}

func (h *CommitHooks) afterCommit(ctx context.Context, event *models.LedgerEvent, keys ...string) {
	if h == nil {
		return
	}
	logger := logging.FromContext(ctx)

	if h.cache != nil && len(keys) > 0 {
		if err := h.cache.Invalidate(ctx, keys...); err != nil {
			logger.WithError(err).WithField("keys", keys).Warn("Failed to invalidate cache after commit")
		}
	}

	if h.journal != nil && event != nil {
		if err := h.journal.Append(ctx, event); err != nil {
			logger.WithError(err).WithField("event", string(event.Type)).Warn("Failed to journal ledger event")
		}
	}
}
