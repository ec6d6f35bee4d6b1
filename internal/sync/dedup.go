package sync

import (
	"context"
	"log/slog"
)

// ExistsChecker is the slice of the store the dedup index needs.
type ExistsChecker interface {
	EmailExists(ctx context.Context, id string) (bool, error)
}

// Index answers "have we already synced this message" against the
// persistent store. A lookup failure counts the message as unseen:
// re-persisting an email is idempotent, losing one is not.
type Index struct {
	store  ExistsChecker
	logger *slog.Logger
}

// NewIndex creates a dedup index over the given store.
func NewIndex(s ExistsChecker, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{store: s, logger: logger}
}

// FilterUnseen returns the subset of ids not yet persisted, preserving
// input order.
func (i *Index) FilterUnseen(ctx context.Context, ids []string) ([]string, error) {
	unseen := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		exists, err := i.store.EmailExists(ctx, id)
		if err != nil {
			i.logger.Warn("dedup lookup failed, treating as unseen",
				"email_id", id, "err", err)
			unseen = append(unseen, id)
			continue
		}
		if !exists {
			unseen = append(unseen, id)
		}
	}
	return unseen, nil
}
