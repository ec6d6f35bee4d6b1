package store

import (
	"context"
	"time"

	"github.com/nhle/mail-manager/internal/model"
)

// EmailFilter controls filtering, sorting, and pagination for email
// queries.
type EmailFilter struct {
	Priority *model.Priority
	Unread   *bool
	Tag      *string
	Query    *string // search subject + sender + summary

	// IncludeArchived controls whether archived messages appear.
	// Defaults to false.
	IncludeArchived bool

	SortBy   string // "date", "priority", "subject", "synced_at"
	SortDesc bool
	Limit    int
	Offset   int
}

// Stats summarizes the mailbox state for the stats command.
type Stats struct {
	Total        int
	Unread       int
	Processed    int
	WithDeadline int
	ByPriority   map[model.Priority]int
}

// Store defines the persistence interface for classified emails and
// sync sessions.
type Store interface {
	// === Emails ===

	// EmailExists reports whether a message with the given server
	// identifier has already been persisted.
	EmailExists(ctx context.Context, id string) (bool, error)

	// UpsertEmail inserts a classified email, replacing any previous
	// record with the same identifier.
	UpsertEmail(ctx context.Context, email model.ClassifiedEmail) error

	GetEmailByID(ctx context.Context, id string) (*model.ClassifiedEmail, error)
	GetEmails(ctx context.Context, filter EmailFilter) ([]model.ClassifiedEmail, error)
	GetStats(ctx context.Context) (*Stats, error)

	MarkRead(ctx context.Context, id string) error
	ArchiveEmail(ctx context.Context, id string) error

	// === Sync sessions ===

	// CreateSyncSession opens a new session in the in_progress state
	// and returns its identifier.
	CreateSyncSession(
		ctx context.Context, syncType model.SyncType, days int,
	) (int64, error)

	// CompleteSyncSession moves a session to completed with final
	// counters.
	CompleteSyncSession(ctx context.Context, id int64, synced, processed int) error

	// FailSyncSession moves a session to failed, keeping whatever
	// counters were recorded so far.
	FailSyncSession(ctx context.Context, id int64, synced, processed int, reason string) error

	// IsFirstSync reports whether no sync has ever completed.
	IsFirstSync(ctx context.Context) (bool, error)

	// LastCompletedSync returns the start time of the most recent
	// completed session, or nil when none exists.
	LastCompletedSync(ctx context.Context) (*time.Time, error)

	GetSyncSessions(ctx context.Context, limit int) ([]model.SyncSession, error)
}
