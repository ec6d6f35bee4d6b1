// Package store persists classified emails and sync sessions in a local
// SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mail-manager/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// EmailExists reports whether a message with the given identifier has
// been persisted.
func (s *SQLiteStore) EmailExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx,
		&count, "SELECT COUNT(*) FROM emails WHERE id = ?", id,
	)
	if err != nil {
		return false, fmt.Errorf("checking email %s: %w", id, err)
	}
	return count > 0, nil
}

// UpsertEmail inserts or replaces a classified email by identifier.
func (s *SQLiteStore) UpsertEmail(
	ctx context.Context, email model.ClassifiedEmail,
) error {
	tags, err := json.Marshal(email.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags for email %s: %w", email.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO emails (
			id, subject, sender_email, sender_name, date,
			text_body, html_body, has_attachments, attachment_count,
			priority, tags, deadline, summary,
			processed_by, privacy_level, processed,
			is_read, is_archived, synced_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?
		)`,
		email.ID, email.Subject, email.SenderEmail, email.SenderName,
		email.Date.UTC(),
		email.TextBody, email.HTMLBody,
		boolToInt(email.HasAttachments), email.AttachmentCount,
		string(email.Priority), string(tags), email.Deadline, email.Summary,
		email.ProcessedBy, string(email.PrivacyLevel), boolToInt(email.Processed),
		boolToInt(email.IsRead), boolToInt(email.IsArchived), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting email %s: %w", email.ID, err)
	}

	return nil
}

// GetEmailByID retrieves a single email by its identifier. A missing
// identifier returns (nil, nil).
func (s *SQLiteStore) GetEmailByID(
	ctx context.Context, id string,
) (*model.ClassifiedEmail, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM emails WHERE id = ?", id,
	)

	email, err := scanEmailRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting email %s: %w", id, err)
	}

	return &email, nil
}

// GetEmails retrieves emails matching the provided filter options.
func (s *SQLiteStore) GetEmails(
	ctx context.Context, filter EmailFilter,
) ([]model.ClassifiedEmail, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeArchived {
		conditions = append(conditions, "is_archived = 0")
	}
	if filter.Priority != nil {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(*filter.Priority))
	}
	if filter.Unread != nil {
		conditions = append(conditions, "is_read = ?")
		args = append(args, boolToInt(!*filter.Unread))
	}
	if filter.Tag != nil && *filter.Tag != "" {
		// Tags are stored as a JSON array; match the quoted element.
		conditions = append(conditions, "tags LIKE ?")
		args = append(args, fmt.Sprintf(`%%"%s"%%`, *filter.Tag))
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions,
			"(subject LIKE ? OR sender_email LIKE ? OR sender_name LIKE ? OR summary LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q, q, q)
	}

	query := "SELECT * FROM emails"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// Determine sort column.
	sortBy := "date"
	if filter.SortBy != "" {
		allowedSorts := map[string]bool{
			"date":      true,
			"priority":  true,
			"subject":   true,
			"synced_at": true,
		}
		if allowedSorts[filter.SortBy] {
			sortBy = filter.SortBy
		}
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying emails: %w", err)
	}
	defer rows.Close()

	var emails []model.ClassifiedEmail
	for rows.Next() {
		email, err := scanEmailRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}

	return emails, rows.Err()
}

// GetStats summarizes the persisted mailbox state.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByPriority: make(map[model.Priority]int)}

	err := s.db.GetContext(ctx, &stats.Total,
		"SELECT COUNT(*) FROM emails WHERE is_archived = 0")
	if err != nil {
		return nil, fmt.Errorf("counting emails: %w", err)
	}

	err = s.db.GetContext(ctx, &stats.Unread,
		"SELECT COUNT(*) FROM emails WHERE is_archived = 0 AND is_read = 0")
	if err != nil {
		return nil, fmt.Errorf("counting unread emails: %w", err)
	}

	err = s.db.GetContext(ctx, &stats.Processed,
		"SELECT COUNT(*) FROM emails WHERE is_archived = 0 AND processed = 1")
	if err != nil {
		return nil, fmt.Errorf("counting processed emails: %w", err)
	}

	err = s.db.GetContext(ctx, &stats.WithDeadline,
		"SELECT COUNT(*) FROM emails WHERE is_archived = 0 AND deadline != ''")
	if err != nil {
		return nil, fmt.Errorf("counting emails with deadlines: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT priority, COUNT(*) FROM emails WHERE is_archived = 0 GROUP BY priority")
	if err != nil {
		return nil, fmt.Errorf("counting emails by priority: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var priority string
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("scanning priority count: %w", err)
		}
		stats.ByPriority[model.Priority(priority)] = count
	}

	return stats, rows.Err()
}

// MarkRead marks a single email as read.
func (s *SQLiteStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE emails SET is_read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking email %s as read: %w", id, err)
	}
	return nil
}

// ArchiveEmail hides an email from default queries.
func (s *SQLiteStore) ArchiveEmail(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE emails SET is_archived = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("archiving email %s: %w", id, err)
	}
	return nil
}

// CreateSyncSession opens a session in the in_progress state.
func (s *SQLiteStore) CreateSyncSession(
	ctx context.Context, syncType model.SyncType, days int,
) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_sessions (started_at, sync_type, days_range, status)
		VALUES (?, ?, ?, ?)`,
		time.Now().UTC(), string(syncType), days, model.SyncStatusInProgress,
	)
	if err != nil {
		return 0, fmt.Errorf("creating sync session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading sync session id: %w", err)
	}
	return id, nil
}

// CompleteSyncSession finalizes a session as completed.
func (s *SQLiteStore) CompleteSyncSession(
	ctx context.Context, id int64, synced, processed int,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_sessions
		SET completed_at = ?, emails_synced = ?, emails_processed = ?, status = ?
		WHERE id = ? AND status = ?`,
		time.Now().UTC(), synced, processed,
		model.SyncStatusCompleted, id, model.SyncStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("completing sync session %d: %w", id, err)
	}
	return nil
}

// FailSyncSession finalizes a session as failed, keeping partial
// counters.
func (s *SQLiteStore) FailSyncSession(
	ctx context.Context, id int64, synced, processed int, reason string,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_sessions
		SET completed_at = ?, emails_synced = ?, emails_processed = ?,
			status = ?, error_message = ?
		WHERE id = ? AND status = ?`,
		time.Now().UTC(), synced, processed,
		model.SyncStatusFailed, reason, id, model.SyncStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("failing sync session %d: %w", id, err)
	}
	return nil
}

// IsFirstSync reports whether no session has ever completed. Failed and
// in-progress sessions do not count.
func (s *SQLiteStore) IsFirstSync(ctx context.Context) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM sync_sessions WHERE status = ?",
		model.SyncStatusCompleted,
	)
	if err != nil {
		return false, fmt.Errorf("counting completed sessions: %w", err)
	}
	return count == 0, nil
}

// LastCompletedSync returns the start time of the most recent completed
// session, or nil when none exists.
func (s *SQLiteStore) LastCompletedSync(ctx context.Context) (*time.Time, error) {
	var startedAt time.Time
	err := s.db.GetContext(ctx, &startedAt, `
		SELECT started_at FROM sync_sessions
		WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		model.SyncStatusCompleted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last completed sync: %w", err)
	}
	return &startedAt, nil
}

// GetSyncSessions retrieves the most recent sessions, newest first.
func (s *SQLiteStore) GetSyncSessions(
	ctx context.Context, limit int,
) ([]model.SyncSession, error) {
	query := "SELECT * FROM sync_sessions ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var sessions []model.SyncSession
	if err := s.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("querying sync sessions: %w", err)
	}
	return sessions, nil
}

// scanEmailRow scans one emails row using the provided scan function,
// which works for both sqlx.Row and sqlx.Rows.
func scanEmailRow(scan func(dest ...interface{}) error) (model.ClassifiedEmail, error) {
	var (
		email          model.ClassifiedEmail
		date           time.Time
		hasAttachments int
		priority       string
		tagsJSON       string
		privacyLevel   string
		processed      int
		isRead         int
		isArchived     int
		syncedAt       time.Time
	)

	err := scan(
		&email.ID, &email.Subject, &email.SenderEmail, &email.SenderName, &date,
		&email.TextBody, &email.HTMLBody, &hasAttachments, &email.AttachmentCount,
		&priority, &tagsJSON, &email.Deadline, &email.Summary,
		&email.ProcessedBy, &privacyLevel, &processed,
		&isRead, &isArchived, &syncedAt,
	)
	if err != nil {
		return model.ClassifiedEmail{}, err
	}

	email.Date = date
	email.HasAttachments = hasAttachments != 0
	email.Priority = model.Priority(priority)
	email.PrivacyLevel = model.PrivacyLevel(privacyLevel)
	email.Processed = processed != 0
	email.IsRead = isRead != 0
	email.IsArchived = isArchived != 0

	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &email.Tags); err != nil {
			return model.ClassifiedEmail{}, fmt.Errorf("unmarshaling tags: %w", err)
		}
	}

	return email, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
