package model

import "time"

// SyncType distinguishes the two fetch-window profiles.
type SyncType string

const (
	SyncTypeFirst       SyncType = "first_sync"
	SyncTypeIncremental SyncType = "incremental_sync"
)

// Sync session statuses. A session only ever moves from in_progress to
// completed or failed; it is never reopened.
const (
	SyncStatusInProgress = "in_progress"
	SyncStatusCompleted  = "completed"
	SyncStatusFailed     = "failed"
)

// SyncSession is the persisted record of one orchestration run.
type SyncSession struct {
	ID          int64      `db:"id" json:"id"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Type        SyncType   `db:"sync_type" json:"sync_type"`

	// Days is the effective day window the session requested.
	Days int `db:"days_range" json:"days_range"`

	EmailsSynced    int    `db:"emails_synced" json:"emails_synced"`
	EmailsProcessed int    `db:"emails_processed" json:"emails_processed"`
	Status          string `db:"status" json:"status"`
	ErrorMessage    string `db:"error_message" json:"error_message,omitempty"`
}
