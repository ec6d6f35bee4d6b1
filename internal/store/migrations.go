package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS emails (
	id               TEXT PRIMARY KEY,
	subject          TEXT NOT NULL DEFAULT '',
	sender_email     TEXT NOT NULL DEFAULT '',
	sender_name      TEXT NOT NULL DEFAULT '',
	date             DATETIME NOT NULL,
	text_body        TEXT NOT NULL DEFAULT '',
	html_body        TEXT NOT NULL DEFAULT '',
	has_attachments  INTEGER NOT NULL DEFAULT 0 CHECK(has_attachments IN (0, 1)),
	attachment_count INTEGER NOT NULL DEFAULT 0,
	priority         TEXT NOT NULL DEFAULT 'normal'
		CHECK(priority IN ('urgent', 'important', 'normal', 'archive')),
	tags             TEXT NOT NULL DEFAULT '[]',
	deadline         TEXT NOT NULL DEFAULT '',
	summary          TEXT NOT NULL DEFAULT '',
	processed_by     TEXT NOT NULL DEFAULT '',
	privacy_level    TEXT NOT NULL DEFAULT 'normal'
		CHECK(privacy_level IN ('extreme', 'high', 'normal')),
	processed        INTEGER NOT NULL DEFAULT 0 CHECK(processed IN (0, 1)),
	is_read          INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	is_archived      INTEGER NOT NULL DEFAULT 0 CHECK(is_archived IN (0, 1)),
	synced_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_sessions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at     DATETIME,
	sync_type        TEXT NOT NULL CHECK(sync_type IN ('first_sync', 'incremental_sync')),
	days_range       INTEGER NOT NULL DEFAULT 0,
	emails_synced    INTEGER NOT NULL DEFAULT 0,
	emails_processed INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'in_progress'
		CHECK(status IN ('in_progress', 'completed', 'failed')),
	error_message    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(date);
CREATE INDEX IF NOT EXISTS idx_emails_priority ON emails(priority);
CREATE INDEX IF NOT EXISTS idx_emails_is_read ON emails(is_read);
CREATE INDEX IF NOT EXISTS idx_emails_is_archived ON emails(is_archived);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sync_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sync_sessions(started_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_emails_priority_date ON emails(priority, date);
CREATE INDEX IF NOT EXISTS idx_emails_deadline ON emails(deadline) WHERE deadline != '';

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
