package store

import (
	"context"
	"fmt"
)

var postgresSchema = []string{`
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	nrp         TEXT,
	totp_secret TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, `
CREATE TABLE IF NOT EXISTS attendance (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL REFERENCES users(id),
	meeting_id   TEXT NOT NULL,
	is_attending BOOLEAN NOT NULL DEFAULT TRUE,
	attended_at  TIMESTAMPTZ NOT NULL,
	CONSTRAINT attendance_user_meeting_key UNIQUE (user_id, meeting_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_meeting ON attendance(meeting_id, attended_at)`,
}

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	nrp         TEXT,
	totp_secret TEXT,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS attendance (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL REFERENCES users(id),
	meeting_id   TEXT NOT NULL,
	is_attending BOOLEAN NOT NULL DEFAULT 1,
	attended_at  DATETIME NOT NULL,
	UNIQUE (user_id, meeting_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_meeting ON attendance(meeting_id, attended_at)`,
}

var mysqlSchema = []string{`
CREATE TABLE IF NOT EXISTS users (
	id          VARCHAR(64) PRIMARY KEY,
	name        VARCHAR(255) NOT NULL,
	nrp         VARCHAR(64) NULL,
	totp_secret VARCHAR(255) NULL,
	created_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
CREATE TABLE IF NOT EXISTS attendance (
	id           VARCHAR(64) PRIMARY KEY,
	user_id      VARCHAR(64) NOT NULL,
	meeting_id   VARCHAR(128) NOT NULL,
	is_attending BOOLEAN NOT NULL DEFAULT TRUE,
	attended_at  DATETIME(6) NOT NULL,
	UNIQUE KEY attendance_user_meeting_key (user_id, meeting_id),
	KEY idx_attendance_meeting (meeting_id, attended_at),
	CONSTRAINT fk_attendance_user FOREIGN KEY (user_id) REFERENCES users(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the users and attendance tables if they are missing.
// The (user_id, meeting_id) unique constraint is what keeps attendance upserts
// single-row under concurrent requests.
func Migrate(ctx context.Context, db *DB) error {
	var schema []string
	switch db.Dialect {
	case SQLite:
		schema = sqliteSchema
	case MySQL:
		schema = mysqlSchema
	default:
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := db.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", db.Dialect, err)
		}
	}
	return nil
}
