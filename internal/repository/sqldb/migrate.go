package sqldb

import (
	"context"
	"fmt"
	"strings"
)

// tables lists the schema in dependency order: users first because every
// other table references it. {{ts}} expands to the dialect's timestamp type.
//
// CREATE TABLE IF NOT EXISTS keeps Migrate idempotent: running it on every
// start (or from the "migrate" command) never fails on an existing schema.
var tables = []struct {
	name string
	ddl  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			github_id     BIGINT UNIQUE,
			is_active     BOOLEAN NOT NULL DEFAULT TRUE,
			is_staff      BOOLEAN NOT NULL DEFAULT FALSE,
			is_superuser  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at    {{ts}} NOT NULL,
			updated_at    {{ts}} NOT NULL
		)`},
	{"snippets", `
		CREATE TABLE IF NOT EXISTS snippets (
			id          TEXT PRIMARY KEY,
			owner_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title       TEXT NOT NULL DEFAULT '',
			code        TEXT NOT NULL,
			linenos     BOOLEAN NOT NULL DEFAULT FALSE,
			language    TEXT NOT NULL DEFAULT 'python',
			style       TEXT NOT NULL DEFAULT 'friendly',
			highlighted TEXT NOT NULL DEFAULT '',
			created_at  {{ts}} NOT NULL,
			updated_at  {{ts}} NOT NULL
		)`},
	{"password_reset_tokens", `
		CREATE TABLE IF NOT EXISTS password_reset_tokens (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			expires_at {{ts}} NOT NULL,
			created_at {{ts}} NOT NULL
		)`},
	{"revoked_tokens", `
		CREATE TABLE IF NOT EXISTS revoked_tokens (
			jti        TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			expires_at {{ts}} NOT NULL,
			revoked_at {{ts}} NOT NULL
		)`},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_snippets_owner_created ON snippets(owner_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reset_tokens_user ON password_reset_tokens(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reset_tokens_expires ON password_reset_tokens(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires ON revoked_tokens(expires_at)`,
}

func (db *DB) timestampType() string {
	if db.dialect == Postgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

// Migrate creates any missing tables and indexes.
func (db *DB) Migrate(ctx context.Context) error {
	for _, t := range tables {
		ddl := strings.ReplaceAll(t.ddl, "{{ts}}", db.timestampType())
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("sqldb: creating %s table: %w", t.name, err)
		}
	}
	for _, idx := range indexes {
		if _, err := db.conn.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("sqldb: creating index: %w", err)
		}
	}
	return nil
}

// Reset drops every table and recreates the schema. All data is lost.
// Used by the "reset-db" and "deploy --reset" commands.
func (db *DB) Reset(ctx context.Context) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+tables[i].name); err != nil {
			return fmt.Errorf("sqldb: dropping %s: %w", tables[i].name, err)
		}
	}
	return db.Migrate(ctx)
}
