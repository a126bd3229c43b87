package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every concept store's table. Each statement is idempotent.
// Stores own their tables; there are no foreign keys between them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id          UUID PRIMARY KEY,
		owner_id    UUID NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		quantity    INTEGER NOT NULL CHECK (quantity >= 0),
		hidden      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS requests (
		id          UUID PRIMARY KEY,
		owner_id    UUID NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		quantity    INTEGER NOT NULL CHECK (quantity >= 0),
		hidden      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_owner ON requests(owner_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS expiration_records (
		id         UUID PRIMARY KEY,
		kind       TEXT NOT NULL CHECK (kind IN ('listing', 'request')),
		item_id    UUID NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (kind, item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expiration_records_due ON expiration_records(kind, expires_at)`,

	`CREATE TABLE IF NOT EXISTS offers (
		id          UUID PRIMARY KEY,
		request_id  UUID NOT NULL,
		offeror_id  UUID NOT NULL,
		message     TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL CHECK (status IN ('active', 'accepted', 'removed')),
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		accepted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_offers_request ON offers(request_id)`,

	`CREATE TABLE IF NOT EXISTS claims (
		id          UUID PRIMARY KEY,
		listing_id  UUID NOT NULL,
		claimant_id UUID NOT NULL,
		quantity    INTEGER NOT NULL CHECK (quantity > 0),
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_claims_listing ON claims(listing_id)`,

	`CREATE TABLE IF NOT EXISTS item_tags (
		kind    TEXT NOT NULL CHECK (kind IN ('listing', 'request')),
		item_id UUID NOT NULL,
		label   TEXT NOT NULL,
		PRIMARY KEY (kind, item_id, label)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_item_tags_label ON item_tags(label)`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id         UUID PRIMARY KEY,
		category   TEXT NOT NULL,
		action     TEXT NOT NULL,
		user_id    UUID,
		kind       TEXT NOT NULL DEFAULT '',
		subject    TEXT NOT NULL DEFAULT '',
		reason     TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_subject ON audit_events(subject, created_at)`,
}

// migrations are applied in order after the schema. Each must be idempotent.
// Append new migrations at the end.
var migrations = []string{}

// Migrate applies the schema and then every migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i+1, err)
		}
	}
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Tables lists the tables created by Migrate, for test truncation.
func Tables() []string {
	return []string{"listings", "requests", "expiration_records", "offers", "claims", "item_tags", "audit_events"}
}
