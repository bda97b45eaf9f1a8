// Package migrations holds the PostgreSQL schema for the tracking service and
// applies it idempotently at startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS tracking_purchases (
		id UUID PRIMARY KEY,
		client_id TEXT NOT NULL,
		document_type TEXT NOT NULL DEFAULT '',
		document_number TEXT NOT NULL,
		purchase_date TEXT NOT NULL DEFAULT '',
		delivery_type TEXT NOT NULL DEFAULT '',
		delivery_address TEXT NOT NULL DEFAULT '',
		total DOUBLE PRECISION NOT NULL DEFAULT 0,
		dimensioned BOOLEAN NOT NULL DEFAULT FALSE,
		traceability JSONB NOT NULL DEFAULT '[]'::jsonb,
		products JSONB NOT NULL DEFAULT '[]'::jsonb,
		associated_invoices JSONB NOT NULL DEFAULT '[]'::jsonb,
		pickup JSONB,
		seller JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tracking_purchases_client_document
		ON tracking_purchases (client_id, document_number)`,
	`CREATE INDEX IF NOT EXISTS tracking_purchases_folio
		ON tracking_purchases (ltrim(document_number, '0'))`,
	`CREATE INDEX IF NOT EXISTS tracking_purchases_client_date
		ON tracking_purchases (client_id, purchase_date DESC)`,
}

// Apply runs every schema statement in order. Statements are written to be
// idempotent so Apply is safe on every startup.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
