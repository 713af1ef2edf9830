package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations is the ordered, forward-only schema history. New changes are
// appended as a new version; existing entries are never edited.
var migrations = []struct {
	version int
	stmts   []string
}{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS products (
				item_id BIGINT PRIMARY KEY,
				sub_category_id BIGINT NOT NULL,
				name TEXT NOT NULL,
				price NUMERIC(12,2) NOT NULL DEFAULT 0,
				description TEXT NOT NULL DEFAULT '',
				image_url TEXT NOT NULL DEFAULT '',
				local_path TEXT NOT NULL DEFAULT '',
				last_updated TEXT NOT NULL DEFAULT '',
				brand_name TEXT NOT NULL DEFAULT '',
				qty_per_box TEXT NOT NULL DEFAULT '',
				bulk_price NUMERIC(12,2) NOT NULL DEFAULT 0,
				cartoon_pcs TEXT NOT NULL DEFAULT '',
				bulk_description TEXT NOT NULL DEFAULT '',
				sku TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS variants (
				variant_id BIGINT PRIMARY KEY,
				item_id BIGINT NOT NULL,
				variant_name TEXT NOT NULL DEFAULT '',
				variant_sku TEXT NOT NULL DEFAULT '',
				variant_price NUMERIC(12,2) NOT NULL DEFAULT 0,
				variant_image_url TEXT NOT NULL DEFAULT '',
				variant_local_path TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_variants_item ON variants (item_id)`,
			`CREATE TABLE IF NOT EXISTS main_categories (
				mc_id BIGINT PRIMARY KEY,
				mc_name TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sub_categories (
				sc_id BIGINT PRIMARY KEY,
				sc_name TEXT NOT NULL,
				main_category_id BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS customers (
				customer_id BIGINT PRIMARY KEY,
				shop_name TEXT NOT NULL,
				contact_number TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				route_id BIGINT NOT NULL DEFAULT 0,
				user_id BIGINT NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS routes (
				route_id BIGINT PRIMARY KEY,
				route_name TEXT NOT NULL,
				route_code TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS offline_orders (
				order_id BIGSERIAL PRIMARY KEY,
				customer_id BIGINT NOT NULL,
				rep_id BIGINT NOT NULL,
				order_date TEXT NOT NULL,
				total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
				sync_status TEXT NOT NULL DEFAULT 'pending'
			)`,
			`CREATE TABLE IF NOT EXISTS offline_order_items (
				item_id BIGSERIAL PRIMARY KEY,
				order_id BIGINT NOT NULL REFERENCES offline_orders (order_id) ON DELETE CASCADE,
				variant_id BIGINT NOT NULL,
				product_name TEXT NOT NULL DEFAULT '',
				quantity INT NOT NULL,
				price_per_unit NUMERIC(12,2) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS pending_customers (
				local_id BIGSERIAL PRIMARY KEY,
				shop_name TEXT NOT NULL,
				contact_number TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				route_id BIGINT NOT NULL DEFAULT 0,
				user_id BIGINT NOT NULL DEFAULT 0
			)`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`ALTER TABLE offline_orders ADD COLUMN IF NOT EXISTS bill_discount NUMERIC(5,2) NOT NULL DEFAULT 0`,
		},
	},
	{
		version: 3,
		stmts: []string{
			`ALTER TABLE offline_order_items ADD COLUMN IF NOT EXISTS custom_price_per_unit NUMERIC(12,2)`,
			`ALTER TABLE offline_order_items ADD COLUMN IF NOT EXISTS discount_percentage NUMERIC(5,2) NOT NULL DEFAULT 0`,
		},
	},
}

// Migrate applies any pending schema versions. Each version runs in its own
// transaction and records itself in schema_migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("platform/db: create schema_migrations: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("platform/db: read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := WithTx(ctx, pool, func(tx pgx.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("platform/db: migrate v%d: %w", m.version, err)
				}
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
				return fmt.Errorf("platform/db: record v%d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
