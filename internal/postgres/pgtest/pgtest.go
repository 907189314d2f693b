// Package pgtest opens a migrated, emptied test database for integration tests.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-custom-orders/internal/postgres"
)

const suiteLockKey = 7_331_001

// Open skips the test unless TEST_DATABASE_URL is set, so a live database is never truncated.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn, postgres.PoolOptions{MaxConns: 24})
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(pool.Close)

	// Packages run in parallel under `go test ./...`; serialize them on one session lock.
	lockConn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock connection: %v", err)
	}
	if _, err := lockConn.Exec(ctx, `SELECT pg_advisory_lock($1)`, suiteLockKey); err != nil {
		lockConn.Release()
		t.Fatalf("take suite lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = lockConn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, suiteLockKey)
		lockConn.Release()
	})

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE inventory_history, inventory, order_history, order_shippings,
			order_customizations, order_item_variants, order_items, orders,
			product_variants, products, collections RESTART IDENTITY CASCADE;

		INSERT INTO collections (id, name) VALUES (1, 'Spring bouquets');

		INSERT INTO products (id, collection_id, name, product_type, price) VALUES
			(1, 1, 'Rose bouquet',   'custom',   100000),
			(2, 1, 'Tulip bouquet',  'standard', 80000),
			(3, NULL, 'Gift card',   'standard', 50000);

		INSERT INTO product_variants (id, product_id, name, price) VALUES
			(1, 1, 'Large', 150000),
			(2, 1, 'Small', NULL);

		SELECT setval('collections_id_seq', 10);
		SELECT setval('products_id_seq', 10);
		SELECT setval('product_variants_id_seq', 10);
	`)
	if err != nil {
		t.Fatalf("seed test database: %v", err)
	}
	return pool
}
