// Package dbtest opens databases for integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/inventory-service/internal/config"
	"github.com/vasiliy-maslov/inventory-service/internal/db"
)

// SQLite returns a migrated in-memory database closed at the end of the test.
func SQLite(tb testing.TB) *sqlx.DB {
	tb.Helper()

	sqliteDB, err := db.NewSQLite(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(tb, err)
	tb.Cleanup(sqliteDB.Close)

	return sqliteDB.DB
}

// Postgres connects to the database described by the DB_*_TEST variables,
// migrates it and truncates every table before and after the test. The test
// is skipped when DB_HOST_TEST is not set.
func Postgres(tb testing.TB) *pgxpool.Pool {
	tb.Helper()

	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		tb.Skip("DB_HOST_TEST is not set, skipping postgres integration test")
	}

	cfg := config.PostgresConfig{
		Host:            host,
		Port:            getenv("DB_PORT_TEST", "5432"),
		User:            getenv("DB_USER_TEST", "postgres"),
		Password:        getenv("DB_PASSWORD_TEST", "postgres"),
		DBName:          getenv("DB_NAME_TEST", "inventory_test"),
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	require.NoError(tb, db.ApplyPostgresMigrations(cfg))

	pg, err := db.New(context.Background(), cfg)
	require.NoError(tb, err)

	truncate(tb, pg.Pool)
	tb.Cleanup(func() {
		truncate(tb, pg.Pool)
		pg.Close()
	})

	return pg.Pool
}

func truncate(tb testing.TB, pool *pgxpool.Pool) {
	tb.Helper()

	_, err := pool.Exec(context.Background(),
		"TRUNCATE TABLE inventory.order_items, inventory.orders, inventory.products, inventory.access_tokens, inventory.users")
	require.NoError(tb, err, "Failed to truncate tables")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
