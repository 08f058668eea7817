package db

import (
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/vasiliy-maslov/inventory-service/internal/config"
	"github.com/vasiliy-maslov/inventory-service/migrations"
)

// SQLiteDriverName is the database/sql driver registered by modernc.org/sqlite.
const SQLiteDriverName = "sqlite"

type SQLite struct {
	DB *sqlx.DB
}

// NewSQLite opens the database file (or ":memory:"), configures it for a
// single writer and applies the embedded migrations.
func NewSQLite(cfg config.SQLiteConfig) (*SQLite, error) {
	db, err := sqlx.Open(SQLiteDriverName, sqliteDSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One connection: transactions are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := applySQLiteMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Str("path", cfg.Path).Msg("Opened SQLite database")
	return &SQLite{DB: db}, nil
}

func (s *SQLite) Close() {
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close sqlite database")
			return
		}
		log.Info().Msg("Database connection closed")
	}
}

// sqliteDSN makes the driver store time.Time in a layout the SQLite date
// functions understand.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_time_format=sqlite"
}

func applySQLiteMigrations(db *sqlx.DB) error {
	src, err := iofs.New(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	// m.Close would close db as well, so the instance is left to the GC.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migration instance: %w", err)
	}

	return runUp(m)
}
