package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
)

// NewPostgresClient opens the pool, waits for the database to come up and applies pending migrations.
// Panics when postgres stays unreachable after cfg.Postgres.ConnAttempts tries.
func NewPostgresClient(ctx context.Context, cfg *config.Config) *sqlx.DB {
	db, err := connectWithRetry(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("postgres is unreachable", slog.String("err", err.Error()))
		panic(err)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime)

	slog.Info("postgres connected", slog.String("host", cfg.Postgres.Host), slog.String("db", cfg.Postgres.DbName))

	version, err := migratePostgres(db, cfg.Postgres.MigrationDir)
	if err != nil {
		slog.Error("postgres migration failed", slog.String("dir", cfg.Postgres.MigrationDir), slog.String("err", err.Error()))
		panic(err)
	}
	slog.Info("postgres migrated", slog.Uint64("schemaVersion", uint64(version)))

	return db
}

func postgresDSN(cfg config.Postgres) string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:     cfg.DbName,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return dsn.String()
}

func connectWithRetry(ctx context.Context, cfg config.Postgres) (*sqlx.DB, error) {
	var lastErr error

	for attempt := 1; attempt <= max(cfg.ConnAttempts, 1); attempt++ {
		db, err := sqlx.ConnectContext(ctx, "pgx", postgresDSN(cfg))
		if err == nil {
			return db, nil
		}
		lastErr = err

		slog.Info("waiting for postgres", slog.Int("attempt", attempt), slog.String("err", err.Error()))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ConnRetryDelay):
		}
	}

	return nil, fmt.Errorf("connect after %d attempts: %w", cfg.ConnAttempts, lastErr)
}

func migratePostgres(db *sqlx.DB, migrationDir string) (uint, error) {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationDir, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("migrate instance: %w", err)
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("migrate version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}

	return version, nil
}
