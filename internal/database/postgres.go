package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"

	// file driver is required for filesystem migrations.
	_ "github.com/golang-migrate/migrate/v4/source/file"

	// database driver for golang-migrate over pgx's stdlib adapter.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"

	"github.com/jackc/pgx/v5/pgxpool"

	// pgx/stdlib registers the pgx driver with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dealwatch/dealwatch/internal/config"
)

const maxInt32 = 1<<31 - 1

type PostgresDB struct {
	Pool   *pgxpool.Pool
	Config *config.Config
	Logger *slog.Logger
}

func NewPostgresDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres connection string: %w", err)
	}

	var maxConns int32

	switch {
	case cfg.DatabaseMaxConn <= 0:
		maxConns = 0
	case cfg.DatabaseMaxConn >= maxInt32:
		maxConns = maxInt32
	default:
		maxConns = int32(cfg.DatabaseMaxConn)
	}

	poolConfig.MaxConns = maxConns

	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating postgres connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	logger.Info("connected to postgres")

	return &PostgresDB{
		Pool:   pool,
		Config: cfg,
		Logger: logger,
	}, nil
}

// RunMigrations applies pending file migrations from the given directory.
func RunMigrations(databaseURL, migrationsDir string, logger *slog.Logger) error {
	// The pgx driver registers under its own URL scheme.
	migrateURL := strings.Replace(databaseURL, "postgres://", "pgx5://", 1)
	migrateURL = strings.Replace(migrateURL, "postgresql://", "pgx5://", 1)

	migrator, err := migrate.New("file://"+migrationsDir, migrateURL)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	defer func() {
		sourceErr, dbErr := migrator.Close()
		if sourceErr != nil {
			logger.Error("failed to close migration source", "error", sourceErr)
		}

		if dbErr != nil {
			logger.Error("failed to close migration database handle", "error", dbErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database schema is up to date")
			return nil
		}

		return fmt.Errorf("applying migrations: %w", err)
	}

	logger.Info("database migrations applied")

	return nil
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.Logger.Info("postgres connection closed")
	}
}
