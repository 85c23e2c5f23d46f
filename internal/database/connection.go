package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

func NewPool(ctx context.Context, databaseURL string, log logrus.FieldLogger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("Database connected (postgres)")
	return pool, nil
}

// OpenSQLite opens the embedded database. In-memory DSNs are pinned to a
// single connection so every query sees the same database.
func OpenSQLite(ctx context.Context, dsn string, log logrus.FieldLogger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	log.Info("Database connected (sqlite)")
	return db, nil
}

// Open connects with the configured driver and makes sure the tables exist.
func Open(ctx context.Context, driver, databaseURL string, log logrus.FieldLogger) (Repository, error) {
	switch driver {
	case "postgres":
		pool, err := NewPool(ctx, databaseURL, log)
		if err != nil {
			return nil, err
		}
		repo := NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return repo, nil
	case "sqlite":
		db, err := OpenSQLite(ctx, databaseURL, log)
		if err != nil {
			return nil, err
		}
		repo := NewSQLiteRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
