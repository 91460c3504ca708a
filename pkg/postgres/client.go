// Package postgres opens the lib/pq connection pool shared by the dataset
// store and the analytics snapshot store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/resilience"
)

// Client wraps the pool. DB is exported for queries the helpers below do
// not cover.
type Client struct {
	DB     *sql.DB
	target string
	logger *slog.Logger
}

// New opens the pool and waits for the server to answer a ping, retrying a
// few times so services can start alongside the database container.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	target := fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	err = resilience.Retry(ctx, "postgres ping", resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
	}, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, 5*time.Second, "postgres ping", db.PingContext)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres %s: %w", target, err)
	}

	c := &Client{
		DB:     db,
		target: target,
		logger: slog.Default().With("component", "postgres", "target", target),
	}
	c.logger.Info("connected to postgres")
	return c, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureTable runs a CREATE TABLE IF NOT EXISTS statement for table.
func (c *Client) EnsureTable(ctx context.Context, table, ddl string) error {
	if _, err := c.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	c.logger.Debug("table ready", "table", table)
	return nil
}

// InTx runs fn in a transaction, committing when it returns nil and rolling
// back otherwise.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
