// Package postgres provides PostgreSQL database connection utilities.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config contains PostgreSQL connection configuration.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	ConnectAttempts int
}

// Connect establishes a connection pool to PostgreSQL, retrying with
// exponential backoff until the configured attempt budget runs out.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = 16 * time.Second

	var pool *pgxpool.Pool
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = p.Ping(ctx); err != nil {
				p.Close()
			}
		}
		if err != nil {
			slog.Warn("failed to connect to database",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err,
			)
			return err
		}
		pool = p
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
	}

	slog.Info("connected to database", "attempts", attempt)
	return pool, nil
}
