package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// PoolConfig parses the DSN and applies the pool limits that are set. A schema
// is placed ahead of public on the search path.
func PoolConfig(cfg config.PostgresSettings) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	setIfPositive(&poolCfg.MaxConns, cfg.MaxConns)
	setIfPositive(&poolCfg.MinConns, cfg.MinConns)
	setIfPositive(&poolCfg.MaxConnLifetime, cfg.MaxConnLifetime)
	setIfPositive(&poolCfg.MaxConnIdleTime, cfg.MaxConnIdleTime)
	setIfPositive(&poolCfg.HealthCheckPeriod, cfg.HealthCheckPeriod)

	if cfg.Schema != "" {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = cfg.Schema + ",public"
	}
	return poolCfg, nil
}

func setIfPositive[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// Connect opens the pool and waits for the first successful ping, backing off
// between attempts so the service can start before the database is accepting.
func Connect(ctx context.Context, cfg config.PostgresSettings, log *zap.Logger) (*pgxpool.Pool, error) {
	if log == nil {
		log = zap.NewNop()
	}

	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	backoff := retry.WithMaxRetries(connectAttempts-1, retry.NewExponential(connectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			log.Warn("postgres not ready", zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	conn := poolCfg.ConnConfig
	log.Info("connected to postgres",
		zap.String("host", conn.Host),
		zap.Uint16("port", conn.Port),
		zap.String("database", conn.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return pool, nil
}
