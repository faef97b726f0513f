package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/employee-console/internal/platform/cache"
	"github.com/odyssey-erp/employee-console/internal/platform/db"
	"github.com/odyssey-erp/employee-console/internal/session"
)

// Backends holds the connections opened for the configured stores. Close
// releases whichever were opened.
type Backends struct {
	Redis *redis.Client
	PG    *pgxpool.Pool
}

// Close releases open connections.
func (b *Backends) Close() {
	if b == nil {
		return
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.PG != nil {
		b.PG.Close()
	}
}

// RedisClient returns the shared Redis client, connecting on first use.
func (b *Backends) RedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if b.Redis != nil {
		return b.Redis, nil
	}
	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	b.Redis = client
	return client, nil
}

// NewTokenStore builds the persistent token slot selected by TOKEN_STORE.
func NewTokenStore(ctx context.Context, cfg *Config, backends *Backends, logger *slog.Logger) (session.TokenStore, error) {
	switch cfg.TokenStore {
	case TokenStoreRedis:
		client, err := backends.RedisClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		logger.Info("token store ready", slog.String("backend", TokenStoreRedis), slog.String("key", cfg.TokenRedisKey))
		return session.NewRedisStore(client, cfg.TokenRedisKey), nil
	case TokenStorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		backends.PG = pool
		store := session.NewPGStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		logger.Info("token store ready", slog.String("backend", TokenStorePostgres))
		return store, nil
	default:
		store := session.NewFileStore(cfg.TokenFile)
		logger.Debug("token store ready", slog.String("backend", TokenStoreFile), slog.String("path", store.Path()))
		return store, nil
	}
}
