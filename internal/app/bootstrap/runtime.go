package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/bloodlab-platform/internal/analytics"
	appconfig "github.com/wolfman30/bloodlab-platform/internal/config"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/internal/reminders"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// Stores groups the persistence layers that share one backend.
type Stores struct {
	Backend   string
	Records   *records.Store
	Events    reminders.EventStore
	Analytics analytics.Source

	closers []func()
}

// Close releases pools opened by BuildStores.
func (s *Stores) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// BuildStores opens the record, reminder and reporting stores for the
// configured backend.
func BuildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StoreBackend {
	case "", BackendJSON:
		rec, err := records.NewJSONStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: record store: %w", err)
		}
		events, err := reminders.NewJSONStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: reminder store: %w", err)
		}
		logger.Info("using json record store", "dir", cfg.DataDir)
		return &Stores{
			Backend:   BackendJSON,
			Records:   rec,
			Events:    events,
			Analytics: analytics.NewRecordSource(rec),
		}, nil

	case BackendPostgres:
		pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if pool == nil {
			return nil, fmt.Errorf("bootstrap: postgres backend needs a reachable DATABASE_URL")
		}
		s := &Stores{
			Backend: BackendPostgres,
			Records: records.NewPostgresStore(pool),
			Events:  reminders.NewPostgresStore(pool),
			closers: []func(){pool.Close},
		}
		src, err := analytics.OpenSQLSource(cfg.DatabaseURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("bootstrap: analytics source: %w", err)
		}
		s.Analytics = src
		s.closers = append(s.closers, func() { _ = src.Close() })
		logger.Info("using postgres record store")
		return s, nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
	}
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}
