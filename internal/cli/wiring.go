package cli

import (
	"context"
	"fmt"
	"time"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/config"
	"giveaway-quiz-service/internal/infra/memory"
	"giveaway-quiz-service/internal/infra/postgres"
	redisinfra "giveaway-quiz-service/internal/infra/redis"
	"giveaway-quiz-service/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// components holds the wired services and the resources behind them.
type components struct {
	admission *app.AdmissionService
	registry  *app.RegistryService
	auth      *app.AuthService
	closers   []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

type storage struct {
	store  app.Store
	loader app.RoomLoader
}

// openStorage picks the store for cfg.Storage.Driver.
func openStorage(ctx context.Context, cfg config.Config, c *components) (storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return storage{}, err
		}
		c.closers = append(c.closers, func() { _ = s.Close() })
		log.Info().Str("path", cfg.Storage.SQLitePath).Msg("using sqlite store")
		return storage{store: s, loader: s}, nil

	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return storage{}, err
		}
		db := postgres.OpenDB(cfg.Postgres.URL)
		c.closers = append(c.closers, func() { _ = db.Close() })
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return storage{}, fmt.Errorf("connect postgres: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		log.Info().Msg("using postgres store")
		return storage{store: postgres.NewStore(db), loader: postgres.NewRoomLoader(pool)}, nil

	default:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		s := memory.NewStore()
		return storage{store: s, loader: s}, nil
	}
}

func buildComponents(ctx context.Context, cfg config.Config) (*components, error) {
	c := &components{}
	st, err := openStorage(ctx, cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	cacheTTL := config.Duration(cfg.Room.CacheTTL, 10*time.Minute)
	lockout := config.Duration(cfg.Auth.Lockout, 15*time.Minute)

	var (
		cache   app.RoomCache
		limiter app.AttemptLimiter
		feed    app.SlotFeed
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			c.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.closers = append(c.closers, func() { _ = client.Close() })
		cache = redisinfra.NewRoomCache(client, st.loader, config.Duration(cfg.Redis.TTL, cacheTTL))
		limiter = redisinfra.NewAttemptLimiter(client, cfg.Auth.MaxLoginAttempts, lockout)
		feed = redisinfra.NewSlotFeed(client)
	} else {
		cache = memory.NewRoomCache(st.loader, cacheTTL)
		limiter = memory.NewAttemptLimiter(cfg.Auth.MaxLoginAttempts, lockout, nil)
		feed = memory.NewSlotFeed()
	}

	c.admission = app.NewAdmissionService(st.store, cache, st.store, feed, nil)
	c.registry = app.NewRegistryService(st.store, st.store, cache, nil, nil)
	c.auth = app.NewAuthService(st.store, limiter, app.AuthConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  config.Duration(cfg.Auth.TokenTTL, 24*time.Hour),
		SecretKey: cfg.Auth.SecretKey,
	}, nil)
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("jwt secret not configured; admin login and bearer tokens are disabled")
	}
	return c, nil
}
