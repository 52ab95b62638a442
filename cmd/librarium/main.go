package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/librarium/librarium/internal/app"
	"github.com/librarium/librarium/internal/auth"
	"github.com/librarium/librarium/internal/books"
	"github.com/librarium/librarium/internal/observability"
	"github.com/librarium/librarium/internal/platform/cache"
	"github.com/librarium/librarium/internal/platform/db"
	"github.com/librarium/librarium/internal/rbac"
	"github.com/librarium/librarium/internal/respcache"
	"github.com/librarium/librarium/internal/shared"
)

const redisNamespace = "librarium:respcache:"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("librarium exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		applied, err := db.Migrate(ctx, dbpool)
		if err != nil {
			return err
		}
		for _, version := range applied {
			logger.Info("applied migration", slog.String("version", version))
		}
	}

	metrics := observability.NewMetrics()

	store, closeStore, err := newCacheStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	responses := respcache.New(store, logger, metrics)

	codec, err := auth.NewTokenCodec(cfg.JWTSecret, cfg.TokenTTL, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	rbacStore := rbac.NewPGStore(dbpool)
	resolver := rbac.NewResolver(rbacStore, rbacStore)
	guard := rbac.Middleware{
		Tokens:     codec,
		Authorizer: rbac.NewAuthorizer(resolver, rbacStore, logger, metrics),
		Logger:     logger,
	}
	rbacService := rbac.NewService(rbacStore, shared.NewAuditLogger(dbpool), logger)
	if cfg.BootstrapAdminRole {
		role, err := rbacService.BootstrapDefaultRoles(ctx, 0)
		if err != nil {
			return fmt.Errorf("bootstrap roles: %w", err)
		}
		responses.Purge(ctx, "/roles")
		logger.Info("default role ready", slog.String("role", role.Name), slog.Int("permissions", len(role.Permissions)))
	}

	authHandler := auth.NewHandler(logger, auth.NewService(auth.NewRepository(dbpool), codec), guard.RequireSession(), resolver)
	rbacHandler := rbac.NewHandler(logger, rbacService, guard, responses, cfg.CacheTTL)
	booksHandler := books.NewHandler(logger, books.NewService(books.NewRepository(dbpool)), guard, responses, cfg.CacheTTL)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Metrics:      metrics,
		AuthHandler:  authHandler,
		RBACHandler:  rbacHandler,
		BooksHandler: booksHandler,
		Ready:        readiness(dbpool),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newCacheStore(ctx context.Context, cfg *app.Config, logger *slog.Logger) (respcache.Store, func(), error) {
	if cfg.CacheBackend == app.CacheBackendRedis {
		client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
		return respcache.NewRedisStore(client, redisNamespace), closeFn, nil
	}
	store, err := respcache.NewMemoryStore(cfg.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func readiness(pool *pgxpool.Pool) func(*http.Request) error {
	return func(r *http.Request) error {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
}
