package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"Fanvault/internal/api/middleware"
	"Fanvault/internal/api/routes"
	"Fanvault/internal/auth"
	"Fanvault/internal/config"
	"Fanvault/internal/core/likes"
	"Fanvault/internal/core/posts"
	"Fanvault/internal/core/readcache"
	postgresRepo "Fanvault/internal/db/postgres"
	"Fanvault/internal/messaging"
)

func main() {
	configPath := flag.String("config", os.Getenv("FANVAULT_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("appview stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Info("connected to AppView database")

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, cfg.Database.MigrationsDir); err != nil {
		return err
	}
	logger.Info("migrations completed successfully")

	// Read-through cache for post listings; redis when configured so every
	// appview instance shares invalidations
	var backend readcache.Backend = readcache.NewMemoryBackend()
	if cfg.Caching.RedisURL != "" {
		redisBackend, err := readcache.NewRedisBackendFromURL(ctx, cfg.Caching.RedisURL, "fanvault:")
		if err != nil {
			return err
		}
		defer redisBackend.Close()
		backend = redisBackend
		logger.Info("read cache using redis")
	}
	cache := readcache.New(backend, readcache.WithLogger(logger))
	cache.StartSweeper(ctx, cfg.Caching.SweepInterval)

	var notifier likes.Notifier = likes.LogNotifier{Logger: logger}
	if cfg.Messaging.NATSURL != "" {
		conn, err := messaging.ConnectWithRetry(cfg.Messaging.NATSURL, 15*time.Second)
		if err != nil {
			return err
		}
		defer messaging.Close(conn)
		notifier = messaging.NewNATSNotifier(conn)
		logger.Info("owner notifications via NATS", "url", cfg.Messaging.NATSURL)
	}

	verifier, err := auth.NewVerifier(ctx, auth.Config{
		HMACSecret: []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.Issuer,
		JWKSURL:    cfg.Auth.JWKSURL,
	})
	if err != nil {
		return err
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier, logger)

	postRepo := postgresRepo.NewPostRepository(db)
	likeRepo := postgresRepo.NewLikeRepository(db)
	postService := posts.NewPostService(postRepo, cache, cfg.Caching.ListTTL, logger)
	likeService := likes.NewLikeService(likeRepo, postRepo, notifier, postService, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	rateLimiter.StartCleanup(ctx.Done())

	r := chi.NewRouter()
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	routes.RegisterLikeRoutes(r, likeService, authMiddleware, rateLimiter.Middleware)
	routes.RegisterPostRoutes(r, postService, authMiddleware, rateLimiter.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Fanvault AppView starting", "port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
