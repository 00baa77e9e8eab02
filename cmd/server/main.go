// @title        SocialLab API
// @version      1.0
// @description  Session, profile and sign-in endpoints of the SocialLab content planner.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	_ "github.com/sociallab/sociallab/docs"
	"github.com/sociallab/sociallab/internal/api"
	"github.com/sociallab/sociallab/internal/core/ports"
	"github.com/sociallab/sociallab/internal/core/service"
	mongodb "github.com/sociallab/sociallab/internal/infrastructure/db/mongo"
	redisdb "github.com/sociallab/sociallab/internal/infrastructure/db/redis"
	"github.com/sociallab/sociallab/internal/infrastructure/http/handlers"
	"github.com/sociallab/sociallab/internal/infrastructure/identity/hosted"
	"github.com/sociallab/sociallab/internal/infrastructure/identity/local"
	"github.com/sociallab/sociallab/internal/infrastructure/kvstore"
	"github.com/sociallab/sociallab/internal/infrastructure/notify"
	"github.com/sociallab/sociallab/internal/infrastructure/queue"
	"github.com/sociallab/sociallab/internal/pkg/config"
	"github.com/sociallab/sociallab/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "sociallab",
	})

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config) error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer func() { _ = mongodb.Disconnect(mongoClient) }()
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	defer rdb.Close()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

	profiles := mongodb.NewProfileRepository(db)
	if err := profiles.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("create profile indexes: %w", err)
	}

	// Two local stores: one survives restarts, one lives for the process only.
	persistent := redisdb.NewKVStore(rdb, cfg.Redis.KeyPrefix)
	session := kvstore.NewMemoryStore("session")

	backend := newIdentityBackend(cfg, persistent, profiles, log)

	dispatcher := queue.NewDispatcher(cfg.Auth.ProfileWorkers, logger.Component("dispatcher"))
	feed := notify.NewFeed(cfg.Auth.NotifyCapacity, logger.Component("notifications"))

	facade := service.NewAuthFacade(
		backend,
		profiles,
		dispatcher,
		[]ports.KeyValueStore{persistent, session},
		feed,
		cfg.SiteURL,
		logger.Component("auth"),
	)

	files := mongodb.NewGridFSStorage(db, cfg.SiteURL)
	profileService := service.NewProfileService(profiles, files, facade, logger.Component("profile_service"))

	e := api.NewRouter(api.Deps{
		Auth:          facade,
		Profiles:      profileService,
		Files:         files,
		Notifications: feed,
		HealthChecks: map[string]handlers.Check{
			"mongodb": handlers.MongoCheck(db),
			"redis":   handlers.RedisCheck(rdb),
		},
		AuthRateLimit:  cfg.Auth.RateLimit,
		MaxAvatarBytes: cfg.Auth.MaxAvatarBytes,
		Log:            logger.Component("http"),
	})

	g, gctx := errgroup.WithContext(ctx)

	dispatcher.Start(gctx)

	// The facade reports loading until the first session recovery resolves;
	// the guard answers 503 in the meantime, so the server need not wait.
	g.Go(func() error {
		facade.Start(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("backend", cfg.Backend.Mode).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		facade.Close()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newIdentityBackend(cfg *config.Config, persistent ports.KeyValueStore, profiles ports.ProfileRepository, log zerolog.Logger) ports.IdentityBackend {
	switch cfg.Backend.Mode {
	case config.BackendLocal:
		log.Warn().Msg("using the in-process identity emulator")
		return local.NewBackend(local.Config{
			JWTSecret:                cfg.JWTSecret,
			SessionTTL:               cfg.Backend.SessionTTL,
			RequireEmailConfirmation: cfg.Backend.RequireEmailConfirmation,
			OAuthProviders:           cfg.Backend.OAuthProviders,
		}, profiles, logger.Component("identity_local"))
	default:
		return hosted.NewClient(hosted.Config{
			URL:       cfg.Backend.URL,
			APIKey:    cfg.Backend.APIKey,
			JWTSecret: cfg.JWTSecret,
			Timeout:   cfg.Backend.Timeout,
		}, persistent, logger.Component("identity_hosted"))
	}
}
