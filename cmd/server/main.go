package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/chempion-hawk/messenger/internal/broadcast"
	"github.com/chempion-hawk/messenger/internal/config"
	"github.com/chempion-hawk/messenger/internal/domain"
	"github.com/chempion-hawk/messenger/internal/handler"
	"github.com/chempion-hawk/messenger/internal/presence"
	"github.com/chempion-hawk/messenger/internal/registry"
	"github.com/chempion-hawk/messenger/internal/repository"
	"github.com/chempion-hawk/messenger/internal/service"
	"github.com/chempion-hawk/messenger/internal/session"
	"github.com/chempion-hawk/messenger/pkg/database"
	"github.com/chempion-hawk/messenger/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := log.L()
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting messenger")

	// Storage
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db,
		&domain.UserModel{},
		&domain.ConversationModel{},
		&domain.ParticipantModel{},
		&domain.MessageModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	store := repository.NewGormStore(db)

	// Session token store
	sessions, err := newSessionStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize session store")
	}
	defer sessions.Close()

	// Core: presence worker feeds off registry transitions; broadcaster fans
	// events out over the registry's live connections.
	tracker := presence.NewTracker(store)
	reg := registry.New(tracker.Track)
	broadcaster := broadcast.New(store, reg)
	chatSvc := service.NewChatService(store, sessions, reg, broadcaster)

	// HTTP + WebSocket
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger))
	router.Use(handler.CORSMiddleware())

	handler.NewHTTPHandler(chatSvc).RegisterRoutes(router)
	handler.NewWSHandler(chatSvc, cfg.WebSocket).RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tracker.Run(gctx)
	})

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("messenger stopped")
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "redis":
		return session.NewRedisStore(session.RedisOptions{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Session.KeyPrefix,
			TTL:       cfg.Session.TTL,
		})
	case "memory", "":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Session.Backend)
	}
}
