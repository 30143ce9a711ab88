package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/gateway"
	"github.com/parley-im/parley/internal/handler"
	"github.com/parley-im/parley/internal/repository"
	"github.com/parley-im/parley/internal/router"
	"github.com/parley-im/parley/internal/service"
	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/idgen"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Server.Mode == "release" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Info().Str("mode", cfg.Server.Mode).Msg("config loaded")

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)

	// Initialize message id generator
	gen, err := idgen.NewSonyflakeGenerator(cfg.Server.MachineId)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize id generator")
	}
	idgen.SetDefaultGenerator(gen)

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize repositories")
	}
	defer repos.Close()

	if err := repos.CheckConnection(ctx); err != nil {
		log.Fatal().Err(err).Msg("database connection check failed")
	}
	if err := repos.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}
	log.Info().Msg("database ready")

	// Initialize services
	msgService := service.NewMessageService(repos)
	convService := service.NewConversationService(repos)
	readService := service.NewReadService(repos)
	syncService := service.NewSyncService(repos)
	profileService := service.NewProfileService(repos)

	// Initialize WebSocket gateway and wire it back as the broadcaster
	wsServer := gateway.NewWsServer(cfg, repos.Redis, msgService, readService, syncService, convService, profileService)
	msgService.SetBroadcaster(wsServer)
	readService.SetBroadcaster(wsServer)

	wsServer.Run(ctx)
	log.Info().Msg("websocket gateway started")

	// Background repair: reseed any seq counter that lags the store
	c := cron.New()
	_, err = c.AddFunc("@every 5m", func() {
		repaired, err := repos.Seq.ReconcileCounters(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("seq counter reconcile failed")
			return
		}
		if repaired > 0 {
			log.Info().Int("repaired", repaired).Msg("seq counters reconciled")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule seq reconcile job")
	}
	c.Start()
	defer c.Stop()

	// Initialize handlers
	handlers := &router.Handlers{
		Conversation: handler.NewConversationHandler(convService, readService),
		Message:      handler.NewMessageHandler(msgService, syncService, readService),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	router.SetupRouter(h, handlers, wsServer)

	log.Info().Int("port", cfg.Server.HTTPPort).Msg("server starting")

	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	cancel()

	if err := h.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
