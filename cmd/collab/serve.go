package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/weiawesome/wes-io-collab/internal/cache"
	"github.com/weiawesome/wes-io-collab/internal/coordinator"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/handler"
	"github.com/weiawesome/wes-io-collab/internal/hub"
	"github.com/weiawesome/wes-io-collab/internal/registry"
	"github.com/weiawesome/wes-io-collab/internal/repository"
	"github.com/weiawesome/wes-io-collab/internal/service"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
	"github.com/weiawesome/wes-io-collab/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket coordinator and REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	roomRepo := repository.NewGormRoomRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	analyticsRepo := repository.NewGormAnalyticsRepository(db)

	// Redis backs the room cache and the room registry. Both are optional.
	var (
		roomCache cache.RoomCache
		hosts     handler.HostLocator
		directory *registry.RedisRegistry
	)
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("redis unavailable, running without cache and registry")
		} else {
			roomCache = cache.NewRedisRoomCache(rdb, cfg.Redis.CachePrefix)
			directory = registry.NewRedisRegistry(rdb, cfg.Redis)
			hosts = directory
			logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
		}
	}

	// Event bus
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("failed to create pubsub: %w", err)
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("pubsub ready")

	// Canvas storage
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	roomSvc := service.NewRoomService(roomRepo, roomCache, cfg.Redis.CacheTTL)
	messageSvc := service.NewMessageService(messageRepo)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo)
	canvasSvc := service.NewCanvasService(store, cfg.Canvas.KeepVersions)

	persister := service.NewAnalyticsPersister(bus, analyticsRepo)
	go func() {
		if err := persister.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("analytics persister stopped")
		}
	}()

	// The hub reports closed connections to the coordinator, which in turn
	// writes through the hub.
	var coord *coordinator.Coordinator
	wsHub := hub.NewHub(cfg.WebSocket, func(h domain.Handle) {
		coord.Disconnect(h)
	})

	opts := []coordinator.Option{
		coordinator.WithPersistence(service.NewPersistence(roomSvc, messageSvc, canvasSvc)),
		coordinator.WithPublisher(service.NewAnalyticsPublisher(bus)),
	}
	if directory != nil {
		opts = append(opts, coordinator.WithDirectory(directory))
	}
	coord = coordinator.New(coordinator.Config{
		EventLogCap:     cfg.Coordinator.EventLogCap,
		MetricsWindow:   cfg.Coordinator.MetricsWindow,
		MetricsInterval: cfg.Coordinator.MetricsInterval,
		PersistTimeout:  cfg.Coordinator.PersistTimeout,
		QueueSize:       cfg.Coordinator.QueueSize,
	}, wsHub, opts...)

	go coord.Run(ctx)
	go wsHub.Run()

	if directory != nil {
		if err := directory.StartHeartbeat(ctx); err != nil {
			return fmt.Errorf("failed to start registry heartbeat: %w", err)
		}
	}

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewHandler(roomSvc, messageSvc, analyticsSvc, canvasSvc, coord, hosts).RegisterRoutes(r)
	handler.NewWSHandler(wsHub, coord, cfg.WebSocket).RegisterRoutes(r)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("collab listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	wsHub.Stop()
	cancel()
	<-coord.Done()

	if directory != nil {
		if err := directory.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to clear registry entries")
		}
	}

	logger.Info().Msg("collab stopped")
	return nil
}
