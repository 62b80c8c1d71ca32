package main

import (
	"context"
	"errors"
	log "log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"discord-chat/internal/config"
	"discord-chat/internal/db"
	grpcserver "discord-chat/internal/grpc"
	"discord-chat/internal/handlers"
	"discord-chat/internal/logger"
	"discord-chat/internal/middleware"
	"discord-chat/internal/models"
	"discord-chat/internal/observability"
	"discord-chat/internal/rabbitmq"
	"discord-chat/internal/repositories"
	"discord-chat/internal/storage"
	"discord-chat/internal/telemetry"
	"discord-chat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger.Init(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("chat service stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Server.Name, cfg.Tracing.OTLPEndpoint, cfg.Tracing.SampleRatio)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	database, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	log.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	auditor := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.Server.Name, cfg.Server.Environment)

	tokens := middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	chatRepo := repositories.NewChatRepo(database)
	hub := ws.NewHub()

	g, ctx := errgroup.WithContext(ctx)

	var broadcaster handlers.Broadcaster = hub
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		rdb.AddHook(logger.NewRedisHook())
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		broker := ws.NewRedisBroker(rdb, hub, cfg.Redis.Prefix)
		broadcaster = broker
		g.Go(func() error { return broker.Run(ctx) })
	} else {
		log.Info("redis disabled, live events stay on this instance")
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		otelgin.Middleware(cfg.Server.Name),
		observability.HTTPMetricsMiddleware(),
	)
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/chats/:kind/:id", ws.NewChatWebSocketHandler(hub, chatRepo, tokens).Handle)
	handlers.RegisterDebugRoutes(router, auditor, tokens, cfg.Server.DebugRoutes)

	api := router.Group("/api", middleware.AuthMiddleware(tokens))
	handlers.NewMessageHandler(models.ChatKindChannel, chatRepo, repositories.NewChannelMessageRepo(database), broadcaster, auditor, cfg.Messages.PageSize).Register(api)
	handlers.NewMessageHandler(models.ChatKindConversation, chatRepo, repositories.NewDirectMessageRepo(database), broadcaster, auditor, cfg.Messages.PageSize).Register(api)
	handlers.NewServerHandler(chatRepo, auditor).Register(api)
	if cfg.MinIO.Endpoint != "" {
		attachments, err := storage.NewAttachments(ctx, cfg.MinIO)
		if err != nil {
			return err
		}
		handlers.NewUploadHandler(attachments).Register(api)
	} else {
		log.Info("minio disabled, uploads unavailable")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	grpcSrv, health := grpcserver.NewServer()
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
		if err != nil {
			return err
		}
		log.Info("grpc server listening", "addr", lis.Addr().String())
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		grpcserver.WatchHealth(ctx, health, 10*time.Second, database)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
