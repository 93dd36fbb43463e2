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

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/strayhub/chat-core/internal/broker"
	"github.com/strayhub/chat-core/internal/config"
	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/internal/handler"
	"github.com/strayhub/chat-core/internal/hub"
	"github.com/strayhub/chat-core/internal/push"
	"github.com/strayhub/chat-core/internal/repository"
	"github.com/strayhub/chat-core/internal/service"
	"github.com/strayhub/chat-core/pkg/database"
	pkglog "github.com/strayhub/chat-core/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		pkglog.L().Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "chat-core",
	})
	logger := pkglog.L()

	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db,
		&domain.RoomModel{},
		&domain.MembershipModel{},
		&domain.MessageModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	roomRepo := repository.NewGormRoomRepository(db)
	membershipRepo := repository.NewGormMembershipRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)

	amqpBroker, err := broker.DialAMQP(cfg.Broker.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to message broker")
	}
	defer amqpBroker.Close()
	logger.Info().Msg("message broker connected")

	topology := broker.NewTopologyManager(amqpBroker)
	registry := broker.NewRegistry(amqpBroker)
	defer registry.Close()
	router := broker.NewRouter(amqpBroker, messageRepo)

	redisPush, err := push.NewRedisPush(push.RedisConfig{
		Address:      cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisPush.Close()
	logger.Info().Msg("redis push channel connected")

	chatService := service.NewChatService(
		roomRepo, membershipRepo, messageRepo,
		topology, registry, router, redisPush, router,
		cfg.Chat.PageSize,
	)

	// Re-establish listeners for memberships provisioned by a previous
	// process: queues outlive the process, consumers do not.
	if err := resubscribeAll(context.Background(), membershipRepo, topology, registry, router); err != nil {
		logger.Fatal().Err(err).Msg("failed to re-establish listeners")
	}

	clientHub := hub.NewHub()
	bridge := push.NewBridge(redisPush, clientHub)

	identity := handler.NewIdentity(cfg.Auth.Secret)
	httpHandler := handler.NewHandler(chatService, identity)
	wsHandler := handler.NewWSHandler(clientHub, identity, hub.Options{
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		PongWait:       cfg.WebSocket.PongWait,
		PingInterval:   cfg.WebSocket.PingInterval,
		WriteWait:      cfg.WebSocket.WriteWait,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(*logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	httpHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		clientHub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return bridge.Run(ctx)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	g.Go(func() error {
		logger.Info().Str("addr", addr).Str("driver", cfg.Database.Driver).Msg("chat-core starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("chat-core terminated")
	}
	logger.Info().Msg("chat-core stopped")
}

// resubscribeAll ensures topology and an active listener for every
// stored membership.
func resubscribeAll(
	ctx context.Context,
	memberships repository.MembershipRepository,
	topology *broker.TopologyManager,
	registry *broker.Registry,
	handler broker.MessageHandler,
) error {
	members, err := memberships.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, member := range members {
		if err := topology.EnsureUserQueue(ctx, member.UserID, member.RoomID); err != nil {
			return err
		}
		if err := registry.Register(ctx, member.UserID, member.RoomID, handler); err != nil {
			return err
		}
	}

	pkglog.L().Info().Int("listeners", len(members)).Msg("listeners re-established")
	return nil
}
