package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/mergington/internal/api"
	"example.com/mergington/internal/auth"
	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/logging"
	"example.com/mergington/internal/middleware"
	"example.com/mergington/internal/observability"
	"example.com/mergington/internal/outbox"
	"example.com/mergington/internal/store/memory"
	mongostore "example.com/mergington/internal/store/mongo"
	pgstore "example.com/mergington/internal/store/postgres"
	redisstore "example.com/mergington/internal/store/redis"
	httptransport "example.com/mergington/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, pool, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	if cfg.SeedOnStart {
		seeded, err := domain.Bootstrap(ctx, store, domain.SeedCatalog())
		if err != nil {
			logger.Fatal("failed to seed activities", zap.Error(err))
		}
		if seeded {
			observability.RecordSeeded(len(domain.SeedCatalog()))
		}
		logger.Info("bootstrap complete", zap.Bool("seeded", seeded))
	}

	var dispatcher *outbox.Dispatcher
	if cfg.OutboxEnabled() {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, logger)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka producer close failed", zap.Error(err))
			}
		}()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
		logger.Info("outbox dispatcher started", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	service := domain.NewService(store)
	handler := api.NewHandler(service, logger)

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.Use(middleware.Logging(logger), middleware.Metrics(), middleware.NewCORS(cfg.CORSAllowedOrigins).Handler)
	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
		limiter.StartCleanup(time.Minute, ctx.Done())
		router.Use(limiter.Handler)
	}

	authCfg := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	if !authCfg.Enabled() {
		logger.Warn("JWT_SECRET not set, roster changes are unauthenticated")
	}
	handler.RegisterRoutes(router, api.Routes{
		StaticDir:   cfg.StaticDir,
		GuardWrites: auth.NewMiddleware(authCfg, auth.ScopeActivitiesWrite).Wrap,
	})

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress, cfg.ShutdownTimeout), router, logger)
	logger.Info("activity directory starting",
		zap.String("address", cfg.HTTPAddress),
		zap.String("store", cfg.StoreBackend),
	)
	if err := server.Run(ctx); err != nil {
		logger.Error("http server stopped", zap.Error(err))
	}
	stop()

	if dispatcher != nil {
		dispatcher.Wait()
	}
	logger.Info("activity directory stopped")
}

// openStore connects the configured backend. pool is non-nil only for postgres.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.Store, *pgxpool.Pool, func()) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURL)
		if err != nil {
			logger.Fatal("failed to connect to mongodb", zap.Error(err))
		}
		collection := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		return mongostore.NewStore(collection), nil, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn("mongodb disconnect failed", zap.Error(err))
			}
		}

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		store := pgstore.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to apply postgres schema", zap.Error(err))
		}
		return store, pool, pool.Close

	case config.BackendRedis:
		client, err := redisstore.NewClient(ctx, redisstore.Options{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		return redisstore.NewStore(client, cfg.RedisKeyPrefix), nil, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close failed", zap.Error(err))
			}
		}

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), nil, func() {}
	}
}
