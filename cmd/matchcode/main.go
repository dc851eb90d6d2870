package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RishiKendai/matchcode/internal/api"
	"github.com/RishiKendai/matchcode/internal/config"
	"github.com/RishiKendai/matchcode/internal/configs/env"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/infra/mongo"
	redisInfra "github.com/RishiKendai/matchcode/internal/infra/redis"
	"github.com/RishiKendai/matchcode/internal/ingest"
	"github.com/RishiKendai/matchcode/internal/logger"
	"github.com/RishiKendai/matchcode/internal/matching"
	"github.com/RishiKendai/matchcode/internal/metrics"
	"github.com/RishiKendai/matchcode/internal/repository"
	"github.com/RishiKendai/matchcode/internal/repository/boltdb"
	"github.com/RishiKendai/matchcode/internal/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := env.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file, continuing with system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("store", cfg.StoreBackend).Msg("Starting matchcode server")

	metrics.InitPrometheus()
	log.Info().Msg("Prometheus metrics initialized")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := api.StartServer("metrics", metricsMux, cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, storeCloser, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open index store")
	}
	defer storeCloser.Close()

	// Connect Redis
	redisClient, err := redisInfra.NewClient(ctx, cfg.RedisHost, cfg.RedisPassword, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis client")
	}
	defer redisClient.Close()

	registry := index.NewRegistry(store, index.WithMaxDistance(cfg.MaxApproximateDistance))
	indexer := index.NewIndexer(registry)
	status := ingest.NewRedisStatus(redisClient)
	ingestSvc := ingest.NewService(ingest.NewScanClient(cfg.ScanFetchTimeout), indexer, status, cfg.IndexTimeout)

	retryHandler := stream.NewRetryHandler(redisClient.Client, cfg.IndexDeadLetterKey)

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	consumerName := fmt.Sprintf("consumer-%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
	consumer := stream.NewConsumer(
		redisClient.Client,
		cfg.IndexStreamKey,
		cfg.IndexConsumerGroup,
		consumerName,
		ingestSvc,
		retryHandler,
		cfg.StreamRetentionDuration,
	)
	log.Info().Str("consumer_name", consumerName).Msg("Redis stream consumer initialized")

	workerPool := matching.NewWorkerPool(ctx, cfg.MatchWorkers)
	defer workerPool.Close()

	producer := stream.NewProducer(redisClient.Client, cfg.IndexStreamKey)
	router := api.SetupRoutes(cfg, registry, workerPool, producer, status)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	go func() {
		if err := consumer.Start(consumerCtx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Redis consumer error")
		}
	}()
	log.Info().Msg("Redis consumer started")

	srv := api.StartServer("api", router, cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	if err := api.ShutdownServer("api", srv, 30*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down Gin server")
	}
	consumerCancel()

	if err := api.ShutdownServer("metrics", metricsServer, 5*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down metrics server")
	}

	log.Info().Msg("Shutdown complete")
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore opens the configured index store and returns it with its closer.
func openStore(ctx context.Context, cfg *config.Config) (index.Store, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendBolt:
		s, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.BoltPath).Msg("Bolt index store opened")
		return s, s, nil
	default:
		mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create MongoDB client: %w", err)
		}
		s := repository.NewStore(repository.NewMongoRepository(mongoClient))
		if err := s.EnsureIndexes(ctx); err != nil {
			mongoClient.Close(ctx)
			return nil, nil, err
		}
		log.Info().Str("database", cfg.MongoDBName).Msg("MongoDB index store opened")
		return s, closerFunc(func() error { return mongoClient.Close(context.Background()) }), nil
	}
}
