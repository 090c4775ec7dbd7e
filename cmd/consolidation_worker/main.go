package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cashflow-consolidation/internal/config"
	"github.com/cashflow-consolidation/internal/consolidation"
	"github.com/cashflow-consolidation/internal/consolidation/consumer"
	"github.com/cashflow-consolidation/internal/consolidation/handler"
	"github.com/cashflow-consolidation/internal/consolidation/service"
	"github.com/cashflow-consolidation/internal/data/mongo"
	"github.com/cashflow-consolidation/internal/data/postgres"
	"github.com/cashflow-consolidation/internal/data/redis"
	"github.com/cashflow-consolidation/internal/logger"
	"github.com/cashflow-consolidation/internal/platform/httpserver"
	"github.com/cashflow-consolidation/internal/platform/messaging/consumers"
	"github.com/cashflow-consolidation/internal/platform/messaging/producers"
	"github.com/cashflow-consolidation/internal/platform/persistence"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("consolidation_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Consolidation Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	var seenCache service.SeenCache = redis.NoopSeenCache{}
	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = persistence.NewRedisClient(appCtx, log, &cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize Redis", "error", err)
			os.Exit(1)
		}
		seenCache = redis.NewSeenCache(log, redisClient, cfg.Redis.SeenTTL)
	} else {
		log.Info("REDIS_ADDR not set, seen-event cache disabled")
	}

	summaryRepo := postgres.NewSummaryRepository(log, postgresDB)
	deadLetterRepo := mongo.NewDeadLetterRepository(log, mongoDB.Database())

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// requeued deliveries go back to the event topic
	requeueProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.EventTopic)
	if err != nil {
		log.Error("Failed to initialize requeue Kafka producer", "error", err)
		os.Exit(1)
	}

	consolidationService := service.NewConsolidationService(log, postgresDB, summaryRepo, seenCache)
	deadLetterService := service.NewDeadLetterService(log, dlqProducer, deadLetterRepo)

	// an unreachable broker at start-up is fatal
	kafkaConsumer, err := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, &cfg.Consumer, requeueProducer, deadLetterService)
	if err != nil {
		log.Error("Failed to initialize Kafka consumer", "error", err)
		os.Exit(1)
	}

	eventHandler := consumer.NewTransactionEventHandler(log, consolidationService)
	if err := kafkaConsumer.Subscribe(appCtx, eventHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe to event topic", "error", err)
		os.Exit(1)
	}
	log.Info("Consuming events",
		"topic", cfg.Kafka.EventTopic,
		"group", cfg.Kafka.ConsumerGroup,
		"max_in_flight", cfg.Consumer.MaxInFlight,
	)

	router := consolidation.NewRouter(log, cfg.Application.Env,
		handler.NewSummaryHandler(log, consolidationService),
		handler.NewDeadLetterHandler(log, deadLetterService),
	)
	server := httpserver.NewServer(log, &cfg.Server, router)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	case <-kafkaConsumer.Done():
		serviceErr = kafkaConsumer.Err()
		if serviceErr == nil {
			serviceErr = errors.New("event consumer stopped unexpectedly")
		}
		log.Error("Event consumer stopped", "error", serviceErr)
	}

	log.Info("Starting graceful shutdown...")

	// stop fetching; in-flight deliveries keep their own processing deadline
	cancelAppCtx()

	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if err := server.Stop(context.Background()); err != nil {
		log.Error("Error stopping HTTP server", "error", err)
	}

	if err := requeueProducer.Close(); err != nil {
		log.Error("Error closing requeue Kafka producer", "error", err)
	}
	if err := dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", "error", err)
		}
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Consolidation Worker shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Consolidation Worker shutdown completed successfully")
}
