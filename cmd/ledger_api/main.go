package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cashflow-consolidation/internal/config"
	"github.com/cashflow-consolidation/internal/data/postgres"
	"github.com/cashflow-consolidation/internal/ledger_api"
	"github.com/cashflow-consolidation/internal/ledger_api/handler"
	"github.com/cashflow-consolidation/internal/ledger_api/outbox_dispatcher"
	"github.com/cashflow-consolidation/internal/ledger_api/service"
	"github.com/cashflow-consolidation/internal/logger"
	"github.com/cashflow-consolidation/internal/platform/httpserver"
	"github.com/cashflow-consolidation/internal/platform/messaging/producers"
	"github.com/cashflow-consolidation/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.EventTopic)
	if err != nil {
		log.Error("Failed to initialize event producer", "error", err)
		postgresDB.Close()
		os.Exit(1)
	}

	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)

	dispatcher := outbox_dispatcher.NewDispatcher(&cfg.Outbox, postgresDB, outboxRepo, eventProducer, log)
	transactionService := service.NewTransactionService(log, postgresDB, transactionRepo, outboxRepo, dispatcher)
	transactionHandler := handler.NewTransactionHandler(log, transactionService)

	router := ledger_api.NewRouter(log, cfg.Application.Env, transactionHandler)
	server := httpserver.NewServer(log, &cfg.Server, router)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Start(appCtx)
	}()

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
	}

	log.Info("Starting graceful shutdown...")

	// stop accepting requests before the dispatcher goes away
	if err := server.Stop(context.Background()); err != nil {
		log.Error("Error stopping HTTP server", "error", err)
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Outbox dispatcher stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err := eventProducer.Close(); err != nil {
		log.Error("Error closing event producer", "error", err)
	}

	postgresDB.Close()

	if serviceErr != nil {
		log.Error("Ledger API shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Ledger API shutdown completed successfully")
}
