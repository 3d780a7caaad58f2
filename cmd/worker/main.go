package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"crew-import/internal/config"
	"crew-import/internal/database"
	"crew-import/internal/repository"
	"crew-import/internal/service"
	"crew-import/internal/utils"
	"crew-import/internal/worker"

	"github.com/hibiken/asynq"
)

func main() {
	log := utils.GetLogger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Redis
	redisClient, err := database.NewRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	var history service.HistoryStore
	if cfg.HasDatabase() {
		db, err := database.NewMySQL(cfg)
		if err != nil {
			log.Warnf("Failed to connect to database, import history disabled: %v", err)
		} else {
			defer db.Close()
			history = repository.NewImportRepository(db)
		}
	}

	summarizer := service.NewSummarizer(nil)
	registry := service.NewRegistry(service.DefaultsFromConfig(cfg), summarizer)
	state := repository.NewStateRepository(redisClient, cfg.ResultTTL)
	importService := service.NewImportService(cfg, registry, summarizer, history, state)

	// Create Asynq server
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.AsynqRedisAddr,
			Password: cfg.AsynqRedisPassword,
			DB:       cfg.AsynqRedisDB,
		},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Logger:      log,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithError(err).WithField("task", task.Type()).Error("Task failed")
			}),
		},
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, importService)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("Gracefully shutting down worker...")
		srv.Shutdown()
	}()

	// Start worker
	log.Infof("Worker starting with concurrency: %d", cfg.WorkerConcurrency)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Info("Worker exited")
}
