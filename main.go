package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"reelforge/backend/features/asset"
	"reelforge/backend/features/job"
	"reelforge/backend/features/project"
	"reelforge/backend/features/stats"
	"reelforge/backend/internal/adapter/genai"
	"reelforge/backend/internal/config"
	"reelforge/backend/internal/logger"
	"reelforge/backend/internal/middleware"
	"reelforge/backend/internal/observability"
	"reelforge/backend/internal/processor"
	"reelforge/backend/internal/worker"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
)

func main() {
	// Initialize structured logger
	base := slog.NewJSONHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(logger.NewContextHandler(base)))

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Database Connection
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("failed to open db connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Retry connection
	for i := 0; i < 10; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", 10)
		time.Sleep(2 * time.Second)
	}

	if err := db.Ping(); err != nil {
		slog.Error("failed to ping db after retries", "error", err)
		os.Exit(1)
	}

	// 3. Run Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		slog.Error("failed to create migration driver", "error", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		slog.Error("failed to create migration instance", "error", err)
		os.Exit(1)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied successfully")

	// 4. NSQ Producer (job lifecycle events)
	nsqCfg := nsq.NewConfig()
	nsqProducer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
	if err != nil {
		slog.Error("failed to create NSQ producer", "error", err)
		os.Exit(1)
	}
	defer nsqProducer.Stop()

	// 5. Repositories & Services
	jobRepo := job.NewPostgresRepo(db)
	assetRepo := asset.NewPostgresRepo(db)
	projectRepo := project.NewPostgresRepo(db)

	jobService := job.NewService(jobRepo, nsqProducer, cfg.WorkerSecret, cfg.MaxDependencyRetries, slog.Default())
	jobHandler := job.NewHandler(jobService)
	statsHandler := stats.NewHandler(jobRepo)

	observability.StartMetricsServer(cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// 6. Worker Pool & Sweeper
	if cfg.EnableWorker {
		gateway := genai.NewClient(cfg.GenGatewayURL, cfg.GenGatewayAPIKey)
		depChecker := processor.NewDependencyChecker(assetRepo)

		registry := processor.NewRegistry()
		for _, p := range []processor.Processor{
			processor.NewImageGen(gateway, depChecker, assetRepo, projectRepo),
			processor.NewVideoGen(gateway, depChecker, assetRepo, projectRepo),
			processor.NewAudioGen(gateway, assetRepo, projectRepo),
			processor.NewScriptAnalysis(gateway, projectRepo),
		} {
			if err := registry.Register(p); err != nil {
				slog.Error("failed to register processor", "error", err)
				os.Exit(1)
			}
		}

		pool := worker.NewPool(jobService, registry, worker.PoolConfig{
			Credential:      cfg.WorkerSecret,
			MaxConcurrency:  cfg.MaxConcurrency,
			PollInterval:    cfg.PollInterval,
			PollMaxInterval: cfg.PollMaxInterval,
		}, slog.Default())

		sweeper := worker.NewSweeper(jobService, cfg, cfg.WorkerSecret, cfg.SweepInterval, slog.Default())

		wg.Add(2)
		go func() {
			defer wg.Done()
			pool.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	}

	// 7. HTTP API
	var server *http.Server
	if cfg.EnableAPI {
		mux := http.NewServeMux()
		mux.Handle("POST /jobs", middleware.CorrelationID(http.HandlerFunc(jobHandler.Create)))
		mux.Handle("GET /jobs", middleware.CorrelationID(http.HandlerFunc(jobHandler.List)))
		mux.Handle("GET /jobs/{id}", middleware.CorrelationID(http.HandlerFunc(jobHandler.Get)))
		mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(http.HandlerFunc(jobHandler.Retry)))
		mux.Handle("POST /jobs/{id}/cancel", middleware.CorrelationID(http.HandlerFunc(jobHandler.Cancel)))
		mux.Handle("GET /stats", middleware.CorrelationID(http.HandlerFunc(statsHandler.GetStats)))

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintln(w, `{"status":"ok"}`)
		})

		server = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
			Handler: mux,
		}

		go func() {
			slog.Info("server starting", "port", cfg.ServerPort)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("server failed", "error", err)
				os.Exit(1)
			}
		}()
	}

	// 8. Graceful Shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutdown signal received")
	cancel()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}

	// Wait for the pool to drain its in-flight jobs.
	wg.Wait()
	slog.Info("shutdown complete")
}
