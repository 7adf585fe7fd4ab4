package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"communityos/api"
	docs "communityos/api/docs"
	"communityos/internal/config"
	"communityos/internal/infra"
	"communityos/internal/infra/queue"
	"communityos/internal/logger"
	"communityos/internal/metrics"
	"communityos/internal/seed"
	"communityos/internal/tenantdb"
	"communityos/internal/worker"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// @title CommunityOS API
// @version 1.0
// @description Multi-tenant community platform. Every row belongs to exactly one tenant.
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	cfg, err := config.Load(env, os.Getenv("APP_CONFIG_FILE"))
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()
	log.Info("starting CommunityOS", zap.String("env", env), zap.String("mode", cfg.Server.Mode))

	plugin := tenantdb.New(
		tenantdb.WithLogger(log.Named("tenantdb")),
		tenantdb.WithObserver(metrics.TenantGuardObserver{}),
	)
	db, err := infra.InitDatabase(&cfg.Database, plugin)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}

	opts := seed.Options{
		Migrate:    cfg.Database.AutoMigrate,
		Seed:       cfg.Database.Seed,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     log.Named("seed"),
	}
	if path := cfg.Tenancy.SeedFile; path != "" {
		if opts.Fixtures, err = seed.LoadFile(path); err != nil {
			logger.Fatal("load seed file", zap.String("path", path), zap.Error(err))
		}
	}
	if err := seed.MigrateAndSeed(context.Background(), db, plugin, opts); err != nil {
		logger.Fatal("migrate and seed", zap.Error(err))
	}

	var (
		redisClient  redis.UniversalClient
		queueClient  *queue.Client
		workerServer *worker.Server
	)
	if cfg.Redis.Enabled {
		if redisClient, err = infra.InitRedis(&cfg.Redis); err != nil {
			logger.Fatal("init redis", zap.Error(err))
		}
		if queueClient, err = queue.NewClient(cfg.Redis); err != nil {
			logger.Fatal("init task queue", zap.Error(err))
		}
	}

	container := api.InitContainer(db, cfg, api.Deps{Redis: redisClient, Queue: queueClient, Logger: log})
	defer container.Close()

	if cfg.Worker.Enabled && cfg.Redis.Enabled {
		workerServer, err = worker.NewServer(cfg.Redis, cfg.Worker, container.Mentions, log.Named("worker"))
		if err != nil {
			logger.Fatal("init worker", zap.Error(err))
		}
		if err := workerServer.Start(); err != nil {
			logger.Fatal("start worker", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sqlDB, err := db.DB(); err == nil {
		go metrics.NewSystemCollector(sqlDB, 15*time.Second).Run(ctx)
	}
	go container.RunMaintenance(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.SetupRouter(container),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	gracefulShutdown(server, workerServer, queueClient)
}

func gracefulShutdown(server *http.Server, workerServer *worker.Server, queueClient *queue.Client) {
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}
	if workerServer != nil {
		workerServer.Shutdown()
	}
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			logger.Error("task queue close", zap.Error(err))
		}
	}
	if err := infra.CloseRedis(); err != nil {
		logger.Error("redis close", zap.Error(err))
	}
	if err := infra.CloseDatabase(); err != nil {
		logger.Error("database close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// loadEnvFile loads the nearest .env walking up from the working directory.
func loadEnvFile() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				fmt.Printf("load %s: %v\n", path, err)
			}
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
