package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/issue-runner/internal/api/router"
	"github.com/cuongbtq/issue-runner/internal/archive"
	"github.com/cuongbtq/issue-runner/internal/config"
	"github.com/cuongbtq/issue-runner/internal/domain"
	"github.com/cuongbtq/issue-runner/internal/ingest"
	"github.com/cuongbtq/issue-runner/internal/janitor"
	"github.com/cuongbtq/issue-runner/internal/queue"
	"github.com/cuongbtq/issue-runner/internal/queue/redisstore"
	"github.com/cuongbtq/issue-runner/internal/tasks"
	"github.com/cuongbtq/issue-runner/internal/worker"
	"github.com/cuongbtq/issue-runner/shared/logger"
	"github.com/cuongbtq/issue-runner/shared/postgresql"
	"github.com/cuongbtq/issue-runner/shared/rabbitmq"
	"github.com/cuongbtq/issue-runner/shared/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := initRedis(&cfg.Redis, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	jobQueue := initQueue(cfg, redisClient, appLogger.Logger)

	var jobArchive janitor.Archiver
	if cfg.Database.Enabled {
		dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer dbClient.Close()

		storage := archive.NewStorage(dbClient.GetDB(), jobQueue.Name(), appLogger.Component("archive"))
		if err := storage.Migrate(ctx); err != nil {
			return err
		}
		jobArchive = storage
	}

	pool := worker.NewPool(&worker.Config{
		Queue:            jobQueue,
		Logger:           appLogger.Component("worker"),
		PoolSize:         cfg.Worker.Concurrency,
		MaxJobsPerWorker: cfg.Worker.MaxJobsPerWorker,
		PollInterval:     cfg.Worker.PollInterval,
		ErrorBackoff:     cfg.Worker.ErrorBackoff,
		StopGrace:        cfg.Worker.ShutdownTimeout,
	})

	runner := &tasks.DryRunner{Logger: appLogger.Component("runner"), Delay: cfg.Worker.DryRunDelay}
	if err := tasks.Register(pool, runner); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}

	consumer := ingest.NewConsumer(&ingest.Config{
		Source:       rabbitClient,
		Queue:        jobQueue,
		Logger:       appLogger.Component("ingest"),
		RequeueDelay: cfg.RabbitMQ.Consumer.RequeueDelay,
		Defaults: domain.EnqueueOptions{
			MaxAttempts:    cfg.Queue.MaxAttempts,
			RetryBaseDelay: cfg.Queue.RetryBaseDelay,
			Timeout:        cfg.Queue.JobTimeout,
		},
	})

	sweeper, err := janitor.New(janitor.Config{
		Queue:              jobQueue,
		Archive:            jobArchive,
		Logger:             appLogger.Logger,
		Interval:           cfg.Janitor.Interval,
		CompletedRetention: cfg.Janitor.CompletedRetention,
		FailedRetention:    cfg.Janitor.FailedRetention,
	})
	if err != nil {
		return err
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	statusSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.StatusPort),
		Handler:           router.SetupStatusRouter(pool, appLogger.Component("status")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// The pool outlives the signal context so in-flight jobs can finish
	poolCtx, cancelPool := context.WithCancel(context.Background())
	defer cancelPool()

	if err := pool.Start(poolCtx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		appLogger.Info("Status server listening", slog.String("address", statusSrv.Addr))
		if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return statusSrv.Shutdown(shutdownCtx)
	})

	appLogger.Info("Worker service started successfully",
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.Bool("archive", jobArchive != nil),
	)

	runErr := g.Wait()
	if runErr != nil {
		appLogger.Error("Worker service component failed", slog.Any("error", runErr))
	} else {
		appLogger.Info("Received signal, shutting down gracefully")
	}

	// Give in-flight jobs up to the shutdown timeout to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout+5*time.Second)
	defer cancel()

	if err := pool.Stop(shutdownCtx); err != nil {
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	} else {
		appLogger.Info("Worker pool stopped gracefully", slog.Any("stats", pool.GetStats()))
	}

	appLogger.Info("Worker service shutdown complete")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initRedis connects to the job store
func initRedis(cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	return redis.NewClient(&redis.Config{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)
}

// initQueue builds the job queue on the Redis store
func initQueue(cfg *config.Config, client *redis.Client, logger *slog.Logger) *queue.Queue {
	store := redisstore.New(client.GetClient(), redisstore.WithLogger(logger))
	return queue.New(store, &queue.Config{
		Name:           cfg.Queue.Name,
		Prefix:         cfg.Redis.KeyPrefix,
		MaxJobs:        cfg.Queue.MaxJobs,
		MaxAttempts:    cfg.Queue.MaxAttempts,
		RetryBaseDelay: cfg.Queue.RetryBaseDelay,
		MaxRetryDelay:  cfg.Queue.MaxRetryDelay,
		JobTimeout:     cfg.Queue.JobTimeout,
		LeaseGrace:     cfg.Queue.LeaseGrace,
		Logger:         logger,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
	}, logger)
}
