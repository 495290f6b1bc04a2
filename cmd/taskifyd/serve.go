package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"taskify/internal/blob"
	"taskify/internal/cache"
	"taskify/internal/config"
	"taskify/internal/export"
	"taskify/internal/journal"
	"taskify/internal/monitoring"
	"taskify/internal/reconcile"
	"taskify/internal/server"
	"taskify/internal/services"
	"taskify/internal/store"
	"taskify/internal/validation"
	"taskify/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background repair worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close(context.Background())

	jr, err := journal.Open(journal.Options{Driver: cfg.Journal.Driver, DSN: cfg.Journal.DSN})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisClient.Close()

	queue := worker.NewJobQueue(redisClient)
	sink := worker.NewReconcileSink(jr, queue, primaryQueue(cfg))
	applier := reconcile.NewApplier(st, sink)
	v := validation.New(st)

	var users services.UserService = services.NewUserService(st, v, applier)
	var tasks services.TaskService = services.NewTaskService(st, v, applier)
	if cfg.Cache.Enabled {
		guarded := cache.NewGuardedCache(cache.NewRedisCacheWithClient(redisClient), nil)
		users = services.NewCachedUserService(users, guarded)
		tasks = services.NewCachedTaskService(tasks, guarded)
	}

	blobs, err := blob.Open(ctx, blobConfig(cfg))
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	exporter := export.NewExporter(st, blobs)

	w := worker.NewWorker(worker.WorkerConfig{
		RedisClient: redisClient,
		Queues:      cfg.Worker.Queues,
		RetryBase:   cfg.Worker.RetryBase,
		JobTimeout:  cfg.Worker.JobTimeout,
	})
	w.RegisterHandler(worker.JobTypeReconcileRetry, worker.NewReconcileRetryHandler(applier, jr))
	w.RegisterHandler(worker.JobTypeSnapshotExport, func(ctx context.Context, job *worker.Job) error {
		_, err := exporter.Export(ctx)
		return err
	})
	w.Start(cfg.Worker.Concurrency)
	defer w.Stop()

	if n, err := worker.RequeuePending(ctx, jr, queue, primaryQueue(cfg), cfg.Worker.SweepLimit); err != nil {
		log.Printf("[serve] requeue pending repairs: %v", err)
	} else if n > 0 {
		log.Printf("[serve] requeued %d pending repair(s)", n)
	}

	if cfg.Export.Interval > 0 {
		go scheduleExports(ctx, queue, primaryQueue(cfg), cfg.Export.Interval)
	}

	monitoring.RegisterHealthCheck("store", st.Ping)
	monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	monitoring.RegisterHealthCheck("journal", func(ctx context.Context) error {
		_, err := jr.PendingCount(ctx)
		return err
	})

	log.Printf("[serve] storage=%s journal=%s cache=%v export=%s",
		cfg.Storage.Driver, cfg.Journal.Driver, cfg.Cache.Enabled, cfg.Export.Driver)

	router := server.NewRouter(server.Options{Config: cfg, Users: users, Tasks: tasks})
	return server.Run(ctx, cfg, router)
}

// scheduleExports enqueues a snapshot job every interval until ctx ends.
func scheduleExports(ctx context.Context, queue *worker.JobQueue, queueName string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := queue.Enqueue(queueName, worker.JobTypeSnapshotExport, nil); err != nil {
				log.Printf("[serve] enqueue snapshot export: %v", err)
			}
		}
	}
}
