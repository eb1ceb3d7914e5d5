// cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"novel-translate-service/internal/config"
	"novel-translate-service/internal/logging"
	"novel-translate-service/internal/repository/redisstore"
	"novel-translate-service/internal/service"
	"novel-translate-service/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.Init(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TriggerMode != config.TriggerQueue {
		log.Warn("trigger mode is not queue, no runs will arrive", "trigger_mode", cfg.TriggerMode)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	// DI
	keys := service.DefaultDispatchKeys()
	queue := service.NewRedisDispatchQueue(rdb, keys, cfg.JobTTL())
	jobs := redisstore.NewJobStore(rdb, redisstore.Options{TTL: cfg.JobTTL()})
	deliverer := worker.NewDeliverer(queue, jobs, worker.DelivererConfig{
		CallbackURL:    cfg.CallbackURL,
		CallbackSecret: cfg.CallbackSecret,
		Attempts:       cfg.TriggerRetries,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
	}, log)
	pool := worker.NewPool(queue, deliverer, cfg.Workers, log)

	log.Info("worker config",
		"workers", cfg.Workers,
		"redis_addr", cfg.RedisAddr,
		"queue_key", keys.QueueKey,
		"processing_key", keys.ProcessingKey,
		"callback_url", cfg.CallbackURL,
	)

	// Ids left in processing belong to a dispatcher that died mid delivery.
	// Only one dispatcher runs per queue, so everything there is stale now.
	n, err := queue.RequeueStale(ctx, 1000)
	if err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	if n > 0 {
		log.Info("requeued runs from processing", "count", n)
	}

	pool.Run(ctx)

	log.Info("worker stopped")
	return nil
}
