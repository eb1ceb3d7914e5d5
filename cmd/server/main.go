// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "novel-translate-service/docs"
	"novel-translate-service/internal/config"
	"novel-translate-service/internal/logging"
	"novel-translate-service/internal/novel"
	"novel-translate-service/internal/repository/postgresql"
	"novel-translate-service/internal/repository/redisstore"
	"novel-translate-service/internal/service"
	httptransport "novel-translate-service/internal/transport/http"
	"novel-translate-service/internal/workflow"
)

// @title Novel Translate Service
// @version 1.0
// @description Novel address decomposition and translation job lifecycle.
// @BasePath /
func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.Init(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres
	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("pg: %w", err)
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	trigger, err := newTrigger(cfg, rdb)
	if err != nil {
		return err
	}

	// DI
	store := redisstore.NewJobStore(rdb, redisstore.Options{TTL: cfg.JobTTL()})
	creds := postgresql.NewCredentialRepository(pool, cfg.CredentialProvider)
	decomposer := novel.NewDecomposer(novel.NewFetcher(&http.Client{Timeout: cfg.FetchTimeout()}), log)
	jobSvc := service.NewJobService(store, trigger, creds, decomposer, service.Options{
		HistoryLimit: cfg.HistoryLimit,
		Logger:       log,
	})

	router := httptransport.Routes(httptransport.NewHandler(jobSvc, log), httptransport.RouteOptions{
		Logger:         log,
		CallbackSecret: cfg.CallbackSecret,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("server config",
		"addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"postgres_dsn", logging.RedactDSN(cfg.PostgresDSN),
		"trigger_mode", cfg.TriggerMode,
		"qstash_token", logging.Redact(cfg.QStashToken),
		"callback_secret", logging.Redact(cfg.CallbackSecret),
		"history_limit", cfg.HistoryLimit,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server started", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func newTrigger(cfg config.Config, rdb *redis.Client) (service.Trigger, error) {
	if cfg.TriggerMode == config.TriggerQueue {
		return service.NewRedisDispatchQueue(rdb, service.DefaultDispatchKeys(), cfg.JobTTL()), nil
	}
	c, err := workflow.NewClient(workflow.Config{
		BaseURL:     cfg.QStashURL,
		Token:       cfg.QStashToken,
		CallbackURL: cfg.CallbackURL,
		Attempts:    cfg.TriggerRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}
	return c, nil
}
