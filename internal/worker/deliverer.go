package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"novel-translate-service/internal/entity"
)

// Queue is the consumer side of service.RedisDispatchQueue.
type Queue interface {
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Load(ctx context.Context, runID string) (*entity.WorkflowPayload, bool, error)
	Ack(ctx context.Context, runID string) error
}

// JobRecorder lets the dispatcher mark runs it could not deliver.
type JobRecorder interface {
	ApplyProgress(ctx context.Context, jobID string, u entity.ProgressUpdate) error
}

type DelivererConfig struct {
	CallbackURL     string
	// CallbackSecret is sent as a bearer token when set.
	CallbackSecret  string
	Attempts        int
	InitialInterval time.Duration
	HTTPClient      *http.Client
}

// Deliverer hands a queued run to the translation worker's callback route.
type Deliverer struct {
	queue Queue
	jobs  JobRecorder
	cfg   DelivererConfig
	http  *http.Client
	log   *slog.Logger
}

func NewDeliverer(queue Queue, jobs JobRecorder, cfg DelivererConfig, log *slog.Logger) *Deliverer {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Deliverer{queue: queue, jobs: jobs, cfg: cfg, http: hc, log: log}
}

func (d *Deliverer) Deliver(ctx context.Context, runID string) error {
	start := time.Now()

	p, canceled, err := d.queue.Load(ctx, runID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			d.log.Warn("run payload expired", "run_id", runID)
			return nil
		}
		return err
	}
	if canceled {
		d.log.Info("run canceled before delivery", "run_id", runID)
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", runID, err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.cfg.InitialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(d.cfg.Attempts-1)), ctx)

	err = backoff.Retry(func() error { return d.post(ctx, runID, body) }, b)
	if err != nil && ctx.Err() != nil {
		// interrupted, not failed: the run stays in processing for the next start
		return fmt.Errorf("deliver run %s: %w", runID, ctx.Err())
	}
	if err != nil {
		failed := entity.StatusFailed
		msg := "dispatch failed: " + err.Error()
		if recErr := d.jobs.ApplyProgress(ctx, runID, entity.ProgressUpdate{Status: &failed, ErrorMessage: &msg}); recErr != nil && !errors.Is(recErr, entity.ErrNotFound) {
			d.log.Error("record dispatch failure", "run_id", runID, "error", recErr)
		}
		d.log.Error("run not delivered", "run_id", runID, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return err
	}

	d.log.Info("run delivered", "run_id", runID, "user_id", p.UserID, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (d *Deliverer) post(ctx context.Context, runID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Workflow-Run-Id", runID)
	if d.cfg.CallbackSecret != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.CallbackSecret)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("callback HTTP %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("callback HTTP %d", resp.StatusCode))
	}
}
