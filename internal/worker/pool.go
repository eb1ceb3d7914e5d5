package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type Pool struct {
	queue      Queue
	deliverer  *Deliverer
	workers    int
	claimDelay time.Duration
	log        *slog.Logger
}

func NewPool(queue Queue, deliverer *Deliverer, workers int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		queue:      queue,
		deliverer:  deliverer,
		workers:    workers,
		claimDelay: 5 * time.Second,
		log:        log,
	}
}

// Run claims run ids and fans them out to the workers until ctx ends.
// It returns once every in-flight delivery has finished.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("dispatcher pool started", "workers", p.workers)

	runCh := make(chan string)
	done := make(chan struct{}, p.workers)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for runID := range runCh {
				err := p.deliverer.Deliver(ctx, runID)
				if err != nil && ctx.Err() != nil {
					// Left in processing; the startup requeue hands it out again.
					p.log.Warn("delivery interrupted by shutdown", "worker", n, "run_id", runID, "error", err)
					continue
				}
				if err != nil {
					p.log.Error("deliver run", "worker", n, "run_id", runID, "error", err)
				}

				// Ack either way: the job record already carries the outcome.
				if ackErr := p.queue.Ack(context.WithoutCancel(ctx), runID); ackErr != nil {
					p.log.Error("ack run", "worker", n, "run_id", runID, "error", ackErr)
				}
			}
		}(i + 1)
	}

	defer func() {
		close(runCh)
		for i := 0; i < p.workers; i++ {
			<-done
		}
		p.log.Info("dispatcher pool stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		runID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			// timeout/redis.Nil/ctx cancel are not fatal
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.log.Warn("claim run", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}
		select {
		case runCh <- runID:
		case <-ctx.Done():
			return
		}
	}
}
