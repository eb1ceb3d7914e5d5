// Package workflow dispatches translation runs to a QStash compatible
// workflow runtime.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"novel-translate-service/internal/entity"
)

const (
	DefaultAttempts = 3
	runIDPrefix     = "wfr_"
)

type Config struct {
	BaseURL     string // e.g. https://qstash.upstash.io
	Token       string
	CallbackURL string // worker route that executes the run
	// Attempts bounds local trigger calls and is forwarded as the delivery
	// retry count of the runtime.
	Attempts        int
	InitialInterval time.Duration
	HTTPClient      *http.Client
}

// StatusError is a non-2xx reply from the runtime.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("workflow runtime: HTTP %d: %s", e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("workflow: base url is required")
	}
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil, errors.New("workflow: callback url is required")
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: hc}, nil
}

// Trigger starts a run and returns its id. The id is chosen here so a retried
// trigger call that did reach the runtime keeps the same identity.
func (c *Client) Trigger(ctx context.Context, payload entity.WorkflowPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	runID := runIDPrefix + uuid.NewString()

	endpoint := c.cfg.BaseURL + "/v2/publish/" + c.cfg.CallbackURL
	err = c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Upstash-Forward-Content-Type", "application/json")
		req.Header.Set("Upstash-Retries", strconv.Itoa(c.cfg.Attempts))
		req.Header.Set("Upstash-Workflow-Init", "true")
		req.Header.Set("Upstash-Workflow-RunId", runID)
		req.Header.Set("Upstash-Workflow-Url", c.cfg.CallbackURL)
		return c.do(req)
	})
	if err != nil {
		return "", fmt.Errorf("trigger workflow: %w", err)
	}
	return runID, nil
}

// Cancel asks the runtime to stop a run. Unknown runs count as canceled.
func (c *Client) Cancel(ctx context.Context, runID string) error {
	endpoint := c.cfg.BaseURL + "/v2/workflows/runs/" + url.PathEscape(runID)
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		err = c.do(req)
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("cancel workflow %s: %w", runID, err)
	}
	return nil
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.InitialInterval
	eb.MaxInterval = 5 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.Attempts-1)), ctx)
	return backoff.Retry(op, b)
}

// do classifies failures for retry: transport errors, 429 and 5xx retry,
// everything else is permanent.
func (c *Client) do(req *http.Request) error {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		if se.retryable() {
			return se
		}
		return backoff.Permanent(se)
	}
	return nil
}
