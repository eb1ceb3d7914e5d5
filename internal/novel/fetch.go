package novel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"novel-translate-service/internal/entity"
)

const (
	DefaultFetchTimeout = 30 * time.Second

	// pixiv's ajax endpoints reject non-browser clients
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:146.0) Gecko/20100101 Firefox/146.0"

	// 4 MiB is far above any listing or sidebar page
	maxBodyBytes = 4 << 20
)

// Fetcher issues the GET requests the site strategies need.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &Fetcher{client: client}
}

func (f *Fetcher) get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &entity.FetchError{URL: rawURL, Message: "build request", Cause: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &entity.FetchError{URL: rawURL, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &entity.FetchError{URL: rawURL, Message: "read body", Cause: err}
	}
	if len(body) > maxBodyBytes {
		return nil, &entity.FetchError{URL: rawURL, Message: fmt.Sprintf("body exceeds %d bytes", maxBodyBytes)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &entity.FetchError{URL: rawURL, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return body, nil
}

// Document fetches rawURL and parses it as HTML.
func (f *Fetcher) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := f.get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &entity.FetchError{URL: rawURL, Message: "parse HTML", Cause: err}
	}
	return doc, nil
}

// JSON fetches rawURL and decodes the body into v.
func (f *Fetcher) JSON(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	body, err := f.get(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &entity.FetchError{URL: rawURL, Message: "decode JSON", Cause: err}
	}
	return nil
}
