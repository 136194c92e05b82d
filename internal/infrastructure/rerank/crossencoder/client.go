// Package crossencoder scores (query, passage) pairs through a
// text-embeddings-inference style /rerank endpoint.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/resilience"
)

const (
	operationScore = "crossencoder_rerank"
	operationPing  = "crossencoder_health"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("crossencoder %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("crossencoder %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Score returns one relevance score per text, in input order.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	reqBody := map[string]any{
		"query":      query,
		"texts":      texts,
		"truncate":   true,
		"raw_scores": false,
	}
	var ranked []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	err := c.execute(ctx, operationScore, func(ctx context.Context) error {
		return c.postJSON(ctx, "/rerank", reqBody, &ranked)
	})
	if err != nil {
		return nil, resilience.MarkTemporary(operationScore, err, resilience.ClassifyHTTP)
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("crossencoder returned index %d for %d texts", r.Index, len(texts))
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("crossencoder returned no score for text %d", i)
		}
	}
	return scores, nil
}

// Ping checks the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	err := c.execute(ctx, operationPing, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("create health request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("crossencoder health request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return statusError("health", resp)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	})
	return resilience.MarkTemporary(operationPing, err, resilience.ClassifyHTTP)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crossencoder rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("rerank", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, resilience.ClassifyHTTP)
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
