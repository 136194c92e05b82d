package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/vector/payload"
)

const (
	contentKey  = "page_content"
	metadataKey = "metadata"

	defaultScrollPage = 256
)

// Client searches a Qdrant collection laid out the way langchain stores
// documents: the chunk text under page_content and its metadata nested under
// metadata.
type Client struct {
	baseURL    string
	collection string
	embedder   ports.Embedder
	httpClient *http.Client
	scrollPage int
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithScrollPage sets the page size used when reading the whole collection.
func WithScrollPage(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.scrollPage = size
		}
	}
}

func New(baseURL, collection string, embedder ports.Embedder, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		scrollPage: defaultScrollPage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type point struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) SimilaritySearch(
	ctx context.Context,
	query string,
	k int,
	filter domain.MetadataFilter,
) ([]domain.Passage, error) {
	if k <= 0 {
		return []domain.Passage{}, nil
	}
	if c.embedder == nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "qdrant search", errors.New("no embedder configured"))
	}
	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if must := buildMust(filter); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	var searchResp struct {
		Result []point `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.postJSON(ctx, url, "search", reqBody, &searchResp); err != nil {
		return nil, err
	}

	out := make([]domain.Passage, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		p := toPassage(r)
		p.Score = r.Score
		out = append(out, p)
	}
	return out, nil
}

// AllPassages scrolls through the whole collection following
// next_page_offset until Qdrant reports no further page.
func (c *Client) AllPassages(ctx context.Context) ([]domain.Passage, error) {
	url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)
	out := make([]domain.Passage, 0, c.scrollPage)

	var offset any
	for {
		reqBody := map[string]any{
			"limit":        c.scrollPage,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := c.postJSON(ctx, url, "scroll", reqBody, &scrollResp); err != nil {
			return nil, err
		}
		for _, r := range scrollResp.Result.Points {
			out = append(out, toPassage(r))
		}
		if scrollResp.Result.NextPageOffset == nil || len(scrollResp.Result.Points) == 0 {
			return out, nil
		}
		offset = scrollResp.Result.NextPageOffset
	}
}

func (c *Client) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create collection info request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant collection info request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError("collection info", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) postJSON(ctx context.Context, url, op string, reqBody any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("qdrant %s status: %s: %s", op, resp.Status, msg)
	}
	return fmt.Errorf("qdrant %s status: %s", op, resp.Status)
}

// buildMust renders one condition per constrained facet: match.value for a
// single value and match.any for a membership test.
func buildMust(filter domain.MetadataFilter) []map[string]any {
	must := make([]map[string]any, 0, 3)
	if filter.Country.IsSet() {
		values := make([]any, 0, len(filter.Country.Values()))
		for _, v := range filter.Country.Values() {
			values = append(values, string(v))
		}
		must = append(must, matchCondition(payload.KeyCountry, values))
	}
	if filter.Phase.IsSet() {
		ints := make([]any, 0, len(filter.Phase.Values()))
		texts := make([]any, 0, len(filter.Phase.Values()))
		for _, v := range filter.Phase.Values() {
			ints = append(ints, int(v))
			texts = append(texts, strconv.Itoa(int(v)))
		}
		// Phase is written either as an integer or as its text.
		must = append(must, map[string]any{"should": []map[string]any{
			matchCondition(payload.KeyPhase, ints),
			matchCondition(payload.KeyPhase, texts),
		}})
	}
	if filter.SurveyType.IsSet() {
		values := make([]any, 0, len(filter.SurveyType.Values()))
		for _, v := range filter.SurveyType.Values() {
			values = append(values, string(v))
		}
		must = append(must, matchCondition(payload.KeySurveyType, values))
	}
	return must
}

func matchCondition(key string, values []any) map[string]any {
	match := map[string]any{"any": values}
	if len(values) == 1 {
		match = map[string]any{"value": values[0]}
	}
	return map[string]any{
		"key":   metadataKey + "." + key,
		"match": match,
	}
}

func toPassage(r point) domain.Passage {
	text := payload.String(r.Payload, contentKey)
	fields, _ := r.Payload[metadataKey].(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return payload.ToPassage(fmt.Sprint(r.ID), text, fields)
}
