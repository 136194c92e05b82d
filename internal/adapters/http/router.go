package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/pbs-retrieval/internal/config"
	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
	"github.com/kirillkom/pbs-retrieval/internal/core/usecase"
	"github.com/kirillkom/pbs-retrieval/internal/observability/metrics"
)

const (
	maxRequestBodyBytes = 64 << 10
	readinessTimeout    = 2 * time.Second
)

// IndexState reports the keyword index generation currently served.
type IndexState interface {
	Ready() bool
	Size() int
}

// ReadinessCheck is a named dependency probe run by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Router struct {
	cfg       config.Config
	retriever ports.Retriever
	analyzer  ports.QueryAnalyzer
	builder   ports.IndexBuilder
	index     IndexState
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	checks    []ReadinessCheck
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func WithReadinessCheck(name string, check func(ctx context.Context) error) RouterOption {
	return func(rt *Router) {
		if check != nil {
			rt.checks = append(rt.checks, ReadinessCheck{Name: name, Check: check})
		}
	}
}

func NewRouter(
	cfg config.Config,
	retriever ports.Retriever,
	analyzer ports.QueryAnalyzer,
	builder ports.IndexBuilder,
	index IndexState,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:       cfg,
		retriever: retriever,
		analyzer:  analyzer,
		builder:   builder,
		index:     index,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handler assembles the mux and its middleware chain. The OpenAPI document
// is embedded, so a load failure is a programming error and is returned.
func (rt *Router) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /readyz", rt.readyz)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPISpec)
	mux.HandleFunc("POST /v1/retrieve", rt.retrieve)
	mux.HandleFunc("GET /v1/analyze", rt.analyze)
	mux.HandleFunc("POST /v1/index/rebuild", rt.rebuildIndex)
	mux.HandleFunc("GET /v1/index/status", rt.indexStatus)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	onReject := func(reason string) {
		if rt.metrics != nil {
			rt.metrics.RecordRejected(reason)
		}
	}

	var handler http.Handler = mux
	if rt.cfg.APIValidateOpenAPI {
		router, err := loadOpenAPIRouter()
		if err != nil {
			return nil, err
		}
		handler = openAPIValidationMiddleware(router, handler, onReject)
	}
	handler = backpressureWithReject(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait, onReject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler), nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz fails only when a dependency probe fails. A keyword index that has
// not been built yet is reported but does not make the service unready,
// since retrieval degrades to dense search alone.
func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(rt.checks)+1)
	for _, c := range rt.checks {
		if err := c.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			components[c.Name] = err.Error()
			rt.logger.Warn("readiness_check_failed", "component", c.Name, "error", err)
			continue
		}
		components[c.Name] = "ok"
	}
	if rt.index != nil {
		if rt.index.Ready() {
			components["keyword_index"] = "ok"
		} else {
			components["keyword_index"] = "empty"
		}
	}

	body := map[string]any{"status": "ready", "components": components}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	writeJSON(w, status, body)
}

type retrieveRequest struct {
	Query        string `json:"query"`
	SemanticTopK *int   `json:"semantic_top_k,omitempty"`
	LexicalTopK  *int   `json:"lexical_top_k,omitempty"`
	TopK         *int   `json:"top_k,omitempty"`
	Rerank       *bool  `json:"rerank,omitempty"`
}

type retrieveResponse struct {
	Query      string                 `json:"query"`
	Status     domain.RetrievalStatus `json:"status"`
	Entities   domain.QueryEntities   `json:"entities"`
	Filter     domain.MetadataFilter  `json:"filter"`
	Passages   []domain.Passage       `json:"passages"`
	Citations  []domain.Citation      `json:"citations"`
	Backends   domain.BackendReport   `json:"backends"`
	DurationMS float64                `json:"duration_ms"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	result, err := rt.retriever.Retrieve(r.Context(), req.Query, rt.retrievalConfig(req))
	if err != nil {
		rt.logger.Error("retrieve_failed",
			"request_id", domain.RequestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponse{
		Query:      result.Query,
		Status:     result.Status,
		Entities:   result.Entities,
		Filter:     result.Filter,
		Passages:   result.Passages,
		Citations:  usecase.BuildCitations(result.Passages),
		Backends:   result.Backends,
		DurationMS: float64(result.Duration.Microseconds()) / 1000.0,
	})
}

func (rt *Router) retrievalConfig(req retrieveRequest) domain.RetrievalConfig {
	cfg := domain.RetrievalConfig{
		SemanticTopK:  rt.cfg.SemanticTopK,
		LexicalTopK:   rt.cfg.LexicalTopK,
		FinalTopK:     rt.cfg.FinalTopK,
		RerankEnabled: rt.cfg.RerankEnabled,
		VectorTimeout: rt.cfg.VectorTimeout,
		RerankTimeout: rt.cfg.RerankTimeout,
	}
	if req.SemanticTopK != nil {
		cfg.SemanticTopK = *req.SemanticTopK
	}
	if req.LexicalTopK != nil {
		cfg.LexicalTopK = *req.LexicalTopK
	}
	if req.TopK != nil {
		cfg.FinalTopK = *req.TopK
	}
	if req.Rerank != nil {
		cfg.RerankEnabled = *req.Rerank
	}
	return cfg
}

type analyzeResponse struct {
	Query    string                `json:"query"`
	Entities domain.QueryEntities  `json:"entities"`
	Filter   domain.MetadataFilter `json:"filter"`
}

func (rt *Router) analyze(w http.ResponseWriter, r *http.Request) {
	var query string
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &query); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid parameter q: %v", err)})
		return
	}
	if strings.TrimSpace(query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter q is required"})
		return
	}

	entities := rt.analyzer.Analyze(query)
	writeJSON(w, http.StatusOK, analyzeResponse{
		Query:    query,
		Entities: entities,
		Filter:   domain.FilterFromEntities(entities),
	})
}

type indexStatusResponse struct {
	Ready    bool `json:"ready"`
	Passages int  `json:"passages"`
}

func (rt *Router) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	if rt.builder == nil {
		writeError(w, domain.WrapError(domain.ErrUnavailable, "rebuild index", errors.New("no index builder configured")))
		return
	}
	n, err := rt.builder.Rebuild(r.Context())
	if err != nil {
		rt.logger.Error("index_rebuild_failed",
			"request_id", domain.RequestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, err)
		return
	}
	resp := indexStatusResponse{Passages: n}
	if rt.index != nil {
		resp.Ready = rt.index.Ready()
		resp.Passages = rt.index.Size()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) indexStatus(w http.ResponseWriter, _ *http.Request) {
	var resp indexStatusResponse
	if rt.index != nil {
		resp.Ready = rt.index.Ready()
		resp.Passages = rt.index.Size()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
