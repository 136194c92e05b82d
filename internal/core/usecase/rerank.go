package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
)

// PassthroughReranker keeps upstream order and truncates. It scores
// nothing, so it reports skipped.
type PassthroughReranker struct{}

func (PassthroughReranker) Rerank(_ context.Context, _ string, passages []domain.Passage, topK int) ([]domain.Passage, domain.BackendOutcome) {
	return trimPassages(passages, topK), domain.BackendSkipped
}

// ModelReranker reorders passages by a pairwise relevance model. Until Load
// succeeds, or after Unload, it behaves like PassthroughReranker.
type ModelReranker struct {
	scorer ports.RelevanceScorer
	model  string
	loaded atomic.Bool
	logger *slog.Logger
}

func NewModelReranker(scorer ports.RelevanceScorer, model string, logger *slog.Logger) *ModelReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelReranker{scorer: scorer, model: model, logger: logger}
}

// Load probes the scoring model and marks the reranker usable.
func (r *ModelReranker) Load(ctx context.Context) error {
	if r.scorer == nil {
		return domain.WrapError(domain.ErrUnavailable, "load reranker", fmt.Errorf("no scorer configured"))
	}
	if err := r.scorer.Ping(ctx); err != nil {
		r.loaded.Store(false)
		return domain.WrapError(domain.ErrUnavailable, "load reranker", err)
	}
	r.loaded.Store(true)
	r.logger.Info("reranker_loaded", "model", r.model)
	return nil
}

func (r *ModelReranker) Unload() {
	r.loaded.Store(false)
}

func (r *ModelReranker) Loaded() bool {
	return r.loaded.Load()
}

func (r *ModelReranker) Rerank(ctx context.Context, query string, passages []domain.Passage, topK int) ([]domain.Passage, domain.BackendOutcome) {
	if !r.loaded.Load() {
		r.logger.Warn("reranker_not_loaded", "model", r.model)
		return trimPassages(passages, topK), domain.BackendUnavailable
	}
	if len(passages) == 0 {
		return []domain.Passage{}, domain.BackendEmpty
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	scores, err := r.scorer.Score(ctx, query, texts)
	if err == nil && len(scores) != len(passages) {
		err = fmt.Errorf("scorer returned %d scores for %d passages", len(scores), len(passages))
	}
	if err != nil {
		r.logger.Warn("rerank_failed", "model", r.model, "error", err)
		outcome := domain.BackendFailed
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = domain.BackendTimeout
		}
		return trimPassages(passages, topK), outcome
	}

	ranked := make([]domain.Passage, len(passages))
	copy(ranked, passages)
	for i := range ranked {
		ranked[i].Score = scores[i]
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return trimPassages(ranked, topK), domain.BackendOK
}

// TokenOverlapScorer is a model-free relevance scorer: the share of query
// tokens found in the passage text. It stands in for a cross-encoder in
// local setups.
type TokenOverlapScorer struct{}

func (TokenOverlapScorer) Ping(context.Context) error { return nil }

func (TokenOverlapScorer) Score(_ context.Context, query string, texts []string) ([]float64, error) {
	queryTokens := toTokenSet(query)
	out := make([]float64, len(texts))
	for i, text := range texts {
		out[i] = tokenOverlap(queryTokens, toTokenSet(text))
	}
	return out, nil
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
