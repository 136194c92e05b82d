package ports

import (
	"context"
	"time"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

// VectorSearcher runs dense similarity search with an optional metadata filter.
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, query string, k int, filter domain.MetadataFilter) ([]domain.Passage, error)
}

// PassageSource enumerates every stored passage.
type PassageSource interface {
	AllPassages(ctx context.Context) ([]domain.Passage, error)
}

// LexicalSearcher is a keyword index over the corpus.
type LexicalSearcher interface {
	Search(query string, k int, filter domain.MetadataFilter) []domain.Passage
	Ready() bool
}

// LexicalIndex is a LexicalSearcher that can be rebuilt.
type LexicalIndex interface {
	LexicalSearcher
	Build(passages []domain.Passage)
}

// Embedder builds vectors for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RelevanceScorer jointly scores (query, text) pairs.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	Ping(ctx context.Context) error
}

// Reranker reorders candidates and truncates them to topK. It never fails:
// implementations fall back to the upstream order and say so in the
// outcome. BackendOK means the passages were actually scored.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []domain.Passage, topK int) ([]domain.Passage, domain.BackendOutcome)
}

// RetrievalRecorder persists or forwards query logs.
type RetrievalRecorder interface {
	Record(ctx context.Context, entry domain.QueryLog) error
}

// RetrievalObserver receives per-call measurements.
type RetrievalObserver interface {
	ObserveRetrieval(result *domain.RetrievalResult, timings domain.StageTimings)
}

// IndexObserver receives keyword index build measurements.
type IndexObserver interface {
	ObserveIndexBuild(passages int, duration time.Duration, err error)
}
