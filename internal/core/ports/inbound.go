package ports

import (
	"context"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

// Retriever is the inbound contract for hybrid passage retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, query string, cfg domain.RetrievalConfig) (*domain.RetrievalResult, error)
}

// QueryAnalyzer extracts structured facets from free-text queries.
type QueryAnalyzer interface {
	Analyze(query string) domain.QueryEntities
}

// IndexBuilder (re)builds the in-process keyword index from the corpus.
type IndexBuilder interface {
	Rebuild(ctx context.Context) (int, error)
}
