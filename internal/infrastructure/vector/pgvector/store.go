package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/vector/payload"
)

// DefaultCollection is the collection the ingestion job writes chunks to.
const DefaultCollection = "ftf_pbs_chunks"

// maxPrealloc bounds the result slice reserved up front; LIMIT still uses k.
const maxPrealloc = 256

// Store reads chunks from the langchain-postgres tables
// (langchain_pg_collection, langchain_pg_embedding) using pgvector cosine
// distance.
type Store struct {
	db         *sql.DB
	embedder   ports.Embedder
	collection string
}

func New(db *sql.DB, embedder ports.Embedder, collection string) *Store {
	if strings.TrimSpace(collection) == "" {
		collection = DefaultCollection
	}
	return &Store{db: db, embedder: embedder, collection: collection}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pgvector ping: %w", err)
	}
	return nil
}

func (s *Store) SimilaritySearch(
	ctx context.Context,
	query string,
	k int,
	filter domain.MetadataFilter,
) ([]domain.Passage, error) {
	if k <= 0 {
		return []domain.Passage{}, nil
	}
	if s.embedder == nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "pgvector search", errors.New("no embedder configured"))
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embed query: empty vector")
	}

	stmt, args := buildSimilarityQuery(s.collection, vectorLiteral(vector), k, filter)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector similarity query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Passage, 0, min(k, maxPrealloc))
	for rows.Next() {
		var (
			id       string
			document string
			rawMeta  []byte
			distance float64
		)
		if err := rows.Scan(&id, &document, &rawMeta, &distance); err != nil {
			return nil, fmt.Errorf("scan similarity row: %w", err)
		}
		fields, err := payload.Decode(rawMeta)
		if err != nil {
			return nil, fmt.Errorf("passage %s: %w", id, err)
		}
		p := payload.ToPassage(id, document, fields)
		p.Score = 1 - distance
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarity rows: %w", err)
	}
	return out, nil
}

// AllPassages returns every chunk of the collection in document and chunk
// order, which becomes the keyword index corpus order.
func (s *Store) AllPassages(ctx context.Context) ([]domain.Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT e.id, e.document, e.cmetadata
FROM langchain_pg_embedding e
JOIN langchain_pg_collection c ON c.uuid = e.collection_id
WHERE c.name = $1
ORDER BY e.cmetadata->>'doc_id', (e.cmetadata->>'chunk_index')::int, e.id
`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("pgvector read all: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Passage, 0, 1024)
	for rows.Next() {
		var (
			id       string
			document string
			rawMeta  []byte
		)
		if err := rows.Scan(&id, &document, &rawMeta); err != nil {
			return nil, fmt.Errorf("scan passage row: %w", err)
		}
		fields, err := payload.Decode(rawMeta)
		if err != nil {
			return nil, fmt.Errorf("passage %s: %w", id, err)
		}
		out = append(out, payload.ToPassage(id, document, fields))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passage rows: %w", err)
	}
	return out, nil
}

// buildSimilarityQuery renders the filtered nearest-neighbour query. Facets
// compare as text so integer and string encodings of phase both match.
func buildSimilarityQuery(collection, vector string, k int, filter domain.MetadataFilter) (string, []any) {
	args := []any{vector, collection}
	var b strings.Builder
	b.WriteString(`
SELECT e.id, e.document, e.cmetadata, e.embedding <=> $1::vector AS distance
FROM langchain_pg_embedding e
JOIN langchain_pg_collection c ON c.uuid = e.collection_id
WHERE c.name = $2`)

	facets := payload.FacetValues(filter)
	for _, key := range payload.FacetKeys {
		values, ok := facets[key]
		if !ok {
			continue
		}
		if len(values) == 1 {
			args = append(args, values[0])
			fmt.Fprintf(&b, "\n  AND e.cmetadata->>'%s' = $%d", key, len(args))
			continue
		}
		placeholders := make([]string, 0, len(values))
		for _, v := range values {
			args = append(args, v)
			placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
		}
		fmt.Fprintf(&b, "\n  AND e.cmetadata->>'%s' IN (%s)", key, strings.Join(placeholders, ", "))
	}

	args = append(args, k)
	fmt.Fprintf(&b, "\nORDER BY distance\nLIMIT $%d\n", len(args))
	return b.String(), args
}

func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
