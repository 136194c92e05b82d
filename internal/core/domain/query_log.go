package domain

import "time"

// PassageRef identifies a passage returned for a logged query.
type PassageRef struct {
	DocumentID string  `json:"doc_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// QueryLog is the audit record written after every retrieval.
type QueryLog struct {
	ID         string          `json:"id"`
	RequestID  string          `json:"request_id,omitempty"`
	Query      string          `json:"query"`
	Entities   QueryEntities   `json:"entities"`
	Filter     MetadataFilter  `json:"filter"`
	Status     RetrievalStatus `json:"status"`
	Backends   BackendReport   `json:"backends"`
	Passages   []PassageRef    `json:"passages"`
	DurationMs float64         `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

func NewQueryLog(id, requestID string, result *RetrievalResult, createdAt time.Time) QueryLog {
	refs := make([]PassageRef, 0, len(result.Passages))
	for _, p := range result.Passages {
		refs = append(refs, PassageRef{DocumentID: p.DocumentID, ChunkIndex: p.ChunkIndex, Score: p.Score})
	}
	return QueryLog{
		ID:         id,
		RequestID:  requestID,
		Query:      result.Query,
		Entities:   result.Entities,
		Filter:     result.Filter,
		Status:     result.Status,
		Backends:   result.Backends,
		Passages:   refs,
		DurationMs: float64(result.Duration.Microseconds()) / 1000.0,
		CreatedAt:  createdAt,
	}
}
