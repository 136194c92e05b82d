package domain

import "time"

// QueryEntities are the structured facets found in a free-text query.
// Slices are never nil so callers can range and serialize without checks.
type QueryEntities struct {
	Countries   []Country     `json:"countries"`
	Phases      []Phase       `json:"phases"`
	SurveyTypes []SurveyRound `json:"survey_types"`
	Years       []int         `json:"years"`
}

func EmptyQueryEntities() QueryEntities {
	return QueryEntities{
		Countries:   []Country{},
		Phases:      []Phase{},
		SurveyTypes: []SurveyRound{},
		Years:       []int{},
	}
}

func (e QueryEntities) IsEmpty() bool {
	return len(e.Countries) == 0 && len(e.Phases) == 0 && len(e.SurveyTypes) == 0 && len(e.Years) == 0
}

// RetrievalConfig tunes a single retrieval call.
type RetrievalConfig struct {
	SemanticTopK  int
	LexicalTopK   int
	FinalTopK     int
	RerankEnabled bool
	VectorTimeout time.Duration
	RerankTimeout time.Duration
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		SemanticTopK:  12,
		LexicalTopK:   12,
		FinalTopK:     5,
		RerankEnabled: false,
		VectorTimeout: 10 * time.Second,
		RerankTimeout: 5 * time.Second,
	}
}

type RetrievalStatus string

const (
	RetrievalStatusOK                 RetrievalStatus = "ok"
	RetrievalStatusNoRelevantPassages RetrievalStatus = "no_relevant_passages"
)

// BackendOutcome describes what a retrieval stage contributed to a call.
type BackendOutcome string

const (
	BackendOK          BackendOutcome = "ok"
	BackendEmpty       BackendOutcome = "empty"
	BackendFailed      BackendOutcome = "failed"
	BackendTimeout     BackendOutcome = "timeout"
	BackendUnavailable BackendOutcome = "unavailable"
	BackendSkipped     BackendOutcome = "skipped"
)

type BackendReport struct {
	Vector  BackendOutcome `json:"vector"`
	Lexical BackendOutcome `json:"lexical"`
	Rerank  BackendOutcome `json:"rerank"`
}

// RetrievalResult is the ranked outcome of one query.
type RetrievalResult struct {
	Query    string          `json:"query"`
	Entities QueryEntities   `json:"entities"`
	Filter   MetadataFilter  `json:"filter"`
	Passages []Passage       `json:"passages"`
	Status   RetrievalStatus `json:"status"`
	Backends BackendReport   `json:"backends"`
	Duration time.Duration   `json:"-"`
}

// StageTimings are the wall-clock durations of each retrieval stage.
type StageTimings struct {
	Analyze time.Duration
	Vector  time.Duration
	Lexical time.Duration
	Fusion  time.Duration
	Rerank  time.Duration
	Total   time.Duration
}
