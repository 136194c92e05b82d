package domain

// Metadata carries the structured facets attached to a passage at ingestion.
type Metadata struct {
	Country    Country     `json:"country,omitempty"`
	Phase      Phase       `json:"phase,omitempty"`
	SurveyType SurveyRound `json:"survey_type,omitempty"`
	Year       int         `json:"year,omitempty"`
	DocType    string      `json:"doc_type,omitempty"`
	Title      string      `json:"title,omitempty"`
	OnlineURL  string      `json:"online_url,omitempty"`
}

// Passage is one chunk of a survey report. Passages are never mutated after
// they are loaded; ranking stages work on copies and only set Score. Score
// is internal to ranking and never serialized: its scale depends on the
// stage that produced it.
type Passage struct {
	ID         string   `json:"id,omitempty"`
	DocumentID string   `json:"doc_id"`
	ChunkIndex int      `json:"chunk_index"`
	Text       string   `json:"text"`
	Metadata   Metadata `json:"metadata"`
	Score      float64  `json:"-"`
}
