package domain

// Citation is the UI-facing reference to a retrieved passage.
type Citation struct {
	Number     int         `json:"number"`
	DocumentID string      `json:"doc_id"`
	Title      string      `json:"title"`
	Country    Country     `json:"country,omitempty"`
	Phase      Phase       `json:"phase,omitempty"`
	SurveyType SurveyRound `json:"survey_type,omitempty"`
	Year       int         `json:"year,omitempty"`
	DocType    string      `json:"doc_type"`
	OnlineURL  string      `json:"online_url,omitempty"`
	Excerpt    string      `json:"excerpt"`
}
