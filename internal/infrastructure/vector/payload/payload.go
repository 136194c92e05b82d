// Package payload maps stored chunk metadata onto domain passages. Both
// vector backends persist the metadata keys written by the ingestion job:
// doc_id, chunk_index, country, phase, survey_type, doc_type, year, title
// and online_url.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

const (
	KeyDocumentID = "doc_id"
	KeyChunkIndex = "chunk_index"
	KeyCountry    = "country"
	KeyPhase      = "phase"
	KeySurveyType = "survey_type"
	KeyDocType    = "doc_type"
	KeyYear       = "year"
	KeyTitle      = "title"
	KeyOnlineURL  = "online_url"
)

// Decode parses a JSON metadata object. Numbers stay json.Number so a
// stored 2.0 is not mistaken for the integer 2.
func Decode(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// ToPassage builds a passage from its id, text and metadata fields.
// Facets keep their stored form: the stores compare filters against the raw
// value, so the keyword index must see the same value. Missing or malformed
// facets are left at their zero value.
func ToPassage(id, text string, fields map[string]any) domain.Passage {
	return domain.Passage{
		ID:         id,
		DocumentID: String(fields, KeyDocumentID),
		ChunkIndex: Int(fields, KeyChunkIndex),
		Text:       text,
		Metadata: domain.Metadata{
			Country:    domain.Country(String(fields, KeyCountry)),
			Phase:      domain.Phase(Facet(fields, KeyPhase)),
			SurveyType: domain.SurveyRound(String(fields, KeySurveyType)),
			Year:       Int(fields, KeyYear),
			DocType:    String(fields, KeyDocType),
			Title:      String(fields, KeyTitle),
			OnlineURL:  String(fields, KeyOnlineURL),
		},
	}
}

func String(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func Int(fields map[string]any, key string) int {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0
	}
	switch typed := v.(type) {
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return 0
		}
		return int(typed)
	case int:
		return typed
	case int64:
		return int(typed)
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return int(n)
		}
		f, err := typed.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return int(f)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Facet reads an integer facet the way the stores match it: a JSON integer
// or its exact decimal text. "2.0", " 2" and "+2" are not phase 2.
func Facet(fields map[string]any, key string) int {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0
	}
	var text string
	switch typed := v.(type) {
	case json.Number:
		text = typed.String()
	case string:
		text = typed
	case int:
		return typed
	case int64:
		return int(typed)
	default:
		return 0
	}
	n, err := strconv.Atoi(text)
	if err != nil || strconv.Itoa(n) != text {
		return 0
	}
	return n
}

// FacetKeys lists the filterable facets in the order filters are rendered.
var FacetKeys = []string{KeyCountry, KeyPhase, KeySurveyType}

// FacetValues renders constraint values in the textual form the stores
// compare against.
func FacetValues(filter domain.MetadataFilter) map[string][]string {
	out := make(map[string][]string, 3)
	if filter.Country.IsSet() {
		for _, c := range filter.Country.Values() {
			out[KeyCountry] = append(out[KeyCountry], string(c))
		}
	}
	if filter.Phase.IsSet() {
		for _, p := range filter.Phase.Values() {
			out[KeyPhase] = append(out[KeyPhase], strconv.Itoa(int(p)))
		}
	}
	if filter.SurveyType.IsSet() {
		for _, s := range filter.SurveyType.Values() {
			out[KeySurveyType] = append(out[KeySurveyType], string(s))
		}
	}
	return out
}
