package usecase

import (
	"strconv"
	"strings"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

const (
	citationExcerptRunes = 200
	defaultDocType       = "full_report"
	fallbackReportTitle  = "FTF PBS Report"
)

// BuildCitations numbers passages from 1 in the given order.
func BuildCitations(passages []domain.Passage) []domain.Citation {
	out := make([]domain.Citation, 0, len(passages))
	for i, p := range passages {
		meta := p.Metadata
		title := strings.TrimSpace(meta.Title)
		if title == "" {
			title = inferReportTitle(meta)
		}
		docType := meta.DocType
		if docType == "" {
			docType = defaultDocType
		}
		out = append(out, domain.Citation{
			Number:     i + 1,
			DocumentID: p.DocumentID,
			Title:      title,
			Country:    meta.Country,
			Phase:      meta.Phase,
			SurveyType: meta.SurveyType,
			Year:       meta.Year,
			DocType:    docType,
			OnlineURL:  meta.OnlineURL,
			Excerpt:    excerpt(p.Text),
		})
	}
	return out
}

func inferReportTitle(meta domain.Metadata) string {
	parts := make([]string, 0, 4)
	if meta.Country != "" {
		parts = append(parts, string(meta.Country))
	}
	if meta.Phase != 0 {
		parts = append(parts, "Phase "+strconv.Itoa(int(meta.Phase)))
	}
	if meta.SurveyType != "" {
		parts = append(parts, surveyLabel(meta.SurveyType))
	}
	if meta.Year != 0 {
		parts = append(parts, strconv.Itoa(meta.Year))
	}
	if len(parts) == 0 {
		return fallbackReportTitle
	}
	return strings.Join(parts, " ")
}

// surveyLabel renders "baseline_midline" as "Baseline Midline".
func surveyLabel(round domain.SurveyRound) string {
	words := strings.Fields(strings.ReplaceAll(string(round), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) > citationExcerptRunes {
		runes = runes[:citationExcerptRunes]
	}
	return strings.TrimSpace(string(runes)) + "…"
}
