package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/lexical"
)

// filteringVector answers like a real store: every corpus passage that
// passes the filter, in corpus order.
type filteringVector struct {
	corpus []domain.Passage
}

func (v filteringVector) SimilaritySearch(_ context.Context, _ string, k int, filter domain.MetadataFilter) ([]domain.Passage, error) {
	out := make([]domain.Passage, 0, k)
	for _, p := range v.corpus {
		if filter.Matches(p.Metadata) && len(out) < k {
			out = append(out, p)
		}
	}
	return out, nil
}

func pbsCorpus() []domain.Passage {
	return []domain.Passage{
		{DocumentID: "gh-1", Text: "Ghana maize yields rose during the midline survey.", Metadata: domain.Metadata{Country: domain.CountryGhana}},
		{DocumentID: "ke-1", Text: "In Kenya the stunting rate among children under five was 26 percent in 2015.", Metadata: domain.Metadata{Country: domain.CountryKenya, Year: 2015}},
		{DocumentID: "np-1", Text: "Nepal household dietary diversity improved between rounds.", Metadata: domain.Metadata{Country: domain.CountryNepal}},
	}
}

func TestRetrieveKenyaStuntingScenario(t *testing.T) {
	corpus := pbsCorpus()
	index := lexical.NewIndex()
	index.Build(corpus)

	uc := NewRetrieveUseCase(NewQueryAnalyzer(DefaultAnalyzerConfig()), filteringVector{corpus: corpus}, index)
	result, err := uc.Retrieve(context.Background(), "What was the stunting rate in Kenya in 2015?", domain.DefaultRetrievalConfig())
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if len(result.Entities.Countries) != 1 || result.Entities.Countries[0] != domain.CountryKenya {
		t.Fatalf("expected countries [Kenya], got %v", result.Entities.Countries)
	}
	if len(result.Entities.Years) != 1 || result.Entities.Years[0] != 2015 {
		t.Fatalf("expected years [2015], got %v", result.Entities.Years)
	}
	raw, err := json.Marshal(result.Filter)
	if err != nil {
		t.Fatalf("marshal filter: %v", err)
	}
	if string(raw) != `{"country":"Kenya"}` {
		t.Fatalf("unexpected filter %s", raw)
	}
	if len(result.Passages) == 0 || result.Passages[0].DocumentID != "ke-1" {
		t.Fatalf("expected the Kenya passage first, got %+v", result.Passages)
	}
	if result.Status != domain.RetrievalStatusOK {
		t.Fatalf("expected ok status, got %s", result.Status)
	}
}

func TestRetrieveWithEmptyCorpusUsesVectorOnly(t *testing.T) {
	index := lexical.NewIndex()
	index.Build(nil)
	if index.Ready() {
		t.Fatalf("index must not be ready after an empty build")
	}

	vector := filteringVector{corpus: pbsCorpus()}
	uc := NewRetrieveUseCase(NewQueryAnalyzer(DefaultAnalyzerConfig()), vector, index)
	result, err := uc.Retrieve(context.Background(), "household dietary diversity", domain.DefaultRetrievalConfig())
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.Backends.Lexical != domain.BackendUnavailable {
		t.Fatalf("expected lexical backend unavailable, got %s", result.Backends.Lexical)
	}
	if len(result.Passages) != 3 {
		t.Fatalf("expected all vector passages, got %d", len(result.Passages))
	}
}
