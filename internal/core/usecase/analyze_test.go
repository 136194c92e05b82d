package usecase

import (
	"reflect"
	"testing"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

func TestAnalyzeCountries(t *testing.T) {
	analyzer := NewQueryAnalyzer(DefaultAnalyzerConfig())

	cases := []struct {
		name  string
		query string
		want  []domain.Country
	}{
		{name: "single", query: "What was the stunting rate in Kenya?", want: []domain.Country{domain.CountryKenya}},
		{name: "alias only", query: "Tajik households and dietary diversity", want: []domain.Country{domain.CountryTajikistan}},
		{name: "canonical and alias", query: "Kenyan farmers vs Kenya national averages", want: []domain.Country{domain.CountryKenya}},
		{name: "first mention order", query: "Compare Ugandan results with Ghana and Kenya", want: []domain.Country{domain.CountryUganda, domain.CountryGhana, domain.CountryKenya}},
		{name: "none", query: "poverty prevalence in the zone of influence", want: []domain.Country{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := analyzer.Analyze(tc.query).Countries
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("countries = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnalyzePhases(t *testing.T) {
	analyzer := NewQueryAnalyzer(DefaultAnalyzerConfig())

	cases := []struct {
		query string
		want  []domain.Phase
	}{
		{query: "Phase II and P3 and phase 2", want: []domain.Phase{2, 3}},
		{query: "phase iv endline", want: []domain.Phase{4}},
		{query: "PHASE III", want: []domain.Phase{3}},
		{query: "phase 5 and P7", want: []domain.Phase{}},
		{query: "phase 1, phase I, p1", want: []domain.Phase{1}},
	}
	for _, tc := range cases {
		got := analyzer.Analyze(tc.query).Phases
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Analyze(%q).Phases = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestAnalyzeSurveyRoundsFollowKeywordTableOrder(t *testing.T) {
	analyzer := NewQueryAnalyzer(DefaultAnalyzerConfig())

	got := analyzer.Analyze("End-line results compared with the baseline and end line").SurveyTypes
	want := []domain.SurveyRound{domain.SurveyBaseline, domain.SurveyEndline}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("survey types = %v, want %v", got, want)
	}
}

func TestAnalyzeYearsKeepDuplicatesInOrder(t *testing.T) {
	analyzer := NewQueryAnalyzer(DefaultAnalyzerConfig())

	got := analyzer.Analyze("2015 data vs 1999, then 2015 again; not 2100 or 12015").Years
	want := []int{2015, 1999, 2015}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("years = %v, want %v", got, want)
	}
}

func TestAnalyzeRespectsDisabledFacets(t *testing.T) {
	analyzer := NewQueryAnalyzer(AnalyzerConfig{Phases: true})

	got := analyzer.Analyze("Kenya phase 2 baseline 2019")
	if len(got.Countries) != 0 || len(got.SurveyTypes) != 0 || len(got.Years) != 0 {
		t.Fatalf("expected disabled facets to stay empty, got %+v", got)
	}
	if !reflect.DeepEqual(got.Phases, []domain.Phase{2}) {
		t.Fatalf("expected phase 2, got %v", got.Phases)
	}
}

func TestAnalyzeEmptyQueryProducesNoFilter(t *testing.T) {
	got := NewQueryAnalyzer(DefaultAnalyzerConfig()).Analyze("")
	if !got.IsEmpty() {
		t.Fatalf("expected empty entities, got %+v", got)
	}
	if got.Countries == nil || got.Years == nil {
		t.Fatalf("expected non-nil slices")
	}
}
