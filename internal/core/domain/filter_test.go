package domain

import (
	"encoding/json"
	"testing"
)

func TestFilterFromEntitiesEmptyWhenNoFacets(t *testing.T) {
	entities := EmptyQueryEntities()
	entities.Years = []int{2019, 2019}

	filter := FilterFromEntities(entities)
	if !filter.IsEmpty() {
		t.Fatalf("expected empty filter when only years were extracted")
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		t.Fatalf("marshal filter: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("expected {}, got %s", raw)
	}
}

func TestFilterWireShapeEqualityAndMembership(t *testing.T) {
	filter := FilterFromEntities(QueryEntities{
		Countries:   []Country{CountryKenya},
		Phases:      []Phase{1, 2},
		SurveyTypes: []SurveyRound{SurveyEndline, SurveyEndline},
	})

	raw, err := json.Marshal(filter)
	if err != nil {
		t.Fatalf("marshal filter: %v", err)
	}
	want := `{"country":"Kenya","phase":{"$in":[1,2]},"survey_type":"endline"}`
	if string(raw) != want {
		t.Fatalf("unexpected wire shape:\nwant %s\ngot  %s", want, raw)
	}
	if !filter.SurveyType.IsEquality() {
		t.Fatalf("duplicate survey values must collapse to equality")
	}
}

func TestFilterTwoCountriesIsMembership(t *testing.T) {
	filter := FilterFromEntities(QueryEntities{Countries: []Country{CountryKenya, CountryUganda}})

	raw, err := json.Marshal(filter)
	if err != nil {
		t.Fatalf("marshal filter: %v", err)
	}
	want := `{"country":{"$in":["Kenya","Uganda"]}}`
	if string(raw) != want {
		t.Fatalf("unexpected wire shape:\nwant %s\ngot  %s", want, raw)
	}
	if !filter.Country.IsMembership() || len(filter.Country.Values()) != 2 {
		t.Fatalf("expected membership over exactly two countries, got %v", filter.Country.Values())
	}
}

func TestFilterMatches(t *testing.T) {
	filter := FilterFromEntities(QueryEntities{
		Countries: []Country{CountryKenya, CountryUganda},
		Phases:    []Phase{2},
	})

	cases := []struct {
		name string
		meta Metadata
		want bool
	}{
		{name: "match", meta: Metadata{Country: CountryUganda, Phase: 2}, want: true},
		{name: "wrong phase", meta: Metadata{Country: CountryKenya, Phase: 1}, want: false},
		{name: "wrong country", meta: Metadata{Country: CountryGhana, Phase: 2}, want: false},
		{name: "missing facet", meta: Metadata{Phase: 2}, want: false},
		{name: "survey unconstrained", meta: Metadata{Country: CountryKenya, Phase: 2, SurveyType: SurveyMidline}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := filter.Matches(tc.meta); got != tc.want {
				t.Fatalf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseCountryIsCaseInsensitive(t *testing.T) {
	got, ok := ParseCountry("  tanzania ")
	if !ok || got != CountryTanzania {
		t.Fatalf("expected Tanzania, got %q ok=%v", got, ok)
	}
	if _, ok := ParseCountry("Atlantis"); ok {
		t.Fatalf("expected unknown country to be rejected")
	}
	if len(Countries()) != 20 {
		t.Fatalf("expected 20 countries, got %d", len(Countries()))
	}
}

func TestFilterDecodesLoggedShape(t *testing.T) {
	var filter MetadataFilter
	if err := json.Unmarshal([]byte(`{"country":"Kenya","phase":{"$in":[1,2]}}`), &filter); err != nil {
		t.Fatalf("unmarshal filter: %v", err)
	}
	if !filter.Country.IsEquality() || filter.Country.Values()[0] != CountryKenya {
		t.Fatalf("unexpected country constraint %v", filter.Country.Values())
	}
	if !filter.Phase.IsMembership() || !filter.Phase.Allows(2) || filter.Phase.Allows(3) {
		t.Fatalf("unexpected phase constraint %v", filter.Phase.Values())
	}
	if filter.SurveyType.IsSet() {
		t.Fatalf("survey type must stay unconstrained")
	}

	if err := json.Unmarshal([]byte(`{"phase":"two"}`), &filter); err == nil {
		t.Fatalf("expected error for non-numeric phase")
	}
}
