package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// FacetConstraint restricts a single metadata facet. No values means the
// facet is unconstrained, one value is an equality test and several values a
// membership test.
type FacetConstraint[T comparable] struct {
	values []T
}

// NewFacetConstraint builds a constraint from values, dropping duplicates
// while keeping the first occurrence order.
func NewFacetConstraint[T comparable](values ...T) FacetConstraint[T] {
	out := make([]T, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return FacetConstraint[T]{values: out}
}

func (c FacetConstraint[T]) IsSet() bool { return len(c.values) > 0 }

func (c FacetConstraint[T]) IsEquality() bool { return len(c.values) == 1 }

func (c FacetConstraint[T]) IsMembership() bool { return len(c.values) > 1 }

func (c FacetConstraint[T]) Values() []T {
	return slices.Clone(c.values)
}

// Allows reports whether v satisfies the constraint. An unset constraint
// allows everything.
func (c FacetConstraint[T]) Allows(v T) bool {
	if !c.IsSet() {
		return true
	}
	return slices.Contains(c.values, v)
}

// wireValue renders the constraint as a scalar for equality or as
// {"$in": [...]} for membership.
func (c FacetConstraint[T]) wireValue() any {
	if c.IsEquality() {
		return c.values[0]
	}
	return map[string][]T{"$in": c.Values()}
}

// MetadataFilter is the conjunction of per-facet constraints derived from a
// query. Years are intentionally absent: they are extracted but never used
// to narrow the search.
type MetadataFilter struct {
	Country    FacetConstraint[Country]
	Phase      FacetConstraint[Phase]
	SurveyType FacetConstraint[SurveyRound]
}

// FilterFromEntities derives the filter for a set of extracted entities.
func FilterFromEntities(entities QueryEntities) MetadataFilter {
	return MetadataFilter{
		Country:    NewFacetConstraint(entities.Countries...),
		Phase:      NewFacetConstraint(entities.Phases...),
		SurveyType: NewFacetConstraint(entities.SurveyTypes...),
	}
}

// IsEmpty is true when no facet is constrained.
func (f MetadataFilter) IsEmpty() bool {
	return !f.Country.IsSet() && !f.Phase.IsSet() && !f.SurveyType.IsSet()
}

// Matches reports whether the metadata satisfies every constrained facet.
func (f MetadataFilter) Matches(meta Metadata) bool {
	return f.Country.Allows(meta.Country) &&
		f.Phase.Allows(meta.Phase) &&
		f.SurveyType.Allows(meta.SurveyType)
}

// Facets returns the names of the constrained facets in wire order.
func (f MetadataFilter) Facets() []string {
	out := make([]string, 0, 3)
	if f.Country.IsSet() {
		out = append(out, "country")
	}
	if f.Phase.IsSet() {
		out = append(out, "phase")
	}
	if f.SurveyType.IsSet() {
		out = append(out, "survey_type")
	}
	return out
}

// MarshalJSON emits the facet mapping used by the vector stores and logs,
// e.g. {"country":"Kenya","phase":{"$in":[1,2]}}. An empty filter is {}.
func (f MetadataFilter) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3)
	if f.Country.IsSet() {
		out["country"] = f.Country.wireValue()
	}
	if f.Phase.IsSet() {
		out["phase"] = f.Phase.wireValue()
	}
	if f.SurveyType.IsSet() {
		out["survey_type"] = f.SurveyType.wireValue()
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (f *MetadataFilter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode filter: %w", err)
	}
	var (
		out MetadataFilter
		err error
	)
	if out.Country, err = decodeFacet[Country](raw["country"]); err != nil {
		return fmt.Errorf("decode filter country: %w", err)
	}
	if out.Phase, err = decodeFacet[Phase](raw["phase"]); err != nil {
		return fmt.Errorf("decode filter phase: %w", err)
	}
	if out.SurveyType, err = decodeFacet[SurveyRound](raw["survey_type"]); err != nil {
		return fmt.Errorf("decode filter survey_type: %w", err)
	}
	*f = out
	return nil
}

func decodeFacet[T comparable](raw json.RawMessage) (FacetConstraint[T], error) {
	if len(raw) == 0 || string(raw) == "null" {
		return FacetConstraint[T]{}, nil
	}
	var membership struct {
		In []T `json:"$in"`
	}
	if raw[0] == '{' {
		if err := json.Unmarshal(raw, &membership); err != nil {
			return FacetConstraint[T]{}, err
		}
		return NewFacetConstraint(membership.In...), nil
	}
	var single T
	if err := json.Unmarshal(raw, &single); err != nil {
		return FacetConstraint[T]{}, err
	}
	return NewFacetConstraint(single), nil
}
