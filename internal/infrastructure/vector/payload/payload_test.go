package payload

import (
	"encoding/json"
	"testing"
)

func TestFacetAcceptsOnlyExactIntegers(t *testing.T) {
	fields, err := Decode([]byte(`{"a":2,"b":"2","c":2.0,"d":" 2","e":"+2","f":true,"g":null}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := map[string]int{"a": 2, "b": 2, "c": 0, "d": 0, "e": 0, "f": 0, "g": 0, "missing": 0}
	for key, w := range want {
		if got := Facet(fields, key); got != w {
			t.Fatalf("Facet(%q) = %d, want %d", key, got, w)
		}
	}
}

func TestDecodeKeepsNumberText(t *testing.T) {
	fields, err := Decode([]byte(`{"phase":2.0,"chunk_index":3.0,"year":2019}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if n, ok := fields["phase"].(json.Number); !ok || n.String() != "2.0" {
		t.Fatalf("expected json.Number 2.0, got %#v", fields["phase"])
	}
	if Int(fields, "chunk_index") != 3 || Int(fields, "year") != 2019 {
		t.Fatalf("unexpected lenient ints: %v", fields)
	}
}

func TestToPassageKeepsStoredFacets(t *testing.T) {
	fields, err := Decode([]byte(`{"doc_id":"ke-1","country":"KENYA","survey_type":"Endline","phase":"1"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	p := ToPassage("p-1", "text", fields)
	if p.Metadata.Country != "KENYA" || p.Metadata.SurveyType != "Endline" || p.Metadata.Phase != 1 {
		t.Fatalf("unexpected metadata %+v", p.Metadata)
	}
}

func TestDecodeEmptyAndInvalid(t *testing.T) {
	fields, err := Decode(nil)
	if err != nil || len(fields) != 0 {
		t.Fatalf("Decode(nil) = %v, %v", fields, err)
	}
	if _, err := Decode([]byte(`{`)); err == nil {
		t.Fatalf("expected error for truncated metadata")
	}
}
