package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

func TestAnalyzeCommandPrintsFilter(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"analyze", "Kenya", "phase", "2", "endline", "2019"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var got struct {
		Query    string               `json:"query"`
		Entities domain.QueryEntities `json:"entities"`
		Filter   map[string]any       `json:"filter"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if got.Query != "Kenya phase 2 endline 2019" {
		t.Fatalf("unexpected query %q", got.Query)
	}
	if got.Filter["country"] != "Kenya" || got.Filter["survey_type"] != "endline" {
		t.Fatalf("unexpected filter %v", got.Filter)
	}
	if len(got.Entities.Years) != 1 || got.Entities.Years[0] != 2019 {
		t.Fatalf("expected year to be extracted, got %v", got.Entities.Years)
	}
	if _, ok := got.Filter["year"]; ok {
		t.Fatalf("years must not be part of the filter")
	}
}

func TestAnalyzeCommandRequiresQuery(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"analyze"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected error without a query")
	}
}

func TestPrintResultNoPassages(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, &domain.RetrievalResult{
		Query:  "q",
		Status: domain.RetrievalStatusNoRelevantPassages,
		Backends: domain.BackendReport{
			Vector: domain.BackendFailed, Lexical: domain.BackendEmpty, Rerank: domain.BackendSkipped,
		},
	})
	if !strings.Contains(out.String(), "no relevant passages found") || !strings.Contains(out.String(), "vector=failed") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestPrintResultListsCitations(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, &domain.RetrievalResult{
		Query:  "q",
		Status: domain.RetrievalStatusOK,
		Passages: []domain.Passage{
			{DocumentID: "gh-1", Text: "Poverty prevalence declined.", Metadata: domain.Metadata{Title: "Ghana Interim Report", OnlineURL: "https://example.org/gh-1.pdf"}},
		},
	})
	text := out.String()
	if !strings.Contains(text, "[1] Ghana Interim Report (gh-1)") || !strings.Contains(text, "https://example.org/gh-1.pdf") {
		t.Fatalf("unexpected output %q", text)
	}
}
