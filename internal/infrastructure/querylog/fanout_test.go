package querylog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

type recorderFake struct {
	err     error
	entries []domain.QueryLog
}

func (r *recorderFake) Record(_ context.Context, entry domain.QueryLog) error {
	r.entries = append(r.entries, entry)
	return r.err
}

func TestFanoutWritesEverySink(t *testing.T) {
	failing := &recorderFake{err: errors.New("db down")}
	healthy := &recorderFake{}
	f := NewFanout().Add("postgres", failing).Add("nats", healthy).Add("none", nil)

	if f.Len() != 2 {
		t.Fatalf("expected nil sink to be ignored, got %d sinks", f.Len())
	}
	err := f.Record(context.Background(), domain.QueryLog{ID: "log-1"})
	if err == nil || !strings.Contains(err.Error(), "postgres: db down") {
		t.Fatalf("expected named sink error, got %v", err)
	}
	if len(healthy.entries) != 1 || healthy.entries[0].ID != "log-1" {
		t.Fatalf("healthy sink must still receive the entry")
	}
}

func TestFanoutWithoutSinks(t *testing.T) {
	if err := NewFanout().Record(context.Background(), domain.QueryLog{}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}
