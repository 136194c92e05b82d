package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

type sourceFake struct {
	passages []domain.Passage
	err      error
}

func (f sourceFake) AllPassages(context.Context) ([]domain.Passage, error) {
	return f.passages, f.err
}

type indexFake struct {
	built []domain.Passage
	calls int
}

func (f *indexFake) Build(passages []domain.Passage) {
	f.calls++
	if len(passages) > 0 {
		f.built = passages
	}
}

func (f *indexFake) Search(string, int, domain.MetadataFilter) []domain.Passage { return nil }

func (f *indexFake) Ready() bool { return len(f.built) > 0 }

type indexObserverFake struct {
	passages int
	err      error
}

func (f *indexObserverFake) ObserveIndexBuild(passages int, _ time.Duration, err error) {
	f.passages = passages
	f.err = err
}

func TestRebuildLoadsCorpusIntoIndex(t *testing.T) {
	index := &indexFake{}
	observer := &indexObserverFake{}
	uc := NewIndexBuildUseCase(sourceFake{passages: passagesNamed("doc", 3)}, index, observer, nil)

	n, err := uc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if n != 3 || len(index.built) != 3 {
		t.Fatalf("expected 3 passages indexed, got n=%d built=%d", n, len(index.built))
	}
	if observer.passages != 3 || observer.err != nil {
		t.Fatalf("unexpected observation: %+v", observer)
	}
}

func TestRebuildSourceFailureLeavesIndexUntouched(t *testing.T) {
	index := &indexFake{}
	uc := NewIndexBuildUseCase(sourceFake{err: errors.New("db down")}, index, nil, nil)

	_, err := uc.Rebuild(context.Background())
	if !domain.IsKind(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if index.calls != 0 {
		t.Fatalf("index must not be rebuilt on source failure")
	}
}
