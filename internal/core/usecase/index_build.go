package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
)

// IndexBuildUseCase seeds the keyword index with every stored passage.
type IndexBuildUseCase struct {
	source   ports.PassageSource
	index    ports.LexicalIndex
	observer ports.IndexObserver
	logger   *slog.Logger
}

func NewIndexBuildUseCase(
	source ports.PassageSource,
	index ports.LexicalIndex,
	observer ports.IndexObserver,
	logger *slog.Logger,
) *IndexBuildUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexBuildUseCase{source: source, index: index, observer: observer, logger: logger}
}

// Rebuild reads the corpus and swaps in a fresh index. On a read failure
// the previous index, if any, keeps serving.
func (uc *IndexBuildUseCase) Rebuild(ctx context.Context) (int, error) {
	start := time.Now()
	if uc.source == nil {
		err := domain.WrapError(domain.ErrUnavailable, "rebuild index", fmt.Errorf("no passage source configured"))
		uc.observe(0, start, err)
		return 0, err
	}

	passages, err := uc.source.AllPassages(ctx)
	if err != nil {
		err = domain.WrapError(domain.ErrUnavailable, "rebuild index", err)
		uc.logger.Error("keyword_index_build_failed", "error", err)
		uc.observe(0, start, err)
		return 0, err
	}

	uc.index.Build(passages)
	uc.logger.Info("keyword_index_built",
		"passages", len(passages),
		"ready", uc.index.Ready(),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	uc.observe(len(passages), start, nil)
	return len(passages), nil
}

func (uc *IndexBuildUseCase) observe(passages int, start time.Time, err error) {
	if uc.observer != nil {
		uc.observer.ObserveIndexBuild(passages, time.Since(start), err)
	}
}
