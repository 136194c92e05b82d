package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
)

const recordTimeout = 2 * time.Second

// RetrieveUseCase runs the hybrid pipeline: analyze, filter, dense and
// keyword search, fusion and optional rerank. Backend failures degrade to
// empty candidate lists; only a blank query is an error.
type RetrieveUseCase struct {
	analyzer ports.QueryAnalyzer
	vector   ports.VectorSearcher
	lexical  ports.LexicalSearcher
	fuser    *RankFuser
	reranker ports.Reranker
	recorder ports.RetrievalRecorder
	observer ports.RetrievalObserver
	logger   *slog.Logger
	now      func() time.Time
}

type RetrieveOption func(*RetrieveUseCase)

func WithRankFuser(fuser *RankFuser) RetrieveOption {
	return func(uc *RetrieveUseCase) {
		if fuser != nil {
			uc.fuser = fuser
		}
	}
}

func WithReranker(reranker ports.Reranker) RetrieveOption {
	return func(uc *RetrieveUseCase) {
		if reranker != nil {
			uc.reranker = reranker
		}
	}
}

func WithRecorder(recorder ports.RetrievalRecorder) RetrieveOption {
	return func(uc *RetrieveUseCase) {
		uc.recorder = recorder
	}
}

func WithObserver(observer ports.RetrievalObserver) RetrieveOption {
	return func(uc *RetrieveUseCase) {
		uc.observer = observer
	}
}

func WithLogger(logger *slog.Logger) RetrieveOption {
	return func(uc *RetrieveUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

func NewRetrieveUseCase(
	analyzer ports.QueryAnalyzer,
	vector ports.VectorSearcher,
	lexical ports.LexicalSearcher,
	opts ...RetrieveOption,
) *RetrieveUseCase {
	uc := &RetrieveUseCase{
		analyzer: analyzer,
		vector:   vector,
		lexical:  lexical,
		fuser:    NewRankFuser(DefaultRRFK, FusionByContent),
		reranker: PassthroughReranker{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *RetrieveUseCase) Analyze(query string) domain.QueryEntities {
	return uc.analyzer.Analyze(query)
}

func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	query string,
	cfg domain.RetrievalConfig,
) (*domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query is required"))
	}

	start := uc.now()
	var timings domain.StageTimings

	stage := uc.now()
	entities := uc.analyzer.Analyze(query)
	filter := domain.FilterFromEntities(entities)
	timings.Analyze = time.Since(stage)
	if filter.IsEmpty() {
		uc.logger.Info("query_unfiltered", "years", entities.Years)
	} else {
		uc.logger.Info("query_entities",
			"countries", entities.Countries,
			"phases", entities.Phases,
			"survey_types", entities.SurveyTypes,
			"years", entities.Years,
		)
	}

	stage = uc.now()
	semantic, vectorOutcome := uc.searchVector(ctx, query, cfg, filter)
	timings.Vector = time.Since(stage)

	stage = uc.now()
	keyword, lexicalOutcome := uc.searchLexical(query, cfg, filter)
	timings.Lexical = time.Since(stage)

	stage = uc.now()
	fused := uc.fuser.Fuse(semantic, keyword)
	timings.Fusion = time.Since(stage)

	stage = uc.now()
	final, rerankOutcome := uc.rerank(ctx, query, fused, cfg)
	timings.Rerank = time.Since(stage)

	status := domain.RetrievalStatusOK
	if len(final) == 0 {
		status = domain.RetrievalStatusNoRelevantPassages
	}

	timings.Total = time.Since(start)
	result := &domain.RetrievalResult{
		Query:    query,
		Entities: entities,
		Filter:   filter,
		Passages: final,
		Status:   status,
		Backends: domain.BackendReport{
			Vector:  vectorOutcome,
			Lexical: lexicalOutcome,
			Rerank:  rerankOutcome,
		},
		Duration: timings.Total,
	}

	uc.logger.Info("retrieval_completed",
		"request_id", domain.RequestIDFromContext(ctx),
		"status", status,
		"semantic", len(semantic),
		"lexical", len(keyword),
		"fused", len(fused),
		"returned", len(final),
		"duration_ms", float64(timings.Total.Microseconds())/1000.0,
	)

	uc.record(ctx, result)
	if uc.observer != nil {
		uc.observer.ObserveRetrieval(result, timings)
	}
	return result, nil
}

func (uc *RetrieveUseCase) searchVector(
	ctx context.Context,
	query string,
	cfg domain.RetrievalConfig,
	filter domain.MetadataFilter,
) ([]domain.Passage, domain.BackendOutcome) {
	if uc.vector == nil {
		return nil, domain.BackendUnavailable
	}
	if cfg.SemanticTopK <= 0 {
		return nil, domain.BackendSkipped
	}

	searchCtx := ctx
	if cfg.VectorTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, cfg.VectorTimeout)
		defer cancel()
	}

	// The call runs apart so a backend that ignores ctx cannot hold the
	// request past its deadline; a late result is dropped.
	type searchResult struct {
		passages []domain.Passage
		err      error
	}
	done := make(chan searchResult, 1)
	go func() {
		passages, err := uc.vector.SimilaritySearch(searchCtx, query, cfg.SemanticTopK, filter)
		done <- searchResult{passages: passages, err: err}
	}()

	var res searchResult
	select {
	case res = <-done:
	case <-searchCtx.Done():
		res.err = searchCtx.Err()
	}

	passages, err := res.passages, res.err
	if err != nil {
		outcome := domain.BackendFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(searchCtx.Err(), context.DeadlineExceeded) {
			outcome = domain.BackendTimeout
		}
		uc.logger.Warn("vector_search_failed", "outcome", outcome, "error", err)
		return nil, outcome
	}
	if len(passages) == 0 {
		return nil, domain.BackendEmpty
	}
	return passages, domain.BackendOK
}

func (uc *RetrieveUseCase) searchLexical(
	query string,
	cfg domain.RetrievalConfig,
	filter domain.MetadataFilter,
) ([]domain.Passage, domain.BackendOutcome) {
	if uc.lexical == nil || !uc.lexical.Ready() {
		return nil, domain.BackendUnavailable
	}
	if cfg.LexicalTopK <= 0 {
		return nil, domain.BackendSkipped
	}
	passages := uc.lexical.Search(query, cfg.LexicalTopK, filter)
	if len(passages) == 0 {
		return nil, domain.BackendEmpty
	}
	return passages, domain.BackendOK
}

func (uc *RetrieveUseCase) rerank(
	ctx context.Context,
	query string,
	fused []domain.Passage,
	cfg domain.RetrievalConfig,
) ([]domain.Passage, domain.BackendOutcome) {
	if !cfg.RerankEnabled || len(fused) == 0 {
		return trimPassages(fused, cfg.FinalTopK), domain.BackendSkipped
	}

	rerankCtx := ctx
	if cfg.RerankTimeout > 0 {
		var cancel context.CancelFunc
		rerankCtx, cancel = context.WithTimeout(ctx, cfg.RerankTimeout)
		defer cancel()
	}
	return uc.reranker.Rerank(rerankCtx, query, fused, cfg.FinalTopK)
}

func (uc *RetrieveUseCase) record(ctx context.Context, result *domain.RetrievalResult) {
	if uc.recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	entry := domain.NewQueryLog(uuid.NewString(), domain.RequestIDFromContext(ctx), result, uc.now().UTC())
	if err := uc.recorder.Record(recordCtx, entry); err != nil {
		uc.logger.Warn("query_log_failed", "query_log_id", entry.ID, "error", fmt.Errorf("record query log: %w", err))
	}
}
