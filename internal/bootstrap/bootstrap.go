package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/kirillkom/pbs-retrieval/internal/adapters/http"
	"github.com/kirillkom/pbs-retrieval/internal/config"
	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
	"github.com/kirillkom/pbs-retrieval/internal/core/usecase"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/embcache"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/lexical"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/llm/ollama"
	openaiemb "github.com/kirillkom/pbs-retrieval/internal/infrastructure/llm/openai"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/querylog"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/rerank/crossencoder"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/resilience"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/vector/pgvector"
	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/pbs-retrieval/internal/observability/metrics"
)

const startupIndexTimeout = 2 * time.Minute

type vectorStore interface {
	ports.VectorSearcher
	ports.PassageSource
	Ping(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// App holds the wired retrieval service.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Registry       *prometheus.Registry
	HTTPMetrics    *metrics.HTTPServerMetrics
	BreakerMetrics *metrics.BreakerMetrics

	Analyzer     *usecase.QueryAnalyzer
	Retriever    *usecase.RetrieveUseCase
	IndexBuilder *usecase.IndexBuildUseCase
	Index        *lexical.Index
	Reranker     *usecase.ModelReranker

	readiness []httpadapter.RouterOption
	db        *sql.DB
	closers   []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: metrics.NewRegistry(),
	}
	app.HTTPMetrics = metrics.NewHTTPServerMetrics(cfg.ServiceName, app.Registry)
	app.BreakerMetrics = metrics.NewBreakerMetrics(cfg.ServiceName, app.Registry)

	embedder, embedPing := app.buildEmbedder(cfg)
	app.addReadiness("embedder", embedPing)

	store, err := app.buildVectorStore(cfg, embedder)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.addReadiness("vector_store", store.Ping)

	app.Analyzer = usecase.NewQueryAnalyzer(usecase.AnalyzerConfig{
		Countries:   cfg.ExtractCountries,
		Phases:      cfg.ExtractPhases,
		SurveyTypes: cfg.ExtractSurveyTypes,
		Years:       cfg.ExtractYears,
	})

	indexOpts := []lexical.Option{lexical.WithLogger(logger)}
	if cfg.IndexPoolSize > 0 {
		indexOpts = append(indexOpts, lexical.WithPoolSize(cfg.IndexPoolSize))
	}
	app.Index = lexical.NewIndex(indexOpts...)
	app.IndexBuilder = usecase.NewIndexBuildUseCase(
		store,
		app.Index,
		metrics.NewIndexMetrics(cfg.ServiceName, app.Registry),
		logger,
	)

	opts := []usecase.RetrieveOption{
		usecase.WithRankFuser(usecase.NewRankFuser(cfg.FusionRRFK, usecase.ParseFusionIdentity(cfg.FusionIdentity))),
		usecase.WithObserver(metrics.NewRetrievalMetrics(cfg.ServiceName, app.Registry)),
		usecase.WithLogger(logger),
	}
	if reranker := app.buildReranker(ctx, cfg); reranker != nil {
		app.Reranker = reranker
		opts = append(opts, usecase.WithReranker(reranker))
	}
	if recorder := app.buildRecorder(ctx, cfg); recorder != nil {
		opts = append(opts, usecase.WithRecorder(recorder))
	}
	app.Retriever = usecase.NewRetrieveUseCase(app.Analyzer, store, app.Index, opts...)

	app.buildInitialIndex(ctx)
	return app, nil
}

// RetrievalDefaults is the per-call configuration used when a caller does
// not override it.
func (a *App) RetrievalDefaults() domain.RetrievalConfig {
	return domain.RetrievalConfig{
		SemanticTopK:  a.Config.SemanticTopK,
		LexicalTopK:   a.Config.LexicalTopK,
		FinalTopK:     a.Config.FinalTopK,
		RerankEnabled: a.Config.RerankEnabled,
		VectorTimeout: a.Config.VectorTimeout,
		RerankTimeout: a.Config.RerankTimeout,
	}
}

func (a *App) Router() *httpadapter.Router {
	opts := append([]httpadapter.RouterOption{
		httpadapter.WithMetrics(a.HTTPMetrics),
		httpadapter.WithLogger(a.Logger),
	}, a.readiness...)
	return httpadapter.NewRouter(a.Config, a.Retriever, a.Analyzer, a.IndexBuilder, a.Index, opts...)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) addReadiness(name string, check func(context.Context) error) {
	if check != nil {
		a.readiness = append(a.readiness, httpadapter.WithReadinessCheck(name, check))
	}
}

func (a *App) executor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.RetryMaxAttempts = a.Config.RetryMaxAttempts
	cfg.AttemptTimeout = a.Config.AttemptTimeout
	cfg.BreakerEnabled = a.Config.BreakerEnabled
	opts := []resilience.ExecutorOption{resilience.WithLogger(a.Logger)}
	if a.BreakerMetrics != nil {
		opts = append(opts, resilience.WithStateObserver(a.BreakerMetrics.ObserveState))
	}
	return resilience.NewExecutor(cfg, opts...)
}

func (a *App) buildEmbedder(cfg config.Config) (ports.Embedder, func(context.Context) error) {
	var (
		embedder ports.Embedder
		probe    pinger
		model    string
	)
	switch cfg.EmbeddingProvider {
	case "openai":
		e := openaiemb.NewEmbedder(openaiemb.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIEmbedModel,
			Dimensions: cfg.EmbeddingDimensions,
		})
		embedder, probe, model = e, e, cfg.OpenAIEmbedModel
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.WithExecutor(a.executor()))
		embedder, probe, model = ollama.NewEmbedder(client), client, cfg.OllamaEmbedModel
	}

	if !cfg.EmbedCacheEnabled {
		return embedder, probe.Ping
	}
	redisStore, err := embcache.NewRedisStore(embcache.RedisConfig{
		Addrs:    cfg.RedisAddrs,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.EmbedCacheTTL,
	})
	if err != nil {
		a.Logger.Warn("embedding_cache_disabled", "error", err)
		return embedder, probe.Ping
	}
	a.closers = append(a.closers, redisStore.Close)
	a.Logger.Info("embedding_cache_enabled", "addrs", cfg.RedisAddrs, "ttl", cfg.EmbedCacheTTL)

	cached := embcache.New(embedder, redisStore, model, metrics.NewEmbeddingCacheCounter(a.Registry), a.Logger)
	return cached, probe.Ping
}

func (a *App) buildVectorStore(cfg config.Config, embedder ports.Embedder) (vectorStore, error) {
	switch cfg.VectorBackend {
	case "qdrant":
		a.Logger.Info("vector_backend", "backend", "qdrant", "url", cfg.QdrantURL, "collection", cfg.VectorCollection)
		return qdrant.New(cfg.QdrantURL, cfg.VectorCollection, embedder), nil
	default:
		db, err := a.database(cfg)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("vector_backend", "backend", "pgvector", "collection", cfg.VectorCollection)
		return pgvector.New(db, embedder, cfg.VectorCollection), nil
	}
}

func (a *App) database(cfg config.Config) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := postgres.OpenDB(config.NormalizeDatabaseURL(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })
	return db, nil
}

func (a *App) buildReranker(ctx context.Context, cfg config.Config) *usecase.ModelReranker {
	if !cfg.RerankEnabled {
		return nil
	}
	client := crossencoder.New(cfg.RerankerURL, crossencoder.WithExecutor(a.executor()))
	reranker := usecase.NewModelReranker(client, cfg.RerankerModel, a.Logger)

	timeout := cfg.RerankTimeout
	if timeout <= 0 {
		timeout = domain.DefaultRetrievalConfig().RerankTimeout
	}
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := reranker.Load(loadCtx); err != nil {
		a.Logger.Warn("reranker_load_failed", "model", cfg.RerankerModel, "error", err)
	}
	return reranker
}

func (a *App) buildRecorder(ctx context.Context, cfg config.Config) ports.RetrievalRecorder {
	if !cfg.LogQueries {
		return nil
	}
	fanout := querylog.NewFanout()

	if repo, err := a.queryLogRepository(ctx, cfg); err != nil {
		a.Logger.Warn("query_log_postgres_disabled", "error", err)
	} else {
		fanout.Add("postgres", repo)
	}

	if cfg.NATSURL != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: a.executor(),
			Logger:             a.Logger,
		})
		if err != nil {
			a.Logger.Warn("query_log_nats_disabled", "error", err)
		} else {
			a.closers = append(a.closers, queue.Close)
			fanout.Add("nats", queue)
		}
	}

	if fanout.Len() == 0 {
		return nil
	}
	return fanout
}

func (a *App) queryLogRepository(ctx context.Context, cfg config.Config) (*postgres.QueryLogRepository, error) {
	db, err := a.database(cfg)
	if err != nil {
		return nil, err
	}
	repo := postgres.NewQueryLogRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure query log schema: %w", err)
	}
	return repo, nil
}

// buildInitialIndex seeds the keyword index. Failure is logged and retrieval
// continues on dense search until a rebuild succeeds.
func (a *App) buildInitialIndex(ctx context.Context) {
	buildCtx, cancel := context.WithTimeout(ctx, startupIndexTimeout)
	defer cancel()
	if _, err := a.IndexBuilder.Rebuild(buildCtx); err != nil {
		a.Logger.Warn("keyword_index_startup_build_failed", "error", err)
	}
}
