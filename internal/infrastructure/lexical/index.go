package lexical

import (
	"log/slog"
	"runtime"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

type generation struct {
	passages []domain.Passage
	stats    *corpusStats
}

// Index is an in-memory BM25 keyword index. Builds publish a new immutable
// generation atomically, so searches never block on a rebuild.
type Index struct {
	current  atomic.Pointer[generation]
	params   bm25Params
	poolSize int
	logger   *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithParameters overrides the BM25 k1, b and epsilon constants.
func WithParameters(k1, b, epsilon float64) Option {
	return func(idx *Index) {
		idx.params = bm25Params{k1: k1, b: b, epsilon: epsilon}
	}
}

// WithPoolSize sets the number of tokenization workers used by Build.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(idx *Index) {
		if size < 1 {
			size = 1
		}
		idx.poolSize = size
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

func NewIndex(opts ...Option) *Index {
	idx := &Index{
		params:   bm25Params{k1: DefaultK1, b: DefaultB, epsilon: DefaultEpsilon},
		poolSize: runtime.NumCPU(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Build indexes the passages and replaces the current generation. An empty
// corpus is ignored: the index keeps whatever it served before.
func (idx *Index) Build(passages []domain.Passage) {
	if len(passages) == 0 {
		idx.logger.Warn("keyword_index_empty_corpus", "ready", idx.Ready())
		return
	}

	owned := slices.Clone(passages)
	freqs := idx.tokenizeAll(owned)
	idx.current.Store(&generation{
		passages: owned,
		stats:    newCorpusStats(freqs, idx.params),
	})
}

func (idx *Index) tokenizeAll(passages []domain.Passage) []map[string]int {
	freqs := make([]map[string]int, len(passages))
	work := func(i int) func() {
		return func() {
			freqs[i] = termFrequencies(tokenize(passages[i].Text))
		}
	}

	pool, err := ants.NewPool(idx.poolSize)
	if err != nil {
		idx.logger.Warn("keyword_index_pool_unavailable", "error", err)
		for i := range passages {
			work(i)()
		}
		return freqs
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range passages {
		wg.Add(1)
		task := work(i)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			task()
		}); submitErr != nil {
			task()
			wg.Done()
		}
	}
	wg.Wait()
	return freqs
}

// Ready reports whether a non-empty corpus has been indexed.
func (idx *Index) Ready() bool {
	return idx.current.Load() != nil
}

// Size is the number of indexed passages.
func (idx *Index) Size() int {
	gen := idx.current.Load()
	if gen == nil {
		return 0
	}
	return len(gen.passages)
}

// Search scores every passage, walks them best first and returns up to k
// passages that match the filter. The walk stops at the first non-positive
// score; equal scores keep corpus order.
func (idx *Index) Search(query string, k int, filter domain.MetadataFilter) []domain.Passage {
	gen := idx.current.Load()
	if gen == nil {
		idx.logger.Warn("keyword_index_not_ready")
		return []domain.Passage{}
	}
	if k <= 0 {
		return []domain.Passage{}
	}

	scores := gen.stats.scores(tokenize(query), idx.params)
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	out := make([]domain.Passage, 0, min(k, len(order)))
	for _, i := range order {
		if scores[i] <= 0 {
			break
		}
		p := gen.passages[i]
		if !filter.Matches(p.Metadata) {
			continue
		}
		p.Score = scores[i]
		out = append(out, p)
		if len(out) >= k {
			break
		}
	}
	return out
}
