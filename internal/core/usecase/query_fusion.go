package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

const DefaultRRFK = 60

// FusionIdentity selects how passages from different lists are matched.
type FusionIdentity string

const (
	// FusionByContent treats byte-identical passage text as the same passage.
	FusionByContent FusionIdentity = "content"
	// FusionByPassage matches on document id and chunk ordinal.
	FusionByPassage FusionIdentity = "passage"
)

func ParseFusionIdentity(raw string) FusionIdentity {
	switch FusionIdentity(strings.ToLower(strings.TrimSpace(raw))) {
	case FusionByPassage:
		return FusionByPassage
	default:
		return FusionByContent
	}
}

// RankFuser merges ranked lists with Reciprocal Rank Fusion.
type RankFuser struct {
	k        int
	identity FusionIdentity
}

func NewRankFuser(k int, identity FusionIdentity) *RankFuser {
	if k <= 0 {
		k = DefaultRRFK
	}
	if identity == "" {
		identity = FusionByContent
	}
	return &RankFuser{k: k, identity: identity}
}

type fusedCandidate struct {
	passage domain.Passage
	score   float64
}

// Fuse scores every passage at 1-based rank r with 1/(r+K) per list and
// returns all distinct passages by descending total. Ties keep first-seen
// order (first list, then position) and the first-seen copy is returned.
func (f *RankFuser) Fuse(lists ...[]domain.Passage) []domain.Passage {
	total := 0
	for _, list := range lists {
		total += len(list)
	}

	order := make([]string, 0, total)
	acc := make(map[string]*fusedCandidate, total)
	for _, list := range lists {
		for rank, passage := range list {
			key := f.key(passage)
			candidate, ok := acc[key]
			if !ok {
				candidate = &fusedCandidate{passage: passage}
				acc[key] = candidate
				order = append(order, key)
			}
			candidate.score += 1.0 / float64(rank+1+f.k)
		}
	}

	out := make([]domain.Passage, 0, len(order))
	for _, key := range order {
		c := acc[key]
		p := c.passage
		p.Score = c.score
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func (f *RankFuser) key(p domain.Passage) string {
	if f.identity == FusionByPassage && p.DocumentID != "" {
		return fmt.Sprintf("%s:%d", p.DocumentID, p.ChunkIndex)
	}
	return p.Text
}

func trimPassages(passages []domain.Passage, limit int) []domain.Passage {
	if limit <= 0 {
		return []domain.Passage{}
	}
	if len(passages) <= limit {
		return passages
	}
	return passages[:limit]
}
