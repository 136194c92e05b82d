package usecase

import (
	"fmt"
	"math"
	"testing"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

func passagesNamed(prefix string, n int) []domain.Passage {
	out := make([]domain.Passage, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Passage{
			DocumentID: prefix,
			ChunkIndex: i,
			Text:       fmt.Sprintf("%s passage %d", prefix, i),
		})
	}
	return out
}

func TestFuseDisjointListsKeepsEveryPassage(t *testing.T) {
	fuser := NewRankFuser(60, FusionByContent)
	semantic := passagesNamed("vec", 5)
	lexical := passagesNamed("bm25", 5)

	fused := fuser.Fuse(semantic, lexical)
	if len(fused) != 10 {
		t.Fatalf("expected 10 fused passages, got %d", len(fused))
	}
	seen := make(map[string]struct{})
	for i, p := range fused {
		if _, dup := seen[p.Text]; dup {
			t.Fatalf("duplicate passage %q", p.Text)
		}
		seen[p.Text] = struct{}{}
		if i > 0 && fused[i-1].Score < p.Score {
			t.Fatalf("scores not descending at %d", i)
		}
	}
	// Equal ranks tie; first list wins.
	if fused[0].Text != "vec passage 0" || fused[1].Text != "bm25 passage 0" {
		t.Fatalf("unexpected tie-break order: %q, %q", fused[0].Text, fused[1].Text)
	}
}

func TestFuseRewardsConsensus(t *testing.T) {
	fuser := NewRankFuser(60, FusionByContent)
	shared := domain.Passage{DocumentID: "d", ChunkIndex: 9, Text: "shared"}
	semantic := append(passagesNamed("vec", 2), shared)
	lexical := append(passagesNamed("bm25", 2), shared)

	fused := fuser.Fuse(semantic, lexical)
	if len(fused) != 5 {
		t.Fatalf("expected 5 distinct passages, got %d", len(fused))
	}
	if fused[0].Text != "shared" {
		t.Fatalf("expected passage present in both lists first, got %q", fused[0].Text)
	}
	want := 2.0 / 63.0
	if math.Abs(fused[0].Score-want) > 1e-12 {
		t.Fatalf("expected score %f, got %f", want, fused[0].Score)
	}
}

func TestFuseIsCommutativeInScore(t *testing.T) {
	fuser := NewRankFuser(60, FusionByContent)
	a := []domain.Passage{{Text: "x"}, {Text: "y"}, {Text: "z"}}
	b := []domain.Passage{{Text: "z"}, {Text: "w"}}

	scores := func(ps []domain.Passage) map[string]float64 {
		out := make(map[string]float64, len(ps))
		for _, p := range ps {
			out[p.Text] = p.Score
		}
		return out
	}
	ab := scores(fuser.Fuse(a, b))
	ba := scores(fuser.Fuse(b, a))
	if len(ab) != len(ba) {
		t.Fatalf("different passage sets: %v vs %v", ab, ba)
	}
	for text, score := range ab {
		if math.Abs(ba[text]-score) > 1e-12 {
			t.Fatalf("score mismatch for %q: %f vs %f", text, score, ba[text])
		}
	}
}

func TestFuseSingleListReturnsSameOrder(t *testing.T) {
	fuser := NewRankFuser(60, FusionByContent)
	list := passagesNamed("vec", 4)

	fused := fuser.Fuse(list, nil)
	if len(fused) != len(list) {
		t.Fatalf("expected %d passages, got %d", len(list), len(fused))
	}
	for i := range list {
		if fused[i].Text != list[i].Text {
			t.Fatalf("position %d: expected %q, got %q", i, list[i].Text, fused[i].Text)
		}
	}
}

func TestFuseByPassageIdentityMergesReformattedText(t *testing.T) {
	semantic := []domain.Passage{{DocumentID: "doc", ChunkIndex: 3, Text: "Stunting fell."}}
	lexical := []domain.Passage{{DocumentID: "doc", ChunkIndex: 3, Text: "stunting fell"}}

	if got := NewRankFuser(60, FusionByPassage).Fuse(semantic, lexical); len(got) != 1 {
		t.Fatalf("expected passage identity to merge, got %d passages", len(got))
	}
	if got := NewRankFuser(60, FusionByContent).Fuse(semantic, lexical); len(got) != 2 {
		t.Fatalf("expected content identity to keep both, got %d passages", len(got))
	}
}

func TestParseFusionIdentityDefaultsToContent(t *testing.T) {
	if got := ParseFusionIdentity("PASSAGE"); got != FusionByPassage {
		t.Fatalf("expected passage identity, got %q", got)
	}
	if got := ParseFusionIdentity("bogus"); got != FusionByContent {
		t.Fatalf("expected content identity, got %q", got)
	}
}
