package lexical

import (
	"math"
	"strings"
)

// Okapi BM25 parameters matching rank_bm25's BM25Okapi defaults.
const (
	DefaultK1      = 1.5
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

type bm25Params struct {
	k1      float64
	b       float64
	epsilon float64
}

// corpusStats holds the per-document term frequencies and the derived idf
// table of one immutable index generation.
type corpusStats struct {
	termFreqs []map[string]int
	docLens   []int
	avgdl     float64
	idf       map[string]float64
}

func newCorpusStats(termFreqs []map[string]int, params bm25Params) *corpusStats {
	stats := &corpusStats{
		termFreqs: termFreqs,
		docLens:   make([]int, len(termFreqs)),
		idf:       make(map[string]float64),
	}

	docFreq := make(map[string]int)
	totalLen := 0
	for i, freqs := range termFreqs {
		n := 0
		for term, count := range freqs {
			n += count
			docFreq[term]++
		}
		stats.docLens[i] = n
		totalLen += n
	}
	if len(termFreqs) > 0 {
		stats.avgdl = float64(totalLen) / float64(len(termFreqs))
	}

	// Terms present in more than half the corpus get a negative idf; those
	// are floored to epsilon times the mean idf.
	corpusSize := float64(len(termFreqs))
	idfSum := 0.0
	negative := make([]string, 0)
	for term, df := range docFreq {
		idf := math.Log(corpusSize-float64(df)+0.5) - math.Log(float64(df)+0.5)
		stats.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	if len(docFreq) > 0 {
		floor := params.epsilon * (idfSum / float64(len(docFreq)))
		for _, term := range negative {
			stats.idf[term] = floor
		}
	}
	return stats
}

// scores returns the BM25 score of every document for the query tokens.
// Repeated query tokens contribute once per occurrence.
func (s *corpusStats) scores(queryTokens []string, params bm25Params) []float64 {
	out := make([]float64, len(s.termFreqs))
	if s.avgdl == 0 {
		return out
	}
	for _, token := range queryTokens {
		idf, ok := s.idf[token]
		if !ok || idf == 0 {
			continue
		}
		for i, freqs := range s.termFreqs {
			tf := float64(freqs[token])
			if tf == 0 {
				continue
			}
			norm := params.k1 * (1 - params.b + params.b*float64(s.docLens[i])/s.avgdl)
			out[i] += idf * (tf * (params.k1 + 1) / (tf + norm))
		}
	}
	return out
}

// tokenize lowercases text and keeps maximal runs of ASCII letters and digits.
func tokenize(text string) []string {
	lowered := strings.ToLower(text)
	tokens := make([]string, 0, len(lowered)/5+1)
	start := -1
	for i := 0; i < len(lowered); i++ {
		c := lowered[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, lowered[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, lowered[start:])
	}
	return tokens
}

func termFrequencies(tokens []string) map[string]int {
	freqs := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freqs[t]++
	}
	return freqs
}
