// Package search fuses keyword and semantic evidence into one ranking per repository.
package search

import (
	"sort"

	"github.com/hyperjump/codelens/internal/keyword"
	"github.com/hyperjump/codelens/internal/vector"
)

// FusedResult is one chunk with its weighted score and the two signals behind it.
type FusedResult struct {
	ChunkID       int64
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores divides every BM25 score by the best one, so the top
// keyword hit scores 1. All-zero input maps to zeros.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[int64]float64 {
	best := 0.0
	for _, r := range results {
		if r.Score > best {
			best = r.Score
		}
	}
	out := make(map[int64]float64, len(results))
	for _, r := range results {
		if best > 0 {
			out[r.ID] = r.Score / best
		} else {
			out[r.ID] = 0
		}
	}
	return out
}

// NormalizeSemanticScores clamps cosine similarities into [0,1]; anti-correlated
// chunks contribute nothing.
func NormalizeSemanticScores(results []*vector.VectorResult) map[int64]float64 {
	out := make(map[int64]float64, len(results))
	for _, r := range results {
		out[r.ID] = clamp01(r.Score)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Fuse scores every chunk seen by either signal as
// keywordWeight*keyword + semanticWeight*semantic and orders the result by
// descending score, breaking ties by chunk ID.
func Fuse(keywordScores, semanticScores map[int64]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	byChunk := make(map[int64]*FusedResult, len(keywordScores)+len(semanticScores))
	entry := func(id int64) *FusedResult {
		r, ok := byChunk[id]
		if !ok {
			r = &FusedResult{ChunkID: id}
			byChunk[id] = r
		}
		return r
	}
	for id, s := range keywordScores {
		entry(id).KeywordScore = s
	}
	for id, s := range semanticScores {
		entry(id).SemanticScore = s
	}

	fused := make([]*FusedResult, 0, len(byChunk))
	for _, r := range byChunk {
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		fused = append(fused, r)
	}
	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.Score == b.Score {
			return a.ChunkID < b.ChunkID
		}
		return a.Score > b.Score
	})
	return fused
}

// FilterMinScore keeps results scoring at least minScore, reusing the input's
// backing array. A non-positive minScore keeps everything.
func FilterMinScore(results []*FusedResult, minScore float64) []*FusedResult {
	if minScore <= 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			kept = append(kept, r)
		}
	}
	return kept
}
