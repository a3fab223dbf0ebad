package services

import "sort"

// FusionWeights tunes the contribution of each ranking to the fused score
type FusionWeights struct {
	Semantic float64
	Keyword  float64
}

// FusedResult is one candidate with its reciprocal-rank-fusion score
type FusedResult struct {
	ID    string
	Score float64
}

// RankFuser merges a vector ranking and a keyword ranking with reciprocal
// rank fusion. Rank positions are 1-based; a candidate absent from one list
// simply contributes nothing for that list.
type RankFuser struct {
	k float64
}

// NewRankFuser creates a fuser with the given rank constant (60 is the
// conventional value)
func NewRankFuser(k float64) *RankFuser {
	if k <= 0 {
		k = 60
	}
	return &RankFuser{k: k}
}

// Fuse merges the two rankings and returns every candidate from either list,
// ordered by descending fused score with ties broken by ascending ID.
func (f *RankFuser) Fuse(vectorRanked, keywordRanked []string, weights FusionWeights) []FusedResult {
	scores := make(map[string]float64, len(vectorRanked)+len(keywordRanked))

	for i, id := range vectorRanked {
		scores[id] += weights.Semantic / (f.k + float64(i+1))
	}
	for i, id := range keywordRanked {
		scores[id] += weights.Keyword / (f.k + float64(i+1))
	}

	results := make([]FusedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, FusedResult{ID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results
}
