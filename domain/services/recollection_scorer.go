package services

import (
	"math"
	"sort"
	"time"
)

// CompositeWeights tunes the recollection blend. The weights are not forced
// to sum to 1; callers tune them freely.
type CompositeWeights struct {
	Similarity float64
	Importance float64
	Recency    float64
}

// ScoredMemory is one candidate entering or leaving composite scoring
type ScoredMemory struct {
	ID             string
	FusedScore     float64
	Importance     float64
	LastAccessedAt time.Time
	Composite      float64
}

// RecollectionScorer re-ranks fused candidates by blending similarity with
// importance and recency.
type RecollectionScorer struct {
	halfLife time.Duration
}

// NewRecollectionScorer creates a scorer with the given recency half-life
func NewRecollectionScorer(halfLife time.Duration) *RecollectionScorer {
	if halfLife <= 0 {
		halfLife = 30 * 24 * time.Hour
	}
	return &RecollectionScorer{halfLife: halfLife}
}

// Recency maps time since last access onto (0, 1] with exponential half-life
// decay: a memory untouched for one half-life scores 0.5.
func (rs *RecollectionScorer) Recency(lastAccessed, now time.Time) float64 {
	elapsed := now.Sub(lastAccessed)
	if elapsed <= 0 {
		return 1.0
	}
	return math.Pow(0.5, float64(elapsed)/float64(rs.halfLife))
}

// Rank computes composite scores for the batch and sorts it descending, ties
// broken by ascending ID. Fused scores are min-max normalized within the
// batch so similarity lands in [0, 1] regardless of list depth.
func (rs *RecollectionScorer) Rank(candidates []ScoredMemory, weights CompositeWeights, now time.Time) []ScoredMemory {
	if len(candidates) == 0 {
		return candidates
	}

	minScore, maxScore := candidates[0].FusedScore, candidates[0].FusedScore
	for _, c := range candidates[1:] {
		if c.FusedScore < minScore {
			minScore = c.FusedScore
		}
		if c.FusedScore > maxScore {
			maxScore = c.FusedScore
		}
	}
	spread := maxScore - minScore

	ranked := make([]ScoredMemory, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		similarity := 1.0 // all candidates equally similar when the batch is flat
		if spread > 0 {
			similarity = (ranked[i].FusedScore - minScore) / spread
		}
		recency := rs.Recency(ranked[i].LastAccessedAt, now)
		ranked[i].Composite = weights.Similarity*similarity +
			weights.Importance*ranked[i].Importance +
			weights.Recency*recency
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		return ranked[i].ID < ranked[j].ID
	})

	return ranked
}
