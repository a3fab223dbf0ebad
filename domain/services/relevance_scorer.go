package services

import (
	"math"
	"strings"
)

// RelevanceScorer scores how well a memory's derived keywords match a query
// text. This is the keyword leg of fusion search.
type RelevanceScorer interface {
	// Score returns a relevance score in [0, 1] for one document
	Score(queryTerms map[string]bool, keywords []string) float64

	// QueryTerms extracts the match set from raw query text
	QueryTerms(queryText string) map[string]bool
}

// RelevanceConfig configures keyword relevance scoring
type RelevanceConfig struct {
	JaccardWeight float64 // Weight of the Jaccard component
	CosineWeight  float64 // Weight of the binary-cosine component
	MinWordLength int     // Minimum word length to consider
}

// DefaultRelevanceConfig returns a balanced default configuration
func DefaultRelevanceConfig() *RelevanceConfig {
	return &RelevanceConfig{
		JaccardWeight: 0.5,
		CosineWeight:  0.5,
		MinWordLength: 3,
	}
}

// DefaultRelevanceScorer combines Jaccard overlap with binary cosine
// similarity over keyword sets
type DefaultRelevanceScorer struct {
	config       *RelevanceConfig
	textAnalyzer TextAnalyzer
}

// NewDefaultRelevanceScorer creates a relevance scorer
func NewDefaultRelevanceScorer(config *RelevanceConfig, textAnalyzer TextAnalyzer) *DefaultRelevanceScorer {
	if config == nil {
		config = DefaultRelevanceConfig()
	}
	if textAnalyzer == nil {
		textAnalyzer = NewDefaultTextAnalyzer()
	}
	return &DefaultRelevanceScorer{
		config:       config,
		textAnalyzer: textAnalyzer,
	}
}

// QueryTerms extracts the match set from raw query text
func (rs *DefaultRelevanceScorer) QueryTerms(queryText string) map[string]bool {
	terms := make(map[string]bool)
	for _, kw := range rs.textAnalyzer.ExtractKeywords(queryText) {
		if len(kw) >= rs.config.MinWordLength {
			terms[strings.ToLower(kw)] = true
		}
	}
	return terms
}

// Score returns a relevance score in [0, 1] for one document
func (rs *DefaultRelevanceScorer) Score(queryTerms map[string]bool, keywords []string) float64 {
	if len(queryTerms) == 0 || len(keywords) == 0 {
		return 0.0
	}

	docTerms := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		normalized := strings.ToLower(strings.TrimSpace(kw))
		if len(normalized) >= rs.config.MinWordLength {
			docTerms[normalized] = true
		}
	}
	if len(docTerms) == 0 {
		return 0.0
	}

	jaccard := jaccardSimilarity(queryTerms, docTerms)
	cosine := binaryCosineSimilarity(queryTerms, docTerms)

	score := jaccard*rs.config.JaccardWeight + cosine*rs.config.CosineWeight
	return math.Min(score, 1.0)
}

// jaccardSimilarity calculates Jaccard index: |A ∩ B| / |A ∪ B|
func jaccardSimilarity(set1, set2 map[string]bool) float64 {
	intersection := 0
	union := make(map[string]bool)

	for key := range set1 {
		union[key] = true
		if set2[key] {
			intersection++
		}
	}
	for key := range set2 {
		union[key] = true
	}

	if len(union) == 0 {
		return 0.0
	}
	return float64(intersection) / float64(len(union))
}

// binaryCosineSimilarity treats the sets as binary vectors
func binaryCosineSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	dotProduct := 0
	for key := range set1 {
		if set2[key] {
			dotProduct++
		}
	}

	magnitude1 := math.Sqrt(float64(len(set1)))
	magnitude2 := math.Sqrt(float64(len(set2)))
	if magnitude1 == 0 || magnitude2 == 0 {
		return 0.0
	}

	return float64(dotProduct) / (magnitude1 * magnitude2)
}
