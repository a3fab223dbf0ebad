package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryTerms(t *testing.T) {
	rs := NewDefaultRelevanceScorer(nil, nil)

	terms := rs.QueryTerms("How do we deploy the billing service?")
	assert.True(t, terms["deploy"])
	assert.True(t, terms["billing"])
	assert.True(t, terms["service"])

	// Stop words and short words fall out
	assert.False(t, terms["the"])
	assert.False(t, terms["how"])
	assert.False(t, terms["do"])
}

func TestRelevanceScore(t *testing.T) {
	rs := NewDefaultRelevanceScorer(nil, nil)

	query := rs.QueryTerms("deploy billing service")
	require.NotEmpty(t, query)

	exact := rs.Score(query, []string{"deploy", "billing", "service"})
	partial := rs.Score(query, []string{"deploy", "metrics", "dashboard"})
	miss := rs.Score(query, []string{"kitchen", "recipes"})

	assert.InDelta(t, 1.0, exact, 1e-9)
	assert.Greater(t, exact, partial)
	assert.Greater(t, partial, miss)
	assert.Equal(t, 0.0, miss)
}

func TestRelevanceScoreEmptyInputs(t *testing.T) {
	rs := NewDefaultRelevanceScorer(nil, nil)

	assert.Equal(t, 0.0, rs.Score(nil, []string{"deploy"}))
	assert.Equal(t, 0.0, rs.Score(map[string]bool{"deploy": true}, nil))

	// Keywords below the minimum word length contribute nothing
	assert.Equal(t, 0.0, rs.Score(map[string]bool{"deploy": true}, []string{"ab"}))
}

func TestRelevanceScoreNormalizesKeywords(t *testing.T) {
	rs := NewDefaultRelevanceScorer(nil, nil)
	query := rs.QueryTerms("deploy")

	upper := rs.Score(query, []string{"  DEPLOY  "})
	lower := rs.Score(query, []string{"deploy"})
	assert.Equal(t, lower, upper)
	assert.Greater(t, upper, 0.0)
}

func TestTextAnalyzerTokenize(t *testing.T) {
	ta := NewDefaultTextAnalyzer()

	words := ta.TokenizeWords("Retry-loop hit the rate limit at 09:30!")
	assert.True(t, words["retry"])
	assert.True(t, words["loop"])
	assert.True(t, words["rate"])
	assert.True(t, words["limit"])
	assert.True(t, words["30"])

	// Single characters are skipped
	assert.False(t, words["a"])
}

func TestTextAnalyzerExtractKeywords(t *testing.T) {
	ta := NewDefaultTextAnalyzer()

	keywords := ta.ExtractKeywords("The incident was caused by the cache eviction policy")
	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		set[kw] = true
	}

	assert.True(t, set["incident"])
	assert.True(t, set["cache"])
	assert.True(t, set["eviction"])
	assert.True(t, set["policy"])
	assert.False(t, set["the"])
	assert.False(t, set["was"])
}
