// Package config holds the tunable constants of the domain model. Values are
// defaults; the infrastructure config layer may override them per deployment.
package config

import "time"

// DomainConfig carries the knobs the retrieval and curation algorithms read.
type DomainConfig struct {
	// Fusion
	RRFConstant      float64
	SemanticWeight   float64
	KeywordWeight    float64
	CandidateFactor  int // candidate pool = factor * requested count per ranking
	OversampleFactor int // recollection oversampling of the fused pool

	// Recollection composite
	SimilarityWeight float64
	ImportanceWeight float64
	RecencyWeight    float64
	RecencyHalfLife  time.Duration
	AssociationLimit int

	// Lifecycle
	DecayFactor        float64
	DecayThreshold     time.Duration
	ImportanceFloor    float64
	ClusterThreshold   float64
	ReinforcementBoost float64

	// Ingestion / surprise
	SurpriseThreshold  float64
	FlashbulbThreshold float64
	SurpriseNeighbors  int
	DefaultImportance  float64

	// Embedding refresh
	EmbeddingDimension int
	MaxRefreshAttempts int
}

// DefaultDomainConfig returns the stock tuning
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		RRFConstant:      60,
		SemanticWeight:   1.0,
		KeywordWeight:    1.0,
		CandidateFactor:  2,
		OversampleFactor: 3,

		SimilarityWeight: 0.5,
		ImportanceWeight: 0.3,
		RecencyWeight:    0.2,
		RecencyHalfLife:  30 * 24 * time.Hour,
		AssociationLimit: 5,

		DecayFactor:        0.95,
		DecayThreshold:     7 * 24 * time.Hour,
		ImportanceFloor:    0.1,
		ClusterThreshold:   0.95,
		ReinforcementBoost: 0.1,

		SurpriseThreshold:  0.92,
		FlashbulbThreshold: 0.60,
		SurpriseNeighbors:  5,
		DefaultImportance:  1.0,

		EmbeddingDimension: 1536,
		MaxRefreshAttempts: 3,
	}
}
