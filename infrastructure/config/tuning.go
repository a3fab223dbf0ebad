package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	domaincfg "engram-backend/domain/config"
)

// Tuning is the runtime-changeable slice of the domain configuration. It is
// loaded from a YAML file and hot-reloaded by the TuningWatcher; zero values
// mean "keep the default".
type Tuning struct {
	Fusion struct {
		RRFConstant      float64 `yaml:"rrfConstant"`
		SemanticWeight   float64 `yaml:"semanticWeight"`
		KeywordWeight    float64 `yaml:"keywordWeight"`
		CandidateFactor  int     `yaml:"candidateFactor"`
		OversampleFactor int     `yaml:"oversampleFactor"`
	} `yaml:"fusion"`

	Recollection struct {
		SimilarityWeight float64       `yaml:"similarityWeight"`
		ImportanceWeight float64       `yaml:"importanceWeight"`
		RecencyWeight    float64       `yaml:"recencyWeight"`
		RecencyHalfLife  time.Duration `yaml:"recencyHalfLife"`
		AssociationLimit int           `yaml:"associationLimit"`
	} `yaml:"recollection"`

	Lifecycle struct {
		DecayFactor        float64       `yaml:"decayFactor"`
		DecayThreshold     time.Duration `yaml:"decayThreshold"`
		ImportanceFloor    float64       `yaml:"importanceFloor"`
		ClusterThreshold   float64       `yaml:"clusterThreshold"`
		ReinforcementBoost float64       `yaml:"reinforcementBoost"`
	} `yaml:"lifecycle"`

	Ingestion struct {
		SurpriseThreshold  float64 `yaml:"surpriseThreshold"`
		FlashbulbThreshold float64 `yaml:"flashbulbThreshold"`
		SurpriseNeighbors  int     `yaml:"surpriseNeighbors"`
		DefaultImportance  float64 `yaml:"defaultImportance"`
	} `yaml:"ingestion"`

	Metadata struct {
		Version   string `yaml:"version"`
		UpdatedBy string `yaml:"updatedBy"`
	} `yaml:"metadata"`
}

// LoadTuning loads a tuning overlay from a YAML file
func LoadTuning(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning YAML: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate rejects tuning values that would break the algorithms
func (t *Tuning) Validate() error {
	if t.Fusion.RRFConstant < 0 {
		return fmt.Errorf("rrfConstant cannot be negative")
	}
	if t.Fusion.CandidateFactor < 0 || t.Fusion.OversampleFactor < 0 {
		return fmt.Errorf("candidate and oversample factors cannot be negative")
	}
	if bad01(t.Recollection.SimilarityWeight) || bad01(t.Recollection.ImportanceWeight) || bad01(t.Recollection.RecencyWeight) {
		return fmt.Errorf("composite weights must be in [0, 1]")
	}
	if t.Lifecycle.DecayFactor < 0 || t.Lifecycle.DecayFactor > 1 {
		return fmt.Errorf("decayFactor must be in [0, 1]")
	}
	if bad01(t.Lifecycle.ImportanceFloor) || bad01(t.Lifecycle.ClusterThreshold) {
		return fmt.Errorf("importanceFloor and clusterThreshold must be in [0, 1]")
	}
	if bad01(t.Ingestion.SurpriseThreshold) || bad01(t.Ingestion.FlashbulbThreshold) {
		return fmt.Errorf("surprise thresholds must be in [0, 1]")
	}
	if t.Ingestion.FlashbulbThreshold > t.Ingestion.SurpriseThreshold &&
		t.Ingestion.SurpriseThreshold != 0 {
		return fmt.Errorf("flashbulbThreshold cannot exceed surpriseThreshold")
	}
	return nil
}

// Apply overlays the non-zero tuning values onto a copy of the base domain
// configuration
func (t *Tuning) Apply(base *domaincfg.DomainConfig) *domaincfg.DomainConfig {
	if base == nil {
		base = domaincfg.DefaultDomainConfig()
	}
	merged := *base

	if t.Fusion.RRFConstant > 0 {
		merged.RRFConstant = t.Fusion.RRFConstant
	}
	if t.Fusion.SemanticWeight > 0 {
		merged.SemanticWeight = t.Fusion.SemanticWeight
	}
	if t.Fusion.KeywordWeight > 0 {
		merged.KeywordWeight = t.Fusion.KeywordWeight
	}
	if t.Fusion.CandidateFactor > 0 {
		merged.CandidateFactor = t.Fusion.CandidateFactor
	}
	if t.Fusion.OversampleFactor > 0 {
		merged.OversampleFactor = t.Fusion.OversampleFactor
	}

	if t.Recollection.SimilarityWeight > 0 {
		merged.SimilarityWeight = t.Recollection.SimilarityWeight
	}
	if t.Recollection.ImportanceWeight > 0 {
		merged.ImportanceWeight = t.Recollection.ImportanceWeight
	}
	if t.Recollection.RecencyWeight > 0 {
		merged.RecencyWeight = t.Recollection.RecencyWeight
	}
	if t.Recollection.RecencyHalfLife > 0 {
		merged.RecencyHalfLife = t.Recollection.RecencyHalfLife
	}
	if t.Recollection.AssociationLimit > 0 {
		merged.AssociationLimit = t.Recollection.AssociationLimit
	}

	if t.Lifecycle.DecayFactor > 0 {
		merged.DecayFactor = t.Lifecycle.DecayFactor
	}
	if t.Lifecycle.DecayThreshold > 0 {
		merged.DecayThreshold = t.Lifecycle.DecayThreshold
	}
	if t.Lifecycle.ImportanceFloor > 0 {
		merged.ImportanceFloor = t.Lifecycle.ImportanceFloor
	}
	if t.Lifecycle.ClusterThreshold > 0 {
		merged.ClusterThreshold = t.Lifecycle.ClusterThreshold
	}
	if t.Lifecycle.ReinforcementBoost > 0 {
		merged.ReinforcementBoost = t.Lifecycle.ReinforcementBoost
	}

	if t.Ingestion.SurpriseThreshold > 0 {
		merged.SurpriseThreshold = t.Ingestion.SurpriseThreshold
	}
	if t.Ingestion.FlashbulbThreshold > 0 {
		merged.FlashbulbThreshold = t.Ingestion.FlashbulbThreshold
	}
	if t.Ingestion.SurpriseNeighbors > 0 {
		merged.SurpriseNeighbors = t.Ingestion.SurpriseNeighbors
	}
	if t.Ingestion.DefaultImportance > 0 {
		merged.DefaultImportance = t.Ingestion.DefaultImportance
	}

	return &merged
}

func bad01(v float64) bool {
	return v < 0 || v > 1
}
