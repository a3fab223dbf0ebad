package services

// SurpriseVerdict is the outcome of evaluating a new observation against its
// nearest existing memories
type SurpriseVerdict struct {
	// Surprising is false when the observation is a near-duplicate of an
	// existing memory; the ingestion pipeline reinforces that memory
	// instead of inserting a new one.
	Surprising bool

	// Flashbulb marks an observation so unlike anything stored that it
	// gets pinned against early decay.
	Flashbulb bool

	// NearestID is the best-matching existing memory, set when not
	// surprising.
	NearestID string
}

// SurpriseEngine decides whether an observation is novel enough to store.
type SurpriseEngine struct {
	surpriseThreshold  float64
	flashbulbThreshold float64
}

// NewSurpriseEngine creates an engine with the given thresholds. An
// observation with max neighbor similarity at or above the surprise
// threshold is a duplicate; one below the flashbulb threshold is flashbulb.
func NewSurpriseEngine(surpriseThreshold, flashbulbThreshold float64) *SurpriseEngine {
	return &SurpriseEngine{
		surpriseThreshold:  surpriseThreshold,
		flashbulbThreshold: flashbulbThreshold,
	}
}

// Neighbor is one nearest-memory similarity observation
type Neighbor struct {
	ID         string
	Similarity float64
}

// Evaluate inspects the nearest neighbors of a new observation. With no
// neighbors at all the observation is maximally surprising.
func (se *SurpriseEngine) Evaluate(neighbors []Neighbor) SurpriseVerdict {
	if len(neighbors) == 0 {
		return SurpriseVerdict{Surprising: true, Flashbulb: true}
	}

	best := neighbors[0]
	for _, n := range neighbors[1:] {
		if n.Similarity > best.Similarity {
			best = n
		}
	}

	if best.Similarity >= se.surpriseThreshold {
		return SurpriseVerdict{Surprising: false, NearestID: best.ID}
	}

	return SurpriseVerdict{
		Surprising: true,
		Flashbulb:  best.Similarity < se.flashbulbThreshold,
	}
}
