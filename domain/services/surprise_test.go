package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSurpriseEvaluate(t *testing.T) {
	engine := NewSurpriseEngine(0.95, 0.3)

	tests := []struct {
		name      string
		neighbors []Neighbor
		want      SurpriseVerdict
	}{
		{
			name:      "no neighbors is maximally surprising",
			neighbors: nil,
			want:      SurpriseVerdict{Surprising: true, Flashbulb: true},
		},
		{
			name: "near-duplicate at threshold",
			neighbors: []Neighbor{
				{ID: "mem-1", Similarity: 0.95},
			},
			want: SurpriseVerdict{Surprising: false, NearestID: "mem-1"},
		},
		{
			name: "near-duplicate above threshold",
			neighbors: []Neighbor{
				{ID: "mem-1", Similarity: 0.99},
			},
			want: SurpriseVerdict{Surprising: false, NearestID: "mem-1"},
		},
		{
			name: "novel but familiar territory",
			neighbors: []Neighbor{
				{ID: "mem-1", Similarity: 0.6},
			},
			want: SurpriseVerdict{Surprising: true, Flashbulb: false},
		},
		{
			name: "unlike anything stored",
			neighbors: []Neighbor{
				{ID: "mem-1", Similarity: 0.1},
			},
			want: SurpriseVerdict{Surprising: true, Flashbulb: true},
		},
		{
			name: "best neighbor wins regardless of position",
			neighbors: []Neighbor{
				{ID: "mem-1", Similarity: 0.2},
				{ID: "mem-2", Similarity: 0.97},
				{ID: "mem-3", Similarity: 0.5},
			},
			want: SurpriseVerdict{Surprising: false, NearestID: "mem-2"},
		},
		{
			name: "flashbulb boundary is exclusive",
			neighbors: []Neighbor{
				{ID: "mem-1", Similarity: 0.3},
			},
			want: SurpriseVerdict{Surprising: true, Flashbulb: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Evaluate(tt.neighbors))
		})
	}
}
