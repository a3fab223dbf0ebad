// Package handlers implements the REST surface of the engine.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"engram-backend/application/ports"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/api"
	"engram-backend/pkg/auth"
)

var validate = validator.New()

// decode parses and validates a JSON request body
func decode(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// callerFrom pulls the authenticated caller or writes 401
func callerFrom(w http.ResponseWriter, r *http.Request) (ports.Caller, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "missing caller identity")
	}
	return caller, ok
}

// filterRequest is the scope filter shared by read endpoints
type filterRequest struct {
	TenantID   string            `json:"tenantId" validate:"required"`
	OrgID      string            `json:"orgId,omitempty"`
	TeamID     string            `json:"teamId,omitempty"`
	Visibility string            `json:"visibility,omitempty" validate:"omitempty,oneof=private team global"`
	Kind       string            `json:"kind,omitempty" validate:"omitempty,oneof=episodic semantic procedural identity"`
	Extra      map[string]string `json:"extra,omitempty" validate:"max=16"`
}

func (f filterRequest) toFilter() (valueobjects.Filter, error) {
	filter := valueobjects.Filter{
		TenantID: f.TenantID,
		OrgID:    f.OrgID,
		TeamID:   f.TeamID,
		Extra:    f.Extra,
	}
	if f.Visibility != "" {
		vis, err := valueobjects.ParseVisibility(f.Visibility)
		if err != nil {
			return valueobjects.Filter{}, err
		}
		filter.Visibility = vis
	}
	if f.Kind != "" {
		kind, err := valueobjects.ParseMemoryKind(f.Kind)
		if err != nil {
			return valueobjects.Filter{}, err
		}
		filter.Kind = kind
	}
	return filter, filter.Validate()
}

// memoryResponse is the API representation of one memory record
type memoryResponse struct {
	ID             string            `json:"id"`
	LineageID      string            `json:"lineageId"`
	TenantID       string            `json:"tenantId"`
	OrgID          string            `json:"orgId,omitempty"`
	TeamID         string            `json:"teamId,omitempty"`
	Visibility     string            `json:"visibility"`
	Kind           string            `json:"kind"`
	Extra          map[string]string `json:"extra,omitempty"`
	Content        string            `json:"content"`
	Keywords       []string          `json:"keywords,omitempty"`
	Importance     float64           `json:"importance"`
	Reinforcement  int               `json:"reinforcement"`
	Flashbulb      bool              `json:"flashbulb"`
	Verified       bool              `json:"verified"`
	Archived       bool              `json:"archived"`
	EmbeddingStale bool              `json:"embeddingStale"`
	ValidFrom      time.Time         `json:"validFrom"`
	ValidTo        *time.Time        `json:"validTo,omitempty"`
	IsCurrent      bool              `json:"isCurrent"`
	LastAccessedAt time.Time         `json:"lastAccessedAt"`
	CreatedAt      time.Time         `json:"createdAt"`
	Version        int               `json:"version"`
}

func toMemoryResponse(m *entities.Memory) memoryResponse {
	attrs := m.Attributes()
	resp := memoryResponse{
		ID:             m.ID().String(),
		LineageID:      m.LineageID().String(),
		TenantID:       attrs.Scope().TenantID(),
		OrgID:          attrs.Scope().OrgID(),
		TeamID:         attrs.Scope().TeamID(),
		Visibility:     attrs.Visibility().String(),
		Kind:           attrs.Kind().String(),
		Extra:          attrs.Extra(),
		Content:        m.Content(),
		Keywords:       m.Keywords(),
		Importance:     m.Importance(),
		Reinforcement:  m.Reinforcement(),
		Flashbulb:      m.IsFlashbulb(),
		Verified:       m.IsVerified(),
		Archived:       m.IsArchived(),
		EmbeddingStale: m.Embedding().IsStale(),
		ValidFrom:      m.Interval().From(),
		IsCurrent:      m.IsCurrent(),
		LastAccessedAt: m.LastAccessedAt(),
		CreatedAt:      m.CreatedAt(),
		Version:        m.Version(),
	}
	if !m.Interval().IsOpen() {
		to := m.Interval().To()
		resp.ValidTo = &to
	}
	return resp
}

func toMemoryResponses(memories []*entities.Memory) []memoryResponse {
	out := make([]memoryResponse, 0, len(memories))
	for _, m := range memories {
		out = append(out, toMemoryResponse(m))
	}
	return out
}

// tripleResponse is one graph triple
type tripleResponse struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
}

func toTripleResponses(triples []entities.Triple) []tripleResponse {
	out := make([]tripleResponse, 0, len(triples))
	for _, t := range triples {
		out = append(out, tripleResponse{Source: t.Source, Relation: t.Relation, Target: t.Target})
	}
	return out
}
