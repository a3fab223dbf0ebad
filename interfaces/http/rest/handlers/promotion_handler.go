package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/application/services"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/api"
)

// PromotionHandler serves the visibility promotion workflow
type PromotionHandler struct {
	promotion *services.PromotionService
	logger    *zap.Logger
}

// NewPromotionHandler creates a promotion handler
func NewPromotionHandler(promotion *services.PromotionService, logger *zap.Logger) *PromotionHandler {
	return &PromotionHandler{promotion: promotion, logger: logger}
}

type proposalResponse struct {
	ID         string     `json:"id"`
	MemoryID   string     `json:"memoryId"`
	TenantID   string     `json:"tenantId"`
	OrgID      string     `json:"orgId,omitempty"`
	ProposerID string     `json:"proposerId"`
	Target     string     `json:"target"`
	Status     string     `json:"status"`
	ReviewerID string     `json:"reviewerId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	DecidedAt  *time.Time `json:"decidedAt,omitempty"`
}

func toProposalResponse(p *entities.Proposal) proposalResponse {
	resp := proposalResponse{
		ID:         p.ID().String(),
		MemoryID:   p.MemoryID().String(),
		TenantID:   p.TenantID(),
		OrgID:      p.OrgID(),
		ProposerID: p.ProposerID(),
		Target:     p.Target().String(),
		Status:     string(p.Status()),
		ReviewerID: p.ReviewerID(),
		CreatedAt:  p.CreatedAt(),
	}
	if !p.DecidedAt().IsZero() {
		decided := p.DecidedAt()
		resp.DecidedAt = &decided
	}
	return resp
}

type suggestRequest struct {
	MemoryID string `json:"memoryId" validate:"required"`
	Target   string `json:"target" validate:"required,oneof=team global"`
}

// Suggest handles POST /promotions
func (h *PromotionHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req suggestRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	memoryID, err := valueobjects.NewMemoryIDFromString(req.MemoryID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	target, err := valueobjects.ParseVisibility(req.Target)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	proposal, err := h.promotion.Suggest(r.Context(), caller, memoryID, target)
	if err != nil {
		h.logger.Warn("promotion suggest failed", zap.String("memoryId", req.MemoryID), zap.Error(err))
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, toProposalResponse(proposal))
}

// ListPending handles GET /promotions/pending?org={orgID}
func (h *PromotionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	orgID := r.URL.Query().Get("org")
	if orgID == "" {
		orgID = caller.OrgID
	}

	proposals, err := h.promotion.ListPending(r.Context(), caller, orgID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]proposalResponse, 0, len(proposals))
	for _, p := range proposals {
		out = append(out, toProposalResponse(p))
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"proposals": out})
}

// Approve handles POST /promotions/{id}/approve
func (h *PromotionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.promotion.Approve)
}

// Reject handles POST /promotions/{id}/reject
func (h *PromotionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.promotion.Reject)
}

func (h *PromotionHandler) decide(
	w http.ResponseWriter,
	r *http.Request,
	decision func(ctx context.Context, caller ports.Caller, id valueobjects.ProposalID) (*entities.Proposal, error),
) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	proposalID, err := valueobjects.NewProposalIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	proposal, err := decision(r.Context(), caller, proposalID)
	if err != nil {
		h.logger.Warn("promotion decision failed", zap.String("proposalId", proposalID.String()), zap.Error(err))
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, toProposalResponse(proposal))
}
