package auth

import (
	"context"
	"sync"

	"engram-backend/application/ports"
)

// ClaimsAuthorizer implements ports.Authorizer from token claims. Tenant
// access is strict ownership; reviewer status comes from the reviewer role
// scoped to the caller's organization.
type ClaimsAuthorizer struct{}

// NewClaimsAuthorizer creates the claims-based authorizer
func NewClaimsAuthorizer() *ClaimsAuthorizer {
	return &ClaimsAuthorizer{}
}

var _ ports.Authorizer = (*ClaimsAuthorizer)(nil)

// CanAccess allows a caller into its own tenant scope only
func (a *ClaimsAuthorizer) CanAccess(ctx context.Context, caller ports.Caller, tenantID string) (bool, error) {
	return caller.TenantID != "" && caller.TenantID == tenantID, nil
}

// IsReviewer requires the reviewer role and membership in the organization
func (a *ClaimsAuthorizer) IsReviewer(ctx context.Context, caller ports.Caller, orgID string) (bool, error) {
	if caller.OrgID == "" || caller.OrgID != orgID {
		return false, nil
	}
	return HasRole(ctx, RoleReviewer), nil
}

// StaticAuthorizer implements ports.Authorizer from a fixed reviewer set.
// Used by the worker and in tests, where no token context exists.
type StaticAuthorizer struct {
	mu        sync.RWMutex
	reviewers map[string]map[string]bool
}

// NewStaticAuthorizer creates an authorizer with no reviewers
func NewStaticAuthorizer() *StaticAuthorizer {
	return &StaticAuthorizer{reviewers: make(map[string]map[string]bool)}
}

var _ ports.Authorizer = (*StaticAuthorizer)(nil)

// AddReviewer grants reviewer status for an organization
func (a *StaticAuthorizer) AddReviewer(orgID, callerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reviewers[orgID] == nil {
		a.reviewers[orgID] = make(map[string]bool)
	}
	a.reviewers[orgID][callerID] = true
}

// CanAccess allows a caller into its own tenant scope only
func (a *StaticAuthorizer) CanAccess(ctx context.Context, caller ports.Caller, tenantID string) (bool, error) {
	return caller.TenantID != "" && caller.TenantID == tenantID, nil
}

// IsReviewer reports whether the caller was registered as a reviewer
func (a *StaticAuthorizer) IsReviewer(ctx context.Context, caller ports.Caller, orgID string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.reviewers[orgID][caller.ID], nil
}
