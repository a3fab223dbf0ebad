package valueobjects

import (
	"fmt"

	"engram-backend/pkg/errors"
)

// MaxExtensionKeys bounds the open extension map on attributes.
const MaxExtensionKeys = 16

// Attributes is the typed attribute set every memory carries. The required
// fields are enumerated; anything else lives in a bounded extension map that
// filters can match on but core logic never interprets.
type Attributes struct {
	scope      Scope
	visibility Visibility
	kind       MemoryKind
	extra      map[string]string
}

// NewAttributes validates and builds an attribute set
func NewAttributes(scope Scope, visibility Visibility, kind MemoryKind, extra map[string]string) (Attributes, error) {
	if scope.IsZero() {
		return Attributes{}, errors.NewValidation("attributes require a tenant scope")
	}
	if _, err := ParseVisibility(string(visibility)); err != nil {
		return Attributes{}, err
	}
	if _, err := ParseMemoryKind(string(kind)); err != nil {
		return Attributes{}, err
	}
	if visibility == VisibilityTeam && scope.TeamID() == "" {
		return Attributes{}, errors.NewValidation("team visibility requires a team ID")
	}
	if visibility == VisibilityGlobal && scope.OrgID() == "" {
		return Attributes{}, errors.NewValidation("global visibility requires an org ID")
	}
	if len(extra) > MaxExtensionKeys {
		return Attributes{}, errors.NewValidation(
			fmt.Sprintf("extension attributes limited to %d keys", MaxExtensionKeys))
	}

	copied := make(map[string]string, len(extra))
	for k, v := range extra {
		if k == "" {
			return Attributes{}, errors.NewValidation("extension attribute keys cannot be empty")
		}
		copied[k] = v
	}

	return Attributes{
		scope:      scope,
		visibility: visibility,
		kind:       kind,
		extra:      copied,
	}, nil
}

func (a Attributes) Scope() Scope           { return a.scope }
func (a Attributes) Visibility() Visibility { return a.visibility }
func (a Attributes) Kind() MemoryKind       { return a.kind }

// Extra returns a copy of the extension map
func (a Attributes) Extra() map[string]string {
	copied := make(map[string]string, len(a.extra))
	for k, v := range a.extra {
		copied[k] = v
	}
	return copied
}

// ExtraValue looks up one extension key
func (a Attributes) ExtraValue(key string) (string, bool) {
	v, ok := a.extra[key]
	return v, ok
}

// WithVisibility returns a copy with visibility replaced. Used by promotion
// approval, which widens visibility without touching anything else.
func (a Attributes) WithVisibility(v Visibility) Attributes {
	a.visibility = v
	return a
}

// Filter selects memories by attribute values. Zero fields match anything
// except TenantID, which every caller must set.
type Filter struct {
	TenantID   string
	OrgID      string
	TeamID     string
	Visibility Visibility
	Kind       MemoryKind
	Extra      map[string]string
}

// Validate ensures the filter carries the mandatory tenant scope
func (f Filter) Validate() error {
	if f.TenantID == "" {
		return errors.NewValidation("filter requires a tenant ID")
	}
	return nil
}

// Matches reports whether the given attributes satisfy the filter
func (f Filter) Matches(a Attributes) bool {
	if f.TenantID != a.Scope().TenantID() {
		return false
	}
	if f.OrgID != "" && f.OrgID != a.Scope().OrgID() {
		return false
	}
	if f.TeamID != "" && f.TeamID != a.Scope().TeamID() {
		return false
	}
	if f.Visibility != "" && f.Visibility != a.Visibility() {
		return false
	}
	if f.Kind != "" && f.Kind != a.Kind() {
		return false
	}
	for k, v := range f.Extra {
		if got, ok := a.ExtraValue(k); !ok || got != v {
			return false
		}
	}
	return true
}
