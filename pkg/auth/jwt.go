// Package auth validates bearer tokens and maps their claims onto callers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"engram-backend/application/ports"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrMissingToken  = errors.New("missing authentication token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// RoleReviewer marks callers allowed to decide promotion proposals
const RoleReviewer = "reviewer"

// Claims is the JWT payload carried by callers
type Claims struct {
	TenantID string   `json:"tenantId"`
	OrgID    string   `json:"orgId,omitempty"`
	TeamID   string   `json:"teamId,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Validator verifies HS256 bearer tokens
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator creates a token validator for the given secret and issuer
func NewValidator(secret, issuer string) *Validator {
	return &Validator{secret: []byte(secret), issuer: issuer}
}

// Validate parses a bearer token and returns the caller it identifies
func (v *Validator) Validate(tokenString string) (ports.Caller, *Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return ports.Caller{}, nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.Caller{}, nil, ErrExpiredToken
		}
		return ports.Caller{}, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return ports.Caller{}, nil, ErrInvalidClaims
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return ports.Caller{}, nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
	}
	if claims.Subject == "" {
		return ports.Caller{}, nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	if claims.TenantID == "" {
		return ports.Caller{}, nil, fmt.Errorf("%w: missing tenant", ErrInvalidClaims)
	}

	caller := ports.Caller{
		ID:       claims.Subject,
		TenantID: claims.TenantID,
		OrgID:    claims.OrgID,
		TeamID:   claims.TeamID,
	}
	return caller, claims, nil
}

// Generator issues HS256 tokens, used by the CLI and tests
type Generator struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewGenerator creates a token generator
func NewGenerator(secret, issuer string, ttl time.Duration) *Generator {
	return &Generator{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Generate issues a token for the given caller and roles
func (g *Generator) Generate(caller ports.Caller, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID: caller.TenantID,
		OrgID:    caller.OrgID,
		TeamID:   caller.TeamID,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   caller.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

type contextKey string

const (
	callerContextKey contextKey = "caller"
	rolesContextKey  contextKey = "roles"
)

// WithCaller stores the authenticated caller and roles in the context
func WithCaller(ctx context.Context, caller ports.Caller, roles []string) context.Context {
	ctx = context.WithValue(ctx, callerContextKey, caller)
	return context.WithValue(ctx, rolesContextKey, roles)
}

// CallerFromContext extracts the authenticated caller
func CallerFromContext(ctx context.Context) (ports.Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(ports.Caller)
	return caller, ok
}

// RolesFromContext extracts the caller's roles
func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesContextKey).([]string)
	return roles
}

// HasRole reports whether the context caller carries the given role
func HasRole(ctx context.Context, role string) bool {
	for _, r := range RolesFromContext(ctx) {
		if r == role {
			return true
		}
	}
	return false
}
