package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the default lifetime for access tokens.
// Short-lived for security - typical range is 15m to 1h.
const DefaultAccessTokenTTL = time.Hour

// Claims are the access-token claims issued by the provider. We keep changes
// additive to preserve compatibility for downstream APIs.
type Claims struct {
	jwt.RegisteredClaims

	// ClientID identifies the OAuth2 client the token was issued to.
	ClientID string `json:"client_id,omitempty"`

	// Scopes granted on this token, e.g. ["openid", "profile", "users:read"]
	Scopes []string `json:"scope,omitempty"`

	// Name is the display name of the authenticated user.
	Name string `json:"name,omitempty"`

	// PreferredUsername is the login name of the authenticated user.
	PreferredUsername string `json:"preferred_username,omitempty"`

	// Email of the authenticated user, only present when the "user"
	// identity resource was granted.
	Email string `json:"email,omitempty"`
}

// AccessClaimsParams collects everything needed to mint access-token claims.
type AccessClaimsParams struct {
	Subject  string
	ClientID string
	Scopes   []string
	Issuer   string
	Audience []string
	TTL      time.Duration

	Name              string
	PreferredUsername string
	Email             string

	Now time.Time
}

// NewAccessClaims builds minimally-correct claims.
func NewAccessClaims(p AccessClaimsParams) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings(p.Audience),
			IssuedAt:  jwt.NewNumericDate(p.Now),
			NotBefore: jwt.NewNumericDate(p.Now),
			ExpiresAt: jwt.NewNumericDate(p.Now.Add(p.TTL)),
			ID:        NewJTI(),
		},
		ClientID:          p.ClientID,
		Scopes:            p.Scopes,
		Name:              p.Name,
		PreferredUsername: p.PreferredUsername,
		Email:             p.Email,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// HasScope reports whether the token carries the given scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}

	// Check a valid token isn't used before it is valid (nbf)
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
