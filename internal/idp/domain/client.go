package domain

import "time"

// Grant types supported by the token endpoint.
const (
	GrantTypePassword          = "password"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeAuthorizationCode = "authorization_code"
)

// Client is a registered OAuth2 client. ClientID is the natural key used on
// the wire; ID is the internal row identifier.
type Client struct {
	ID          string
	ClientID    string
	DisplayName string

	AllowedGrantTypes      []string
	AllowedScopes          []string
	RedirectURIs           []string
	PostLogoutRedirectURIs []string
	RequirePKCE            bool

	// AlwaysSendClientClaims and AllowBrowserTokens are registration
	// attributes carried for downstream consumers; nothing in the token
	// issuance path branches on them yet.
	AlwaysSendClientClaims bool
	AllowBrowserTokens     bool

	Secrets []ClientSecret

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientSecret is one hashed secret belonging to a client. Clients may hold
// several secrets at once to allow rotation without downtime.
type ClientSecret struct {
	ID         string
	ClientID   string // internal client row ID
	SecretHash string
	ExpiresAt  *time.Time // nil = never expires
	CreatedAt  time.Time
}

// Expired reports whether the secret has passed its expiry at the given time.
func (s ClientSecret) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c Client) AllowsGrantType(grantType string) bool {
	for _, gt := range c.AllowedGrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// AllowsScope reports whether the client may request the given scope.
func (c Client) AllowsScope(scope string) bool {
	for _, s := range c.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AllowsRedirectURI reports whether the redirect URI exactly matches one of
// the registered URIs.
func (c Client) AllowsRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}
