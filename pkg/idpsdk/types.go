package idpsdk

import (
	"github.com/aussiebroadwan/idp/pkg/jwtx"
)

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
// This is used internally for parsing HTTP error responses. Client code
// should use the OAuth2Error type from errors.go instead.
type ErrorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749.
// This is returned from the POST /v1/oauth2/token endpoint for all grant types.
type TokenResponse struct {
	// AccessToken is the JWT access token used to authenticate API requests
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer" per OAuth2 spec
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty"`
}

// AuthorizeResponse contains the authorization code and state returned by
// the authorization endpoint redirect.
type AuthorizeResponse struct {
	// Code is the short-lived single-use authorization code
	Code string

	// State is the opaque value the client supplied, echoed back verbatim
	State string

	// RedirectURI is the registered redirect target the code was bound to
	RedirectURI string
}

// UserResponse is the public projection of a user returned from the
// GET /v1/users/{userId} endpoint.
type UserResponse struct {
	// Sub is the subject identifier of the user
	Sub string `json:"sub"`

	// Email is the user's email address
	Email string `json:"email"`

	// UserName is the user's login name
	UserName string `json:"userName"`
}

// UserInfoResponse represents the OIDC UserInfo endpoint response.
// Claims beyond sub are present only when the access token's scopes
// unlock the corresponding identity resources.
type UserInfoResponse struct {
	Sub               string `json:"sub"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     *bool  `json:"email_verified,omitempty"`
}

// DiscoveryResponse represents the OIDC discovery document served at
// /.well-known/openid-configuration.
type DiscoveryResponse struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
}

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`
}

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify JWT signatures.
type JWKSResponse jwtx.JWKS
