package domain

import "time"

// AuthorizationCode represents an OAuth 2.0 authorization code issuance.
// Only the SHA-256 fingerprint of the code is stored.
type AuthorizationCode struct {
	ID                  string
	SubjectID           string
	ClientID            string // wire client_id, not the internal row ID
	CodeHash            string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	UsedAt              *time.Time
	CreatedAt           time.Time
}
