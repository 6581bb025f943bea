package domain

import "time"

// TokenPair is the successful result of a token-endpoint exchange. This
// provider issues stateless JWT access tokens only, so there is no refresh
// token component.
type TokenPair struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	Scope       string
}

// PublicUser is the projection exposed by the user-lookup API. Exactly these
// three fields, nothing more.
type PublicUser struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	UserName string `json:"userName"`
}
