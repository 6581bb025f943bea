package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/idx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

var (
	ErrLoginRequired  = errors.New("login_required")
	ErrInvalidRequest = errors.New("invalid_request")
)

// AuthorizeService encapsulates the OAuth2 authorization-code issuance flow.
type AuthorizeService struct {
	Store      store.Store
	Validation *ValidationService
	CodeTTL    time.Duration
}

// AuthorizeRequest captures the inputs required to issue an authorization code.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	// Resource-owner credentials from the login form.
	Username string
	Password string
}

// AuthorizeCodeResponse contains the authorization code and redirect
// information used to build the redirect back to the client.
type AuthorizeCodeResponse struct {
	Code        string
	RedirectURI string
	State       string
}

// IssueAuthorizationCode implements the issuance half of the OAuth2
// authorization code flow (RFC 6749 section 4.1).
//
// The request is validated against the client registration (response type,
// redirect URI, scopes, PKCE requirement), the resource owner authenticates
// with username/password, and a short-lived single-use code is stored by
// fingerprint. Public clients must supply a PKCE challenge; confidential
// clients may omit it.
func (s *AuthorizeService) IssueAuthorizationCode(ctx context.Context, req AuthorizeRequest) (*AuthorizeCodeResponse, error) {
	log := slogx.FromContext(ctx)

	if !strings.EqualFold(strings.TrimSpace(req.ResponseType), "code") {
		return nil, ErrInvalidRequest
	}
	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.RedirectURI) == "" {
		return nil, ErrInvalidRequest
	}

	client, err := s.Store.Clients().GetByClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownClient
		}
		return nil, err
	}

	if !client.AllowsRedirectURI(req.RedirectURI) {
		log.Warn("authorize: redirect URI not registered",
			"client_id", req.ClientID,
			"redirect_uri", req.RedirectURI,
		)
		return nil, ErrInvalidRequest
	}

	challenge, method, err := validatePKCE(req.CodeChallenge, req.CodeChallengeMethod, client)
	if err != nil {
		return nil, err
	}

	granted, err := s.Validation.AuthorizeGrant(ctx, client, domain.GrantTypeAuthorizationCode, req.Scope)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrLoginRequired
	}

	subjectID, err := s.Validation.ValidateResourceOwnerCredentials(ctx, username, req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}

	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	record := domain.AuthorizationCode{
		ID:                  idx.New().String(),
		SubjectID:           subjectID,
		ClientID:            client.ClientID,
		CodeHash:            cryptox.FingerprintToken(code),
		RedirectURI:         req.RedirectURI,
		Scopes:              granted,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		ExpiresAt:           now.Add(ttl),
		CreatedAt:           now,
	}

	if err := s.Store.AuthorizationCodes().Create(ctx, record); err != nil {
		return nil, err
	}

	return &AuthorizeCodeResponse{
		Code:        code,
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}, nil
}

func validatePKCE(challenge, method string, client domain.Client) (string, string, error) {
	trimmedChallenge := strings.TrimSpace(challenge)
	trimmedMethod := strings.TrimSpace(method)

	if trimmedChallenge == "" {
		if len(client.Secrets) == 0 || client.RequirePKCE {
			return "", "", ErrInvalidRequest
		}
		// Confidential clients may omit PKCE; store empty values.
		return "", "", nil
	}

	normalizedMethod := trimmedMethod
	switch {
	case strings.EqualFold(trimmedMethod, "S256"):
		normalizedMethod = "S256"
	case strings.EqualFold(trimmedMethod, "plain"):
		normalizedMethod = "plain"
	case trimmedMethod == "":
		// Default to S256 when challenge provided but method omitted.
		normalizedMethod = "S256"
	default:
		return "", "", ErrInvalidRequest
	}

	return trimmedChallenge, normalizedMethod, nil
}
