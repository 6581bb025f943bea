package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// StaticAudienceSuffix is appended to the issuer to form the catch-all
// audience value emitted when EmitStaticAudienceClaim is enabled.
const StaticAudienceSuffix = "/resources"

// TokenService mints JWT access tokens for validated grants. Tokens are
// never persisted; validity is entirely claims-driven.
type TokenService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Validation *ValidationService
	Profile    *ProfileService

	Issuer    string
	AccessTTL time.Duration

	// EmitStaticAudienceClaim adds "<issuer>/resources" as an audience on
	// every token, alongside the per-API-scope audiences.
	EmitStaticAudienceClaim bool
}

// ExchangePassword implements the OAuth2 resource owner password grant.
func (s *TokenService) ExchangePassword(
	ctx context.Context,
	clientID, clientSecret, username, password string,
	requestedScopes []string,
) (*domain.TokenPair, error) {
	client, err := s.Validation.ValidateClientCredentials(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	granted, err := s.Validation.AuthorizeGrant(ctx, client, domain.GrantTypePassword, requestedScopes)
	if err != nil {
		return nil, err
	}

	subjectID, err := s.Validation.ValidateResourceOwnerCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}

	return s.IssueToken(ctx, subjectID, client, granted)
}

// ExchangeClientCredentials implements the OAuth2 client_credentials grant.
// The resulting token has no subject; it represents the client itself.
func (s *TokenService) ExchangeClientCredentials(
	ctx context.Context,
	clientID, clientSecret string,
	requestedScopes []string,
) (*domain.TokenPair, error) {
	client, err := s.Validation.ValidateClientCredentials(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	granted, err := s.Validation.AuthorizeGrant(ctx, client, domain.GrantTypeClientCredentials, requestedScopes)
	if err != nil {
		return nil, err
	}

	return s.IssueToken(ctx, "", client, granted)
}

// ExchangeAuthorizationCode implements the OAuth2 authorization_code grant.
// Codes are single-use; redemption happens inside a transaction so two
// concurrent exchanges can't both succeed.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI, codeVerifier string,
) (*domain.TokenPair, error) {
	now := time.Now().UTC()

	client, err := s.authenticateForCodeExchange(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	if !client.AllowsGrantType(domain.GrantTypeAuthorizationCode) {
		return nil, ErrGrantTypeNotAllowed
	}

	code = strings.TrimSpace(code)
	redirectURI = strings.TrimSpace(redirectURI)
	codeVerifier = strings.TrimSpace(codeVerifier)
	if code == "" || redirectURI == "" {
		return nil, ErrInvalidGrant
	}

	codeHash := cryptox.FingerprintToken(code)

	var granted []string
	var subjectID string

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		authCode, err := tx.AuthorizationCodes().GetByHash(ctx, codeHash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		if authCode.ClientID != client.ClientID {
			return ErrInvalidGrant
		}
		if authCode.RedirectURI != redirectURI {
			return ErrInvalidGrant
		}
		if authCode.UsedAt != nil || now.After(authCode.ExpiresAt) {
			return ErrInvalidGrant
		}
		if client.RequirePKCE && authCode.CodeChallenge == "" {
			return ErrInvalidGrant
		}
		if !verifyCodeVerifier(authCode.CodeChallenge, authCode.CodeChallengeMethod, codeVerifier) {
			return ErrInvalidGrant
		}

		if err := tx.AuthorizationCodes().MarkUsed(ctx, authCode.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		granted = authCode.Scopes
		subjectID = authCode.SubjectID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.IssueToken(ctx, subjectID, client, granted)
}

// authenticateForCodeExchange authenticates a confidential client or admits
// a public one. Public clients carry no secrets and rely on PKCE instead.
func (s *TokenService) authenticateForCodeExchange(ctx context.Context, clientID, clientSecret string) (domain.Client, error) {
	client, err := s.Store.Clients().GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrUnknownClient
		}
		return domain.Client{}, err
	}

	if len(client.Secrets) == 0 {
		return client, nil
	}
	return s.Validation.ValidateClientCredentials(ctx, clientID, clientSecret)
}

// IssueToken mints an access token for a validated grant. With a subject the
// token carries profile claims per the granted identity resources; without
// one it represents the client itself. Audiences are the granted API scopes
// plus the static "<issuer>/resources" value when enabled.
func (s *TokenService) IssueToken(
	ctx context.Context,
	subjectID string,
	client domain.Client,
	grantedScopes []string,
) (*domain.TokenPair, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	audiences, err := s.audiencesForScopes(ctx, grantedScopes)
	if err != nil {
		return nil, err
	}

	params := jwtx.AccessClaimsParams{
		Subject:  subjectID,
		ClientID: client.ClientID,
		Scopes:   grantedScopes,
		Issuer:   s.Issuer,
		Audience: audiences,
		TTL:      s.AccessTTL,
		Now:      now,
	}

	if subjectID != "" {
		claimTypes, err := s.Profile.ClaimTypesForScopes(ctx, grantedScopes)
		if err != nil {
			return nil, err
		}

		claims, err := s.Profile.GetClaims(ctx, subjectID, claimTypes)
		if err != nil {
			return nil, err
		}

		for _, c := range claims {
			switch c.Type {
			case "name":
				params.Name = c.Value
			case "preferred_username":
				params.PreferredUsername = c.Value
			case "email":
				// Only surface email when the "user" resource was granted
				if slices.Contains(claimTypes, "email") {
					params.Email = c.Value
				}
			}
		}
	}

	signer := s.KeyManager.GetSigner()
	if signer == nil {
		return nil, errors.New("service: no signing key available")
	}

	accessToken, err := signer.Sign(jwtx.NewAccessClaims(params))
	if err != nil {
		log.Error("failed to sign access token", "err", err)
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.AccessTTL,
		Scope:       strings.Join(grantedScopes, " "),
	}, nil
}

// audiencesForScopes maps each granted scope that names a registered API
// scope onto an audience value.
func (s *TokenService) audiencesForScopes(ctx context.Context, scopes []string) ([]string, error) {
	var out []string

	for _, scope := range scopes {
		_, err := s.Store.ApiScopes().GetByName(ctx, scope)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // identity resource or plain scope, not an audience
			}
			return nil, err
		}
		out = append(out, scope)
	}

	if s.EmitStaticAudienceClaim {
		out = append(out, s.Issuer+StaticAudienceSuffix)
	}

	return out, nil
}

func verifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		// No PKCE challenge stored; accept regardless of verifier.
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	method = strings.TrimSpace(method)
	switch {
	case method == "" || strings.EqualFold(method, "plain"):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case strings.EqualFold(method, "S256"):
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
