package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// ValidationService decides whether credentials and grant requests are
// acceptable. It reads the seeded client and user state from storage.
type ValidationService struct {
	Store store.Store
}

// ValidateClientCredentials looks up the client and checks the presented
// secret against every stored secret hash. Each candidate hash is verified
// with a constant-time comparison. A secret that matches but has expired is
// reported as ErrExpiredSecret, distinct from ErrInvalidSecret, so operators
// can tell rotation lapses from bad credentials in the logs.
func (s *ValidationService) ValidateClientCredentials(ctx context.Context, clientID, secret string) (domain.Client, error) {
	now := time.Now().UTC()

	client, err := s.Store.Clients().GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn hash work anyway so unknown clients take as long as
			// known ones with a wrong secret.
			cryptox.DummyVerify(secret)
			return domain.Client{}, ErrUnknownClient
		}
		return domain.Client{}, err
	}

	matchedExpired := false
	for _, stored := range client.Secrets {
		if cryptox.VerifyPassword(secret, stored.SecretHash) != nil {
			continue
		}
		if stored.Expired(now) {
			matchedExpired = true
			continue
		}
		return client, nil
	}

	if matchedExpired {
		return domain.Client{}, ErrExpiredSecret
	}
	return domain.Client{}, ErrInvalidSecret
}

// AuthorizeGrant checks the grant type and every requested scope against the
// client's registration. The first disallowed scope rejects the whole
// request; scope narrowing is never done silently. With no requested scopes
// the client's full allowed set is granted.
func (s *ValidationService) AuthorizeGrant(ctx context.Context, client domain.Client, grantType string, requestedScopes []string) ([]string, error) {
	log := slogx.FromContext(ctx)

	if !client.AllowsGrantType(grantType) {
		log.Info("grant type not allowed",
			"client_id", client.ClientID,
			"grant_type", grantType,
		)
		return nil, ErrGrantTypeNotAllowed
	}

	if len(requestedScopes) == 0 {
		return slices.Clone(client.AllowedScopes), nil
	}

	for _, scope := range requestedScopes {
		if !client.AllowsScope(scope) {
			log.Info("scope not allowed",
				"client_id", client.ClientID,
				"scope", scope,
			)
			return nil, ErrScopeNotAllowed
		}
	}

	return dedupe(requestedScopes), nil
}

// ValidateResourceOwnerCredentials checks a username/password pair and
// returns the subject ID on success. Unknown user and wrong password return
// the same ErrInvalidCredentials, and the unknown-user path burns equivalent
// hash work so response timing doesn't reveal which check failed.
func (s *ValidationService) ValidateResourceOwnerCredentials(ctx context.Context, username, password string) (string, error) {
	user, err := s.Store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cryptox.DummyVerify(password)
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return "", ErrInvalidCredentials
	}

	return user.ID, nil
}

// AuthorizePolicy reports whether the required scope is among the presented
// scopes. Used by the internal user-lookup API.
func (s *ValidationService) AuthorizePolicy(requiredScope string, presentedScopes []string) bool {
	return slices.Contains(presentedScopes, requiredScope)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
