package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/aussiebroadwan/idp/internal/idp/store"
)

// Claim is one issued (type, value) pair.
type Claim struct {
	Type  string
	Value string
}

// ProfileService resolves user claims during token issuance and userinfo
// requests. A user row with a NULL username or email cannot issue a profile
// and is treated as absent.
type ProfileService struct {
	Store store.Store
}

// GetClaims looks up the subject and returns its claims: always sub, name,
// and email, plus any of the requested claim types the account can satisfy.
// Returns ErrSubjectNotFound for absent or unusable accounts.
func (s *ProfileService) GetClaims(ctx context.Context, subjectID string, requestedClaimTypes []string) ([]Claim, error) {
	user, err := s.Store.Users().GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	if !user.Usable() {
		return nil, ErrSubjectNotFound
	}

	claims := []Claim{
		{Type: "sub", Value: user.ID},
		{Type: "name", Value: user.Name},
		{Type: "email", Value: user.Email},
	}
	emitted := map[string]struct{}{"sub": {}, "name": {}, "email": {}}

	for _, ct := range requestedClaimTypes {
		if _, done := emitted[ct]; done {
			continue
		}

		var value string
		switch ct {
		case "preferred_username":
			value = user.Username
		case "email_verified":
			value = strconv.FormatBool(user.EmailConfirmed)
		default:
			continue // unknown claim types are skipped, not errors
		}

		emitted[ct] = struct{}{}
		claims = append(claims, Claim{Type: ct, Value: value})
	}

	return claims, nil
}

// ClaimTypesForScopes resolves the union of claim types unlocked by the
// granted scopes' identity resources. Scopes that don't name an identity
// resource contribute nothing.
func (s *ProfileService) ClaimTypesForScopes(ctx context.Context, scopes []string) ([]string, error) {
	var out []string
	seen := map[string]struct{}{}

	for _, scope := range scopes {
		res, err := s.Store.IdentityResources().GetByName(ctx, scope)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, ct := range res.ClaimTypes {
			if _, ok := seen[ct]; ok {
				continue
			}
			seen[ct] = struct{}{}
			out = append(out, ct)
		}
	}

	return out, nil
}

// IsActive reports whether the subject still resolves to a usable persisted
// user. Deleted or unusable subjects stop issuing without any revocation
// bookkeeping.
func (s *ProfileService) IsActive(ctx context.Context, subjectID string) (bool, error) {
	user, err := s.Store.Users().GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Usable(), nil
}
