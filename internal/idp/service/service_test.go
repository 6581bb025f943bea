package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/registry"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/internal/idp/store/drivers/sqlite"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/idx"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "idp-service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedTestClient(t *testing.T, st store.Store, clientID, secret string, grantTypes, scopes []string) domain.Client {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	client := domain.Client{
		ID:                idx.New().String(),
		ClientID:          clientID,
		DisplayName:       clientID,
		AllowedGrantTypes: grantTypes,
		AllowedScopes:     scopes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if secret != "" {
		hash, err := cryptox.HashPassword(secret)
		require.NoError(t, err)
		client.Secrets = []domain.ClientSecret{{
			ID:         idx.New().String(),
			ClientID:   client.ID,
			SecretHash: hash,
			CreatedAt:  now,
		}}
	}

	require.NoError(t, st.Clients().Create(ctx, client))

	stored, err := st.Clients().GetByClientID(ctx, clientID)
	require.NoError(t, err)
	return stored
}

func seedTestUser(t *testing.T, st store.Store, username, password string) domain.User {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	user := domain.User{
		ID:             idx.New().String(),
		Username:       username,
		PasswordHash:   hash,
		Name:           "Test " + username,
		Email:          username + "@example.com",
		EmailConfirmed: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, st.Users().Create(ctx, user))
	return user
}

func seedTestResources(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	for _, res := range domain.BuiltinIdentityResources() {
		res.ID = idx.New().String()
		res.CreatedAt = time.Now().UTC()
		require.NoError(t, st.IdentityResources().Create(ctx, res))
	}
	require.NoError(t, st.ApiScopes().Create(ctx, domain.ApiScope{
		ID:        idx.New().String(),
		Name:      "users:read",
		CreatedAt: time.Now().UTC(),
	}))
}

func newTestKeyManager(t *testing.T) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "https://idp.test",
		NumKeys:   1,
	})
	require.NoError(t, err)
	return km
}

func TestValidateClientCredentials(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &ValidationService{Store: st}

	seedTestClient(t, st, "web.client", "super-secret",
		[]string{domain.GrantTypePassword}, []string{"openid"})

	t.Run("valid secret", func(t *testing.T) {
		client, err := svc.ValidateClientCredentials(ctx, "web.client", "super-secret")
		require.NoError(t, err)
		assert.Equal(t, "web.client", client.ClientID)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := svc.ValidateClientCredentials(ctx, "ghost", "whatever")
		assert.ErrorIs(t, err, ErrUnknownClient)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := svc.ValidateClientCredentials(ctx, "web.client", "wrong")
		assert.ErrorIs(t, err, ErrInvalidSecret)
	})

	t.Run("expired secret is distinguished", func(t *testing.T) {
		now := time.Now().UTC()
		past := now.Add(-time.Hour)
		hash, err := cryptox.HashPassword("old-secret")
		require.NoError(t, err)

		expired := domain.Client{
			ID:                idx.New().String(),
			ClientID:          "stale.client",
			AllowedGrantTypes: []string{domain.GrantTypeClientCredentials},
			AllowedScopes:     []string{"openid"},
			CreatedAt:         now,
			UpdatedAt:         now,
			Secrets: []domain.ClientSecret{{
				ID:         idx.New().String(),
				SecretHash: hash,
				ExpiresAt:  &past,
				CreatedAt:  now,
			}},
		}
		require.NoError(t, st.Clients().Create(ctx, expired))

		_, err = svc.ValidateClientCredentials(ctx, "stale.client", "old-secret")
		assert.ErrorIs(t, err, ErrExpiredSecret)

		// A secret that never matched is still just invalid
		_, err = svc.ValidateClientCredentials(ctx, "stale.client", "never-matched")
		assert.ErrorIs(t, err, ErrInvalidSecret)
	})
}

func TestAuthorizeGrant(t *testing.T) {
	ctx := context.Background()
	svc := &ValidationService{}

	client := domain.Client{
		ClientID:          "web.client",
		AllowedGrantTypes: []string{domain.GrantTypePassword},
		AllowedScopes:     []string{"openid", "profile", "users:read"},
	}

	t.Run("grant type not allowed", func(t *testing.T) {
		_, err := svc.AuthorizeGrant(ctx, client, domain.GrantTypeClientCredentials, []string{"openid"})
		assert.ErrorIs(t, err, ErrGrantTypeNotAllowed)
	})

	t.Run("first disallowed scope rejects whole request", func(t *testing.T) {
		_, err := svc.AuthorizeGrant(ctx, client, domain.GrantTypePassword,
			[]string{"openid", "admin:write", "profile"})
		assert.ErrorIs(t, err, ErrScopeNotAllowed)
	})

	t.Run("allowed scopes pass through deduped", func(t *testing.T) {
		granted, err := svc.AuthorizeGrant(ctx, client, domain.GrantTypePassword,
			[]string{"openid", "openid", "profile"})
		require.NoError(t, err)
		assert.Equal(t, []string{"openid", "profile"}, granted)
	})

	t.Run("empty request grants full allowed set", func(t *testing.T) {
		granted, err := svc.AuthorizeGrant(ctx, client, domain.GrantTypePassword, nil)
		require.NoError(t, err)
		assert.Equal(t, client.AllowedScopes, granted)
	})
}

func TestValidateResourceOwnerCredentials(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &ValidationService{Store: st}

	user := seedTestUser(t, st, "alice", "Password1#")

	t.Run("valid credentials", func(t *testing.T) {
		sub, err := svc.ValidateResourceOwnerCredentials(ctx, "alice", "Password1#")
		require.NoError(t, err)
		assert.Equal(t, user.ID, sub)
	})

	t.Run("wrong password and unknown user look identical", func(t *testing.T) {
		_, err := svc.ValidateResourceOwnerCredentials(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.ValidateResourceOwnerCredentials(ctx, "nobody", "Password1#")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthorizePolicy(t *testing.T) {
	t.Parallel()
	svc := &ValidationService{}

	assert.True(t, svc.AuthorizePolicy("users:read", []string{"openid", "users:read"}))
	assert.False(t, svc.AuthorizePolicy("users:read", []string{"openid"}))
	assert.False(t, svc.AuthorizePolicy("users:read", nil))
}

func newTestTokenService(t *testing.T, st store.Store) *TokenService {
	t.Helper()
	validation := &ValidationService{Store: st}
	return &TokenService{
		KeyManager:              newTestKeyManager(t),
		Store:                   st,
		Validation:              validation,
		Profile:                 &ProfileService{Store: st},
		Issuer:                  "https://idp.test",
		AccessTTL:               time.Hour,
		EmitStaticAudienceClaim: true,
	}
}

func TestExchangePassword(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedTestResources(t, st)
	seedTestClient(t, st, "web.client", "super-secret",
		[]string{domain.GrantTypePassword},
		[]string{"openid", "profile", "user", "users:read"})
	user := seedTestUser(t, st, "alice", "Password1#")

	svc := newTestTokenService(t, st)

	pair, err := svc.ExchangePassword(ctx, "web.client", "super-secret", "alice", "Password1#",
		[]string{"openid", "profile", "user", "users:read"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, time.Hour, pair.ExpiresIn)

	claims, err := svc.KeyManager.Verifier.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, "web.client", claims.ClientID)
	assert.Contains(t, claims.Audience, "users:read")
	assert.Contains(t, claims.Audience, "https://idp.test/resources")
	assert.NotContains(t, claims.Audience, "openid")
	assert.Equal(t, "Test alice", claims.Name)
	assert.Equal(t, "alice", claims.PreferredUsername)
	assert.Equal(t, "alice@example.com", claims.Email)

	t.Run("wrong user credentials", func(t *testing.T) {
		_, err := svc.ExchangePassword(ctx, "web.client", "super-secret", "alice", "nope", nil)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("disallowed scope rejected before credential check", func(t *testing.T) {
		_, err := svc.ExchangePassword(ctx, "web.client", "super-secret", "alice", "Password1#",
			[]string{"admin:write"})
		assert.ErrorIs(t, err, ErrScopeNotAllowed)
	})
}

func TestExchangeClientCredentials(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedTestResources(t, st)
	seedTestClient(t, st, "machine.client", "machine-secret",
		[]string{domain.GrantTypeClientCredentials}, []string{"users:read"})

	svc := newTestTokenService(t, st)

	pair, err := svc.ExchangeClientCredentials(ctx, "machine.client", "machine-secret", []string{"users:read"})
	require.NoError(t, err)

	claims, err := svc.KeyManager.Verifier.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Empty(t, claims.Subject)
	assert.Equal(t, "machine.client", claims.ClientID)
	assert.Equal(t, []string{"users:read"}, claims.Scopes)
	assert.Empty(t, claims.Email)

	t.Run("password grant rejected for machine client", func(t *testing.T) {
		_, err := svc.ExchangePassword(ctx, "machine.client", "machine-secret", "alice", "x", nil)
		assert.ErrorIs(t, err, ErrGrantTypeNotAllowed)
	})
}

func TestAuthorizationCodeFlow(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedTestResources(t, st)

	now := time.Now().UTC()
	client := domain.Client{
		ID:                idx.New().String(),
		ClientID:          "spa.client",
		AllowedGrantTypes: []string{domain.GrantTypeAuthorizationCode},
		AllowedScopes:     []string{"openid", "profile"},
		RedirectURIs:      []string{"https://app.example.com/callback"},
		RequirePKCE:       true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, st.Clients().Create(ctx, client))
	seedTestUser(t, st, "alice", "Password1#")

	validation := &ValidationService{Store: st}
	authorize := &AuthorizeService{Store: st, Validation: validation, CodeTTL: 5 * time.Minute}
	tokens := newTestTokenService(t, st)

	verifier := "example-code-verifier-string-0123456789"
	challenge := pkceS256Challenge(verifier)

	resp, err := authorize.IssueAuthorizationCode(ctx, AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            "spa.client",
		RedirectURI:         "https://app.example.com/callback",
		Scope:               []string{"openid", "profile"},
		State:               "xyz",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
		Username:            "alice",
		Password:            "Password1#",
	})
	require.NoError(t, err)
	assert.Equal(t, "xyz", resp.State)
	require.NotEmpty(t, resp.Code)

	pair, err := tokens.ExchangeAuthorizationCode(ctx,
		"spa.client", "", resp.Code, "https://app.example.com/callback", verifier)
	require.NoError(t, err)

	claims, err := tokens.KeyManager.Verifier.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"openid", "profile"}, claims.Scopes)
	assert.Equal(t, "alice", claims.PreferredUsername)

	t.Run("codes are single use", func(t *testing.T) {
		_, err := tokens.ExchangeAuthorizationCode(ctx,
			"spa.client", "", resp.Code, "https://app.example.com/callback", verifier)
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("wrong verifier rejected", func(t *testing.T) {
		second, err := authorize.IssueAuthorizationCode(ctx, AuthorizeRequest{
			ResponseType:        "code",
			ClientID:            "spa.client",
			RedirectURI:         "https://app.example.com/callback",
			Scope:               []string{"openid"},
			CodeChallenge:       challenge,
			CodeChallengeMethod: "S256",
			Username:            "alice",
			Password:            "Password1#",
		})
		require.NoError(t, err)

		_, err = tokens.ExchangeAuthorizationCode(ctx,
			"spa.client", "", second.Code, "https://app.example.com/callback", "wrong-verifier")
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("unregistered redirect URI rejected at issuance", func(t *testing.T) {
		_, err := authorize.IssueAuthorizationCode(ctx, AuthorizeRequest{
			ResponseType:        "code",
			ClientID:            "spa.client",
			RedirectURI:         "https://evil.example.com/",
			CodeChallenge:       challenge,
			CodeChallengeMethod: "S256",
			Username:            "alice",
			Password:            "Password1#",
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("PKCE required for public clients", func(t *testing.T) {
		_, err := authorize.IssueAuthorizationCode(ctx, AuthorizeRequest{
			ResponseType: "code",
			ClientID:     "spa.client",
			RedirectURI:  "https://app.example.com/callback",
			Username:     "alice",
			Password:     "Password1#",
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestProfileService(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedTestResources(t, st)
	user := seedTestUser(t, st, "alice", "Password1#")

	svc := &ProfileService{Store: st}

	t.Run("base claims always present", func(t *testing.T) {
		claims, err := svc.GetClaims(ctx, user.ID, nil)
		require.NoError(t, err)
		require.Len(t, claims, 3)
		assert.Equal(t, Claim{Type: "sub", Value: user.ID}, claims[0])
		assert.Equal(t, Claim{Type: "name", Value: "Test alice"}, claims[1])
		assert.Equal(t, Claim{Type: "email", Value: "alice@example.com"}, claims[2])
	})

	t.Run("requested claim types appended", func(t *testing.T) {
		claims, err := svc.GetClaims(ctx, user.ID, []string{"preferred_username", "email_verified", "unknown"})
		require.NoError(t, err)
		assert.Contains(t, claims, Claim{Type: "preferred_username", Value: "alice"})
		assert.Contains(t, claims, Claim{Type: "email_verified", Value: "true"})
	})

	t.Run("unknown subject", func(t *testing.T) {
		_, err := svc.GetClaims(ctx, idx.New().String(), nil)
		assert.ErrorIs(t, err, ErrSubjectNotFound)
	})

	t.Run("unusable account treated as absent", func(t *testing.T) {
		now := time.Now().UTC()
		broken := domain.User{
			ID:           idx.New().String(),
			Username:     "no-email",
			PasswordHash: "hash",
			CreatedAt:    now,
			UpdatedAt:    now,
			// Email left empty, stored as NULL
		}
		require.NoError(t, st.Users().Create(ctx, broken))

		_, err := svc.GetClaims(ctx, broken.ID, nil)
		assert.ErrorIs(t, err, ErrSubjectNotFound)

		active, err := svc.IsActive(ctx, broken.ID)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("claim types for scopes", func(t *testing.T) {
		types, err := svc.ClaimTypesForScopes(ctx, []string{"openid", "profile", "user", "users:read"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"name", "preferred_username", "email"}, types)
	})

	t.Run("is active", func(t *testing.T) {
		active, err := svc.IsActive(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, active)
	})
}

func TestUserService(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := seedTestUser(t, st, "alice", "Password1#")

	svc := &UserService{Store: st}

	t.Run("projection has exactly sub, email, userName", func(t *testing.T) {
		got, err := svc.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PublicUser{
			Sub:      user.ID,
			Email:    "alice@example.com",
			UserName: "alice",
		}, got)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := svc.GetUserByID(ctx, idx.New().String())
		assert.ErrorIs(t, err, ErrSubjectNotFound)
	})
}

func pkceS256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestSeedService(t *testing.T) {
	ctx := context.Background()

	reg, err := registry.Parse([]byte(`
clients:
  - clientId: web.client
    displayName: Web Client
    secrets:
      - value: super-secret
    allowedGrantTypes: [password]
    allowedScopes: [openid, profile, users:read]
apiScopes:
  - name: users:read
    displayName: Read users
users:
  - username: alice
    password: Password1#
    name: Alice
    subjectId: 01J0000000000000000000ALCE
  - username: bob
    password: Password1#
`))
	require.NoError(t, err)

	newSeeder := func(st store.Store) *SeedService {
		return &SeedService{
			Store:    st,
			Registry: reg,
			Logger:   slog.New(slog.DiscardHandler),
		}
	}

	t.Run("no flags leaves storage untouched", func(t *testing.T) {
		st, err := sqlite.NewStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })

		require.NoError(t, newSeeder(st).Run(ctx, SeedOptions{}))

		// Tables were never created, so lookups hit a missing schema.
		_, err = st.Clients().GetByClientID(ctx, "web.client")
		require.Error(t, err)
		assert.NotErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("full seed then idempotent re-run", func(t *testing.T) {
		st := newTestStore(t)
		seeder := newSeeder(st)

		require.NoError(t, seeder.Run(ctx, SeedOptions{ApplyMigrations: true, SeedData: true}))

		client, err := st.Clients().GetByClientID(ctx, "web.client")
		require.NoError(t, err)
		assert.Equal(t, "Web Client", client.DisplayName)
		require.Len(t, client.Secrets, 1)
		require.NoError(t, cryptox.VerifyPassword("super-secret", client.Secrets[0].SecretHash))

		_, err = st.ApiScopes().GetByName(ctx, "users:read")
		require.NoError(t, err)

		// Built-in identity resources are seeded alongside declared ones.
		profile, err := st.IdentityResources().GetByName(ctx, "profile")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"name", "preferred_username"}, profile.ClaimTypes)

		alice, err := st.Users().GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "01J0000000000000000000ALCE", alice.ID)
		assert.Equal(t, "Alice", alice.Name)
		assert.Equal(t, "alice", alice.Email)
		assert.True(t, alice.EmailConfirmed)

		bob, err := st.Users().GetByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "bob", bob.Name) // defaults to username
		assert.NotEmpty(t, bob.ID)

		// Re-running must not duplicate or overwrite anything.
		require.NoError(t, seeder.Run(ctx, SeedOptions{ApplyMigrations: true, SeedData: true}))

		again, err := st.Users().GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, again.ID)
		assert.Equal(t, alice.PasswordHash, again.PasswordHash)

		clients, err := st.Clients().List(ctx)
		require.NoError(t, err)
		assert.Len(t, clients, 1)
	})

	t.Run("existing username is never overwritten", func(t *testing.T) {
		st := newTestStore(t)
		existing := seedTestUser(t, st, "alice", "pre-existing")

		require.NoError(t, newSeeder(st).Run(ctx, SeedOptions{SeedData: true}))

		got, err := st.Users().GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, got.ID)
		assert.Equal(t, existing.PasswordHash, got.PasswordHash)
	})
}
