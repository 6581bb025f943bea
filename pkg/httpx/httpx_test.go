package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/idp/pkg/jwtx"
)

func TestChainOrdering(t *testing.T) {
	t.Parallel()

	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("outer"), tag("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestParseSpaceDelimitedFields(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ParseSpaceDelimitedFields(""))
	assert.Nil(t, ParseSpaceDelimitedFields("   "))
	assert.Equal(t, []string{"openid", "profile"}, ParseSpaceDelimitedFields(" openid  profile "))
}

func TestRequireScope(t *testing.T) {
	t.Parallel()

	policy := func(required string, presented []string) bool {
		for _, s := range presented {
			if s == required {
				return true
			}
		}
		return false
	}

	handler := RequireScope(policy, "users:read")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("policy satisfied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), CtxKeyScopes, []string{"openid", "users:read"})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("policy denies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), CtxKeyScopes, []string{"openid"})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "insufficient_scope")
	})
}

func TestRequireAnyScope(t *testing.T) {
	t.Parallel()

	handler := RequireAnyScope("users:read")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("scope present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), CtxKeyScopes, []string{"openid", "users:read"})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("scope missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), CtxKeyScopes, []string{"openid"})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "insufficient_scope")
	})
}

func TestAuthnMiddleware(t *testing.T) {
	t.Parallel()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "https://idp.test",
		NumKeys:   1,
	})
	require.NoError(t, err)

	handler := AuthnMiddleware(km.Verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user-1", SubjectFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token", func(t *testing.T) {
		token, err := km.GetSigner().Sign(jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
			Subject:  "user-1",
			ClientID: "cli",
			Scopes:   []string{"openid"},
			Issuer:   "https://idp.test",
			TTL:      time.Minute,
			Now:      time.Now().UTC(),
		}))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	limited := RateLimitMiddleware(RateLimitConfig{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		Burst:             2,
	}, IPKeyExtractor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Different address gets its own bucket
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "203.0.113.8:1234"
	rec = httptest.NewRecorder()
	limited.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
