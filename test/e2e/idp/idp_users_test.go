package idp_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/idp/pkg/idpsdk"
	"github.com/stretchr/testify/require"
)

// TestGetUser covers the user lookup API, which requires the users:read scope.
func TestGetUser(t *testing.T) {
	baseURL, cleanup := setupIDPContainer(t)
	defer cleanup()

	client := idpsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	token := passwordToken(t, client)

	t.Run("seeded user is returned as its public projection", func(t *testing.T) {
		user, err := client.GetUser(ctx, token.AccessToken, aliceSubjectID)
		require.NoError(t, err)
		require.Equal(t, aliceSubjectID, user.Sub)
		require.Equal(t, aliceUsername, user.UserName)
		require.Equal(t, aliceUsername, user.Email, "Seed accounts use username as email")
	})

	t.Run("machine tokens can look up users too", func(t *testing.T) {
		m2mToken, err := client.ClientCredentialsGrant(ctx,
			reportingClientID, reportingClientSecret, []string{"users:read"})
		require.NoError(t, err)

		user, err := client.GetUser(ctx, m2mToken.AccessToken, aliceSubjectID)
		require.NoError(t, err)
		require.Equal(t, aliceSubjectID, user.Sub)
	})

	t.Run("unknown subject yields 404", func(t *testing.T) {
		_, err := client.GetUser(ctx, token.AccessToken, "01JUNKNOWNSUBJECT000000000")
		var oauthErr *idpsdk.OAuth2Error
		require.ErrorAs(t, err, &oauthErr)
		require.Equal(t, http.StatusNotFound, oauthErr.StatusCode)
	})

	t.Run("missing token yields 401", func(t *testing.T) {
		_, err := client.GetUser(ctx, "", aliceSubjectID)
		assertUnauthorized(t, err, "Lookup without a token")
	})

	t.Run("garbage token yields 401", func(t *testing.T) {
		_, err := client.GetUser(ctx, "not-a-jwt", aliceSubjectID)
		assertUnauthorized(t, err, "Lookup with a malformed token")
	})

	t.Run("token without users:read yields 403", func(t *testing.T) {
		limited, err := client.PasswordGrant(ctx,
			webClientID, webClientSecret, aliceUsername, alicePassword,
			[]string{"openid", "profile"})
		require.NoError(t, err)

		_, err = client.GetUser(ctx, limited.AccessToken, aliceSubjectID)
		var oauthErr *idpsdk.OAuth2Error
		require.ErrorAs(t, err, &oauthErr)
		require.Equal(t, http.StatusForbidden, oauthErr.StatusCode)
		require.Equal(t, idpsdk.ErrorCodeInsufficientScope, oauthErr.Code)
	})
}

// TestUserInfo covers the OIDC UserInfo endpoint. The claim set depends on
// which identity resources the token's scopes unlock.
func TestUserInfo(t *testing.T) {
	baseURL, cleanup := setupIDPContainer(t)
	defer cleanup()

	client := idpsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	t.Run("full scope set returns all claims", func(t *testing.T) {
		token := passwordToken(t, client)

		info, err := client.GetUserInfo(ctx, token.AccessToken)
		require.NoError(t, err)

		require.Equal(t, aliceSubjectID, info.Sub)
		require.Equal(t, aliceName, info.Name)
		require.Equal(t, aliceUsername, info.PreferredUsername)
		require.Equal(t, aliceUsername, info.Email)
		require.NotNil(t, info.EmailVerified)
		require.True(t, *info.EmailVerified, "Seeded accounts have confirmed emails")
	})

	t.Run("without the user resource no email is released", func(t *testing.T) {
		token, err := client.PasswordGrant(ctx,
			webClientID, webClientSecret, aliceUsername, alicePassword,
			[]string{"openid", "profile"})
		require.NoError(t, err)

		info, err := client.GetUserInfo(ctx, token.AccessToken)
		require.NoError(t, err)

		require.Equal(t, aliceSubjectID, info.Sub)
		require.Equal(t, aliceName, info.Name, "profile scope releases the name")
		require.Empty(t, info.Email, "email requires the user resource scope")
		require.Nil(t, info.EmailVerified)
	})

	t.Run("machine tokens have no subject and are rejected", func(t *testing.T) {
		m2mToken, err := client.ClientCredentialsGrant(ctx,
			reportingClientID, reportingClientSecret, []string{"users:read"})
		require.NoError(t, err)

		_, err = client.GetUserInfo(ctx, m2mToken.AccessToken)
		assertUnauthorized(t, err, "UserInfo with a subject-less token")
	})

	t.Run("missing token yields 401", func(t *testing.T) {
		_, err := client.GetUserInfo(ctx, "")
		assertUnauthorized(t, err, "UserInfo without a token")
	})
}
