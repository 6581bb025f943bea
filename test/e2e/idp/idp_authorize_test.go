package idp_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/idp/pkg/idpsdk"
	"github.com/stretchr/testify/require"
)

// TestAuthorizeGetChallenge verifies the GET authorization endpoint issues a
// login challenge echoing the request parameters. There is no session
// concept, so GET always answers 401 login_required and the client
// resubmits via POST with credentials.
func TestAuthorizeGetChallenge(t *testing.T) {
	baseURL, cleanup := setupIDPContainer(t)
	defer cleanup()

	client := idpsdk.NewSDKClient(baseURL)

	pkce, err := idpsdk.GeneratePKCEChallenge()
	require.NoError(t, err)

	authURL := client.BuildAuthorizeURL(webClientID, webRedirectURI, "xyzzy",
		[]string{"openid", "profile"}, pkce)

	resp, err := http.Get(authURL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var challenge map[string]any
	require.NoError(t, json.Unmarshal(body, &challenge))
	require.Equal(t, idpsdk.ErrorCodeLoginRequired, challenge["error"])
	require.Equal(t, webClientID, challenge["client_id"], "Challenge should echo the request")
	require.Equal(t, "xyzzy", challenge["state"], "Challenge should echo the state")
}

// TestAuthorizationCodeFlow exercises the complete authorization code flow
// with PKCE for the confidential web client.
func TestAuthorizationCodeFlow(t *testing.T) {
	baseURL, cleanup := setupIDPContainer(t)
	defer cleanup()

	client := idpsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	pkce, err := idpsdk.GeneratePKCEChallenge()
	require.NoError(t, err)

	// Authorize: credentials in, code out via captured redirect
	auth, err := client.AuthorizeWithPassword(ctx,
		webClientID, webRedirectURI, aliceUsername, alicePassword, "state-123",
		[]string{"openid", "profile", "user"}, pkce)
	require.NoError(t, err, "Authorization should succeed")
	require.NotEmpty(t, auth.Code, "Should receive an authorization code")
	require.Equal(t, "state-123", auth.State, "State should round-trip verbatim")

	// Exchange: code + verifier in, token out
	token, err := client.AuthorizationCodeGrant(ctx,
		webClientID, webClientSecret, auth.Code, webRedirectURI, pkce.Verifier)
	require.NoError(t, err, "Code exchange should succeed")
	assertTokenResponse(t, token)

	// Replay: the code is single-use
	_, err = client.AuthorizationCodeGrant(ctx,
		webClientID, webClientSecret, auth.Code, webRedirectURI, pkce.Verifier)
	assertOAuth2Error(t, err, idpsdk.ErrorCodeInvalidGrant,
		"A consumed code must not be redeemable again")
}

// TestAuthorizationCodeFlowPublicClient exercises the flow for the public
// SPA client, which has no secret and must use PKCE.
func TestAuthorizationCodeFlowPublicClient(t *testing.T) {
	baseURL, cleanup := setupIDPContainer(t)
	defer cleanup()

	client := idpsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	pkce, err := idpsdk.GeneratePKCEChallenge()
	require.NoError(t, err)

	auth, err := client.AuthorizeWithPassword(ctx,
		spaClientID, spaRedirectURI, bobUsername, bobPassword, "",
		[]string{"openid", "profile"}, pkce)
	require.NoError(t, err, "Public client authorization should succeed with PKCE")

	// No client secret on the exchange, just the PKCE verifier
	token, err := client.AuthorizationCodeGrant(ctx,
		spaClientID, "", auth.Code, spaRedirectURI, pkce.Verifier)
	require.NoError(t, err, "Public client exchange should succeed")
	assertTokenResponse(t, token)
}

// TestAuthorizationCodeFlowRejections covers the ways the flow must fail.
func TestAuthorizationCodeFlowRejections(t *testing.T) {
	baseURL, cleanup := setupIDPContainer(t)
	defer cleanup()

	client := idpsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	t.Run("wrong resource owner password", func(t *testing.T) {
		pkce, err := idpsdk.GeneratePKCEChallenge()
		require.NoError(t, err)

		_, err = client.AuthorizeWithPassword(ctx,
			webClientID, webRedirectURI, aliceUsername, "wrong-password", "",
			[]string{"openid"}, pkce)
		assertOAuth2Error(t, err, idpsdk.ErrorCodeAccessDenied,
			"Bad credentials should be denied, not redirected")
	})

	t.Run("unregistered redirect URI", func(t *testing.T) {
		pkce, err := idpsdk.GeneratePKCEChallenge()
		require.NoError(t, err)

		_, err = client.AuthorizeWithPassword(ctx,
			webClientID, "http://evil.example/steal", aliceUsername, alicePassword, "",
			[]string{"openid"}, pkce)
		require.Error(t, err, "Unregistered redirect URIs must never receive a code")
	})

	t.Run("public client without PKCE", func(t *testing.T) {
		_, err := client.AuthorizeWithPassword(ctx,
			spaClientID, spaRedirectURI, bobUsername, bobPassword, "",
			[]string{"openid"}, nil)
		require.Error(t, err, "PKCE is mandatory for public clients")
	})

	t.Run("wrong PKCE verifier on exchange", func(t *testing.T) {
		pkce, err := idpsdk.GeneratePKCEChallenge()
		require.NoError(t, err)

		auth, err := client.AuthorizeWithPassword(ctx,
			webClientID, webRedirectURI, aliceUsername, alicePassword, "",
			[]string{"openid"}, pkce)
		require.NoError(t, err)

		otherPKCE, err := idpsdk.GeneratePKCEChallenge()
		require.NoError(t, err)

		_, err = client.AuthorizationCodeGrant(ctx,
			webClientID, webClientSecret, auth.Code, webRedirectURI, otherPKCE.Verifier)
		assertOAuth2Error(t, err, idpsdk.ErrorCodeInvalidGrant,
			"A mismatched verifier must fail the exchange")
	})

	t.Run("redirect URI mismatch on exchange", func(t *testing.T) {
		pkce, err := idpsdk.GeneratePKCEChallenge()
		require.NoError(t, err)

		auth, err := client.AuthorizeWithPassword(ctx,
			webClientID, webRedirectURI, aliceUsername, alicePassword, "",
			[]string{"openid"}, pkce)
		require.NoError(t, err)

		_, err = client.AuthorizationCodeGrant(ctx,
			webClientID, webClientSecret, auth.Code, "http://localhost/other", pkce.Verifier)
		require.Error(t, err, "The exchange redirect_uri must match the authorize request")
	})

	t.Run("code issued to another client", func(t *testing.T) {
		pkce, err := idpsdk.GeneratePKCEChallenge()
		require.NoError(t, err)

		auth, err := client.AuthorizeWithPassword(ctx,
			webClientID, webRedirectURI, aliceUsername, alicePassword, "",
			[]string{"openid"}, pkce)
		require.NoError(t, err)

		_, err = client.AuthorizationCodeGrant(ctx,
			spaClientID, "", auth.Code, webRedirectURI, pkce.Verifier)
		require.Error(t, err, "A code is bound to the client it was issued to")
	})
}

// TestAuthorizeAndExchangeConvenience verifies the one-call SDK flow.
func TestAuthorizeAndExchangeConvenience(t *testing.T) {
	baseURL, cleanup := setupIDPContainer(t)
	defer cleanup()

	client := idpsdk.NewSDKClient(baseURL)

	token, err := client.AuthorizeAndExchange(t.Context(),
		webClientID, webClientSecret, webRedirectURI,
		aliceUsername, alicePassword, fullScopes)
	require.NoError(t, err)
	assertTokenResponse(t, token)
}
