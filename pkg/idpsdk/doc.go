/*
Package idpsdk provides a client SDK for the identity provider service.

# Overview

The idpsdk package implements an OAuth2-compliant client for the identity
provider. It covers the token endpoint grants (password, client_credentials,
authorization_code), the authorization endpoint, discovery and JWKS lookup,
health probes, and the authenticated user APIs.

Create an SDKClient to interact with the service:

	client := idpsdk.NewSDKClient("https://idp.example.com")

	// Check service health
	health, err := client.GetLiveness(ctx)

	// Obtain a token with the password grant
	token, err := client.PasswordGrant(ctx, clientID, clientSecret,
		username, password, []string{"openid", "profile"})

	// Call an authenticated endpoint
	user, err := client.GetUser(ctx, token.AccessToken, userID)

# Error Handling

Failed requests return a typed *OAuth2Error carrying the HTTP status code,
the RFC 6749 error code, and the human-readable description:

	token, err := client.PasswordGrant(ctx, clientID, secret, user, pass, nil)
	if err != nil {
		var oauthErr *idpsdk.OAuth2Error
		if errors.As(err, &oauthErr) && oauthErr.Code == idpsdk.ErrorCodeInvalidGrant {
			// bad credentials
		}
	}

Access tokens issued by this service are plain JWTs with no refresh token
counterpart; callers re-authenticate when a token expires.
*/
package idpsdk
