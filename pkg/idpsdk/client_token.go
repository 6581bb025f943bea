package idpsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// PasswordGrant requests an access token using the OAuth2 resource owner
// password grant. The client must be allowed the "password" grant type and
// the resource owner authenticates with username and password.
func (c *SDKClient) PasswordGrant(
	ctx context.Context,
	clientID, clientSecret, username, password string,
	scopes []string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"password"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"username":      {username},
		"password":      {password},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	return c.requestToken(ctx, data)
}

// ClientCredentialsGrant requests an access token using the OAuth2
// client_credentials grant. This grant is used for machine-to-machine
// authentication where a client authenticates as itself; the resulting
// token has no subject.
func (c *SDKClient) ClientCredentialsGrant(
	ctx context.Context,
	clientID, clientSecret string,
	scopes []string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	return c.requestToken(ctx, data)
}

// AuthorizationCodeGrant redeems an authorization code for an access token.
// Public clients pass an empty clientSecret and must supply the PKCE
// codeVerifier matching the challenge sent to the authorization endpoint.
func (c *SDKClient) AuthorizationCodeGrant(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI, codeVerifier string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {clientID},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	if clientSecret != "" {
		data.Set("client_secret", clientSecret)
	}
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}

	return c.requestToken(ctx, data)
}

func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/oauth2/token",
		strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokenResp, nil
}
