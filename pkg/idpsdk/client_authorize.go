package idpsdk

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/idp/pkg/cryptox"
)

// PKCEChallenge holds the PKCE verifier and challenge pair. The verifier is
// kept secret by the client, and the challenge is sent to the authorization
// endpoint.
type PKCEChallenge struct {
	// Verifier is the high-entropy cryptographic random string (kept secret)
	Verifier string

	// Challenge is the base64url-encoded SHA256 hash of the verifier (sent to server)
	Challenge string

	// Method is always "S256" for SHA256
	Method string
}

// GeneratePKCEChallenge creates a new PKCE code verifier and challenge pair.
// Uses cryptox.TokenSize256 (256 bits of entropy) and SHA256 hashing per RFC 7636.
func GeneratePKCEChallenge() (*PKCEChallenge, error) {
	verifier, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	return &PKCEChallenge{
		Verifier:  verifier,
		Challenge: challenge,
		Method:    "S256",
	}, nil
}

// BuildAuthorizeURL constructs an OAuth2 authorization URL for the
// authorization code flow. Redirect the user's browser here to present the
// login form and begin the flow.
func (c *SDKClient) BuildAuthorizeURL(
	clientID, redirectURI, state string,
	scopes []string,
	pkce *PKCEChallenge,
) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", clientID)
	params.Set("redirect_uri", redirectURI)

	if state != "" {
		params.Set("state", state)
	}
	if len(scopes) > 0 {
		params.Set("scope", strings.Join(scopes, " "))
	}
	if pkce != nil {
		params.Set("code_challenge", pkce.Challenge)
		params.Set("code_challenge_method", pkce.Method)
	}

	return fmt.Sprintf("%s/v1/oauth2/authorize?%s", c.BaseURL, params.Encode())
}

// AuthorizeWithPassword performs authorization using username and password.
// This is for server-side flows where credentials are collected directly;
// the SDK posts them to the authorize endpoint and captures the redirect
// instead of following it.
//
// Returns the authorization code response on success.
func (c *SDKClient) AuthorizeWithPassword(
	ctx context.Context,
	clientID, redirectURI, username, password, state string,
	scopes []string,
	pkce *PKCEChallenge,
) (*AuthorizeResponse, error) {
	data := url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
		"username":      {username},
		"password":      {password},
	}

	if state != "" {
		data.Set("state", state)
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}
	if pkce != nil {
		data.Set("code_challenge", pkce.Challenge)
		data.Set("code_challenge_method", pkce.Method)
	}

	// The redirect target is the client's callback, not ours to follow.
	noRedirectClient := &http.Client{
		Timeout: c.HTTPClient.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.BaseURL+"/v1/oauth2/authorize",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := noRedirectClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusFound {
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, fmt.Errorf("redirect response missing Location header")
		}

		code, returnedState, err := ParseAuthorizationCallback(location)
		if err != nil {
			return nil, err
		}

		return &AuthorizeResponse{
			Code:        code,
			State:       returnedState,
			RedirectURI: redirectURI,
		}, nil
	}

	if err := parseErrorResponse(resp, bodyBytes); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("authorize request failed with status %d: %s",
		resp.StatusCode, string(bodyBytes))
}

// AuthorizeAndExchange is a convenience method that performs the complete
// authorization code flow in one call: PKCE generation, authorization with
// password credentials, and the code-for-token exchange.
func (c *SDKClient) AuthorizeAndExchange(
	ctx context.Context,
	clientID, clientSecret, redirectURI, username, password string,
	scopes []string,
) (*TokenResponse, error) {
	pkce, err := GeneratePKCEChallenge()
	if err != nil {
		return nil, err
	}

	auth, err := c.AuthorizeWithPassword(ctx, clientID, redirectURI, username, password, "", scopes, pkce)
	if err != nil {
		return nil, err
	}

	return c.AuthorizationCodeGrant(ctx, clientID, clientSecret, auth.Code, redirectURI, pkce.Verifier)
}

// ParseAuthorizationCallback parses the callback URL from an authorization
// redirect and extracts the authorization code and state.
func ParseAuthorizationCallback(callbackURL string) (code, state string, err error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse callback URL: %w", err)
	}

	query := u.Query()

	if errorCode := query.Get("error"); errorCode != "" {
		errorDesc := query.Get("error_description")
		return "", "", fmt.Errorf("authorization error: %s - %s", errorCode, errorDesc)
	}

	code = query.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("callback missing authorization code")
	}

	return code, query.Get("state"), nil
}
