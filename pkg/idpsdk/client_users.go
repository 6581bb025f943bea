package idpsdk

import (
	"context"
	"net/http"
	"net/url"
)

// GetUser fetches the public projection of a user by subject identifier.
// Requires an access token carrying the users:read scope.
func (c *SDKClient) GetUser(ctx context.Context, accessToken, userID string) (*UserResponse, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID), accessToken, nil)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserInfo fetches the OIDC UserInfo claims for the token's subject.
// The claims returned depend on the scopes granted to the access token.
func (c *SDKClient) GetUserInfo(ctx context.Context, accessToken string) (*UserInfoResponse, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, "/v1/userinfo", accessToken, nil)
	if err != nil {
		return nil, err
	}

	var info UserInfoResponse
	if err := decodeJSON(resp, &info, http.StatusOK); err != nil {
		return nil, err
	}

	return &info, nil
}
