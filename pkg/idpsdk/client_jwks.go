package idpsdk

import (
	"context"
	"net/http"
)

// GetJWKS fetches the JSON Web Key Set from the well-known endpoint. The
// returned keys verify JWT access token signatures.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwks, nil
}

// GetDiscovery fetches the OIDC discovery document.
func (c *SDKClient) GetDiscovery(ctx context.Context) (*DiscoveryResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/openid-configuration", nil, nil)
	if err != nil {
		return nil, err
	}

	var doc DiscoveryResponse
	if err := decodeJSON(resp, &doc, http.StatusOK); err != nil {
		return nil, err
	}

	return &doc, nil
}
