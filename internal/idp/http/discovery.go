package http

import (
	"net/http"

	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/idpsdk"
)

// DiscoveryHandler serves the OIDC discovery document. The document is
// static for the process lifetime, so it is built once at registration.
//
//	@Summary		OIDC Discovery Document
//	@Description	Returns the OpenID Connect discovery metadata for this issuer.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	idpsdk.DiscoveryResponse	"Issuer metadata"
//	@Router			/.well-known/openid-configuration [get].
func DiscoveryHandler(issuer, algorithm string, scopesSupported []string) http.HandlerFunc {
	doc := idpsdk.DiscoveryResponse{
		Issuer:                 issuer,
		AuthorizationEndpoint:  issuer + "/v1/oauth2/authorize",
		TokenEndpoint:          issuer + "/v1/oauth2/token",
		UserInfoEndpoint:       issuer + "/v1/userinfo",
		JWKSURI:                issuer + "/.well-known/jwks.json",
		ResponseTypesSupported: []string{"code"},
		GrantTypesSupported: []string{
			"password",
			"client_credentials",
			"authorization_code",
		},
		ScopesSupported:                   scopesSupported,
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post"},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{algorithm},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, doc)
	}
}
