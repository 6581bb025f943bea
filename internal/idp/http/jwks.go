package http

import (
	"net/http"

	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/idpsdk"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify JWTs.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	idpsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, idpsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
