package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/idpsdk"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// TokenHandler serves POST /v1/oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues JWT access tokens using OAuth2 grant types (password, client_credentials, authorization_code).
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(password, client_credentials, authorization_code)
//	@Param			client_id		formData	string					true	"Client identifier (required for all grants)"
//	@Param			client_secret	formData	string					false	"Client secret (required for confidential clients)"
//	@Param			username		formData	string					false	"Resource owner username (required for password grant)"
//	@Param			password		formData	string					false	"Resource owner password (required for password grant)"
//	@Param			code			formData	string					false	"Authorization code (required for authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI (required for authorization_code grant)"
//	@Param			code_verifier	formData	string					false	"PKCE code_verifier (required when PKCE was used)"
//	@Param			scope			formData	string					false	"Space-delimited list of scopes"
//	@Success		200				{object}	idpsdk.TokenResponse	"access_token, token_type, expires_in, scope"
//	@Failure		400				{object}	idpsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	idpsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	idpsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/v1/oauth2/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		idpsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		idpsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	switch r.Form.Get("grant_type") {
	case "password":
		h.handlePasswordGrant(w, r, r.Form)
	case "client_credentials":
		h.handleClientCredentialsGrant(w, r, r.Form)
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, r.Form)
	default:
		idpsdk.ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *TokenHandler) handlePasswordGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID := strings.TrimSpace(form.Get("client_id"))
	clientSecret := form.Get("client_secret")
	username := strings.TrimSpace(form.Get("username"))
	password := form.Get("password")
	requested := httpx.ParseSpaceDelimitedFields(strings.TrimSpace(form.Get("scope")))

	if clientID == "" || clientSecret == "" || username == "" || password == "" {
		idpsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangePassword(ctx, clientID, clientSecret, username, password, requested)
	if err != nil {
		writeTokenError(w, log, "password", err)
		return
	}

	writeTokenResponse(w, pair)
}

func (h *TokenHandler) handleClientCredentialsGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID := strings.TrimSpace(form.Get("client_id"))
	clientSecret := form.Get("client_secret")
	requested := httpx.ParseSpaceDelimitedFields(strings.TrimSpace(form.Get("scope")))

	// Both client_id and client_secret are required for client_credentials grant
	if clientID == "" || clientSecret == "" {
		idpsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeClientCredentials(ctx, clientID, clientSecret, requested)
	if err != nil {
		writeTokenError(w, log, "client_credentials", err)
		return
	}

	writeTokenResponse(w, pair)
}

func (h *TokenHandler) handleAuthorizationCodeGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID := strings.TrimSpace(form.Get("client_id"))
	clientSecret := form.Get("client_secret")
	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	codeVerifier := strings.TrimSpace(form.Get("code_verifier"))

	if code == "" || redirectURI == "" || clientID == "" {
		idpsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeAuthorizationCode(ctx, clientID, clientSecret, code, redirectURI, codeVerifier)
	if err != nil {
		writeTokenError(w, log, "authorization_code", err)
		return
	}

	writeTokenResponse(w, pair)
}
