package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/idpsdk"
)

// AuthorizeHandler processes OAuth2 authorization requests (authorization code flow).
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Logger           *slog.Logger
}

// HandleGet processes GET requests to the authorization endpoint.
// There is no browser session concept here, so a GET always answers with a
// login_required challenge echoing the request parameters; the caller
// re-submits them via POST together with the resource owner's credentials.
//
//	@Summary		OAuth2 authorization endpoint (GET)
//	@Description	Initiates the OAuth2 authorization code flow via GET request.
//	@Description	Returns 401 with login_required and the echoed request parameters;
//	@Description	resubmit via POST with username and password to receive the code.
//	@Tags			OAuth2
//	@Produce		json
//	@Param			response_type			query		string					true	"Must be 'code'"	default(code)
//	@Param			client_id				query		string					true	"OAuth2 client identifier"
//	@Param			redirect_uri			query		string					true	"Callback URI (must match registered redirect URI)"
//	@Param			scope					query		string					false	"Space-delimited list of scopes"
//	@Param			state					query		string					false	"Opaque value for CSRF protection (recommended)"
//	@Param			code_challenge			query		string					false	"PKCE code challenge (required for public clients)"
//	@Param			code_challenge_method	query		string					false	"PKCE method (S256 or plain, defaults to S256)"	Enums(S256, plain)
//	@Failure		401						{object}	map[string]interface{}	"login_required with echoed parameters"
//	@Router			/v1/oauth2/authorize [get]
func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.AuthorizeService == nil {
		idpsdk.ErrServerError.WriteError(w)
		return
	}

	authReq := buildAuthorizeRequest(nil, r.URL.Query())

	payload := map[string]any{
		"error":             "login_required",
		"error_description": "user authentication required",
		"response_type":     authReq.ResponseType,
		"client_id":         authReq.ClientID,
		"redirect_uri":      authReq.RedirectURI, // Note: not validated at this point
	}
	if len(authReq.Scope) > 0 {
		payload["scope"] = strings.Join(authReq.Scope, " ")
	}
	if authReq.State != "" {
		payload["state"] = authReq.State
	}
	httpx.WriteJSON(w, http.StatusUnauthorized, payload)
}

// HandlePost processes POST requests to the authorization endpoint carrying
// resource owner credentials in the form body.
//
//	@Summary		OAuth2 authorization endpoint (POST)
//	@Description	Completes the OAuth2 authorization code flow. The resource owner
//	@Description	authenticates with username and password in the form body.
//	@Description
//	@Description	**PKCE Support:**
//	@Description	- Public clients MUST include code_challenge (defaults to S256 if method omitted)
//	@Description	- Confidential clients MAY include code_challenge for additional security
//	@Description
//	@Description	**Response:**
//	@Description	- Success: 302 redirect to redirect_uri with code and state parameters
//	@Description	- Missing credentials: 401 JSON with login_required error
//	@Description	- Error: JSON error response
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			response_type			formData	string					true	"Must be 'code'"	default(code)
//	@Param			client_id				formData	string					true	"OAuth2 client identifier"
//	@Param			redirect_uri			formData	string					true	"Callback URI (must match registered redirect URI)"
//	@Param			scope					formData	string					false	"Space-delimited list of scopes"
//	@Param			state					formData	string					false	"Opaque value for CSRF protection (recommended)"
//	@Param			code_challenge			formData	string					false	"PKCE code challenge (required for public clients)"
//	@Param			code_challenge_method	formData	string					false	"PKCE method (S256 or plain, defaults to S256)"	Enums(S256, plain)
//	@Param			username				formData	string					true	"Resource owner username"
//	@Param			password				formData	string					true	"Resource owner password"
//	@Success		302						{string}	string					"Redirect to redirect_uri with code and state"
//	@Failure		400						{object}	idpsdk.ErrorResponse	"error, error_description"
//	@Failure		401						{object}	idpsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/oauth2/authorize [post]
func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if h.AuthorizeService == nil {
		idpsdk.ErrServerError.WriteError(w)
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		idpsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		idpsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	authReq := buildAuthorizeRequest(r.Form, r.URL.Query())
	authReq.Username = strings.TrimSpace(r.Form.Get("username"))
	authReq.Password = r.Form.Get("password")

	resp, err := h.AuthorizeService.IssueAuthorizationCode(r.Context(), authReq)
	if err != nil {
		h.writeAuthorizeError(w, err)
		return
	}

	redirect, err := buildCodeRedirect(resp)
	if err != nil {
		h.Logger.Error("authorize: building redirect failed", "err", err)
		idpsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (h *AuthorizeHandler) writeAuthorizeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrLoginRequired):
		idpsdk.ErrLoginRequired.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		idpsdk.NewOAuth2Error(http.StatusUnauthorized,
			idpsdk.ErrorCodeAccessDenied, "invalid username or password").WriteError(w)
	case errors.Is(err, service.ErrUnknownClient):
		idpsdk.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrGrantTypeNotAllowed):
		idpsdk.ErrUnauthorizedClient.WriteError(w)
	case errors.Is(err, service.ErrScopeNotAllowed):
		idpsdk.ErrInvalidScope.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		idpsdk.ErrInvalidRequest.WriteError(w)
	default:
		h.Logger.Error("authorize request failed", "err", err)
		idpsdk.ErrServerError.WriteError(w)
	}
}

// buildAuthorizeRequest merges form and query parameters; form values win so
// a POST body can override anything carried over in the URL.
func buildAuthorizeRequest(form, query url.Values) service.AuthorizeRequest {
	get := func(key string) string {
		if form != nil {
			if v := form.Get(key); v != "" {
				return v
			}
		}
		return query.Get(key)
	}

	return service.AuthorizeRequest{
		ResponseType:        strings.TrimSpace(get("response_type")),
		ClientID:            strings.TrimSpace(get("client_id")),
		RedirectURI:         strings.TrimSpace(get("redirect_uri")),
		Scope:               httpx.ParseSpaceDelimitedFields(strings.TrimSpace(get("scope"))),
		State:               get("state"),
		CodeChallenge:       strings.TrimSpace(get("code_challenge")),
		CodeChallengeMethod: strings.TrimSpace(get("code_challenge_method")),
	}
}

func buildCodeRedirect(resp *service.AuthorizeCodeResponse) (string, error) {
	u, err := url.Parse(resp.RedirectURI)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("code", resp.Code)
	if resp.State != "" {
		q.Set("state", resp.State)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
