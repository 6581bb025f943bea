package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/idpsdk"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// UserInfoHandler serves the OIDC UserInfo endpoint. The claims returned
// depend on the identity resources unlocked by the token's scopes.
type UserInfoHandler struct {
	ProfileService *service.ProfileService
}

// ServeHTTP godoc
//
//	@Summary		Get UserInfo claims
//	@Description	Returns OIDC claims for the authenticated subject. The claim set is
//	@Description	determined by the identity resources the token's scopes unlock.
//	@Tags			OAuth2
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	idpsdk.UserInfoResponse	"sub plus scope-dependent claims"
//	@Failure		401	{object}	idpsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		500	{object}	idpsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/userinfo [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subjectID := httpx.SubjectFromContext(ctx)
	if subjectID == "" {
		// Client-credentials tokens carry no subject.
		idpsdk.ErrInvalidToken.WriteError(w)
		return
	}

	claimTypes, err := h.ProfileService.ClaimTypesForScopes(ctx, httpx.ScopesFromContext(ctx))
	if err != nil {
		log.Error("userinfo: resolving claim types failed", "err", err)
		idpsdk.ErrServerError.WriteError(w)
		return
	}
	claimTypes = append(claimTypes, "email_verified")

	claims, err := h.ProfileService.GetClaims(ctx, subjectID, claimTypes)
	if err != nil {
		if errors.Is(err, service.ErrSubjectNotFound) {
			idpsdk.ErrInvalidToken.WriteError(w)
			return
		}
		log.Error("userinfo: loading claims failed", "sub", subjectID, "err", err)
		idpsdk.ErrServerError.WriteError(w)
		return
	}

	allowed := make(map[string]bool, len(claimTypes))
	for _, t := range claimTypes {
		allowed[t] = true
	}

	response := idpsdk.UserInfoResponse{Sub: subjectID}
	for _, c := range claims {
		switch c.Type {
		case "name":
			if allowed["name"] {
				response.Name = c.Value
			}
		case "preferred_username":
			response.PreferredUsername = c.Value
		case "email":
			if allowed["email"] {
				response.Email = c.Value
			}
		case "email_verified":
			if allowed["email"] {
				verified, _ := strconv.ParseBool(c.Value)
				response.EmailVerified = &verified
			}
		}
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
