package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/idpsdk"
	"github.com/aussiebroadwan/idp/pkg/slogx"
)

// UsersHandler serves the internal user lookup API.
type UsersHandler struct {
	UserService *service.UserService
}

// HandleGet godoc
//
//	@Summary		Get user by ID
//	@Description	Returns the public projection of a user. Requires 'users:read' scope.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			userId	path		string					true	"Subject identifier of the user"
//	@Success		200		{object}	idpsdk.UserResponse		"sub, email, userName"
//	@Failure		401		{object}	idpsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		403		{object}	idpsdk.ErrorResponse	"Missing required scope"
//	@Failure		404		{object}	idpsdk.ErrorResponse	"User not found"
//	@Router			/v1/users/{userId} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := strings.TrimSpace(r.PathValue("userId"))
	if userID == "" {
		idpsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrSubjectNotFound) {
			idpsdk.ErrUserNotFound.WriteError(w)
			return
		}
		log.Error("user lookup failed", "user_id", userID, "err", err)
		idpsdk.ErrServerError.WriteError(w)
		return
	}

	response := idpsdk.UserResponse{
		Sub:      user.Sub,
		Email:    user.Email,
		UserName: user.UserName,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
