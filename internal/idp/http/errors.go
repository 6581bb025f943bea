package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/idpsdk"
)

// writeTokenError maps token service errors onto RFC 6749 error bodies.
// Client authentication failures (unknown client, wrong or expired secret)
// all collapse into invalid_client so callers can't probe which part failed.
func writeTokenError(w http.ResponseWriter, log *slog.Logger, grantType string, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownClient),
		errors.Is(err, service.ErrInvalidSecret),
		errors.Is(err, service.ErrExpiredSecret):
		idpsdk.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrGrantTypeNotAllowed):
		idpsdk.ErrUnauthorizedClient.WriteError(w)
	case errors.Is(err, service.ErrScopeNotAllowed):
		idpsdk.ErrInvalidScope.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidGrant),
		errors.Is(err, service.ErrSubjectNotFound):
		idpsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidRequest):
		idpsdk.ErrInvalidRequest.WriteError(w)
	default:
		log.Error("token grant failed", "grant_type", grantType, "err", err)
		idpsdk.ErrServerError.WriteError(w)
	}
}

func writeTokenResponse(w http.ResponseWriter, pair *domain.TokenPair) {
	response := idpsdk.TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   pair.TokenType,
		ExpiresIn:   int(pair.ExpiresIn.Seconds()),
		Scope:       pair.Scope,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
