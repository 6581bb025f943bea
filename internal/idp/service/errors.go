package service

import "errors"

// Sentinel errors surfaced by the services. Handlers map these onto the
// OAuth2 error catalogue; the distinct internal values exist so logs can tell
// which check failed even though the wire response never does.
var (
	ErrUnknownClient       = errors.New("unknown_client")
	ErrInvalidSecret       = errors.New("invalid_secret")
	ErrExpiredSecret       = errors.New("expired_secret")
	ErrGrantTypeNotAllowed = errors.New("grant_type_not_allowed")
	ErrScopeNotAllowed     = errors.New("scope_not_allowed")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrInvalidGrant        = errors.New("invalid_grant")
	ErrSubjectNotFound     = errors.New("subject_not_found")
)
