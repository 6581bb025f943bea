package httpx

import "context"

type ctxKey string

const (
	CtxKeySubject ctxKey = "subject"
	CtxKeyScopes  ctxKey = "scopes"
	CtxKeyClaims  ctxKey = "claims" // full jwtx.Claims when needed
)

func scopesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyScopes).([]string); ok {
		return v
	}
	return nil
}

// ScopesFromContext returns the scopes carried by the verified access token.
func ScopesFromContext(ctx context.Context) []string {
	return scopesFromCtx(ctx)
}

// SubjectFromContext returns the authenticated subject ID, if any.
func SubjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySubject).(string); ok {
		return v
	}
	return ""
}
