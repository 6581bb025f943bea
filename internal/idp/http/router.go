package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/service"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/httpx"
	"github.com/aussiebroadwan/idp/pkg/jwtx"
	"github.com/aussiebroadwan/idp/pkg/slogx"

	_ "github.com/aussiebroadwan/idp/api/idp" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys            *jwtx.KeySet
	verifier        *jwtx.Verifier
	issuer          string
	algorithm       string
	scopesSupported []string
	buildVersion    string
	startTime       time.Time
	logger          *slog.Logger

	store             store.Store
	TokenService      *service.TokenService
	AuthorizeService  *service.AuthorizeService
	UserService       *service.UserService
	ProfileService    *service.ProfileService
	ValidationService *service.ValidationService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier *jwtx.Verifier,
	issuer, algorithm, buildVersion string,
	scopesSupported []string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:             http.NewServeMux(),
		keys:            keys,
		verifier:        verifier,
		issuer:          issuer,
		algorithm:       algorithm,
		scopesSupported: scopesSupported,
		buildVersion:    buildVersion,
		startTime:       time.Now(),
		store:           st,
		logger:          logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerUsers()
	r.registerWellKnown()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Identity Provider API
//	@version		0.1.0
//	@description	OAuth2 and OpenID Connect identity provider issuing JWT access tokens
//	@description	for the password, client_credentials, and authorization_code grants.
//	@description
//	@description				All tokens are signed and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/idp
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		Logger:           r.logger,
	}

	// GET /authorize - lenient rate limit (only answers with a login challenge)
	r.Mux.Handle("GET /v1/oauth2/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /authorize - strict rate limit (authentication attempts)
	// Note: Rate limited by IP + username form field to prevent brute force
	r.Mux.Handle("POST /v1/oauth2/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	// POST /token - strict rate limit by IP (covers all grant types)
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth2/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /userinfo - authenticated endpoint, lenient rate limit by subject
	userInfoHandler := &UserInfoHandler{ProfileService: r.ProfileService}
	r.Mux.Handle("GET /v1/userinfo",
		httpx.Chain(userInfoHandler,
			httpx.AuthnMiddleware(r.verifier), // verify JWT (iss/aud/exp)
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	// Authenticated endpoint guarded by the users:read scope. The decision
	// is delegated to the validation service's scope policy.
	secured := httpx.Chain(http.HandlerFunc(h.HandleGet),
		httpx.AuthnMiddleware(r.verifier), // verify JWT (iss/aud/exp)
		httpx.RequireScope(r.ValidationService.AuthorizePolicy, "users:read"),
		httpx.RateLimitBySubject(httpx.LenientLimit),
	)

	r.Mux.Handle("GET /v1/users/{userId}", secured)
}

func (r *Router) registerWellKnown() {
	// Public discovery endpoints with high limits
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(DiscoveryHandler(r.issuer, r.algorithm, r.scopesSupported),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
