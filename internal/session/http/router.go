package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/quorumhq/sessiond/internal/session/domain"
	"github.com/quorumhq/sessiond/internal/session/service"
	"github.com/quorumhq/sessiond/internal/session/store"
	"github.com/quorumhq/sessiond/pkg/httpx"
	"github.com/quorumhq/sessiond/pkg/slogx"
)

// ResetNotifier delivers a freshly minted password reset token to the
// account holder. The HTTP response never carries the token.
type ResetNotifier func(ctx context.Context, email, token string)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	sessions store.SessionStore
	users    store.UserStore

	Manager     *service.Manager
	Credentials *service.CredentialService

	// Notifier receives reset tokens. Defaults to an audit-log entry.
	Notifier ResetNotifier
}

func NewRouter(
	buildVersion string,
	sessions store.SessionStore,
	users store.UserStore,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		sessions:     sessions,
		users:        users,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	r.Notifier = func(ctx context.Context, email, token string) {
		// Mail delivery is owned by the platform; record issuance only.
		slogx.Audit(ctx, "password_reset_issued", slog.String("email", email))
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerAccount()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSession() {
	login := &LoginHandler{Manager: r.Manager, Credentials: r.Credentials}
	refresh := &RefreshHandler{Manager: r.Manager}
	logout := &LogoutHandler{Manager: r.Manager}

	// Credential-bearing endpoints get the strict profile.
	r.Mux.Handle("POST /v1/session/login",
		httpx.Chain(login, httpx.RateLimitByIP(httpx.StrictLimit)))
	r.Mux.Handle("POST /v1/session/refresh",
		httpx.Chain(refresh, httpx.RateLimitByIP(httpx.ModerateLimit)))
	// Logout validates its own bearer token, no authn middleware needed.
	r.Mux.Handle("POST /v1/session/logout",
		httpx.Chain(logout, httpx.RateLimitByIP(httpx.ModerateLimit)))
}

func (r *Router) registerAccount() {
	password := &PasswordHandler{
		Manager:     r.Manager,
		Credentials: r.Credentials,
		Notifier:    func(ctx context.Context, email, token string) { r.Notifier(ctx, email, token) },
	}
	sessions := &SessionsHandler{Manager: r.Manager}
	userinfo := &UserInfoHandler{Credentials: r.Credentials}

	r.Mux.Handle("POST /v1/session/password",
		httpx.Chain(http.HandlerFunc(password.HandleChange),
			httpx.AuthnMiddleware(r.Manager),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		))
	r.Mux.Handle("POST /v1/session/password/reset",
		httpx.Chain(http.HandlerFunc(password.HandleResetRequest),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
	r.Mux.Handle("PUT /v1/session/password/reset",
		httpx.Chain(http.HandlerFunc(password.HandleResetComplete),
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
	r.Mux.Handle("GET /v1/session/sessions",
		httpx.Chain(sessions,
			httpx.AuthnMiddleware(r.Manager),
			httpx.RateLimitBySubject(httpx.LenientLimit),
		))
	r.Mux.Handle("GET /v1/userinfo",
		httpx.Chain(userinfo,
			httpx.AuthnMiddleware(r.Manager),
			httpx.RateLimitBySubject(httpx.LenientLimit),
		))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.users, r.sessions))
}

// requestContext fingerprints the calling client for token binding.
func requestContext(r *http.Request) domain.RequestContext {
	return domain.RequestContext{
		IPHash: httpx.FingerprintIP(r),
		UAHash: httpx.FingerprintUA(r),
	}
}
