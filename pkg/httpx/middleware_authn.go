package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/quorumhq/sessiond/pkg/cryptox"
	"github.com/quorumhq/sessiond/pkg/slogx"
)

// AccessValidator runs the full acceptance check for an access token and
// returns the subject it belongs to. The ip/ua arguments are fingerprints
// of the calling request, used when context binding is enabled.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, raw, ipHash, uaHash string) (string, error)
}

// AuthnMiddleware authenticates requests with a bearer access token and
// injects the subject into the request context. Rejections carry a generic
// description only; the specific failure is logged server side.
func AuthnMiddleware(v AccessValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			subject, err := v.ValidateAccess(ctx, raw, FingerprintIP(r), FingerprintUA(r))
			if err != nil {
				writeBearerError(w, "invalid session")
				log.Warn("access token rejected", "err", err)
				return
			}

			ctx = context.WithValue(ctx, CtxKeySubject, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	return raw, raw != ""
}

// FingerprintIP hashes the client IP. Raw addresses never reach token
// claims or the session store.
func FingerprintIP(r *http.Request) string {
	return cryptox.Fingerprint(ClientIP(r))
}

// FingerprintUA hashes the client user agent.
func FingerprintUA(r *http.Request) string {
	return cryptox.Fingerprint(r.UserAgent())
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
