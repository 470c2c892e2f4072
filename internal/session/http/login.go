package http

import (
	"errors"
	"net/http"

	"github.com/quorumhq/sessiond/internal/session/service"
	"github.com/quorumhq/sessiond/pkg/httpx"
	"github.com/quorumhq/sessiond/pkg/sessionsdk"
	"github.com/quorumhq/sessiond/pkg/slogx"
)

type LoginHandler struct {
	Manager     *service.Manager
	Credentials *service.CredentialService
}

// ServeHTTP authenticates an email/password pair and issues a token pair.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req sessionsdk.LoginRequest
	if err := httpx.ReadJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		sessionsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.Credentials.VerifyPassword(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			sessionsdk.ErrInvalidCredentials.WriteError(w)
		case errors.Is(err, service.ErrAccountLocked):
			sessionsdk.ErrAccountLocked.WriteError(w)
		default:
			log.Error("login failed", "err", err)
			sessionsdk.ErrServerError.WriteError(w)
		}
		return
	}

	pair, err := h.Manager.Issue(ctx, user.ID, user.CredentialVersion, requestContext(r))
	if err != nil {
		log.Error("token issuance failed", "subject", user.ID, "err", err)
		sessionsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, sessionsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	})
}
