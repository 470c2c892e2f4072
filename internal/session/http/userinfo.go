package http

import (
	"net/http"

	"github.com/quorumhq/sessiond/internal/session/service"
	"github.com/quorumhq/sessiond/pkg/httpx"
	"github.com/quorumhq/sessiond/pkg/sessionsdk"
	"github.com/quorumhq/sessiond/pkg/slogx"
)

type UserInfoHandler struct {
	Credentials *service.CredentialService
}

// ServeHTTP returns the authenticated identity summary.
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromContext(ctx)
	if subject == "" {
		sessionsdk.ErrInvalidSession.WriteError(w)
		return
	}

	user, err := h.Credentials.GetUser(ctx, subject)
	if err != nil {
		log.Warn("failed to load user", "subject", subject, "err", err)
		sessionsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionsdk.UserInfo{
		Subject: user.ID,
		Email:   user.Email,
	})
}
