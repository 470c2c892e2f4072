package http

import (
	"net/http"

	"github.com/quorumhq/sessiond/internal/session/service"
	"github.com/quorumhq/sessiond/pkg/httpx"
	"github.com/quorumhq/sessiond/pkg/sessionsdk"
)

type LogoutHandler struct {
	Manager *service.Manager
}

// ServeHTTP ends the session the presented access token belongs to. The
// token is validated in full first, so a logout with a dead token fails
// the same way any other authenticated call would.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, ok := httpx.BearerToken(r)
	if !ok {
		sessionsdk.ErrInvalidSession.WriteError(w)
		return
	}

	if err := h.Manager.Logout(ctx, raw, requestContext(r)); err != nil {
		writeTokenError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
}
