package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/quorumhq/sessiond/internal/session/service"
	"github.com/quorumhq/sessiond/pkg/httpx"
	"github.com/quorumhq/sessiond/pkg/sessionsdk"
	"github.com/quorumhq/sessiond/pkg/slogx"
	"github.com/quorumhq/sessiond/pkg/tokenx"
)

type RefreshHandler struct {
	Manager *service.Manager
}

// ServeHTTP rotates a refresh token into the next pair.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sessionsdk.RefreshRequest
	if err := httpx.ReadJSON(r, &req); err != nil || req.RefreshToken == "" {
		sessionsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.Manager.Rotate(ctx, req.RefreshToken, requestContext(r))
	if err != nil {
		writeTokenError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, sessionsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	})
}

// writeTokenError maps a token failure onto the API's two generic buckets:
// structurally unacceptable tokens are 401, well-formed but refused ones
// are 403. The precise reason stays server side.
func writeTokenError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tokenx.ErrMalformed), errors.Is(err, tokenx.ErrWrongKind):
		sessionsdk.ErrInvalidSession.WriteError(w)
	case errors.Is(err, tokenx.ErrExpired),
		errors.Is(err, tokenx.ErrNotYetValid),
		errors.Is(err, service.ErrStaleToken),
		errors.Is(err, service.ErrRevokedToken),
		errors.Is(err, service.ErrContextMismatch),
		errors.Is(err, service.ErrReuseDetected):
		sessionsdk.ErrSessionRejected.WriteError(w)
	default:
		slogx.FromContext(ctx).Error("token operation failed", "err", err)
		sessionsdk.ErrServerError.WriteError(w)
	}
}
