package http

import (
	"errors"
	"net/http"

	"github.com/quorumhq/sessiond/internal/session/service"
	"github.com/quorumhq/sessiond/internal/session/store"
	"github.com/quorumhq/sessiond/pkg/httpx"
	"github.com/quorumhq/sessiond/pkg/sessionsdk"
	"github.com/quorumhq/sessiond/pkg/slogx"
)

type PasswordHandler struct {
	Manager     *service.Manager
	Credentials *service.CredentialService
	Notifier    ResetNotifier
}

// HandleChange changes the authenticated subject's password. Every live
// session of the subject is ended, the one making this request included.
func (h *PasswordHandler) HandleChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromContext(ctx)
	if subject == "" {
		sessionsdk.ErrInvalidSession.WriteError(w)
		return
	}

	var req sessionsdk.ChangePasswordRequest
	if err := httpx.ReadJSON(r, &req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		sessionsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if _, err := h.Credentials.ChangePassword(ctx, subject, req.CurrentPassword, req.NewPassword); err != nil {
		writePasswordError(w, err)
		return
	}

	// The credential version bump already stales every outstanding token;
	// dropping the session entries is cleanup, not the security boundary.
	if err := h.Manager.InvalidateAll(ctx, subject); err != nil {
		log.Warn("session cleanup after password change failed", "subject", subject, "err", err)
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetRequest mints a reset token and hands it to the notifier. The
// response is 202 whether or not the account exists.
func (h *PasswordHandler) HandleResetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req sessionsdk.ResetRequest
	if err := httpx.ReadJSON(r, &req); err != nil || req.Email == "" {
		sessionsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.Credentials.FindUserByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Fall through to the uniform 202.
	case err != nil:
		log.Error("reset lookup failed", "err", err)
	case user.Locked:
		// Locked accounts cannot reset their way back in.
	default:
		token, err := h.Manager.IssueReset(ctx, user.ID)
		if err != nil {
			log.Error("reset token issuance failed", "subject", user.ID, "err", err)
		} else {
			h.Notifier(ctx, user.Email, token)
		}
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleResetComplete spends a reset token and installs the new password.
func (h *PasswordHandler) HandleResetComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req sessionsdk.CompleteResetRequest
	if err := httpx.ReadJSON(r, &req); err != nil || req.ResetToken == "" || req.NewPassword == "" {
		sessionsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	subject, err := h.Manager.ConsumeReset(ctx, req.ResetToken)
	if err != nil {
		writeTokenError(ctx, w, err)
		return
	}

	if _, err := h.Credentials.ResetPassword(ctx, subject, req.NewPassword); err != nil {
		// The reset token is already spent at this point; the caller must
		// request a new one after fixing the password.
		writePasswordError(w, err)
		return
	}

	if err := h.Manager.InvalidateAll(ctx, subject); err != nil {
		log.Warn("session cleanup after password reset failed", "subject", subject, "err", err)
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func writePasswordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		sessionsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrAccountLocked):
		sessionsdk.ErrAccountLocked.WriteError(w)
	case errors.Is(err, service.ErrPasswordReused):
		sessionsdk.ErrPasswordReused.WriteError(w)
	case errors.Is(err, service.ErrWeakPassword):
		sessionsdk.ErrWeakPassword.WriteError(w)
	default:
		sessionsdk.ErrServerError.WriteError(w)
	}
}
