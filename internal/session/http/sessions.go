package http

import (
	"net/http"
	"sort"

	"github.com/quorumhq/sessiond/internal/session/service"
	"github.com/quorumhq/sessiond/pkg/httpx"
	"github.com/quorumhq/sessiond/pkg/sessionsdk"
	"github.com/quorumhq/sessiond/pkg/slogx"
	"github.com/quorumhq/sessiond/pkg/tokenx"
)

type SessionsHandler struct {
	Manager *service.Manager
}

// ServeHTTP lists the subject's live sessions, one entry per session id.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromContext(ctx)
	if subject == "" {
		sessionsdk.ErrInvalidSession.WriteError(w)
		return
	}

	// The middleware already validated the token; decode again only to
	// learn which session id this request belongs to.
	currentSID := ""
	if raw, ok := httpx.BearerToken(r); ok {
		if claims, err := h.Manager.Codec.Decode(raw, tokenx.KindAccess); err == nil {
			currentSID = claims.SID
		}
	}

	metas, err := h.Manager.ListSessions(ctx, subject)
	if err != nil {
		log.Error("session listing failed", "subject", subject, "err", err)
		sessionsdk.ErrServerError.WriteError(w)
		return
	}

	// Access and refresh entries of one login collapse into one row.
	bySID := make(map[string]sessionsdk.SessionInfo)
	for _, m := range metas {
		if m.SID == "" {
			// Reset and verification tokens are not sessions.
			continue
		}
		info, ok := bySID[m.SID]
		if !ok {
			info = sessionsdk.SessionInfo{
				SID:       m.SID,
				IPHash:    m.IPHash,
				UAHash:    m.UAHash,
				CreatedAt: m.CreatedAt,
				Current:   m.SID == currentSID,
			}
		}
		if m.CreatedAt.Before(info.CreatedAt) {
			info.CreatedAt = m.CreatedAt
		}
		if m.LastSeen.After(info.LastSeen) {
			info.LastSeen = m.LastSeen
		}
		bySID[m.SID] = info
	}

	sessions := make([]sessionsdk.SessionInfo, 0, len(bySID))
	for _, info := range bySID {
		sessions = append(sessions, info)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
