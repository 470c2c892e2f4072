package http

import (
	"net/http"
	"time"

	"github.com/quorumhq/sessiond/internal/session/store"
	"github.com/quorumhq/sessiond/pkg/httpx"
	"github.com/quorumhq/sessiond/pkg/sessionsdk"
)

// ReadyzHandler is the readiness probe. The service is only ready when both
// the user database and the session store answer; a session store outage
// means every token check fails closed, so the instance should stop
// receiving traffic.
func ReadyzHandler(
	startTime time.Time,
	version string,
	users store.UserStore,
	sessions store.SessionStore,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &sessionsdk.HealthChecks{
			Database:     "ok",
			SessionStore: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := users.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := sessions.Ping(r.Context()); err != nil {
			checks.SessionStore = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, sessionsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
