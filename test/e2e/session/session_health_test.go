package session_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReadinessTracksSessionStore verifies the probe flips when the session
// store goes away. Token checks fail closed during an outage, so a degraded
// instance must stop receiving traffic.
func TestReadinessTracksSessionStore(t *testing.T) {
	env := setupSessionService(t)
	ctx := context.Background()

	require.NoError(t, env.client.Healthy(ctx))

	pair, err := env.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	env.mr.Close()

	err = env.client.Healthy(ctx)
	requireHTTPStatus(t, err, http.StatusServiceUnavailable)

	// Outstanding tokens are rejected, not accepted, while the store is down.
	_, err = env.client.UserInfo(ctx, pair.AccessToken)
	requireHTTPStatus(t, err, http.StatusUnauthorized)
}
