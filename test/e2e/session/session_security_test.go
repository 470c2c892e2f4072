package session_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumhq/sessiond/pkg/sessionsdk"
)

// TestRefreshReuseCascade replays a spent refresh token and checks that the
// whole account gets logged out everywhere, the stolen-token containment
// behavior.
func TestRefreshReuseCascade(t *testing.T) {
	env := setupSessionService(t)
	ctx := context.Background()

	victim, err := env.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	other, err := env.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	rotated, err := env.client.Refresh(ctx, victim.RefreshToken)
	require.NoError(t, err)

	// Replay of the spent token: rejected, and the cascade fires.
	_, err = env.client.Refresh(ctx, victim.RefreshToken)
	requireAPIError(t, err, http.StatusForbidden, sessionsdk.ErrorCodeSessionRejected)

	// Everything the subject held is dead, including the pair minted by
	// the legitimate rotation and the unrelated second session.
	_, err = env.client.UserInfo(ctx, rotated.AccessToken)
	requireHTTPStatus(t, err, http.StatusUnauthorized)
	_, err = env.client.Refresh(ctx, rotated.RefreshToken)
	requireAPIError(t, err, http.StatusForbidden, sessionsdk.ErrorCodeSessionRejected)
	_, err = env.client.UserInfo(ctx, other.AccessToken)
	requireHTTPStatus(t, err, http.StatusUnauthorized)

	// The account itself is fine, a fresh login works.
	_, err = env.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
}

// TestPasswordChangeEndsEverySession changes the password and checks that
// every outstanding token is rejected afterwards, then the new password
// logs in.
func TestPasswordChangeEndsEverySession(t *testing.T) {
	env := setupSessionService(t)
	ctx := context.Background()

	laptop, err := env.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	phone, err := env.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	const newPassword = "second-long-password"
	require.NoError(t, env.client.ChangePassword(ctx, laptop.AccessToken, testPassword, newPassword))

	_, err = env.client.UserInfo(ctx, laptop.AccessToken)
	requireHTTPStatus(t, err, http.StatusUnauthorized)
	_, err = env.client.UserInfo(ctx, phone.AccessToken)
	requireHTTPStatus(t, err, http.StatusUnauthorized)
	_, err = env.client.Refresh(ctx, phone.RefreshToken)
	requireAPIError(t, err, http.StatusForbidden, sessionsdk.ErrorCodeSessionRejected)

	_, err = env.client.Login(ctx, testEmail, testPassword)
	requireAPIError(t, err, http.StatusUnauthorized, sessionsdk.ErrorCodeInvalidCredentials)

	fresh, err := env.client.Login(ctx, testEmail, newPassword)
	require.NoError(t, err)

	// Reusing a recent password is rejected.
	err = env.client.ChangePassword(ctx, fresh.AccessToken, newPassword, testPassword)
	requireAPIError(t, err, http.StatusUnprocessableEntity, sessionsdk.ErrorCodePasswordReused)
}

// TestPasswordResetFlow exercises the forgot-password path end to end. The
// reset token travels through the notifier, never through an HTTP response.
func TestPasswordResetFlow(t *testing.T) {
	env := setupSessionService(t)
	ctx := context.Background()

	var captured string
	env.app.Router().Notifier = func(_ context.Context, email, token string) {
		require.Equal(t, testEmail, email)
		captured = token
	}

	session, err := env.client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	// Unknown accounts get the same answer and no token.
	require.NoError(t, env.client.RequestReset(ctx, "nobody@example.com"))
	require.Empty(t, captured)

	require.NoError(t, env.client.RequestReset(ctx, testEmail))
	require.NotEmpty(t, captured)

	const resetPassword = "reset-long-password"
	require.NoError(t, env.client.CompleteReset(ctx, captured, resetPassword))

	// Completing the reset logged the account out everywhere.
	_, err = env.client.UserInfo(ctx, session.AccessToken)
	requireHTTPStatus(t, err, http.StatusUnauthorized)

	// The token is single use.
	err = env.client.CompleteReset(ctx, captured, "third-long-password")
	requireAPIError(t, err, http.StatusForbidden, sessionsdk.ErrorCodeSessionRejected)

	_, err = env.client.Login(ctx, testEmail, resetPassword)
	require.NoError(t, err)
}
