package session_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/quorumhq/sessiond/internal/session/app"
	"github.com/quorumhq/sessiond/pkg/sessionsdk"
)

/*
 * Common helpers for session service end-to-end tests. The service runs
 * in-process against an embedded Redis and an in-memory SQLite database,
 * and the tests drive it exclusively through the public SDK.
 */

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-horse-battery"
)

type testEnv struct {
	client *sessionsdk.Client
	app    *app.Application
	mr     *miniredis.Miniredis
}

// setupSessionService boots the full application stack and returns an SDK
// client pointed at it. The registered test account is ready to log in.
func setupSessionService(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	dir := t.TempDir()

	cfg := app.Config{
		Issuer:   "sessiond-e2e",
		Audience: "rbac-admin-e2e",

		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
		ResetSecret:   strings.Repeat("p", 32),
		VerifySecret:  strings.Repeat("v", 32),

		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ResetTTL:   30 * time.Minute,
		VerifyTTL:  48 * time.Hour,
		ClockSkew:  30 * time.Second,

		RedisAddr:    mr.Addr(),
		StoreTimeout: 3 * time.Second,

		DatabaseFile: ":memory:",
		PepperFile:   filepath.Join(dir, "pepper"),

		Env:                 "test",
		LogLevel:            "error",
		LogFormat:           "text",
		ShutdownGracePeriod: time.Second,
	}

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Shutdown() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	_, err = application.Credentials().Register(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	return &testEnv{
		client: sessionsdk.NewClient(srv.URL),
		app:    application,
		mr:     mr,
	}
}

// requireAPIError asserts that err is a typed *APIError with the given
// status and code.
func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()

	var apiErr *sessionsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
}

// requireHTTPStatus asserts the status of a failed SDK call when the body
// carries no error envelope, like bearer middleware rejections.
func requireHTTPStatus(t *testing.T, err error, status int) {
	t.Helper()

	var apiErr *sessionsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
}
