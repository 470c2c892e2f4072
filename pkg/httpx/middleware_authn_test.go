package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quorumhq/sessiond/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	subject string
	err     error

	gotRaw string
	gotIP  string
	gotUA  string
}

func (f *fakeValidator) ValidateAccess(_ context.Context, raw, ipHash, uaHash string) (string, error) {
	f.gotRaw, f.gotIP, f.gotUA = raw, ipHash, uaHash
	return f.subject, f.err
}

func TestAuthnMiddleware(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(httpx.SubjectFromContext(r.Context())))
	})

	t.Run("missing header", func(t *testing.T) {
		v := &fakeValidator{subject: "user-1"}
		rec := httptest.NewRecorder()

		httpx.AuthnMiddleware(v)(echo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("rejected token", func(t *testing.T) {
		v := &fakeValidator{err: errors.New("nope")}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rec := httptest.NewRecorder()

		httpx.AuthnMiddleware(v)(echo).ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepted token injects subject and fingerprints", func(t *testing.T) {
		v := &fakeValidator{subject: "user-1"}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		req.Header.Set("User-Agent", "test-agent")
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()

		httpx.AuthnMiddleware(v)(echo).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", rec.Body.String())
		require.Equal(t, "good-token", v.gotRaw)
		require.NotEmpty(t, v.gotIP)
		require.NotEmpty(t, v.gotUA)
		require.NotEqual(t, v.gotIP, v.gotUA)
	})
}
