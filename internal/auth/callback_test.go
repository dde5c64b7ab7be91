package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupes/internal/types"
)

func TestNewCallbackServerValidatesRedirect(t *testing.T) {
	a, _ := newTestAuthenticator(t, "https://login.example.com/token")

	for _, uri := range []string{
		"https://localhost:8765/callback",
		"http://example.com:8765/callback",
		"http://localhost/callback",
	} {
		_, err := NewCallbackServer(a, uri)
		assert.Error(t, err, uri)
	}

	s, err := NewCallbackServer(a, "http://127.0.0.1:8765/oauth/callback")
	require.NoError(t, err)
	assert.Equal(t, "/oauth/callback", s.path)
}

func TestCallbackHandlerCompletesLogin(t *testing.T) {
	ts := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		io.WriteString(w, `{"access_token": "at", "refresh_token": "rt", "token_type": "Bearer", "expires_in": 60}`)
	})
	a, store := newTestAuthenticator(t, ts.URL)
	ctx := context.Background()
	require.NoError(t, store.SavePending(ctx, &types.PendingAuth{Verifier: "v", State: "st"}))

	s, err := NewCallbackServer(a, "http://localhost:8765/callback")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=c&state=st", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Logged in")

	sess, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at", sess.AccessToken)
}

func TestCallbackHandlerReportsDenial(t *testing.T) {
	a, _ := newTestAuthenticator(t, "https://login.example.com/token")
	s, err := NewCallbackServer(a, "http://localhost:8765/callback")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&error_description=user+cancelled", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err = s.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}
