package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/handlers"
	"masterboxer.com/vibe-feed/metrics"
)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *auth.Issuer) {
	t.Helper()
	iss, err := auth.NewIssuer("route-secret", time.Hour)
	require.NoError(t, err)
	app := &handlers.App{Issuer: iss, Metrics: metrics.New("routes-test")}
	return NewRouter(app, okPinger{}), iss
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/feed?view=trend"},
		{http.MethodGet, "/stories"},
		{http.MethodPost, "/posts"},
		{http.MethodPut, "/posts/p1/rsvp"},
		{http.MethodPost, "/users/u2/follow"},
		{http.MethodPost, "/places/follow"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestRejectsForgedToken(t *testing.T) {
	router, _ := newTestRouter(t)
	other, _ := auth.NewIssuer("someone-else", time.Hour)
	token, err := other.Issue("u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/stories", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "routes_test_http_requests_total")
}

func TestUnknownViewIsBadRequest(t *testing.T) {
	router, iss := newTestRouter(t)
	token, err := iss.Issue("u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/feed?view=for-you", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
