package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconrep/falconrep/internal/remote"
	"github.com/falconrep/falconrep/internal/session"
)

type fakeAPI struct {
	online     bool
	loginRes   *remote.LoginResult
	loginError error
}

func (f *fakeAPI) Online(ctx context.Context) bool { return f.online }

func (f *fakeAPI) Login(ctx context.Context, username, password string) (*remote.LoginResult, error) {
	if f.loginError != nil {
		return nil, f.loginError
	}
	return f.loginRes, nil
}

func (f *fakeAPI) ValidateSession(ctx context.Context, repID int64) (bool, error) {
	return true, nil
}

func newTestHandler(t *testing.T, api API) (chi.Router, *session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := session.NewStore(client, time.Hour)

	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), api, sessions)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, sessions
}

func TestLoginSuccess(t *testing.T) {
	api := &fakeAPI{
		online:   true,
		loginRes: &remote.LoginResult{Status: "success", RepID: 9, Username: "kasun", FullName: "Kasun Perera"},
	}
	router, sessions := newTestHandler(t, api)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"kasun","password":"secret"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Kasun Perera")

	rep, err := sessions.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), rep.RepID)
}

func TestLoginRejectedCredentials(t *testing.T) {
	api := &fakeAPI{loginError: remote.ErrLoginFailed}
	router, _ := newTestHandler(t, api)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"kasun","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginOffline(t *testing.T) {
	api := &fakeAPI{loginError: remote.ErrOffline}
	router, _ := newTestHandler(t, api)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"kasun","password":"secret"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	router, _ := newTestHandler(t, &fakeAPI{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"kasun"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionWithoutLogin(t *testing.T) {
	router, _ := newTestHandler(t, &fakeAPI{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDayLifecycleOverHTTP(t *testing.T) {
	router, sessions := newTestHandler(t, &fakeAPI{online: true})
	_, err := sessions.SignIn(context.Background(), 9, "kasun", "Kasun Perera")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/day/start",
		strings.NewReader(`{"route_id":3,"route_name":"Galle Road","meter_start":45210}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/day/end",
		strings.NewReader(`{"meter_end":45390}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "45390")

	day, err := sessions.Day(context.Background())
	require.NoError(t, err)
	assert.True(t, day.Ended)
}

func TestEndDayWithoutStart(t *testing.T) {
	router, sessions := newTestHandler(t, &fakeAPI{})
	_, err := sessions.SignIn(context.Background(), 9, "kasun", "Kasun Perera")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/day/end",
		strings.NewReader(`{"meter_end":45390}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	router, sessions := newTestHandler(t, &fakeAPI{})
	_, err := sessions.SignIn(context.Background(), 9, "kasun", "Kasun Perera")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = sessions.Current(context.Background())
	assert.Error(t, err)
}
