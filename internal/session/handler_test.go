package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/token"
)

func newTestHandler(t *testing.T) (*Handler, *fixture) {
	f := newFixture(t)
	h := NewHandler(f.svc, CookieConfig{Secure: true, AccessTTL: 15 * time.Minute, RefreshTTL: 240 * time.Hour}, zap.NewNop().Sugar())
	return h, f
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func authed(r *http.Request, id string) *http.Request {
	return r.WithContext(token.NewContext(r.Context(), &token.AccessClaims{AccountID: id}))
}

func TestHandler_Login(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice","password":"Secret1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		User         map[string]any `json:"user"`
		AccessToken  string         `json:"accessToken"`
		RefreshToken string         `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.User["username"])
	assert.NotContains(t, body.User, "passwordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	ac := cookieByName(rec, AccessCookie)
	rc := cookieByName(rec, RefreshCookie)
	require.NotNil(t, ac)
	require.NotNil(t, rc)
	assert.Equal(t, body.AccessToken, ac.Value)
	assert.Equal(t, body.RefreshToken, rc.Value)
	assert.True(t, ac.HttpOnly && ac.Secure && rc.HttpOnly && rc.Secure)
	assert.Equal(t, 900, ac.MaxAge)
	assert.Equal(t, 864000, rc.MaxAge)
}

func TestHandler_LoginStatuses(t *testing.T) {
	h, _ := newTestHandler(t)
	cases := []struct {
		body string
		want int
	}{
		{`{"password":"Secret1"}`, http.StatusBadRequest},
		{`{"username":"bob","password":"Secret1"}`, http.StatusNotFound},
		{`{"username":"alice","password":"wrong"}`, http.StatusUnauthorized},
		{`{bad json`, http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(c.body)))
		assert.Equal(t, c.want, rec.Code, c.body)
		assert.Nil(t, cookieByName(rec, AccessCookie), c.body)
	}
}

func TestHandler_RefreshFromCookieAndBody(t *testing.T) {
	h, f := newTestHandler(t)
	t0 := f.login(t).RefreshToken

	req := httptest.NewRequest(http.MethodPost, "/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: t0})
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	t1 := cookieByName(rec, RefreshCookie).Value
	assert.NotEqual(t, t0, t1)

	rec = httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/refresh-token", strings.NewReader(`{"refreshToken":"`+t0+`"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/refresh-token", strings.NewReader(`{"refreshToken":"`+t1+`"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_RefreshMissingToken(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/refresh-token", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized request"}`, rec.Body.String())
}

func TestHandler_Logout(t *testing.T) {
	h, f := newTestHandler(t)
	f.login(t)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Logout(rec, authed(httptest.NewRequest(http.MethodPost, "/logout", nil), "1001"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, cookieByName(rec, AccessCookie).MaxAge)
	assert.Equal(t, -1, cookieByName(rec, RefreshCookie).MaxAge)
	assert.Nil(t, f.store.current("1001"))
}

func TestHandler_ChangePassword(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ChangePassword(rec, authed(httptest.NewRequest(http.MethodPost, "/change-password",
		strings.NewReader(`{"oldPassword":"nope","newPassword":"Secret2"}`)), "1001"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid old password"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ChangePassword(rec, authed(httptest.NewRequest(http.MethodPost, "/change-password",
		strings.NewReader(`{"oldPassword":"Secret1","newPassword":"Secret2"}`)), "1001"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCookieConfigFromEnv(t *testing.T) {
	t.Setenv("COOKIE_SECURE", "false")
	cc := CookieConfigFromEnv(token.Config{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.False(t, cc.Secure)
	assert.Equal(t, time.Hour, cc.RefreshTTL)

	t.Setenv("COOKIE_SECURE", "")
	assert.True(t, CookieConfigFromEnv(token.Config{}).Secure)
}
