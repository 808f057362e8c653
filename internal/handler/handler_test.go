package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"account_service/internal/auth"
	"account_service/internal/config"
	"account_service/internal/mail"
	"account_service/internal/models"
	"account_service/internal/service"
	"account_service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testTokensConfig() config.Tokens {
	return config.Tokens{
		ActivationSecret: "activation-secret",
		AccessSecret:     "access-secret",
		RefreshSecret:    "refresh-secret",
		ActivationTTL:    5 * time.Minute,
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
	}
}

type testServer struct {
	router *gin.Engine
	srvc   *service.AccountService
	store  *storage.MemoryStorage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := auth.NewTokenService(testTokensConfig())
	require.NoError(t, err)
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	st := storage.NewMemoryStorage()
	srvc := service.NewAccountService(st, tokens, hasher, mail.NewLogSender(log), "http://client/")
	h := NewHandler(srvc, auth.NewGate(tokens, st), log, testTokensConfig().RefreshTTL, false)

	return &testServer{router: h.InitRoutes(), srvc: srvc, store: st}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())

	return out
}

func registerBody(email string) map[string]string {
	return map[string]string{
		"names":    "Ana",
		"surname":  "Lopez",
		"email":    email,
		"password": "secret1",
	}
}

// signup registers, activates and logs in a standard user and returns the
// login response.
func (s *testServer) signup(t *testing.T, email string) map[string]any {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/register", registerBody(email), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode(t, w)["token"].(string)

	w = s.do(t, http.MethodGet, "/api/activation/"+token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/login", map[string]string{"email": email, "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	return decode(t, w)
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()

	body := registerBody("boss@x.com")
	body["role"] = "admin"

	w := s.do(t, http.MethodPost, "/api/register_admin", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "boss@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	return decode(t, w)["access_token"].(string)
}

func TestHandler_Healthz(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_AccountFlow(t *testing.T) {
	s := newTestServer(t)

	login := s.signup(t, "ana@x.com")
	assert.Equal(t, "ana@x.com", login["email"])
	assert.Equal(t, "Login exitoso!", login["msg"])
	access := login["access_token"].(string)
	refresh := login["refresh_token"].(string)

	w := s.do(t, http.MethodGet, "/api/info", nil, bearer(access))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	profile := decode(t, w)
	assert.Equal(t, "ana@x.com", profile["email"])
	assert.Equal(t, "standard", profile["role"])
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(t, http.MethodPost, "/api/refresh_token", map[string]string{"refreshtoken": refresh}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	newAccess := decode(t, w)["access_token"].(string)

	w = s.do(t, http.MethodPatch, "/api/update", map[string]string{"surname": "Perez"}, bearer(newAccess))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/info", nil, bearer(newAccess))
	require.Equal(t, http.StatusOK, w.Code)
	profile = decode(t, w)
	assert.Equal(t, "Perez", profile["surname"])
	assert.Equal(t, "Ana", profile["names"])

	w = s.do(t, http.MethodPost, "/api/reset", map[string]string{"password": "changed1"}, bearer(newAccess))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "ana@x.com", "password": "changed1"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_LoginSetsRefreshCookie(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "ana@x.com")

	w := s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "ana@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, refreshCookiePath, cookie.Path)

	// the cookie alone is enough to refresh
	req := httptest.NewRequest(http.MethodPost, "/api/refresh_token", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: cookie.Value})
	rw := httptest.NewRecorder()
	s.router.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusOK, rw.Code, rw.Body.String())

	w = s.do(t, http.MethodGet, "/api/logout", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
	assert.Equal(t, "Logged out.", decode(t, w)["msg"])
}

func TestHandler_RegisterErrors(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "ana@x.com")

	longPassword := registerBody("long@x.com")
	longPassword["password"] = strings.Repeat("a", 80)

	tests := []struct {
		name    string
		body    map[string]string
		wantMsg string
	}{
		{name: "duplicate", body: registerBody("ana@x.com"), wantMsg: service.MsgEmailExists},
		{name: "password over 72 bytes", body: longPassword, wantMsg: service.MsgLongPassword},
		{name: "bad email", body: registerBody("nope"), wantMsg: service.MsgInvalidEmail},
		{name: "missing fields", body: map[string]string{"email": "x@y.com"}, wantMsg: service.MsgMissingFields},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/register", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.wantMsg, decode(t, w)["msg"])
		})
	}
}

func TestHandler_ActivateInvalidToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/activation/garbage", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.MsgInvalidLink, decode(t, w)["msg"])
}

func TestHandler_LoginFailure(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "ana@x.com")

	w := s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "ana@x.com", "password": "wrong-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, service.MsgBadCredentials, decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "ghost@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, service.MsgBadCredentials, decode(t, w)["error"])
}

func TestHandler_RefreshWithoutToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/refresh_token", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.MsgLoginAgain, decode(t, w)["msg"])

	w = s.do(t, http.MethodPost, "/api/refresh_token", map[string]string{"refreshtoken": "garbage"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.MsgLoginAgain, decode(t, w)["msg"])
}

func TestHandler_ForgotPassword(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "ana@x.com")

	w := s.do(t, http.MethodPost, "/api/forgot", map[string]string{"email": "ana@x.com"}, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/forgot", map[string]string{"email": "ghost@x.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.MsgEmailNotExists, decode(t, w)["msg"])
}

func TestHandler_AuthenticationGate(t *testing.T) {
	s := newTestServer(t)
	login := s.signup(t, "ana@x.com")

	old, err := auth.NewTokenService(testTokensConfig(), auth.WithClock(func() time.Time {
		return time.Now().Add(-time.Hour)
	}))
	require.NoError(t, err)
	expired, err := old.IssueAccessToken("whoever")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header http.Header
	}{
		{name: "no header", header: nil},
		{name: "expired", header: bearer(expired)},
		{name: "refresh token", header: bearer(login["refresh_token"].(string))},
		{name: "garbage", header: bearer("garbage")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/info", nil, tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, service.MsgInvalidAuthHdr, decode(t, w)["msg"])
		})
	}

	t.Run("bare token", func(t *testing.T) {
		header := http.Header{"Authorization": []string{login["access_token"].(string)}}
		w := s.do(t, http.MethodGet, "/api/info", nil, header)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHandler_AdminRoutes(t *testing.T) {
	s := newTestServer(t)
	userAccess := s.signup(t, "ana@x.com")["access_token"].(string)
	adminAccess := s.admin(t)

	ana, err := s.store.GetUserByEmail(context.Background(), "ana@x.com")
	require.NoError(t, err)

	t.Run("standard user is denied", func(t *testing.T) {
		for _, req := range []struct{ method, path string }{
			{http.MethodGet, "/api/all_info"},
			{http.MethodPatch, "/api/update_role/" + ana.ID},
			{http.MethodDelete, "/api/delete/" + ana.ID},
		} {
			w := s.do(t, req.method, req.path, map[string]string{"role": "admin"}, bearer(userAccess))
			assert.Equal(t, http.StatusForbidden, w.Code, req.path)
			assert.Equal(t, service.MsgAccessDenied, decode(t, w)["msg"])
		}
	})

	t.Run("list", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/all_info", nil, bearer(adminAccess))
		require.Equal(t, http.StatusOK, w.Code)

		var users []models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
		assert.Len(t, users, 2)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("update role", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/api/update_role/"+ana.ID, map[string]string{"role": "superuser"}, bearer(adminAccess))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, service.MsgInvalidRole, decode(t, w)["msg"])

		w = s.do(t, http.MethodPatch, "/api/update_role/"+ana.ID, map[string]string{"role": "admin"}, bearer(adminAccess))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		got, err := s.store.GetUserByID(context.Background(), ana.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, got.Role)
	})

	t.Run("delete", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, "/api/delete/missing", nil, bearer(adminAccess))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(t, http.MethodDelete, "/api/delete/"+ana.ID, nil, bearer(adminAccess))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Deleted Success!", decode(t, w)["msg"])

		w = s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "ana@x.com", "password": "secret1"}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		// tokens issued before the delete stop working at once
		for _, req := range []struct{ method, path string }{
			{http.MethodGet, "/api/info"},
			{http.MethodPatch, "/api/update"},
			{http.MethodPost, "/api/reset"},
		} {
			w := s.do(t, req.method, req.path, map[string]string{"password": "another1"}, bearer(userAccess))
			assert.Equal(t, http.StatusUnauthorized, w.Code, req.path)
			assert.Equal(t, service.MsgInvalidAuthHdr, decode(t, w)["msg"])
		}
	})
}
