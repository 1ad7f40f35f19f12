package authserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/storefront/internal/authrpc"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type failingFinder struct{}

func (failingFinder) FindActiveUser(context.Context, bool, string) (User, error) {
	return User{}, errors.New("database is locked")
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	users := openTestUsers(t)
	require.NoError(t, SeedDemoUser(context.Background(), users, bcrypt.MinCost))
	return New(users, WithLogger(quietLogger))
}

func postLogin(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, authrpc.LoginPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Login(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{name: "by username", body: `{"identifier":"demouser","password":"demo1234"}`, wantStatus: http.StatusOK, wantMsg: "Login successful"},
		{name: "by email", body: `{"identifier":"demo@example.com","password":"demo1234"}`, wantStatus: http.StatusOK, wantMsg: "Login successful"},
		{name: "surrounding spaces", body: `{"identifier":" demouser ","password":" demo1234 "}`, wantStatus: http.StatusOK, wantMsg: "Login successful"},
		{name: "missing password key", body: `{"identifier":"demouser"}`, wantStatus: http.StatusBadRequest, wantMsg: "Missing email/username or password"},
		{name: "not json", body: `identifier=demouser`, wantStatus: http.StatusBadRequest, wantMsg: "Missing email/username or password"},
		{name: "blank values", body: `{"identifier":"  ","password":""}`, wantStatus: http.StatusBadRequest, wantMsg: "Email and password are required"},
		{name: "wrong password", body: `{"identifier":"demouser","password":"nope1234"}`, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid email/username or password"},
		{name: "unknown user", body: `{"identifier":"ghost@example.com","password":"demo1234"}`, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid email/username or password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postLogin(h, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp authrpc.LoginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus == http.StatusOK, resp.Success)
			assert.Equal(t, tt.wantMsg, resp.Message)

			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, resp.User)
				assert.Equal(t, types.SessionIdentity{ID: "1", Username: "demouser", Email: "demo@example.com", Name: "Demo User"}, *resp.User)
				assert.NotEmpty(t, rec.Result().Cookies())
			} else {
				assert.Nil(t, resp.User)
				assert.Empty(t, rec.Result().Cookies())
			}
		})
	}
}

func TestServer_LoginDatabaseError(t *testing.T) {
	h := New(failingFinder{}, WithLogger(quietLogger)).Handler()

	rec := postLogin(h, `{"identifier":"demouser","password":"demo1234"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Database error: database is locked"}`, rec.Body.String())
}

func TestServer_SessionAndLogout(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	check := func(cookies []*http.Cookie) authrpc.SessionResponse {
		req := httptest.NewRequest(http.MethodGet, authrpc.SessionPath, nil)
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp authrpc.SessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	assert.Equal(t, authrpc.SessionResponse{Success: true}, check(nil))

	login := postLogin(h, `{"identifier":"demouser","password":"demo1234"}`)
	cookies := login.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	resp := check(cookies)
	assert.True(t, resp.LoggedIn)
	require.NotNil(t, resp.User)
	assert.Equal(t, "Demo User", resp.User.Name)

	req := httptest.NewRequest(http.MethodPost, authrpc.LogoutPath, nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Logged out successfully"}`, rec.Body.String())

	assert.False(t, check(cookies).LoggedIn, "the old cookie no longer names a session")
	assert.Zero(t, srv.sessions.Len())
}

func TestServer_LoginReplacesPreviousSession(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	first := postLogin(h, `{"identifier":"demouser","password":"demo1234"}`).Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, authrpc.LoginPath, strings.NewReader(`{"identifier":"demouser","password":"demo1234"}`))
	req.AddCookie(first)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, srv.sessions.Len())
}

func TestServer_ClientRoundTrip(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	client, err := authrpc.New(ts.URL)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Login(ctx, "demouser", "wrong-password")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)

	identity, err := client.Login(ctx, "demo@example.com", "demo1234")
	require.NoError(t, err)
	assert.Equal(t, "demouser", identity.Username)

	checked, loggedIn, err := client.CheckSession(ctx)
	require.NoError(t, err)
	assert.True(t, loggedIn)
	assert.Equal(t, identity, checked)

	require.NoError(t, client.Logout(ctx))
	_, loggedIn, err = client.CheckSession(ctx)
	require.NoError(t, err)
	assert.False(t, loggedIn)
}

func TestServer_CORS(t *testing.T) {
	users := openTestUsers(t)
	h := New(users, WithLogger(quietLogger), WithAllowedOrigins([]string{"http://shop.example"})).Handler()

	req := httptest.NewRequest(http.MethodOptions, authrpc.LoginPath, nil)
	req.Header.Set("Origin", "http://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestServer_Healthz(t *testing.T) {
	h := New(failingFinder{}, WithLogger(quietLogger)).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(failingFinder{}, WithLogger(quietLogger)).ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}
