package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"rollcall-server/auth"
	"rollcall-server/db"
)

const (
	adminUser     = "admin"
	adminPassword = "admin-pass"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	t         *testing.T
	store     *db.Store
	handler   *APIHandler
	router    *gin.Engine
	staticDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := db.OpenMemory(t.Name())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	passwords := auth.NewBcryptHasher(bcrypt.MinCost)
	if _, err := store.SeedAdmin(context.Background(), adminUser, func() (string, error) {
		return passwords.Hash(adminPassword)
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	h := NewAPIHandler(
		store,
		auth.NewTokenService("test-secret", time.Hour),
		passwords,
		auth.NewMemoryThrottle(3, time.Minute),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	clock := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	h.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	staticDir := t.TempDir()
	return &testServer{t: t, store: store, handler: h, router: NewRouter(h, staticDir), staticDir: staticDir}
}

// do sends body as JSON unless it is already a string.
func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	return decode[tokenResponse](s.t, rec).AccessToken
}

// teacher creates a teacher through the admin API and returns a token for them.
func (s *testServer) teacher(adminToken, username string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/users", adminToken, map[string]string{
		"username": username,
		"email":    username + "@school.test",
		"password": username + "-pass",
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("create teacher %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	return s.login(username, username+"-pass")
}

func (s *testServer) mustCreate(path, token string, body any) uint {
	s.t.Helper()
	rec := s.do(http.MethodPost, path, token, body)
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("POST %s: status %d body %s", path, rec.Code, rec.Body.String())
	}
	var out struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		s.t.Fatalf("decode created id: %v", err)
	}
	return out.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %T from %q: %v", out, rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/ping", "/api/ping"} {
		rec := s.do(http.MethodGet, path, "", nil)
		expectStatus(t, rec, http.StatusOK)
		if got := decode[map[string]string](t, rec)["message"]; got != "Pong!" {
			t.Fatalf("%s message = %q", path, got)
		}
		if rec.Header().Get(requestIDHeader) == "" {
			t.Fatalf("%s: missing %s header", path, requestIDHeader)
		}
	}
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(adminUser, adminPassword)
	s.teacher(adminToken, "alice")

	unknown := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "nobody", "password": "x"})
	wrong := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})

	expectStatus(t, unknown, http.StatusUnauthorized)
	expectStatus(t, wrong, http.StatusUnauthorized)
	if unknown.Body.String() != wrong.Body.String() {
		t.Fatalf("bodies differ: %s vs %s", unknown.Body.String(), wrong.Body.String())
	}
}

func TestLoginReturnsTokenAndProfile(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": adminUser, "password": adminPassword})
	expectStatus(t, rec, http.StatusOK)
	resp := decode[tokenResponse](t, rec)
	if resp.TokenType != "bearer" || resp.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", resp)
	}
	if resp.User.Username != adminUser || resp.User.UserType != "admin" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	if strings.Contains(rec.Body.String(), "hashed") {
		t.Fatalf("response leaks password hash: %s", rec.Body.String())
	}

	me := s.do(http.MethodGet, "/auth/me", resp.AccessToken, nil)
	expectStatus(t, me, http.StatusOK)
	if got := decode[userResponse](t, me); got.Email != adminUser+"@example.com" {
		t.Fatalf("me email = %q", got.Email)
	}
}

func TestLoginMatchesUsernameExactly(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{adminUser + " ", " " + adminUser} {
		rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": name, "password": adminPassword})
		expectStatus(t, rec, http.StatusUnauthorized)
	}
}

func TestLoginThrottleLocksUsername(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": adminUser, "password": "wrong"})
		expectStatus(t, rec, http.StatusUnauthorized)
	}
	rec := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": adminUser, "password": adminPassword})
	expectStatus(t, rec, http.StatusTooManyRequests)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/auth/me", "/classes", "/api/classes", "/users", "/roll-call/history"} {
		rec := s.do(http.MethodGet, path, "", nil)
		expectStatus(t, rec, http.StatusUnauthorized)
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("%s: missing WWW-Authenticate", path)
		}
	}
	rec := s.do(http.MethodGet, "/classes", "not-a-token", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestUserRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(adminUser, adminPassword)
	teacherToken := s.teacher(adminToken, "alice")

	expectStatus(t, s.do(http.MethodGet, "/users", teacherToken, nil), http.StatusForbidden)
	expectStatus(t, s.do(http.MethodPost, "/users", teacherToken, map[string]string{
		"username": "mallory", "email": "m@school.test", "password": "pw",
	}), http.StatusForbidden)

	rec := s.do(http.MethodGet, "/users", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if users := decode[[]userResponse](t, rec); len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
}

func TestCreateUserValidationAndConflicts(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(adminUser, adminPassword)
	s.teacher(adminToken, "alice")

	dupName := s.do(http.MethodPost, "/users", adminToken, map[string]string{
		"username": "alice", "email": "other@school.test", "password": "pw",
	})
	expectStatus(t, dupName, http.StatusConflict)

	dupEmail := s.do(http.MethodPost, "/users", adminToken, map[string]string{
		"username": "bob", "email": "alice@school.test", "password": "pw",
	})
	expectStatus(t, dupEmail, http.StatusConflict)

	badRole := s.do(http.MethodPost, "/users", adminToken, map[string]string{
		"username": "carol", "email": "carol@school.test", "password": "pw", "userType": "root",
	})
	expectStatus(t, badRole, http.StatusBadRequest)

	missing := s.do(http.MethodPost, "/users", adminToken, map[string]string{"username": "dave"})
	expectStatus(t, missing, http.StatusBadRequest)
	if detail := decode[map[string]string](t, missing)["detail"]; !strings.Contains(detail, "email") {
		t.Fatalf("detail = %q, want it to name the email field", detail)
	}

	alias := s.do(http.MethodPost, "/users", adminToken, map[string]string{
		"username": "erin", "email": "erin@school.test", "password": "pw", "userType": "user",
	})
	expectStatus(t, alias, http.StatusCreated)
	if got := decode[userResponse](t, alias); got.UserType != "teacher" || !got.IsActive {
		t.Fatalf("unexpected created user: %+v", got)
	}
}

func TestAdminCannotRemoveThemselves(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(adminUser, adminPassword)
	me := decode[userResponse](t, s.do(http.MethodGet, "/auth/me", adminToken, nil))

	expectStatus(t, s.do(http.MethodDelete, fmt.Sprintf("/users/%d", me.ID), adminToken, nil), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodPut, fmt.Sprintf("/users/%d", me.ID), adminToken, map[string]any{"isActive": false}), http.StatusBadRequest)
	for _, role := range []string{"teacher", "user"} {
		rec := s.do(http.MethodPut, fmt.Sprintf("/users/%d", me.ID), adminToken, map[string]any{"userType": role})
		expectStatus(t, rec, http.StatusBadRequest)
	}
	expectStatus(t, s.do(http.MethodPut, fmt.Sprintf("/users/%d", me.ID), adminToken, map[string]any{"userType": "admin"}), http.StatusOK)

	expectStatus(t, s.do(http.MethodGet, "/auth/me", adminToken, nil), http.StatusOK)
	users := s.do(http.MethodGet, "/users", adminToken, nil)
	expectStatus(t, users, http.StatusOK)
	for _, u := range decode[[]userResponse](t, users) {
		if u.ID == me.ID && u.UserType != "admin" {
			t.Fatalf("admin role changed to %q", u.UserType)
		}
	}
}

func TestDeactivatedUserLosesAccess(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(adminUser, adminPassword)
	teacherToken := s.teacher(adminToken, "alice")
	alice := decode[userResponse](t, s.do(http.MethodGet, "/auth/me", teacherToken, nil))

	rec := s.do(http.MethodPut, fmt.Sprintf("/users/%d", alice.ID), adminToken, map[string]any{"isActive": false})
	expectStatus(t, rec, http.StatusOK)
	if decode[userResponse](t, rec).IsActive {
		t.Fatal("user still active after update")
	}

	expectStatus(t, s.do(http.MethodGet, "/classes", teacherToken, nil), http.StatusUnauthorized)
	login := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "alice-pass"})
	expectStatus(t, login, http.StatusUnauthorized)
}

func TestPasswordFlows(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(adminUser, adminPassword)
	teacherToken := s.teacher(adminToken, "alice")
	alice := decode[userResponse](t, s.do(http.MethodGet, "/auth/me", teacherToken, nil))

	wrongOld := s.do(http.MethodPut, "/auth/change-password", teacherToken, map[string]string{
		"oldPassword": "nope", "newPassword": "next",
	})
	expectStatus(t, wrongOld, http.StatusBadRequest)

	changed := s.do(http.MethodPut, "/auth/change-password", teacherToken, map[string]string{
		"old_password": "alice-pass", "new_password": "next",
	})
	expectStatus(t, changed, http.StatusOK)
	s.login("alice", "next")

	reset := s.do(http.MethodPut, fmt.Sprintf("/users/%d/reset-password", alice.ID), adminToken, map[string]string{"newPassword": "fresh"})
	expectStatus(t, reset, http.StatusOK)
	s.login("alice", "fresh")
}

func TestUpdateProfileEmail(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(adminUser, adminPassword)
	teacherToken := s.teacher(adminToken, "alice")
	s.teacher(adminToken, "bob")

	taken := s.do(http.MethodPut, "/auth/profile", teacherToken, map[string]string{"email": "bob@school.test"})
	expectStatus(t, taken, http.StatusConflict)

	invalid := s.do(http.MethodPut, "/auth/profile", teacherToken, map[string]string{"email": "not-an-email"})
	expectStatus(t, invalid, http.StatusBadRequest)

	same := s.do(http.MethodPut, "/auth/profile", teacherToken, map[string]string{"email": "alice@school.test"})
	expectStatus(t, same, http.StatusOK)

	moved := s.do(http.MethodPut, "/auth/profile", teacherToken, map[string]string{"email": "alice@new.test"})
	expectStatus(t, moved, http.StatusOK)
	if got := decode[userResponse](t, moved).Email; got != "alice@new.test" {
		t.Fatalf("email = %q", got)
	}
}

func TestMalformedBodies(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(adminUser, adminPassword)

	expectStatus(t, s.do(http.MethodPost, "/classes", adminToken, "{not json"), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodPost, "/classes", adminToken, `["array"]`), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodPost, "/classes", adminToken, `{"name": 12}`), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodPost, "/classes", adminToken, `{"name": "   "}`), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodPut, "/classes/abc", adminToken, `{"name": "x"}`), http.StatusBadRequest)
}

func TestSPAFallback(t *testing.T) {
	s := newTestServer(t)
	if err := os.WriteFile(s.staticDir+"/index.html", []byte("<html>app</html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(s.staticDir+"/app.js", []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	page := s.do(http.MethodGet, "/dashboard/classes", "", nil)
	expectStatus(t, page, http.StatusOK)
	if !strings.Contains(page.Body.String(), "<html>app</html>") {
		t.Fatalf("fallback body = %q", page.Body.String())
	}

	asset := s.do(http.MethodGet, "/app.js", "", nil)
	expectStatus(t, asset, http.StatusOK)
	if asset.Body.String() != "console.log(1)" {
		t.Fatalf("asset body = %q", asset.Body.String())
	}

	escape := s.do(http.MethodGet, "/../../etc/passwd", "", nil)
	if strings.Contains(escape.Body.String(), "root:") {
		t.Fatal("static fallback escaped its directory")
	}

	for _, path := range []string{"/api/unknown", "/classes/1/nothing", "/roll-call/missing"} {
		rec := s.do(http.MethodGet, path, "", nil)
		expectStatus(t, rec, http.StatusNotFound)
		if detail := decode[map[string]string](t, rec)["detail"]; detail != "Not found" {
			t.Fatalf("%s detail = %q", path, detail)
		}
	}
}
