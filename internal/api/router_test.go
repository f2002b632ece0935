package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/giftcard/giftcard-api/internal/api/session"
	"github.com/giftcard/giftcard-api/internal/core/domain"
	"github.com/giftcard/giftcard-api/internal/core/service"
	"github.com/giftcard/giftcard-api/internal/core/token"
	"github.com/giftcard/giftcard-api/internal/infrastructure/db/sqlite"
	"github.com/giftcard/giftcard-api/internal/infrastructure/http/handlers"
	"github.com/giftcard/giftcard-api/internal/pkg/password"
)

type memoryRecorder struct {
	events []domain.AuthEvent
}

func (r *memoryRecorder) Record(e domain.AuthEvent) { r.events = append(r.events, e) }

type testServer struct {
	e     *echo.Echo
	codec *token.Codec
	audit *memoryRecorder
	svc   *service.AuthService
}

// newTestServer wires the full stack over a private in-memory database with
// seeded roles and an admin account (admin / admin123, id 1).
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sqlite.Open(ctx, sqlite.Config{
		Path:         fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close(db) })

	roles := sqlite.NewRoleRepository(db)
	if err := roles.Seed(ctx); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	users := sqlite.NewUserRepository(db, password.NewHasher(bcrypt.MinCost))

	codec, err := token.NewCodec(token.Config{Secret: "test-secret", Lifetime: 7 * 24 * time.Hour, Issuer: "giftcard-api"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	audit := &memoryRecorder{}
	svc := service.NewAuthService(users, roles, service.AuthServiceConfig{
		DefaultRoleID: 2,
		Audit:         audit,
		Logger:        zerolog.Nop(),
	})
	created, err := svc.EnsureAdmin(ctx, testAdmin)
	if err != nil || !created {
		t.Fatalf("seed admin: created=%v err=%v", created, err)
	}

	e := NewRouter(Dependencies{
		AuthService: svc,
		Codec:       codec,
		Session:     session.NewTransport(codec.Lifetime(), false),
		Audit:       audit,
		Probes:      map[string]handlers.Pinger{"store": sqlite.NewPinger(db)},
		Logger:      zerolog.Nop(),
	})
	return &testServer{e: e, codec: codec, audit: audit, svc: svc}
}

var testAdmin = service.AdminAccount{Username: "admin", Email: "admin@example.com", Password: "admin123"}

type response struct {
	code    int
	body    map[string]any
	cookies []*http.Cookie
}

func (s *testServer) do(t *testing.T, method, path, body string, cookie *http.Cookie) response {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	out := response{code: rec.Code, cookies: rec.Result().Cookies()}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out.body); err != nil {
			t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
		}
	}
	return out
}

func (r response) session(t *testing.T) *http.Cookie {
	t.Helper()
	for _, ck := range r.cookies {
		if ck.Name == session.CookieName {
			return ck
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func (r response) data() map[string]any {
	d, _ := r.body["data"].(map[string]any)
	return d
}

func TestRouter_ScenarioA_DuplicateRegistration(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/api/auth/register", `{"username":"alice","email":"alice@x.com","password":"secret1"}`, nil)
	if res.code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", res.code, res.body)
	}
	if d := res.data(); d["username"] != "alice" || d["roleName"] != "user" || d["isAdmin"] != false {
		t.Fatalf("unexpected identity: %v", d)
	}
	if ck := res.session(t); !ck.HttpOnly || ck.SameSite != http.SameSiteStrictMode {
		t.Fatalf("unexpected cookie flags: %+v", ck)
	}

	res = s.do(t, http.MethodPost, "/api/auth/register", `{"username":"alice2","email":"alice@x.com","password":"secret1"}`, nil)
	if res.code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.code)
	}
	if res.body["status"] != "error" || res.body["code"] != "duplicate_identity" {
		t.Fatalf("unexpected error body: %v", res.body)
	}
}

func TestRouter_ScenarioB_Login(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/auth/register", `{"username":"alice","email":"alice@x.com","password":"secret1"}`, nil)

	res := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrongpass"}`, nil)
	if res.code != http.StatusUnauthorized || res.body["error"] != "Invalid credentials" {
		t.Fatalf("expected 401 invalid credentials, got %d %v", res.code, res.body)
	}

	res = s.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret1"}`, nil)
	if res.code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", res.code, res.body)
	}
	if d := res.data(); d["roleName"] != "user" || d["isAdmin"] != false {
		t.Fatalf("unexpected identity: %v", d)
	}

	me := s.do(t, http.MethodGet, "/api/auth/me", "", res.session(t))
	if me.code != http.StatusOK || me.data()["username"] != "alice" {
		t.Fatalf("expected /me to return alice, got %d %v", me.code, me.body)
	}
}

func TestRouter_ScenarioC_AdminToken(t *testing.T) {
	s := newTestServer(t)

	raw, err := s.codec.Issue(domain.TokenSubject{UserID: 1, Email: "admin@example.com", RoleID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	cookie := &http.Cookie{Name: session.CookieName, Value: raw}

	me := s.do(t, http.MethodGet, "/api/auth/me", "", cookie)
	if me.code != http.StatusOK || me.data()["isAdmin"] != true {
		t.Fatalf("expected admin identity, got %d %v", me.code, me.body)
	}

	res := s.do(t, http.MethodGet, "/api/admin/users/1", "", cookie)
	if res.code != http.StatusOK || res.data()["username"] != "admin" {
		t.Fatalf("expected admin guard to pass, got %d %v", res.code, res.body)
	}

	res = s.do(t, http.MethodGet, "/api/admin/users/999", "", cookie)
	if res.code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", res.code)
	}
}

func TestRouter_ScenarioD_NoCookie(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	if res.code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.code)
	}
	if res.body["code"] != "token_required" || res.body["error"] != "Access token required" {
		t.Fatalf("unexpected error body: %v", res.body)
	}

	// Register runs behind OptionalAuth and proceeds anonymously.
	res = s.do(t, http.MethodPost, "/api/auth/register", `{"username":"bob","email":"bob@x.com","password":"secret1"}`, nil)
	if res.code != http.StatusCreated {
		t.Fatalf("expected anonymous register to succeed, got %d %v", res.code, res.body)
	}
}

func TestRouter_UserCannotReachAdmin(t *testing.T) {
	s := newTestServer(t)
	res := s.do(t, http.MethodPost, "/api/auth/register", `{"username":"carol","email":"carol@x.com","password":"secret1"}`, nil)

	res = s.do(t, http.MethodGet, "/api/admin/users/1", "", res.session(t))
	if res.code != http.StatusForbidden || res.body["code"] != "insufficient_role" {
		t.Fatalf("expected 403, got %d %v", res.code, res.body)
	}
}

func TestRouter_InvalidTokens(t *testing.T) {
	s := newTestServer(t)

	expired, err := token.NewCodec(token.Config{Secret: "test-secret", Lifetime: time.Minute, Issuer: "giftcard-api"},
		token.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	expiredRaw, err := expired.Issue(domain.TokenSubject{UserID: 1, Email: "admin@example.com", RoleID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	goneRaw, err := s.codec.Issue(domain.TokenSubject{UserID: 404, Email: "gone@x.com", RoleID: 2})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for name, raw := range map[string]string{
		"garbage":      "abc.def.ghi",
		"expired":      expiredRaw,
		"unknown user": goneRaw,
	} {
		t.Run(name, func(t *testing.T) {
			res := s.do(t, http.MethodGet, "/api/auth/me", "", &http.Cookie{Name: session.CookieName, Value: raw})
			if res.code != http.StatusUnauthorized || res.body["code"] != "token_invalid" {
				t.Fatalf("expected uniform 401 token_invalid, got %d %v", res.code, res.body)
			}
		})
	}
}

func TestRouter_AdminRegistersAdmin(t *testing.T) {
	s := newTestServer(t)
	login := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"admin123"}`, nil)
	if login.code != http.StatusOK {
		t.Fatalf("admin login failed: %d %v", login.code, login.body)
	}

	body := `{"username":"ops","email":"ops@x.com","password":"secret1","role":"admin"}`

	anon := s.do(t, http.MethodPost, "/api/auth/register", body, nil)
	if anon.code != http.StatusForbidden {
		t.Fatalf("expected anonymous admin registration to be refused, got %d", anon.code)
	}

	adminCookie := login.session(t)
	res := s.do(t, http.MethodPost, "/api/auth/register", body, adminCookie)
	if res.code != http.StatusCreated || res.data()["roleName"] != "admin" {
		t.Fatalf("expected admin created, got %d %v", res.code, res.body)
	}
	for _, ck := range res.cookies {
		if ck.Name == session.CookieName {
			t.Fatalf("registering another account must not replace the admin session, got %+v", ck)
		}
	}

	me := s.do(t, http.MethodGet, "/api/auth/me", "", adminCookie)
	if me.code != http.StatusOK || me.data()["username"] != "admin" {
		t.Fatalf("expected admin session to survive, got %d %v", me.code, me.body)
	}

	// The new admin signs in on their own.
	ops := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"ops","password":"secret1"}`, nil)
	if ops.code != http.StatusOK || ops.data()["isAdmin"] != true {
		t.Fatalf("expected ops to log in as admin, got %d %v", ops.code, ops.body)
	}
}

func TestRouter_AdminBootstrapIsIdempotent(t *testing.T) {
	s := newTestServer(t)

	created, err := s.svc.EnsureAdmin(context.Background(), service.AdminAccount{Username: "admin", Email: "admin@example.com", Password: "another1"})
	if err != nil || created {
		t.Fatalf("expected existing admin to be kept, created=%v err=%v", created, err)
	}

	login := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"admin123"}`, nil)
	if login.code != http.StatusOK || login.data()["isAdmin"] != true || login.data()["id"] != float64(1) {
		t.Fatalf("expected bootstrapped admin with id 1, got %d %v", login.code, login.body)
	}
	res := s.do(t, http.MethodGet, "/api/admin/users/1", "", login.session(t))
	if res.code != http.StatusOK {
		t.Fatalf("expected bootstrapped admin to reach admin routes, got %d %v", res.code, res.body)
	}
}

func TestRouter_ChangePassword(t *testing.T) {
	s := newTestServer(t)
	reg := s.do(t, http.MethodPost, "/api/auth/register", `{"username":"alice","email":"alice@x.com","password":"secret1"}`, nil)
	if reg.code != http.StatusCreated {
		t.Fatalf("register failed: %d %v", reg.code, reg.body)
	}
	cookie := reg.session(t)

	if res := s.do(t, http.MethodPut, "/api/auth/password", `{"currentPassword":"secret1","newPassword":"secret2"}`, nil); res.code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", res.code)
	}

	wrong := s.do(t, http.MethodPut, "/api/auth/password", `{"currentPassword":"nope-nope","newPassword":"secret2"}`, cookie)
	if wrong.code != http.StatusUnauthorized || wrong.body["code"] != "invalid_credentials" {
		t.Fatalf("expected 401 invalid_credentials, got %d %v", wrong.code, wrong.body)
	}

	long := s.do(t, http.MethodPut, "/api/auth/password", `{"currentPassword":"secret1","newPassword":"`+strings.Repeat("p", 80)+`"}`, cookie)
	if long.code != http.StatusBadRequest || long.body["code"] != "invalid_field" {
		t.Fatalf("expected 400 invalid_field, got %d %v", long.code, long.body)
	}

	ok := s.do(t, http.MethodPut, "/api/auth/password", `{"currentPassword":"secret1","newPassword":"secret2"}`, cookie)
	if ok.code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", ok.code, ok.body)
	}
	if res := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret1"}`, nil); res.code != http.StatusUnauthorized {
		t.Fatalf("expected old password to fail, got %d", res.code)
	}
	if res := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret2"}`, nil); res.code != http.StatusOK {
		t.Fatalf("expected new password to work, got %d %v", res.code, res.body)
	}
}

func TestRouter_Logout(t *testing.T) {
	s := newTestServer(t)
	login := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"admin123"}`, nil)

	res := s.do(t, http.MethodPost, "/api/auth/logout", "", login.session(t))
	if res.code != http.StatusOK || res.body["message"] != "Logout successful" {
		t.Fatalf("unexpected logout response: %d %v", res.code, res.body)
	}
	if ck := res.session(t); ck.Value != "" || ck.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", ck)
	}

	last := s.audit.events[len(s.audit.events)-1]
	if last.Kind != domain.EventLogout || last.UserID != 1 {
		t.Fatalf("expected logout event for admin, got %+v", last)
	}
}

func TestRouter_Validation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		body string
		code string
	}{
		{`{"username":"dan","password":"secret1"}`, "missing_fields"},
		{`{"username":"dan","email":"dan@x.com","password":"123"}`, "weak_password"},
		{`{"username":"da","email":"dan@x.com","password":"secret1"}`, "invalid_field"},
		{`{"username":"dan","email":"not-an-email","password":"secret1"}`, "invalid_field"},
		{`{"username":"dan","email":"dan@x.com","password":"` + strings.Repeat("p", 80) + `"}`, "invalid_field"},
	}
	for _, tc := range cases {
		res := s.do(t, http.MethodPost, "/api/auth/register", tc.body, nil)
		if res.code != http.StatusBadRequest || res.body["code"] != tc.code {
			t.Fatalf("%s: expected 400 %s, got %d %v", tc.body, tc.code, res.code, res.body)
		}
	}

	long := s.do(t, http.MethodPost, "/api/auth/register", `{"username":"dan","email":"dan@x.com","password":"`+strings.Repeat("p", 80)+`"}`, nil)
	if long.body["error"] != "Password must be at most 72 bytes" {
		t.Fatalf("unexpected message for overlong password: %v", long.body)
	}

	res := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"dan"}`, nil)
	if res.code != http.StatusBadRequest || res.body["code"] != "missing_credentials" {
		t.Fatalf("expected 400 missing_credentials, got %d %v", res.code, res.body)
	}
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	if res := s.do(t, http.MethodGet, "/api/health", "", nil); res.code != http.StatusOK {
		t.Fatalf("liveness: expected 200, got %d", res.code)
	}
	res := s.do(t, http.MethodGet, "/api/health/ready", "", nil)
	if res.code != http.StatusOK || res.body["status"] != "ok" {
		t.Fatalf("readiness: expected ok, got %d %v", res.code, res.body)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	s := newTestServer(t)
	res := s.do(t, http.MethodGet, "/api/nope", "", nil)
	if res.code != http.StatusNotFound || res.body["status"] != "error" {
		t.Fatalf("expected enveloped 404, got %d %v", res.code, res.body)
	}
}
