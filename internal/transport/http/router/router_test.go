package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"profile-api/internal/core/auth"
	"profile-api/internal/core/database"
	"profile-api/internal/domain"
	"profile-api/internal/repo"
	"profile-api/internal/service"
	"profile-api/internal/transport/http/handler"
	mdw "profile-api/internal/transport/http/middleware"
)

func init() { gin.SetMode(gin.TestMode) }

type nopStore struct{}

func (nopStore) Put(_ context.Context, _ string, body io.ReadSeeker, _ int64, _ string) error {
	_, err := io.Copy(io.Discard, body)
	return err
}
func (nopStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://bucket.example/" + key, nil
}
func (nopStore) List(context.Context, string) ([]domain.Object, error) { return nil, nil }
func (nopStore) Delete(context.Context, string) error                  { return nil }

func newSvc(t *testing.T) *service.UserService {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return service.NewUserService(repo.NewUserRepo(db), nopStore{})
}

var testJWT = &auth.JWTer{Secret: []byte("test-secret"), Issuer: "profile-api", TTL: time.Hour}

func token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := testJWT.Issue(uid, role)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok
}

func send(r http.Handler, method, path, body, authz string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newAPI(t *testing.T, withAuth bool) *gin.Engine {
	t.Helper()
	svc := newSvc(t)
	d := APIDeps{
		Users:   handler.NewUserHandler(svc),
		Origins: []string{"http://localhost:3000"},
	}
	if withAuth {
		d.Verifier = testJWT
		d.Login = handler.NewAuthHandler(svc, testJWT, nil)
	}
	return NewAPIEngine(d)
}

func TestAPI_HealthMetricsAndNotFound(t *testing.T) {
	r := newAPI(t, false)

	w := send(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK || w.Header().Get(mdw.KeyRequestID) == "" {
		t.Errorf("health: %d, request id %q", w.Code, w.Header().Get(mdw.KeyRequestID))
	}
	w = send(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "profile_api_http_requests_total") {
		t.Errorf("metrics: %d", w.Code)
	}
	w = send(r, http.MethodGet, "/nowhere", "", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"code":404`) {
		t.Errorf("no route: %d %s", w.Code, w.Body)
	}
}

func TestAPI_CORS(t *testing.T) {
	r := newAPI(t, false)

	w := send(r, http.MethodOptions, "/users/", "", "",
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", http.MethodDelete,
		"Access-Control-Request-Headers", "authorization,content-type")
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: %d", w.Code)
	}
	allowed := strings.ToLower(w.Header().Get("Access-Control-Allow-Headers"))
	for _, h := range []string{"authorization", "content-type"} {
		if !strings.Contains(allowed, h) {
			t.Errorf("%s not in allow-headers %q", h, allowed)
		}
	}
	if strings.Contains(allowed, "*") {
		t.Errorf("wildcard allow-headers with credentials: %q", allowed)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow-origin = %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials not allowed")
	}

	w = send(r, http.MethodGet, "/users/", "", "", "Origin", "http://evil.example")
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin allowed")
	}
}

func TestAPI_OpenWhenAuthDisabled(t *testing.T) {
	r := newAPI(t, false)
	if w := send(r, http.MethodPost, "/create_user/?_id=u1", `{"nome":"Alice"}`, ""); w.Code != http.StatusCreated {
		t.Errorf("create: %d %s", w.Code, w.Body)
	}
	if w := send(r, http.MethodPost, "/auth/login", `{"id":"u1","password":"x"}`, ""); w.Code != http.StatusNotFound {
		t.Errorf("login mounted without auth: %d", w.Code)
	}
}

func TestAPI_AuthPolicy(t *testing.T) {
	r := newAPI(t, true)
	own := token(t, "u1", auth.RoleUser)
	other := token(t, "u2", auth.RoleUser)
	admin := token(t, "ops", auth.RoleAdmin)

	steps := []struct {
		name, method, path, body, authz string
		code                            int
	}{
		{"anonymous create", http.MethodPost, "/create_user/?_id=u1", `{"nome":"Alice"}`, "", http.StatusUnauthorized},
		{"garbage token", http.MethodPost, "/create_user/?_id=u1", `{"nome":"Alice"}`, "Bearer nope", http.StatusUnauthorized},
		{"create for someone else", http.MethodPost, "/create_user/?_id=u1", `{"nome":"Alice"}`, other, http.StatusForbidden},
		{"create self", http.MethodPost, "/create_user/?_id=u1", `{"nome":"Alice","password":"pw"}`, own, http.StatusCreated},
		{"admin creates anyone", http.MethodPost, "/create_user/?_id=u3", `{"nome":"Carol"}`, admin, http.StatusCreated},
		{"public list", http.MethodGet, "/users/", "", "", http.StatusOK},
		{"public get", http.MethodGet, "/users/u1", "", "", http.StatusOK},
		{"update someone else", http.MethodPost, "/update_user/u1", `{"nome":"Mallory"}`, other, http.StatusForbidden},
		{"update self", http.MethodPost, "/update_user/u1", `{"email":"a@x.com"}`, own, http.StatusOK},
		{"upload for someone else", http.MethodPost, "/upload_user_foto/?user_id=u1", "", other, http.StatusForbidden},
		{"delete someone else", http.MethodDelete, "/delete_user/u1", "", other, http.StatusForbidden},
		{"login", http.MethodPost, "/auth/login", `{"id":"u1","password":"pw"}`, "", http.StatusOK},
		{"delete self", http.MethodDelete, "/delete_user/u1", "", own, http.StatusNoContent},
	}
	for _, s := range steps {
		w := send(r, s.method, s.path, s.body, s.authz)
		if w.Code != s.code {
			t.Errorf("%s: status = %d, want %d (%s)", s.name, w.Code, s.code, w.Body)
		}
	}
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	svc := newSvc(t)
	r := NewAdminEngine(AdminDeps{
		Admin:    handler.NewAdminHandler(svc, time.Hour),
		Verifier: testJWT,
	})

	for _, tc := range []struct {
		authz string
		code  int
	}{
		{"", http.StatusUnauthorized},
		{token(t, "u1", auth.RoleUser), http.StatusForbidden},
		{token(t, "ops", auth.RoleAdmin), http.StatusOK},
	} {
		if w := send(r, http.MethodGet, "/admin/v1/photos/orphans", "", tc.authz); w.Code != tc.code {
			t.Errorf("authz %q: status = %d, want %d", tc.authz, w.Code, tc.code)
		}
	}
	if w := send(r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Errorf("health: %d", w.Code)
	}
}
