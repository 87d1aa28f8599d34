package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	app "github.com/R3E-Network/action_layer/internal/app"
	useractions "github.com/R3E-Network/action_layer/internal/app/actions/users"
	"github.com/R3E-Network/action_layer/internal/middleware"
)

var testSecret = []byte("test-secret")

var adminCaps = []string{
	useractions.CapabilityCreate,
	useractions.CapabilityUpdate,
	useractions.CapabilityDelete,
	useractions.CapabilityView,
	CapabilityAudit,
}

func newTestHandler(t *testing.T) (http.Handler, *AuditLog) {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{RequireCapabilities: true, PasswordCost: 4}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	audit := NewAuditLog(10, nil)
	return NewHandler(application, Config{JWTSecret: string(testSecret), Audit: audit}), audit
}

func TestHandlerUserLifecycle(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := issue(t, "admin", adminCaps...)

	resp := serve(handler, authedRequest(http.MethodPost, "/users", token, marshal(map[string]any{
		"name":                  "Ada Lovelace",
		"email":                 "ada@example.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	if !gjson.Get(body, "success").Bool() {
		t.Fatalf("expected success body, got %s", body)
	}
	id := gjson.Get(body, "data.id").String()
	if id == "" {
		t.Fatalf("expected user id in %s", body)
	}
	if gjson.Get(body, "data.password_hash").Exists() {
		t.Fatal("password hash must not be serialized")
	}

	resp = serve(handler, authedRequest(http.MethodGet, "/users/"+id, token, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 get, got %d", resp.Code)
	}
	if got := gjson.Get(resp.Body.String(), "data.email").String(); got != "ada@example.com" {
		t.Fatalf("unexpected email %q", got)
	}

	resp = serve(handler, authedRequest(http.MethodPut, "/users/"+id, token, marshal(map[string]any{"name": "Ada King"})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 update, got %d: %s", resp.Code, resp.Body.String())
	}
	if got := gjson.Get(resp.Body.String(), "data.name").String(); got != "Ada King" {
		t.Fatalf("expected updated name, got %q", got)
	}

	resp = serve(handler, authedRequest(http.MethodGet, "/users?search=king&status=active&per_page=5", token, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 list, got %d: %s", resp.Code, resp.Body.String())
	}
	listing := resp.Body.String()
	if gjson.Get(listing, "data.total").Int() != 1 || gjson.Get(listing, "data.per_page").Int() != 5 {
		t.Fatalf("unexpected listing %s", listing)
	}

	resp = serve(handler, authedRequest(http.MethodDelete, "/users/"+id, token, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 delete, got %d", resp.Code)
	}

	resp = serve(handler, authedRequest(http.MethodGet, "/users/"+id, token, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
	if gjson.Get(resp.Body.String(), "success").Bool() {
		t.Fatal("expected failure body after delete")
	}
}

func TestHandlerValidationFailure(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := issue(t, "admin", adminCaps...)

	resp := serve(handler, authedRequest(http.MethodPost, "/users", token, marshal(map[string]any{
		"name":  "Ada",
		"email": "not-an-email",
	})))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	if !gjson.Get(body, "errors.email.0").Exists() || !gjson.Get(body, "errors.password.0").Exists() {
		t.Fatalf("expected field errors, got %s", body)
	}
}

func TestHandlerBadJSON(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := issue(t, "admin", adminCaps...)

	resp := serve(handler, authedRequest(http.MethodPost, "/users", token, []byte(`{"name":`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if gjson.Get(resp.Body.String(), "success").Bool() {
		t.Fatal("expected failure body")
	}
}

func TestHandlerPermissions(t *testing.T) {
	handler, _ := newTestHandler(t)

	resp := serve(handler, authedRequest(http.MethodPost, "/users", "", marshal(map[string]any{"name": "x"})))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for guest, got %d", resp.Code)
	}

	resp = serve(handler, authedRequest(http.MethodGet, "/users", issue(t, "viewer"), nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without capability, got %d", resp.Code)
	}

	resp = serve(handler, authedRequest(http.MethodGet, "/users", "garbage", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.Code)
	}
}

func TestHandlerCurrentUserAndCheckEmail(t *testing.T) {
	handler, _ := newTestHandler(t)
	admin := issue(t, "admin", adminCaps...)

	resp := serve(handler, authedRequest(http.MethodPost, "/users", admin, marshal(map[string]any{
		"name":                  "Grace",
		"email":                 "grace@example.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	id := gjson.Get(resp.Body.String(), "data.id").String()

	resp = serve(handler, authedRequest(http.MethodGet, "/user", "", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for guest, got %d", resp.Code)
	}

	resp = serve(handler, authedRequest(http.MethodGet, "/user", issue(t, id), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 current user, got %d: %s", resp.Code, resp.Body.String())
	}
	if got := gjson.Get(resp.Body.String(), "data.id").String(); got != id {
		t.Fatalf("expected current user %s, got %s", id, got)
	}

	resp = serve(handler, authedRequest(http.MethodPost, "/check-email", "", marshal(map[string]any{"email": "GRACE@example.com"})))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken email, got %d", resp.Code)
	}
	if !gjson.Get(resp.Body.String(), "errors.email.0").Exists() {
		t.Fatalf("expected email error, got %s", resp.Body.String())
	}

	resp = serve(handler, authedRequest(http.MethodPost, "/check-email", "", marshal(map[string]any{"email": "new@example.com"})))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for free email, got %d", resp.Code)
	}
	if !gjson.Get(resp.Body.String(), "data.available").Bool() {
		t.Fatalf("expected available, got %s", resp.Body.String())
	}
}

func TestHandlerWebForm(t *testing.T) {
	handler, _ := newTestHandler(t)
	admin := issue(t, "admin", adminCaps...)

	form := url.Values{
		"name":                  {"Ada"},
		"email":                 {"ada@example.com"},
		"password":              {"password123"},
		"password_confirmation": {"password123"},
	}
	resp := serve(handler, formRequest(admin, form, ""))
	if resp.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.Code)
	}
	if loc := resp.Header().Get("Location"); loc != "/users" {
		t.Fatalf("expected redirect to /users, got %q", loc)
	}
	flash := flashFrom(t, resp)
	if !flash.Success || flash.Message != "User created successfully" {
		t.Fatalf("unexpected flash %+v", flash)
	}

	form.Set("email", "not-an-email")
	form.Set("password_confirmation", "different")
	resp = serve(handler, formRequest(admin, form, "http://example.com/register"))
	if loc := resp.Header().Get("Location"); loc != "/register" {
		t.Fatalf("expected redirect back, got %q", loc)
	}
	flash = flashFrom(t, resp)
	if flash.Success || len(flash.Errors["email"]) == 0 || len(flash.Errors["password"]) == 0 {
		t.Fatalf("expected field errors, got %+v", flash)
	}
	if flash.Old["name"] != "Ada" {
		t.Fatalf("expected old input, got %+v", flash.Old)
	}
	if _, ok := flash.Old["password"]; ok {
		t.Fatal("password must not be flashed")
	}
}

func TestHandlerAudit(t *testing.T) {
	handler, audit := newTestHandler(t)

	serve(handler, authedRequest(http.MethodGet, "/users", issue(t, "viewer"), nil))
	entries := audit.List(0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].User != "viewer" || entries[0].Status != http.StatusForbidden || entries[0].TraceID == "" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}

	resp := serve(handler, authedRequest(http.MethodGet, "/audit", issue(t, "viewer"), nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for audit without capability, got %d", resp.Code)
	}

	resp = serve(handler, authedRequest(http.MethodGet, "/audit?limit=1", issue(t, "auditor", CapabilityAudit), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 audit, got %d", resp.Code)
	}
	if n := len(gjson.Get(resp.Body.String(), "data").Array()); n != 1 {
		t.Fatalf("expected 1 audit entry in body, got %d", n)
	}
}

func TestHandlerHealthAndNotFound(t *testing.T) {
	handler, _ := newTestHandler(t)

	resp := serve(handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK || gjson.Get(resp.Body.String(), "status").String() != "ok" {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected trace id header")
	}

	resp = serve(handler, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestParseQuery(t *testing.T) {
	q := parseQuery(url.Values{
		"search":         {"ada"},
		"sort_by":        {"name"},
		"sort_direction": {"desc"},
		"page":           {"2"},
		"per_page":       {"abc"},
		"status":         {"active, inactive"},
		"unknown":        {"x"},
	})
	if q.Search != "ada" || q.SortBy != "name" || q.SortDirection != "desc" || q.Page != 2 || q.PerPage != 0 {
		t.Fatalf("unexpected query %+v", q)
	}
	if got := strings.Join(q.Filters["status"], ","); got != "active,inactive" {
		t.Fatalf("unexpected status filter %q", got)
	}
	if _, ok := q.Filters["unknown"]; ok {
		t.Fatal("unknown filters must be dropped")
	}
}

func TestLocalPath(t *testing.T) {
	cases := map[string]string{
		"":                        "/fallback",
		"/users":                  "/users",
		"//evil.example.com/x":    "/fallback",
		"http://example.com/back": "/back",
		"https://example.com":     "/fallback",
		"relative":                "/fallback",
	}
	for in, want := range cases {
		if got := localPath(in, "/fallback"); got != want {
			t.Errorf("localPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func issue(t *testing.T, userID string, caps ...string) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, userID, caps, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func authedRequest(method, target, token string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func formRequest(token string, form url.Values, referer string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/web/users", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	return req
}

func flashFrom(t *testing.T, resp *httptest.ResponseRecorder) Flash {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range resp.Result().Cookies() {
		req.AddCookie(c)
	}
	flash, ok := ReadFlash(req)
	if !ok {
		t.Fatal("expected flash cookie")
	}
	return flash
}

func marshal(v any) []byte {
	buf, _ := json.Marshal(v)
	return buf
}
