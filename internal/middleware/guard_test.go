package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dawailo/internal/adapters/capabilities/roles"
	"dawailo/internal/platform/logger"
	"dawailo/internal/ports/auth"
	"dawailo/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	if token != "good" {
		return auth.Claims{}, errors.New("bad token")
	}
	return auth.Claims{UserID: "doc1", Role: auth.RoleDoctor}, nil
}

func newTestRouter(verifier auth.AuthVerifier) http.Handler {
	guard := NewGuard(roles.NewResolver(nil))
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

	r := chi.NewRouter()
	r.Use(AuthContext(verifier))
	r.With(guard.Authenticated).Get("/me", ok)
	r.With(guard.Require(capabilities.PrescriptionsWrite)).Post("/prescriptions", ok)
	r.With(guard.RequirePatientScope(capabilities.ScheduleRead)).Get("/patients/{patientID}/schedule", ok)
	return r
}

func serve(h http.Handler, method, path string, headers map[string]string) int {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func devHeaders(id, role string) map[string]string {
	return map[string]string{"X-Debug-User-ID": id, "X-Debug-User-Role": role}
}

func TestGuard_DevHeaders(t *testing.T) {
	h := newTestRouter(nil)

	cases := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    int
	}{
		{"no claims", "GET", "/me", nil, http.StatusUnauthorized},
		{"unknown role", "GET", "/me", devHeaders("u1", "admin"), http.StatusUnauthorized},
		{"authenticated", "GET", "/me", devHeaders("u1", "pharmacist"), http.StatusOK},
		{"doctor writes", "POST", "/prescriptions", devHeaders("doc1", "doctor"), http.StatusOK},
		{"pharmacist cannot write", "POST", "/prescriptions", devHeaders("ph1", "pharmacist"), http.StatusForbidden},
		{"patient own schedule", "GET", "/patients/p1/schedule", devHeaders("p1", "patient"), http.StatusOK},
		{"patient other schedule", "GET", "/patients/p2/schedule", devHeaders("p1", "PATIENT"), http.StatusForbidden},
		{"doctor any schedule", "GET", "/patients/p2/schedule", devHeaders("doc1", "doctor"), http.StatusOK},
		{"pharmacist no schedule", "GET", "/patients/p2/schedule", devHeaders("ph1", "pharmacist"), http.StatusForbidden},
	}
	for _, tc := range cases {
		if got := serve(h, tc.method, tc.path, tc.headers); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestAuthContext_BearerToken(t *testing.T) {
	h := newTestRouter(fakeVerifier{})

	if got := serve(h, "GET", "/me", map[string]string{"Authorization": "Bearer good"}); got != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", got)
	}
	if got := serve(h, "GET", "/me", map[string]string{"Authorization": "Bearer nope"}); got != http.StatusUnauthorized {
		t.Fatalf("expected 401 with invalid token, got %d", got)
	}
	if got := serve(h, "GET", "/me", devHeaders("doc1", "doctor")); got != http.StatusUnauthorized {
		t.Fatalf("debug headers must be ignored when a verifier is set, got %d", got)
	}
}

func TestBearerToken(t *testing.T) {
	if got := bearerToken("bearer  abc "); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	for _, h := range []string{"", "abc", "Basic abc"} {
		if got := bearerToken(h); got != "" {
			t.Fatalf("expected empty token for %q, got %q", h, got)
		}
	}
}

func TestRecover_LogsAndReturns500(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: logger.Debug, Format: logger.FormatJSON, Output: &buf})

	h := Recover(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	if got := serve(h, "GET", "/x", nil); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", got)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("expected panic to be logged, got %q", buf.String())
	}
}
