package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func TestAuthMiddleware(t *testing.T) {
	mw := NewAuthMiddleware(AuthConfig{APIKeys: []string{" k1 ", "k2"}, PublicPaths: []string{"/health"}})(ok)

	tests := []struct {
		name   string
		path   string
		header string
		value  string
		status int
	}{
		{"missing key", "/data", "", "", http.StatusUnauthorized},
		{"public path", "/health", "", "", http.StatusOK},
		{"api key header", "/data", "X-API-Key", "k1", http.StatusOK},
		{"second key", "/data", "X-API-Key", "k2", http.StatusOK},
		{"bearer", "/data", "Authorization", "Bearer k2", http.StatusOK},
		{"wrong key", "/data", "X-API-Key", "k3", http.StatusUnauthorized},
		{"basic auth is not a key", "/data", "Authorization", "Basic azE=", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestAuthDisabledWithoutKeys(t *testing.T) {
	mw := NewAuthMiddleware(AuthConfig{APIKeys: []string{" "}})(ok)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	const incoming = "6f1c2a34-9d7e-4b8a-a1f0-0c3d5e7f9b21"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != incoming || rec.Header().Get("X-Request-ID") != incoming {
		t.Errorf("request id = %q, header %q, want %q", seen, rec.Header().Get("X-Request-ID"), incoming)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "<script>" || seen == "" {
		t.Errorf("request id = %q, want a generated id", seen)
	}
}

func TestRecovery(t *testing.T) {
	h := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	id := rec.Header().Get("X-Request-ID")
	if id == "" || !strings.Contains(rec.Body.String(), id) {
		t.Errorf("body %q does not name request %q", rec.Body.String(), id)
	}
}

func TestLoggingCapturesStatus(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}
