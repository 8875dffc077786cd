package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsLocalhostOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://127.0.0.1:8443", true},
		{"http://localhost.evil.com", false},
		{"https://photos.example.com", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := isLocalhostOrigin(tc.origin); got != tc.want {
			t.Errorf("isLocalhostOrigin(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORS([]string{"https://review.example.com", " "})(next)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"listed origin", http.MethodGet, "https://review.example.com", "https://review.example.com", http.StatusTeapot},
		{"localhost", http.MethodGet, "http://localhost:3000", "http://localhost:3000", http.StatusTeapot},
		{"unlisted origin", http.MethodGet, "https://evil.example.com", "", http.StatusTeapot},
		{"preflight", http.MethodOptions, "https://review.example.com", "https://review.example.com", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/clusters", nil)
			req.Header.Set("Origin", tc.origin)
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, req)

			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
			if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Errorf("expected allow origin '%s', got '%s'", tc.wantOrigin, got)
			}
		})
	}
}
