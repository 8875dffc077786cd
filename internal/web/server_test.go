package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/photo-dedupe/internal/config"
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/fpcache"
	"github.com/kozaktomas/photo-dedupe/internal/grouper"
	"github.com/kozaktomas/photo-dedupe/internal/library"
	"github.com/kozaktomas/photo-dedupe/internal/review"
	"github.com/kozaktomas/photo-dedupe/internal/web/handlers"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	lib, err := library.New(t.TempDir(), []string{".jpg"})
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	cache := fpcache.New(filepath.Join(t.TempDir(), "cache.yaml"), fingerprint.Frequency)
	clusters := []grouper.Cluster{{Members: []grouper.Member{{ID: "x.jpg"}, {ID: "y.jpg", Distance: 1}}}}
	h := handlers.NewClustersHandler("s", lib, review.NewApplier(lib, cache), clusters)
	return NewServer(&config.ServerConfig{Host: "127.0.0.1", Port: 0}, h)
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"list", http.MethodGet, "/api/v1/clusters", "", http.StatusOK},
		{"get", http.MethodGet, "/api/v1/clusters/0", "", http.StatusOK},
		{"get missing", http.MethodGet, "/api/v1/clusters/9", "", http.StatusNotFound},
		{"decide bad body", http.MethodPost, "/api/v1/clusters/0/decision", "nope", http.StatusBadRequest},
		{"image unknown", http.MethodGet, "/api/v1/images?id=z.jpg", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/v1/photos", "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/v1/clusters/0", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()

			srv.Router().ServeHTTP(recorder, req)

			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestRoutes_ListBody(t *testing.T) {
	srv := newTestServer(t)

	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/clusters", nil))

	var result handlers.ClusterListResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if result.Total != 1 || result.Clusters[0].Members[1].ID != "y.jpg" {
		t.Errorf("unexpected response: %+v", result)
	}
	if srv.Addr() != "127.0.0.1:0" {
		t.Errorf("unexpected addr '%s'", srv.Addr())
	}
}
