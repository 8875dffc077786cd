package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	"github.com/kozaktomas/photo-dedupe/internal/fpcache"
	"github.com/kozaktomas/photo-dedupe/internal/grouper"
	"github.com/kozaktomas/photo-dedupe/internal/library"
	"github.com/kozaktomas/photo-dedupe/internal/review"
)

// testFixture is a library with two duplicate clusters on disk.
type testFixture struct {
	root    string
	cache   *fpcache.Cache
	handler *ClustersHandler
}

// setupFixture writes a.png, a copy.png, b.png, b2.png and outside.png and
// returns a handler over the clusters [a, a copy] and [b, b2].
func setupFixture(t *testing.T) *testFixture {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"a.png", "a copy.png", "b.png", "b2.png", "outside.png"} {
		writePNG(t, filepath.Join(root, name), 40, 20)
	}
	if err := os.WriteFile(filepath.Join(root, "b2.png.xmp"), []byte("<x/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := library.New(root, []string{".png"})
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	cache := fpcache.New(filepath.Join(t.TempDir(), "cache.yaml"), fingerprint.Frequency)
	for _, id := range []library.Identity{"a.png", "a copy.png", "b.png", "b2.png", "outside.png"} {
		cache.Put(id, 7)
	}

	clusters := []grouper.Cluster{
		{Members: []grouper.Member{{ID: "a.png"}, {ID: "a copy.png", Distance: 0}}},
		{Members: []grouper.Member{{ID: "b.png"}, {ID: "b2.png", Distance: 2}}},
	}
	return &testFixture{
		root:    root,
		cache:   cache,
		handler: NewClustersHandler("session-1", lib, review.NewApplier(lib, cache), clusters),
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 12), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
