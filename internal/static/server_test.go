package static

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newAssetRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":    "<!doctype html>",
		"lib.wasm":      "\x00asm\x01\x00\x00\x00",
		"bundle.js":     "console.log(1)",
		"data.json":     `{"ok":true}`,
		"font.ttf":      "ttf",
		"notes.txt":     "plain",
		"nested/a.html": "<p>a</p>",
	}
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(Config{Port: 0, AssetRoot: newAssetRoot(t)}, zaptest.NewLogger(t))
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServeWasm(t *testing.T) {
	rec := do(t, newTestServer(t).Handler(), http.MethodGet, "/lib.wasm")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/wasm", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "\x00asm\x01\x00\x00\x00", rec.Body.String())
}

func TestServeMissing(t *testing.T) {
	rec := do(t, newTestServer(t).Handler(), http.MethodGet, "/missing.foo")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestNonGetIsServerError(t *testing.T) {
	h := newTestServer(t).Handler()
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead} {
		for _, target := range []string{"/", "/lib.wasm", "/missing.foo"} {
			rec := do(t, h, method, target)
			assert.Equal(t, http.StatusInternalServerError, rec.Code, "%s %s", method, target)
			assert.Empty(t, rec.Body.Bytes(), "%s %s", method, target)
		}
	}
}

func TestServeHeadersByLastCharacter(t *testing.T) {
	h := newTestServer(t).Handler()
	tests := []struct {
		target       string
		contentType  string
		cacheControl string
	}{
		{"/", "text/html;charset=utf-8", "no-cache"},
		{"/index.html", "text/html;charset=utf-8", "no-cache"},
		{"/nested/a.html", "text/html;charset=utf-8", "no-cache"},
		{"/data.json", "application/json", ""},
		{"/bundle.js", "", "no-cache"},
		{"/font.ttf", "font/ttf", "max-age=86400"},
		{"/lib.wasm", "application/wasm", "no-cache"},
	}

	for _, tt := range tests {
		rec := do(t, h, http.MethodGet, tt.target)
		assert.Equal(t, http.StatusOK, rec.Code, tt.target)
		assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"), tt.target)
		assert.Equal(t, tt.cacheControl, rec.Header().Get("Cache-Control"), tt.target)
	}
}

func TestServeUnmappedExtensionHasNoHeaders(t *testing.T) {
	rec := do(t, newTestServer(t).Handler(), http.MethodGet, "/notes.txt")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plain", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestServeDirectoryIsNotFound(t *testing.T) {
	rec := do(t, newTestServer(t).Handler(), http.MethodGet, "/nested")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestServeStaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "public")
	require.NoError(t, os.Mkdir(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.json"), []byte("{}"), 0o644))

	responder := NewResponder(root, zaptest.NewLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secret.json"

	rec := httptest.NewRecorder()
	responder.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeadersFor(t *testing.T) {
	assert.Nil(t, HeadersFor(""))
	assert.Nil(t, HeadersFor("/missing.foo"))
	assert.Equal(t, "application/wasm", HeadersFor("/lib.wasm")["Content-Type"])
}

func TestListenAndServeShutsDown(t *testing.T) {
	srv := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/lib.wasm")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body, 8)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
