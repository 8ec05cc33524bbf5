package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"bungae.dev/bungae/internal/bundle"
	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/logger"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	mock := fs.NewMockFS(map[string]string{
		"/proj/entry.js": `var logo = require('./logo.png');
exports.logo = logo;
`,
		"/proj/logo.png": "\x89PNG-stub-bytes",
	})
	srv, err := New(context.Background(), mock, "/proj/entry.js", bundle.Options{
		Config: config.Config{ProjectRoot: "/proj", Platform: config.PlatformIOS},
	}, logger.New(logger.LevelError))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestHandleBundleServesJS(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/index.bundle")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Fatalf("expected a javascript content type, got %q", ct)
	}
}

func TestHandleAssetUnknownPath404s(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/assets/nowhere.png")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an asset outside the manifest, got %d", resp.StatusCode)
	}
}

func TestHandleHotRejectsMalformedOpeningFrame(t *testing.T) {
	_, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/hot"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "not-a-hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame["type"] != "error" {
		t.Fatalf("expected an error frame for an unexpected opening message, got %+v", frame)
	}
}

func TestHandleHotAcceptsValidOpeningFrame(t *testing.T) {
	_, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/hot"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(hello{Type: "hmr:connected", BundleEntry: "entry.js", Platform: "ios"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "hmr:log", "level": "info", "data": "booted"}); err != nil {
		t.Fatalf("write log frame: %v", err)
	}
}
