// Package devserver is the development HTTP/WebSocket surface: the bundle
// endpoint, the asset endpoint, and the `/hot` WebSocket transport that
// forwards internal/hmr's update records to connected clients. A source
// watcher built on fsnotify drives the update computation.
package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"bungae.dev/bungae/internal/bundle"
	"bungae.dev/bungae/internal/bungerr"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/helpers"
	"bungae.dev/bungae/internal/hmr"
	"bungae.dev/bungae/internal/logger"
	"bungae.dev/bungae/internal/module"
)

// Server owns one live dev build: the current graph/bundle, the HMR
// session computing updates against it, and the set of open `/hot`
// WebSocket connections to fan updates out to.
type Server struct {
	fsys fs.FS
	log  *logger.Log

	mu      sync.RWMutex
	result  *bundle.Result
	session *hmr.Session

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	watcher *fsnotify.Watcher
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// New runs an initial full build and prepares a watcher over every module
// currently in the graph, but does not start watching or serving yet.
func New(ctx context.Context, fsys fs.FS, entryPath string, opts bundle.Options, log *logger.Log) (*Server, error) {
	res, err := bundle.Build(ctx, fsys, entryPath, opts)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &bungerr.IoError{Path: entryPath, Err: err}
	}

	s := &Server{
		fsys:    fsys,
		log:     log,
		result:  res,
		session: hmr.NewSession(fsys, opts.Config.WithDefaults(), res.Graph, res.Bundle.ModuleIDs, log),
		clients: map[*websocket.Conn]bool{},
		watcher: watcher,
	}
	s.watchGraph(res.Graph)
	return s, nil
}

// watchGraph adds fsnotify watches for every directory containing a module
// currently in the graph, deduplicated since fsnotify watches whole
// directories rather than individual files.
func (s *Server) watchGraph(g *module.Graph) {
	seen := map[string]bool{}
	for path := range g.Modules {
		dir := fs.Dir(path)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		_ = s.watcher.Add(dir)
	}
}

// Mux builds the HTTP surface: the bundle itself, the asset endpoint, and
// the `/hot` WebSocket upgrade.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.bundle", s.handleBundle)
	mux.HandleFunc("/assets/", s.handleAsset)
	mux.HandleFunc("/hot", s.handleHot)
	return mux
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	res := s.result
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	_, _ = io.WriteString(w, res.Bundle.Code)
}

// handleAsset serves GET /assets/<relative-dir>/<name>.<type> with the raw
// asset bytes. The platform and hash query parameters only show up in the
// served-asset log line; they never change which bytes come back.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	assets := s.result.Bundle.Assets
	s.mu.RUnlock()

	requested := strings.TrimPrefix(r.URL.Path, "/assets")
	requested = strings.TrimPrefix(requested, "/")

	for _, a := range assets {
		loc := strings.TrimPrefix(a.HTTPServerLocation, "/assets")
		loc = strings.TrimPrefix(loc, "/")
		name := a.Name + "." + a.Type
		want := name
		if loc != "" {
			want = loc + "/" + name
		}
		if want != requested {
			continue
		}
		contents, err := s.fsys.ReadFile(a.FilePath)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if s.log != nil {
			s.log.AddMsg(logger.Msg{
				Kind: logger.KindNote,
				Text: "served asset " + a.FilePath + " (platform=" + r.URL.Query().Get("platform") + ", hash=" + r.URL.Query().Get("hash") + ")",
			})
		}
		contentType := helpers.MimeTypeByExtension("." + a.Type)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(contents)
		return
	}
	http.NotFound(w, r)
}

// hello is the client's opening `/hot` frame:
// {"type":"hmr:connected","bundleEntry":string,"platform":"ios"|"android"}.
type hello struct {
	Type        string `json:"type"`
	BundleEntry string `json:"bundleEntry"`
	Platform    string `json:"platform"`
}

type clientLog struct {
	Type  string      `json:"type"`
	Level string      `json:"level"`
	Data  interface{} `json:"data"`
}

func (s *Server) handleHot(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var first hello
	if err := conn.ReadJSON(&first); err != nil {
		s.sendProtocolError(conn, &bungerr.ProtocolError{Reason: err.Error()})
		return
	}
	if first.Type != "hmr:connected" || !validPlatform(first.Platform) {
		s.sendProtocolError(conn, &bungerr.ProtocolError{Reason: "unexpected opening frame"})
		return
	}

	s.registerClient(conn)
	defer s.unregisterClient(conn)

	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return // connection closed by the client
		}
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			s.sendProtocolError(conn, &bungerr.ProtocolError{Reason: "malformed frame"})
			continue
		}
		switch probe.Type {
		case "hmr:log":
			var lg clientLog
			if err := json.Unmarshal(raw, &lg); err != nil {
				s.sendProtocolError(conn, &bungerr.ProtocolError{Reason: "malformed hmr:log frame"})
				continue
			}
			if s.log != nil {
				s.log.AddMsg(logger.Msg{Kind: logger.KindNote, Text: "client hmr:log: " + lg.Level})
			}
		default:
			s.sendProtocolError(conn, &bungerr.ProtocolError{Reason: "unrecognized frame type " + probe.Type})
		}
	}
}

// validPlatform checks the opening frame's declared platform against the
// two device platforms the HMR protocol serves ("web" never opens a `/hot`
// connection).
func validPlatform(p string) bool {
	switch p {
	case "ios", "android":
		return true
	default:
		return false
	}
}

// sendProtocolError logs the bad frame and notifies the client. The frame
// is dropped and the connection stays open; the caller decides separately
// whether to keep looping.
func (s *Server) sendProtocolError(conn *websocket.Conn, err *bungerr.ProtocolError) {
	if s.log != nil {
		s.log.AddWarning(nil, err.Error())
	}
	_ = conn.WriteJSON(map[string]any{
		"type": "error",
		"body": map[string]string{"message": err.Error()},
	})
}

func (s *Server) registerClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()
}

func (s *Server) unregisterClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
}

// Watch runs the fsnotify loop until stop is closed: every write to a
// watched file that belongs to the current graph triggers an HMR update
// broadcast to every connected client, always framed between update-start
// and update-done.
func (s *Server) Watch(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			_ = s.watcher.Close()
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Write == 0 {
				continue
			}
			s.onChange(ev.Name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if s.log != nil {
				s.log.AddWarning(nil, err.Error())
			}
		}
	}
}

func (s *Server) onChange(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, inGraph := s.result.Graph.Modules[path]; !inGraph {
		return
	}

	s.broadcast(map[string]any{"type": "update-start"})

	payload, err := s.session.Update(path)
	if err != nil {
		s.broadcast(map[string]any{"type": "error", "body": map[string]string{"message": err.Error()}})
		s.broadcast(map[string]any{"type": "update-done"})
		return
	}

	s.broadcast(map[string]any{"type": "update", "body": wireBody(payload)})
	s.broadcast(map[string]any{"type": "update-done"})
}

func wireBody(p *hmr.Payload) map[string]any {
	toWire := func(mods []hmr.ModuleUpdate) []map[string]any {
		out := make([]map[string]any, 0, len(mods))
		for _, m := range mods {
			out = append(out, map[string]any{
				"module":    []any{m.ID, m.Code},
				"sourceURL": m.SourceURL,
			})
		}
		return out
	}
	return map[string]any{
		"added":    toWire(p.Added),
		"modified": toWire(p.Modified),
		"deleted":  p.Deleted,
	}
}

func (s *Server) broadcast(v any) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		_ = conn.WriteJSON(v)
	}
}
