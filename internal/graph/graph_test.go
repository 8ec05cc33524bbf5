package graph

import (
	"context"
	"strings"
	"testing"

	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/logger"
	"bungae.dev/bungae/internal/module"
	"bungae.dev/bungae/internal/pkgjson"
	"bungae.dev/bungae/internal/test"
)

// TestBuildDFSOrdering drives dfsOrder with a hand-built module map,
// independent of the real transformer: its contract is a pure function of
// (entry, dependency edges).
func TestBuildDFSOrdering(t *testing.T) {
	modMap := map[string]*module.Transformed{
		"/proj/A.js": {Path: "/proj/A.js", Dependencies: []module.Dependency{
			{Specifier: "./B", ResolvedPath: "/proj/B.js"},
			{Specifier: "./C", ResolvedPath: "/proj/C.js"},
		}},
		"/proj/B.js": {Path: "/proj/B.js", Dependencies: []module.Dependency{
			{Specifier: "./D", ResolvedPath: "/proj/D.js"},
		}},
		"/proj/C.js": {Path: "/proj/C.js", Dependencies: []module.Dependency{
			{Specifier: "./D", ResolvedPath: "/proj/D.js"},
		}},
		"/proj/D.js": {Path: "/proj/D.js"},
	}

	order := dfsOrder("/proj/A.js", modMap, nil)
	want := []string{"/proj/A.js", "/proj/B.js", "/proj/D.js", "/proj/C.js"}
	test.AssertEqualWithDiff(t, strings.Join(order, "\n"), strings.Join(want, "\n"))
}

// TestBuildDFSOrderingNotesCycleOnce exercises the Go-side cycle note dfsOrder
// surfaces for a static A -> B -> A require cycle: the crawl walks into the
// cycle once, and exactly one note is reported for it.
func TestBuildDFSOrderingNotesCycleOnce(t *testing.T) {
	modMap := map[string]*module.Transformed{
		"/proj/A.js": {Path: "/proj/A.js", Dependencies: []module.Dependency{
			{Specifier: "./B", ResolvedPath: "/proj/B.js"},
		}},
		"/proj/B.js": {Path: "/proj/B.js", Dependencies: []module.Dependency{
			{Specifier: "./A", ResolvedPath: "/proj/A.js"},
		}},
	}

	log := logger.New(logger.LevelInfo)
	order := dfsOrder("/proj/A.js", modMap, log)
	if len(order) != 2 {
		t.Fatalf("order = %v, want exactly A.js and B.js once each", order)
	}

	notes := 0
	for _, msg := range log.Done() {
		if msg.Kind == logger.KindNote {
			notes++
		}
	}
	if notes != 1 {
		t.Fatalf("expected exactly one require-cycle note, got %d", notes)
	}
}

func TestSideEffectsAllowedDefaultsTrue(t *testing.T) {
	mock := fs.NewMockFS(map[string]string{
		"/proj/src/index.js": `module.exports = 1;`,
	})
	b := &Builder{fsys: mock, cfg: config.Config{}.WithDefaults(), pkgs: pkgjson.NewCache(mock)}
	if !b.sideEffectsAllowed("/proj/src/index.js") {
		t.Fatal("expected default true with no package.json present")
	}
}

func TestSideEffectsAllowedFalseField(t *testing.T) {
	mock := fs.NewMockFS(map[string]string{
		"/proj/package.json": `{"name":"proj","sideEffects":false}`,
		"/proj/src/index.js": `module.exports = 1;`,
	})
	b := &Builder{fsys: mock, cfg: config.Config{}.WithDefaults(), pkgs: pkgjson.NewCache(mock)}
	if b.sideEffectsAllowed("/proj/src/index.js") {
		t.Fatal("expected false when sideEffects:false")
	}
}

func TestSideEffectsAllowedGlobMatch(t *testing.T) {
	mock := fs.NewMockFS(map[string]string{
		"/proj/package.json":    `{"name":"proj","sideEffects":["**/polyfill.js"]}`,
		"/proj/src/polyfill.js": `globalThis.x = 1;`,
		"/proj/src/pure.js":     `module.exports = 1;`,
	})
	b := &Builder{fsys: mock, cfg: config.Config{}.WithDefaults(), pkgs: pkgjson.NewCache(mock)}
	if !b.sideEffectsAllowed("/proj/src/polyfill.js") {
		t.Fatal("expected polyfill.js to match the glob and keep side effects")
	}
	if b.sideEffectsAllowed("/proj/src/pure.js") {
		t.Fatal("expected pure.js to be pruned (no glob match)")
	}
}

func TestBuildObservesCancellation(t *testing.T) {
	mock := fs.NewMockFS(map[string]string{"/proj/entry.js": `exports.x = 1;`})
	b := New(mock, config.Config{}.WithDefaults(), logger.New(logger.LevelError))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Build(ctx, "/proj/entry.js", nil); err == nil {
		t.Fatal("expected an already-cancelled build to fail")
	}
}

func TestBuildMissingEntryIsError(t *testing.T) {
	mock := fs.NewMockFS(map[string]string{})
	b := New(mock, config.Config{}.WithDefaults(), logger.New(logger.LevelError))
	if _, err := b.Build(context.Background(), "/proj/missing.js", nil); err == nil {
		t.Fatal("expected an error for a missing entry file")
	}
}
