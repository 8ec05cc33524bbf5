package graph

import (
	"strings"
	"testing"

	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/module"
	"bungae.dev/bungae/internal/pkgjson"
)

func TestShakeTreeDropsUnusedSideEffectFreeModule(t *testing.T) {
	entry := &module.Transformed{
		Path: "/proj/entry.js",
		Code: `var _a = require(dependencyMap[0]);
exports.x = _a.used;
`,
		Dependencies:   []module.Dependency{{Specifier: "./a", ResolvedPath: "/proj/a.js"}},
		HasSideEffects: true,
		Exports:        []string{"x"},
	}
	a := &module.Transformed{
		Path: "/proj/a.js",
		Code: `exports.used = 1;
exports.unused = 2;
`,
		HasSideEffects: false,
		Exports:        []string{"used", "unused"},
	}
	unreached := &module.Transformed{
		Path:           "/proj/dead.js",
		HasSideEffects: false,
	}

	g := &module.Graph{
		EntryPath: entry.Path,
		Modules:   map[string]*module.Transformed{entry.Path: entry, a.Path: a, unreached.Path: unreached},
		Order:     []string{entry.Path, a.Path, unreached.Path},
	}

	shaken := ShakeTree(g, config.Config{}.WithDefaults(), pkgjson.NewCache(fs.NewMockFS(nil)))

	if _, ok := shaken.Modules[unreached.Path]; ok {
		t.Fatal("expected unreached, side-effect-free module to be dropped")
	}
	for _, p := range shaken.Order {
		if p == unreached.Path {
			t.Fatal("dead.js must not appear in shaken Order")
		}
	}
	if _, ok := shaken.Modules[a.Path]; !ok {
		t.Fatal("a.js is reached and must survive")
	}
}

func TestShakeTreeNeverDropsSideEffectModule(t *testing.T) {
	entry := &module.Transformed{
		Path:           "/proj/entry.js",
		Code:           `// no dependency usage`,
		HasSideEffects: true,
	}
	sideEffecty := &module.Transformed{
		Path:           "/proj/polyfill.js",
		HasSideEffects: true,
	}
	g := &module.Graph{
		EntryPath: entry.Path,
		Modules:   map[string]*module.Transformed{entry.Path: entry, sideEffecty.Path: sideEffecty},
		Order:     []string{entry.Path, sideEffecty.Path},
	}
	shaken := ShakeTree(g, config.Config{}.WithDefaults(), pkgjson.NewCache(fs.NewMockFS(nil)))
	if _, ok := shaken.Modules[sideEffecty.Path]; !ok {
		t.Fatal("a module with HasSideEffects=true must never be pruned, even if unreached")
	}
}

func TestShakeTreeRewritesUnusedNamedExport(t *testing.T) {
	entry := &module.Transformed{
		Path: "/proj/entry.js",
		Code: `var _a = require(dependencyMap[0]);
exports.out = _a.used;
`,
		Dependencies: []module.Dependency{{Specifier: "./a", ResolvedPath: "/proj/a.js"}},
		Exports:      []string{"out"},
	}
	a := &module.Transformed{
		Path: "/proj/a.js",
		Code: `exports.used = 1;
exports.unused = sideEffect();
`,
		HasSideEffects: false, // only side-effect-free modules get their exports rewritten; reached, so it stays in the graph
		Exports:        []string{"used", "unused"},
	}
	g := &module.Graph{
		EntryPath: entry.Path,
		Modules:   map[string]*module.Transformed{entry.Path: entry, a.Path: a},
		Order:     []string{entry.Path, a.Path},
	}
	shaken := ShakeTree(g, config.Config{}.WithDefaults(), pkgjson.NewCache(fs.NewMockFS(nil)))
	got := shaken.Modules[a.Path].Code
	if strings.Contains(got, "exports.unused") {
		t.Fatalf("expected exports.unused assignment removed, got %q", got)
	}
	if !strings.Contains(got, "sideEffect();") {
		t.Fatalf("expected sideEffect() call preserved, got %q", got)
	}
	if !strings.Contains(got, "exports.used = 1;") {
		t.Fatalf("expected exports.used preserved, got %q", got)
	}
}
