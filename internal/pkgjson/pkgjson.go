// Package pkgjson reads the handful of package.json fields the resolver and
// tree-shaker need: the main-field precedence chain and the sideEffects
// declaration.
package pkgjson

import (
	"encoding/json"
	"sync"

	"bungae.dev/bungae/internal/fs"
)

type Package struct {
	Name        string          `json:"name"`
	Main        string          `json:"main"`
	Module      string          `json:"module"`
	Browser     json.RawMessage `json:"browser"`
	ReactNative json.RawMessage `json:"react-native"`
	SideEffectsRaw json.RawMessage `json:"sideEffects"`
}

// MainField returns the path from the given field when it holds a plain
// string. The object form of "react-native" and "browser" (per-subpath
// remaps) and the boolean false of "browser" are not read: ok is false.
func (p *Package) MainField(field string) (string, bool) {
	switch field {
	case "react-native":
		return stringField(p.ReactNative)
	case "browser":
		return stringField(p.Browser)
	case "main":
		return p.Main, p.Main != ""
	case "module":
		return p.Module, p.Module != ""
	}
	return "", false
}

func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, s != ""
}

// SideEffects reports the package's sideEffects declaration: ok is false
// when the field is absent or neither a boolean nor a string array
// (meaning "assume side effects"), patterns is non-nil when it's an array
// of globs, and allFalse is true when the field is the literal boolean false.
func (p *Package) SideEffects() (patterns []string, allFalse bool, ok bool) {
	if len(p.SideEffectsRaw) == 0 {
		return nil, false, false
	}
	var b bool
	if err := json.Unmarshal(p.SideEffectsRaw, &b); err == nil {
		return nil, !b, true
	}
	var arr []string
	if err := json.Unmarshal(p.SideEffectsRaw, &arr); err == nil {
		return arr, false, true
	}
	return nil, false, false
}

// Cache memoizes parsed package.json files by path for one bundling session.
// Concurrent because the graph builder's worker pool reads it from many
// goroutines at once.
type Cache struct {
	fsys   fs.FS
	mu     sync.RWMutex
	byPath map[string]*Package // nil value means "parsed but absent/invalid"
}

func NewCache(fsys fs.FS) *Cache {
	return &Cache{fsys: fsys, byPath: map[string]*Package{}}
}

// Nearest walks upward from dir (inclusive) looking for the first
// package.json, returning it alongside the directory it was found in. That
// directory is the package boundary the tree-shaker uses to resolve a
// module's sideEffects declaration and to decide whether export
// propagation is crossing into a different node_modules package.
func (c *Cache) Nearest(dir string) (pkg *Package, pkgDir string) {
	for {
		if p := c.Load(fs.Join(dir, "package.json")); p != nil {
			return p, dir
		}
		parent := fs.Dir(dir)
		if parent == dir {
			return nil, ""
		}
		dir = parent
	}
}

// Load reads and parses the package.json at the exact given path (not a
// directory), returning nil if it doesn't exist or fails to parse.
func (c *Cache) Load(path string) *Package {
	c.mu.RLock()
	if pkg, ok := c.byPath[path]; ok {
		c.mu.RUnlock()
		return pkg
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if pkg, ok := c.byPath[path]; ok {
		return pkg
	}

	contents, err := c.fsys.ReadFile(path)
	if err != nil {
		c.byPath[path] = nil
		return nil
	}
	var pkg Package
	if err := json.Unmarshal(contents, &pkg); err != nil {
		c.byPath[path] = nil
		return nil
	}
	c.byPath[path] = &pkg
	return &pkg
}
