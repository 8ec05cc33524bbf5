// Package fs is a small filesystem abstraction so the resolver, transformer,
// and cache can be driven against a real directory tree or an in-memory one
// in tests without duplicating every call site.
package fs

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"time"
)

// FS is the seam the rest of bungae is written against. RealFS backs normal
// builds; MockFS backs tests that want a deterministic, in-memory tree.
type FS interface {
	// ReadFile returns the full contents of the file at an absolute path.
	ReadFile(path string) ([]byte, error)

	// Stat returns the modification time and whether the path is a directory.
	// It returns ok=false if the path does not exist.
	Stat(path string) (modTime time.Time, isDir bool, ok bool)

	// ReadDir lists the base names of entries directly inside a directory,
	// sorted for determinism. Returns ok=false if the path is not a directory.
	ReadDir(path string) (names []string, ok bool)

	// Abs returns an absolute, cleaned form of path, resolved against the
	// filesystem's notion of a current directory (irrelevant for MockFS).
	Abs(path string) (string, error)
}

// Join mirrors filepath.Join but always returns forward-slash-separated
// output, since every externally observable path in the bundler (sources in
// a source map, httpServerLocation in an asset record) uses "/" regardless
// of host OS.
func Join(elem ...string) string {
	return filepath.ToSlash(filepath.Join(elem...))
}

// Dir is filepath.Dir with forward-slash output.
func Dir(path string) string {
	return filepath.ToSlash(filepath.Dir(path))
}

// Rel is filepath.Rel with forward-slash output.
func Rel(base, target string) (string, error) {
	r, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(r), nil
}

// Ext returns the file extension including the leading dot, lowercased is
// the caller's responsibility (extensions are matched case-sensitively
// against the configured precedence lists, matching Metro).
func Ext(path string) string {
	return filepath.Ext(path)
}

// Base is filepath.Base; file names never contain backslashes so no
// slash-direction translation is needed.
func Base(path string) string {
	return filepath.Base(path)
}

// ContentHash returns a short, stable content hash used as part of the
// transform cache key (path, mtime, contentHash, platform, dev) and the
// on-disk cache filename.
func ContentHash(contents []byte) string {
	sum := sha1.Sum(contents)
	return hex.EncodeToString(sum[:])
}

// IsInsideNodeModules reports whether any path segment is "node_modules",
// used by the require-cycle warning throttle's default ignore pattern and
// by monorepo package resolution.
func IsInsideNodeModules(path string) bool {
	slash := filepath.ToSlash(path)
	for _, seg := range splitSlash(slash) {
		if seg == "node_modules" {
			return true
		}
	}
	return false
}

func splitSlash(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
