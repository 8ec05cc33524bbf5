// Package config is the fully-resolved build configuration every core
// package takes as a plain Go struct. Discovering and merging this
// configuration from bungae.config.json/CLI flags is the CLI's job
// (cmd/bungae), not the core's.
package config

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// SourceExtensions is the precedence-ordered list of source file extensions
// the resolver tries, matching Metro's own order.
var SourceExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".cjs", ".json"}

// AssetExtensions is the set of extensions the resolver treats as binary
// assets rather than source modules.
var AssetExtensions = []string{
	".bmp", ".gif", ".jpg", ".jpeg", ".png", ".webp", ".avif", ".ico", ".icns", ".icxl",
}

type Config struct {
	// ProjectRoot is the absolute directory source paths are made relative
	// to for source maps and asset httpServerLocation.
	ProjectRoot string

	Platform Platform
	Dev      bool

	// PreferNativePlatform enables the ".native.<ext>" precedence tier for
	// any platform other than web.
	PreferNativePlatform bool

	SourceExtensions []string
	AssetExtensions  []string

	// NodeModulesPaths are additional node_modules directories tried for
	// every package specifier, beyond the usual upward walk from importer.
	NodeModulesPaths []string

	// RunBeforeMain is a configured list of module paths (e.g. the
	// React Native InitializeCore module) crawled as additional roots and
	// __r()'d before the entry module.
	RunBeforeMain []string

	// TreeShake enables the production-only, opt-in tree-shaking pass.
	TreeShake bool

	// TreeShakeCrossPackage decides whether export-usage propagation may
	// cross a node_modules package boundary. Off by default: a boundary
	// always stops pruning, even past a sideEffects:false package.
	TreeShakeCrossPackage bool

	// RequireCycleIgnorePatterns are doublestar glob patterns; a require
	// cycle that passes through any path matching one of these is never
	// warned about. Defaults to the same node_modules-wide pattern Metro applies.
	RequireCycleIgnorePatterns []string

	// ExtraPreludeVars are additional "name = literal" globals injected
	// into the prelude, e.g. "__BUNGAE_BUNDLER__ = true".
	ExtraPreludeVars map[string]string

	// ConcurrentWorkers bounds the graph builder's worker pool. Zero means
	// GOMAXPROCS.
	ConcurrentWorkers int

	// CacheDir is the on-disk transform cache root. Empty disables the
	// on-disk cache (the in-memory per-session cache is always active).
	CacheDir string
}

func (c Config) WithDefaults() Config {
	if len(c.SourceExtensions) == 0 {
		c.SourceExtensions = SourceExtensions
	}
	if len(c.AssetExtensions) == 0 {
		c.AssetExtensions = AssetExtensions
	}
	if len(c.RequireCycleIgnorePatterns) == 0 {
		c.RequireCycleIgnorePatterns = []string{"**/node_modules/**"}
	}
	if c.ExtraPreludeVars == nil {
		c.ExtraPreludeVars = map[string]string{"__BUNGAE_BUNDLER__": "true"}
	}
	return c
}

func (c Config) IsAssetExt(ext string) bool {
	for _, a := range c.AssetExtensions {
		if a == ext {
			return true
		}
	}
	return false
}
