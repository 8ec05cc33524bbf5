package resolve

import (
	"testing"

	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
)

func newResolver(files map[string]string, platform config.Platform) *Resolver {
	mock := fs.NewMockFS(files)
	cfg := config.Config{Platform: platform, PreferNativePlatform: true}.WithDefaults()
	return New(mock, cfg)
}

func TestPlatformPrecedence(t *testing.T) {
	r := newResolver(map[string]string{
		"/app/index.js":          "require('./Button')",
		"/app/Button.ios.js":     "ios",
		"/app/Button.android.js": "android",
		"/app/Button.js":         "generic",
	}, config.PlatformIOS)

	res, err := r.Resolve("/app/index.js", "./Button")
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != "/app/Button.ios.js" {
		t.Fatalf("expected Button.ios.js, got %s", res.Path)
	}
}

func TestDirectoryIndexFallback(t *testing.T) {
	r := newResolver(map[string]string{
		"/app/index.js":         "require('./widgets')",
		"/app/widgets/index.js": "widgets",
	}, config.PlatformAndroid)

	res, err := r.Resolve("/app/index.js", "./widgets")
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != "/app/widgets/index.js" {
		t.Fatalf("expected widgets/index.js, got %s", res.Path)
	}
}

func TestAssetResolutionTerminatesAndFlags(t *testing.T) {
	r := newResolver(map[string]string{
		"/app/index.js": "require('./img')",
		"/app/img.png":  "\x89PNG",
	}, config.PlatformIOS)

	res, err := r.Resolve("/app/index.js", "./img")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsAsset || res.Path != "/app/img.png" {
		t.Fatalf("expected img.png flagged as asset, got %+v", res)
	}
}

func TestExactExtensionResolvesDirectly(t *testing.T) {
	r := newResolver(map[string]string{
		"/app/index.js": "require('./img.png')",
		"/app/img.png":  "\x89PNG",
	}, config.PlatformIOS)

	res, err := r.Resolve("/app/index.js", "./img.png")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsAsset || res.Path != "/app/img.png" {
		t.Fatalf("expected img.png resolved as itself, got %+v", res)
	}

	// Leaving the extension off sends the lookup through the candidate
	// ladder, which reaches img.png at the asset-extension step.
	res, err = r.Resolve("/app/index.js", "./img")
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != "/app/img.png" {
		t.Fatalf("expected extensionless lookup to land on img.png, got %s", res.Path)
	}
}

func TestPackageResolutionUsesReactNativeField(t *testing.T) {
	r := newResolver(map[string]string{
		"/app/index.js":                          "require('leftpad')",
		"/app/node_modules/leftpad/package.json": `{"main":"main.js","react-native":"rn.js"}`,
		"/app/node_modules/leftpad/main.js":      "main",
		"/app/node_modules/leftpad/rn.js":        "rn",
	}, config.PlatformIOS)

	res, err := r.Resolve("/app/index.js", "leftpad")
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != "/app/node_modules/leftpad/rn.js" {
		t.Fatalf("expected rn.js via react-native field, got %s", res.Path)
	}
}

func TestMonorepoUpwardWalk(t *testing.T) {
	r := newResolver(map[string]string{
		"/repo/packages/app/index.js":            "require('shared')",
		"/repo/node_modules/shared/package.json": `{"main":"index.js"}`,
		"/repo/node_modules/shared/index.js":     "shared",
	}, config.PlatformAndroid)

	res, err := r.Resolve("/repo/packages/app/index.js", "shared")
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != "/repo/node_modules/shared/index.js" {
		t.Fatalf("expected hoisted shared/index.js, got %s", res.Path)
	}
}

func TestUnresolvableSpecifierCarriesTriedPaths(t *testing.T) {
	r := newResolver(map[string]string{"/app/index.js": "require('./missing')"}, config.PlatformIOS)
	_, err := r.Resolve("/app/index.js", "./missing")
	if err == nil {
		t.Fatal("expected a resolution error")
	}
}
