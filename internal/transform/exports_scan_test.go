package transform

import "testing"

func TestScanExportedNames(t *testing.T) {
	code := `exports.foo = foo;
exports.bar = 1 + 2;
Object.defineProperty(exports, "baz", { enumerable: true, get: function() { return baz; } });
`
	info := ScanExportedNames(code)
	want := map[string]bool{"foo": true, "bar": true, "baz": true}
	if len(info.Names) != len(want) {
		t.Fatalf("got %v, want 3 names", info.Names)
	}
	for _, n := range info.Names {
		if !want[n] {
			t.Fatalf("unexpected export name %q", n)
		}
	}
	if info.HasStarReexport {
		t.Fatal("unexpected star re-export")
	}
}

func TestScanExportedNamesStarReexport(t *testing.T) {
	code := `var _dep = require(dependencyMap[0]);
Object.assign(exports, _dep);
`
	if !ScanExportedNames(code).HasStarReexport {
		t.Fatal("expected star re-export to be detected")
	}
}

func TestScanDependencyUsageNamed(t *testing.T) {
	code := `var _dep = require(dependencyMap[0]);
exports.x = _dep.foo + _dep.bar;
`
	usage := ScanDependencyUsage(code, 1)
	if usage[0].AllUsed {
		t.Fatal("expected named usage only")
	}
	if !usage[0].Names["foo"] || !usage[0].Names["bar"] {
		t.Fatalf("missing expected names: %+v", usage[0])
	}
}

func TestScanDependencyUsageAllUsed(t *testing.T) {
	code := `var _dep = require(dependencyMap[0]);
doSomething(_dep);
`
	usage := ScanDependencyUsage(code, 1)
	if !usage[0].AllUsed {
		t.Fatal("expected AllUsed when binding passed as a bare value")
	}
}

func TestRewriteUnusedExports(t *testing.T) {
	code := `exports.foo = foo;
exports.bar = sideEffect();
Object.defineProperty(exports, "baz", { get: function() { return baz; } });
`
	out := RewriteUnusedExports(code, map[string]bool{"bar": true, "baz": true})
	if want := "exports.foo = foo;"; !contains(out, want) {
		t.Fatalf("expected %q preserved, got %q", want, out)
	}
	if contains(out, "exports.bar") {
		t.Fatalf("expected exports.bar assignment removed, got %q", out)
	}
	if !contains(out, "sideEffect();") {
		t.Fatalf("expected sideEffect() call preserved, got %q", out)
	}
	if contains(out, "baz") {
		t.Fatalf("expected defineProperty(baz) statement removed entirely, got %q", out)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
