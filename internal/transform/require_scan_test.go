package transform

import (
	"strings"
	"testing"

	"bungae.dev/bungae/internal/module"
)

func TestRewriteRequiresDedupesBySpecifier(t *testing.T) {
	code := `
var a = require("./a");
var b = require("./b");
var a2 = require("./a");
`
	out, deps := rewriteRequires(code)
	if len(deps) != 2 {
		t.Fatalf("expected 2 unique deps, got %d: %v", len(deps), deps)
	}
	if deps[0].Specifier != "./a" || deps[1].Specifier != "./b" {
		t.Fatalf("expected source order [./a ./b], got %v", deps)
	}
	if !strings.Contains(out, "dependencyMap[0]") || !strings.Contains(out, "dependencyMap[1]") {
		t.Fatalf("expected rewritten requires, got: %s", out)
	}
	if strings.Contains(out, `require("./a")`) {
		t.Fatalf("expected original specifiers to be gone, got: %s", out)
	}
}

func TestRewriteRequiresSkipsMethodCalls(t *testing.T) {
	code := `obj.require("./not-a-dep");`
	_, deps := rewriteRequires(code)
	if len(deps) != 0 {
		t.Fatalf("expected no deps from a dotted call, got %v", deps)
	}
}

func TestRewriteRequiresIgnoresCommentsAndStrings(t *testing.T) {
	code := "// require(\"./fake\")\nvar s = \"require('./also-fake')\";\nrequire(\"./real\");"
	_, deps := rewriteRequires(code)
	if len(deps) != 1 || deps[0].Specifier != "./real" {
		t.Fatalf("expected only ./real, got %v", deps)
	}
}

func TestRewriteRequiresMarksDynamicImportAsAsyncRequire(t *testing.T) {
	code := `import("./lazy").then(function(m) {});`
	out, deps := rewriteRequires(code)
	if len(deps) != 1 || deps[0].Kind != module.KindAsyncRequire {
		t.Fatalf("expected one async dependency, got %v", deps)
	}
	if !strings.Contains(out, `require(dependencyMap[0])`) || strings.Contains(out, "import(") {
		t.Fatalf("expected the import callee rewritten to require, got: %s", out)
	}
}

func TestRewriteRequiresHandlesTemplateLiteralsWithoutMatchingInside(t *testing.T) {
	code := "var t = `require(\"./fake\")`;\nrequire(\"./real\");"
	_, deps := rewriteRequires(code)
	if len(deps) != 1 || deps[0].Specifier != "./real" {
		t.Fatalf("expected only ./real, got %v", deps)
	}
}
