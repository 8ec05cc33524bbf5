package transform

import (
	"regexp"
	"strconv"
)

// This file is the other half of the module-system rewrite (require_scan.go
// handles imports; this handles exports) and the scanning half of the
// tree-shaker's input. It works the same way rewriteRequires does: esbuild's
// Transform already lowered ESM export declarations to CommonJS property
// assignments on `exports`, so what's left is finding those assignment
// statements textually, no AST access needed.

var (
	reNamedExportAssign = regexp.MustCompile(`(?m)^exports\.([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*([^;\n]*);?\s*$`)
	reDefinePropExport  = regexp.MustCompile(`(?m)^Object\.defineProperty\(exports,\s*["']([A-Za-z_$][A-Za-z0-9_$]*)["'].*\)\s*;?\s*$`)
	reStarReexport      = regexp.MustCompile(`Object\.assign\(exports|__exportStar|__reExport`)
	reDependencyBinding = regexp.MustCompile(`(?:var|const|let)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*require\(dependencyMap\[(\d+)\]\)`)
)

// ExportInfo is what pass 1 of the tree-shaker needs to know about a
// module's own export surface.
type ExportInfo struct {
	Names           []string // declared export names, in source order, deduplicated
	HasStarReexport bool     // a wholesale re-export was detected; treat as "exports *" (module.Transformed.Exports convention)
}

// ScanExportedNames finds every `exports.NAME = …` and
// `Object.defineProperty(exports, "NAME", …)` top-level statement, plus a
// conservative detector for star re-exports (`export * from`'s lowered
// form), which the graph builder's tree-shaker treats as "all used".
func ScanExportedNames(code string) ExportInfo {
	seen := map[string]bool{}
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, m := range reNamedExportAssign.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	for _, m := range reDefinePropExport.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	return ExportInfo{Names: names, HasStarReexport: reStarReexport.MatchString(code)}
}

// DependencyUsage is what pass 1 needs about how a module uses one of its
// already-rewritten `dependencyMap[i]` bindings: either every export of
// that dependency is potentially used (AllUsed — a namespace import, a
// spread, or the binding passed around as a value rather than member-
// accessed) or exactly the named set in Names.
type DependencyUsage struct {
	AllUsed bool
	Names   map[string]bool
}

// ScanDependencyUsage finds the local variable bound to each
// `require(dependencyMap[i])` call site, then scans the rest of the module
// for how that variable is used, returning one DependencyUsage per
// dependency index (indices with no binding detected are returned as
// AllUsed, so the caller never prunes something it cannot see being read).
func ScanDependencyUsage(code string, depCount int) []DependencyUsage {
	usage := make([]DependencyUsage, depCount)

	bindings := map[string]int{} // varName -> dependency index
	for _, m := range reDependencyBinding.FindAllStringSubmatch(code, -1) {
		idx, err := strconv.Atoi(m[2])
		if err != nil || idx < 0 || idx >= depCount {
			continue
		}
		bindings[m[1]] = idx
	}
	if len(bindings) == 0 {
		// No rewritten require binding found in source-level text (e.g. the
		// dependency is only ever accessed through a dynamic expression);
		// conservatively mark every dependency as fully used.
		for i := range usage {
			usage[i] = DependencyUsage{AllUsed: true}
		}
		return usage
	}

	// The binding declarations themselves are not uses of the variable.
	rest := reDependencyBinding.ReplaceAllString(code, "")
	for varName, idx := range bindings {
		memberRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(varName) + `\b(\.[A-Za-z_$][A-Za-z0-9_$]*)?`)
		u := DependencyUsage{Names: map[string]bool{}}
		for _, m := range memberRe.FindAllStringSubmatch(rest, -1) {
			if m[1] == "" {
				u.AllUsed = true
				continue
			}
			u.Names[m[1][1:]] = true
		}
		usage[idx] = u
	}
	for i := range usage {
		if usage[i].Names == nil && !usage[i].AllUsed {
			// Dependency index has no rewritten-require binding captured above
			// (e.g. it was required but the result discarded, as with a
			// side-effect-only import) — conservative default is AllUsed so
			// tree-shaking never wrongly drops something actually read.
			usage[i] = DependencyUsage{AllUsed: true}
		}
	}
	return usage
}

// RewriteUnusedExports handles exactly the two export forms
// ScanExportedNames recognizes: an `Object.defineProperty` statement for an
// unused name is deleted outright; a plain `exports.NAME = EXPR;`
// assignment for an unused name is reduced to `EXPR;` so the right-hand
// side's side effects still run.
func RewriteUnusedExports(code string, unused map[string]bool) string {
	code = reDefinePropExport.ReplaceAllStringFunc(code, func(stmt string) string {
		m := reDefinePropExport.FindStringSubmatch(stmt)
		if unused[m[1]] {
			return ""
		}
		return stmt
	})
	code = reNamedExportAssign.ReplaceAllStringFunc(code, func(stmt string) string {
		m := reNamedExportAssign.FindStringSubmatch(stmt)
		if unused[m[1]] {
			return m[2] + ";"
		}
		return stmt
	})
	return code
}
