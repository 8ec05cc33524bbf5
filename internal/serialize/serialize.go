// Package serialize turns an ordered module graph into the final bundle:
// it assigns numeric module IDs, emits the prelude and one __d() statement
// per module followed by the __r() epilogue, composes the source map, and
// extracts the asset manifest from what the bundle actually reaches.
package serialize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/helpers"
	"bungae.dev/bungae/internal/idtable"
	"bungae.dev/bungae/internal/module"
	"bungae.dev/bungae/internal/sourcemap"
)

// Options configures one serialization, mirroring the pieces of
// config.Config the serializer itself (as opposed to the resolver or
// transformer) consumes.
type Options struct {
	Dev                        bool
	Platform                   config.Platform
	ProjectRoot                string
	ExtraPreludeVars           map[string]string
	RequireCycleIgnorePatterns []string
	AssetExtensions            []string

	// SourceMapURL, when non-empty, is appended as a
	// "//# sourceMappingURL=..." comment. When this is empty and
	// IncludeSourceMap is true, an inline data: URL is appended instead,
	// in dev and production builds alike.
	SourceMapURL     string
	IncludeSourceMap bool

	// SourceMapFile fills the composed map's "file" field when non-empty.
	SourceMapFile string

	// IgnoreSource, when set, marks matching sources (relative,
	// forward-slash paths) in the map's x_google_ignoreList.
	IgnoreSource func(source string) bool
}

// Result is the serializer's full output: the composed bundle, its source
// map (empty when not requested), and the asset manifest produced by the
// reachability analysis.
type Result struct {
	Code   string
	Map    string
	Assets []module.AssetRecord

	// ModuleIDs is the full path→id assignment this serialization produced.
	// The dev orchestrator keeps this from the last full build so an HMR
	// update for an already-known path reuses its existing id instead of
	// renumbering.
	ModuleIDs map[string]int
}

// Serialize emits the prelude and polyfills, then one __d() statement per
// reachable module in DFS order, then the __r() epilogue, composing a
// source map and asset manifest alongside. prependModules are full
// top-level modules (polyfills) that execute directly rather than through
// __d.
func Serialize(g *module.Graph, prependModules []*module.Transformed, opts Options) (*Result, error) {
	ids := idtable.New()
	entryID := ids.IDFor(g.EntryPath) // the entry is always assigned first

	order := fullOrder(g)
	for _, p := range order {
		ids.IDFor(p)
	}

	moduleIDs := make(map[string]int, len(order)+1)
	moduleIDs[g.EntryPath] = entryID
	for _, p := range order {
		moduleIDs[p], _ = ids.MustIDFor(p)
	}

	pre := buildPrelude(prependModules, cycleIgnoredIDs(order, ids, opts), opts)
	preLines := strings.Count(pre, "\n")

	var moduleBuf helpers.Joiner
	var mapModules []sourcemap.ModuleMap
	lineOffset := preLines + 1 // the bundle writes one "\n" between pre and the first module

	for _, path := range order {
		m := g.Modules[path]
		id, err := ids.MustIDFor(path)
		if err != nil {
			return nil, err
		}
		depIDs := make([]int, len(m.Dependencies))
		for i, dep := range m.Dependencies {
			if dep.ResolvedPath == "" {
				depIDs[i] = -1 // placeholder id; requiring it throws at runtime
				continue
			}
			depID, err := ids.MustIDFor(dep.ResolvedPath)
			if err != nil {
				return nil, err
			}
			depIDs[i] = depID
		}

		stmt := EmitModule(m.Code, id, depIDs)
		moduleBuf.AddString(stmt)
		moduleBuf.EnsureNewlineAtEnd()

		if opts.IncludeSourceMap {
			source := relSource(opts.ProjectRoot, path)
			content := ""
			if !m.IsAsset {
				content = rawSourceContent(m)
			}
			mapModules = append(mapModules, sourcemap.ModuleMap{
				Raw:           moduleRawMap(m),
				LineOffset:    lineOffset + 1, // code starts on the line after "__d(function(...) {"
				Source:        source,
				SourceContent: content,
			})
		}
		lineOffset += strings.Count(stmt, "\n")
	}

	post := buildEpilogue(g, ids, entryID)

	var bundle strings.Builder
	bundle.WriteString(pre)
	bundle.WriteByte('\n')
	bundle.Write(moduleBuf.Done())
	bundle.WriteString(post)

	result := &Result{Code: bundle.String(), ModuleIDs: moduleIDs}

	if opts.IncludeSourceMap {
		mappings, sources, sourcesContent, names := sourcemap.Compose(mapModules)
		encoded, err := encodeMap(mappings, sources, sourcesContent, names, opts)
		if err != nil {
			// A broken map should not fail an otherwise-good build.
			encoded = stubMap()
		}
		result.Map = encoded
	}

	if opts.SourceMapURL != "" {
		bundle.WriteString("\n//# sourceMappingURL=" + opts.SourceMapURL + "\n")
		result.Code = bundle.String()
	} else if opts.IncludeSourceMap {
		bundle.WriteString("\n//# sourceMappingURL=data:application/json;charset=utf-8;base64,")
		bundle.WriteString(base64Encode([]byte(result.Map)))
		bundle.WriteByte('\n')
		result.Code = bundle.String()
	}

	result.Assets = extractAssets(g, order, opts)

	return result, nil
}

// fullOrder extends graph.Order (entry-first, reachable-from-entry only)
// with the run-before-main modules and whatever they themselves
// transitively require, each exactly once, so every module the serializer
// must __d()-register gets a slot.
func fullOrder(g *module.Graph) []string {
	order := append([]string{}, g.Order...)
	seen := make(map[string]bool, len(order))
	for _, p := range order {
		seen[p] = true
	}
	for _, root := range g.RunBeforeMain {
		order = appendDFS(order, seen, root, g.Modules)
	}
	return order
}

func appendDFS(order []string, seen map[string]bool, path string, modules map[string]*module.Transformed) []string {
	if seen[path] {
		return order
	}
	seen[path] = true
	order = append(order, path)
	m, ok := modules[path]
	if !ok {
		return order
	}
	for _, dep := range m.Dependencies {
		if dep.ResolvedPath != "" {
			order = appendDFS(order, seen, dep.ResolvedPath, modules)
		}
	}
	return order
}

// EmitModule renders the exact __d(...) statement text that both a full
// build and an HMR update send to the client, so evaluating either
// re-registers the module under the same contract.
func EmitModule(code string, moduleID int, depIDs []int) string {
	var deps strings.Builder
	for i, id := range depIDs {
		if i > 0 {
			deps.WriteString(", ")
		}
		deps.WriteString(strconv.Itoa(id))
	}
	return fmt.Sprintf(
		"__d(function(global, require, _importDefaultUnused, _importAllUnused, module, exports, dependencyMap) {\n%s\n}, %d, [%s]);\n",
		code, moduleID, deps.String(),
	)
}

func buildEpilogue(g *module.Graph, ids *idtable.Table, entryID int) string {
	var b strings.Builder
	for _, p := range g.RunBeforeMain {
		id, err := ids.MustIDFor(p)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "__r(%d);\n", id)
	}
	fmt.Fprintf(&b, "__r(%d);\n", entryID)
	return b.String()
}

// cycleIgnoredIDs resolves the path-shaped requireCycleIgnorePatterns globs
// into the module-ID set the emitted runtime can actually consult: the
// __d(factory, moduleId, dependencyMap) wire contract carries no paths, so
// the path matching has to happen here, where both are known.
func cycleIgnoredIDs(order []string, ids *idtable.Table, opts Options) []int {
	patterns := opts.RequireCycleIgnorePatterns
	if len(patterns) == 0 {
		patterns = []string{"**/node_modules/**"}
	}
	var out []int
	for _, path := range order {
		for _, pattern := range patterns {
			ok, err := doublestar.Match(pattern, path)
			if err != nil || !ok {
				continue
			}
			if id, err := ids.MustIDFor(path); err == nil {
				out = append(out, id)
			}
			break
		}
	}
	return out
}

func buildPrelude(prependModules []*module.Transformed, cycleIgnored []int, opts Options) string {
	var b strings.Builder

	nowExpr := "globalThis.nativePerformanceNow ? nativePerformanceNow() : Date.now()"
	fmt.Fprintf(&b, "var __DEV__ = %s, __BUNDLE_START_TIME__ = %s;\n", boolLiteral(opts.Dev), nowExpr)

	keys := make([]string, 0, len(opts.ExtraPreludeVars))
	for k := range opts.ExtraPreludeVars {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "var %s = %s;\n", k, opts.ExtraPreludeVars[k])
	}

	b.WriteString("var __requireCycleIgnoredModules = {")
	for i, id := range cycleIgnored {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(id))
		b.WriteString(": true")
	}
	b.WriteString("};\n")

	b.WriteString(runtimeCode)
	b.WriteByte('\n')

	for _, poly := range prependModules {
		b.WriteString(poly.Code)
		b.WriteByte('\n')
	}

	return b.String()
}

func boolLiteral(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func relSource(root, path string) string {
	rel, err := fs.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func rawSourceContent(m *module.Transformed) string {
	// sourcesContent carries the pre-transform TS/JSX/Flow text, not the
	// rewritten require(...) form, so a debugger shows the source the
	// author wrote. When OriginalSource is unset the entry stays "" and is
	// written to sourcesContent as an empty string (never null), keeping
	// sources and sourcesContent aligned.
	return m.OriginalSource
}

func moduleRawMap(m *module.Transformed) module.RawSourceMap {
	if len(m.Map.Segments) > 0 {
		return m.Map
	}
	// No raw map recorded: synthesize a trivial 1:1 mapping so the source
	// list still contains this module for symbolication.
	lines := strings.Count(m.Code, "\n") + 1
	segs := make([]module.SegmentTuple, 0, lines)
	for i := 0; i < lines; i++ {
		segs = append(segs, module.SegmentTuple{i, 0, i, 0})
	}
	return module.RawSourceMap{Segments: segs}
}

var reRequireCall = regexp.MustCompile(`require\(dependencyMap\[(\d+)\]\)`)
