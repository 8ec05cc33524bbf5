// Tree shaking runs in two passes. Pass 1 computes, per module, the set of
// export names demanded by some importer reached from the entry. Pass 2
// deletes unused export-level declarations and drops modules nothing
// reaches. A module with HasSideEffects true is never pruned and never has
// its exports rewritten.
package graph

import (
	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/module"
	"bungae.dev/bungae/internal/pkgjson"
	"bungae.dev/bungae/internal/transform"
)

// usage tracks, for one module, which of its own exported names have been
// demanded by some importer reached from the entry. AllUsed subsumes Names
// (a namespace import, `export *` forwarding, or any usage pattern the
// scanner can't resolve to specific names conservatively demands everything).
type usage struct {
	AllUsed bool
	Names   map[string]bool
}

func (u *usage) demand(name string) {
	if u.AllUsed {
		return
	}
	if u.Names == nil {
		u.Names = map[string]bool{}
	}
	u.Names[name] = true
}

func (u *usage) demandAll() { u.AllUsed = true }

// ShakeTree runs both passes. It never mutates g; it returns a new Graph
// whose Modules map holds cloned, rewritten Transformed values and whose
// Order omits any module pass 2 determined was
// unreachable-and-side-effect-free.
func ShakeTree(g *module.Graph, cfg config.Config, pkgs *pkgjson.Cache) *module.Graph {
	demand := computeDemand(g, cfg, pkgs)
	return rewriteGraph(g, demand)
}

// computeDemand is pass 1: a worklist fixpoint starting from the entry
// (whose own top-level code always fully executes, so it's seeded AllUsed)
// and propagating along the static dependency edges the crawl recorded.
func computeDemand(g *module.Graph, cfg config.Config, pkgs *pkgjson.Cache) map[string]*usage {
	demand := map[string]*usage{g.EntryPath: {AllUsed: true}}
	queue := []string{g.EntryPath}
	queued := map[string]bool{g.EntryPath: true}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		queued[path] = false

		m, ok := g.Modules[path]
		if !ok {
			continue
		}
		depUsages := transform.ScanDependencyUsage(m.Code, len(m.Dependencies))
		crossesStar := hasStarForward(m)

		for i, dep := range m.Dependencies {
			if dep.ResolvedPath == "" {
				continue
			}
			target, ok := demand[dep.ResolvedPath]
			if !ok {
				target = &usage{}
				demand[dep.ResolvedPath] = target
			}

			du := depUsages[i]
			crossesBoundary := !cfg.TreeShakeCrossPackage && crossesPackageBoundary(pkgs, path, dep.ResolvedPath)

			changed := false
			if du.AllUsed || crossesBoundary || crossesStar {
				if !target.AllUsed {
					target.demandAll()
					changed = true
				}
			} else {
				for n := range du.Names {
					if !target.Names[n] {
						target.demand(n)
						changed = true
					}
				}
			}

			if changed && !queued[dep.ResolvedPath] {
				queue = append(queue, dep.ResolvedPath)
				queued[dep.ResolvedPath] = true
			}
		}
	}
	return demand
}

// hasStarForward reports whether a module's own export surface includes the
// "*" convention module.Transformed.Exports documents (a detected wholesale
// re-export), in which case everything its importers demand of it must be
// conservatively forwarded to every one of its own dependencies.
func hasStarForward(m *module.Transformed) bool {
	for _, e := range m.Exports {
		if e == "*" {
			return true
		}
	}
	return false
}

func crossesPackageBoundary(pkgs *pkgjson.Cache, from, to string) bool {
	fromPkg, _ := pkgs.Nearest(fs.Dir(from))
	toPkg, _ := pkgs.Nearest(fs.Dir(to))
	if fromPkg == nil || toPkg == nil {
		return fromPkg != toPkg
	}
	return fromPkg.Name != toPkg.Name
}

// rewriteGraph is pass 2: modules never reached by pass 1 and declared
// side-effect-free are dropped from Order entirely; modules reached with a
// partial (non-AllUsed) demand have their unused export statements deleted;
// everything else (AllUsed, or HasSideEffects true) is copied unchanged.
func rewriteGraph(g *module.Graph, demand map[string]*usage) *module.Graph {
	newModules := make(map[string]*module.Transformed, len(g.Modules))
	var newOrder []string

	for _, path := range g.Order {
		m := g.Modules[path]
		u, reached := demand[path]

		if !reached && !m.HasSideEffects {
			continue // unreachable and side-effect-free: safe to elide
		}

		clone := *m
		if reached && !u.AllUsed && !m.HasSideEffects && len(m.Exports) > 0 {
			unused := map[string]bool{}
			for _, name := range m.Exports {
				if name == "*" {
					continue
				}
				if !u.Names[name] {
					unused[name] = true
				}
			}
			if len(unused) > 0 {
				clone.Code = transform.RewriteUnusedExports(m.Code, unused)
			}
		}
		newModules[path] = &clone
		newOrder = append(newOrder, path)
	}

	// Run-before-main modules and whatever they transitively pulled in are
	// never subject to export pruning (nothing demands named exports of
	// them — they execute purely for side effects) but must still survive
	// into the shaken module map so the serializer can find them.
	for _, p := range g.RunBeforeMain {
		copyReachableUnshaken(p, g.Modules, newModules)
	}

	return &module.Graph{
		EntryPath:     g.EntryPath,
		Modules:       newModules,
		Order:         newOrder,
		RunBeforeMain: g.RunBeforeMain,
	}
}

func copyReachableUnshaken(path string, src, dst map[string]*module.Transformed) {
	if _, ok := dst[path]; ok {
		return
	}
	m, ok := src[path]
	if !ok {
		return
	}
	clone := *m
	dst[path] = &clone
	for _, dep := range m.Dependencies {
		if dep.ResolvedPath != "" {
			copyReachableUnshaken(dep.ResolvedPath, src, dst)
		}
	}
}
