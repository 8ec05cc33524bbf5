package graph

import (
	"strings"

	"bungae.dev/bungae/internal/helpers"
	"bungae.dev/bungae/internal/logger"
	"bungae.dev/bungae/internal/module"
)

// dfsOrder is the post-crawl depth-first traversal from the entry, visiting
// dependencies in source order, independent of the race-influenced order
// the crawl's worker pool happened to finish transforms in. Module IDs are
// assigned from this ordering, which is what keeps bundling deterministic
// regardless of goroutine interleaving.
//
// Along the way it also surfaces a build-time note the first time it walks
// into a static require cycle (the bundle runtime has its own __r-time
// detector; this is the build-side counterpart, found for free while
// computing the order). log may be nil in callers that don't want the note
// (e.g. HMR's per-module retransforms).
func dfsOrder(entryPath string, modules map[string]*module.Transformed, log *logger.Log) []string {
	var order []string
	visited := map[string]bool{}
	onStack := map[string]bool{}
	seenCycles := map[uint32]bool{}

	var visit func(path string, stack []string)
	visit = func(path string, stack []string) {
		if onStack[path] {
			noteCycle(log, seenCycles, append(stack, path))
			return
		}
		if visited[path] {
			return
		}
		visited[path] = true
		onStack[path] = true
		order = append(order, path)

		t, ok := modules[path]
		if ok {
			for _, dep := range t.Dependencies {
				if dep.ResolvedPath == "" {
					continue
				}
				if _, ok := modules[dep.ResolvedPath]; !ok {
					continue
				}
				visit(dep.ResolvedPath, append(stack, path))
			}
		}
		onStack[path] = false
	}

	visit(entryPath, nil)
	return order
}

// noteCycle logs a cycle chain at most once: cycleChainKey folds every path
// on the chain, in order, into a single uint32 so a repeated chain (the same
// paths in the same order) is recognized without keeping the full joined
// string around for every comparison. The chain is the whole DFS stack from
// the entry, so one cycle reached along two different routes is noted twice.
func noteCycle(log *logger.Log, seen map[uint32]bool, chain []string) {
	if log == nil {
		return
	}
	key := cycleChainKey(chain)
	if seen[key] {
		return
	}
	seen[key] = true
	log.AddMsg(logger.Msg{Kind: logger.KindNote, Text: "require cycle: " + strings.Join(chain, " -> ")})
}

// cycleChainKey folds a require-cycle's path chain into one hash so a
// repeated cycle is recognized without keeping a joined string around for
// every comparison.
func cycleChainKey(chain []string) uint32 {
	var key uint32
	for _, p := range chain {
		key = helpers.HashCombineString(key, p)
	}
	return key
}
