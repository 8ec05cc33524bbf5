// Package idtable is the module-ID factory. The counter is an owned value
// created fresh per serialization and threaded explicitly rather than a
// process-wide singleton: the dev server keeps rebuilding the same graph
// across many HMR cycles in one process, and per-serialization ownership
// keeps bundling reentrant and deterministic.
package idtable

import "bungae.dev/bungae/internal/bungerr"

// Table assigns a stable, monotonically increasing non-negative integer to
// each distinct path on first request. The same path always returns the
// same ID within one Table's lifetime; a Table is scoped to one
// serialization.
type Table struct {
	byPath map[string]int
	order  []string
	next   int
}

func New() *Table {
	return &Table{byPath: map[string]int{}}
}

// IDFor returns path's ID, assigning the next integer on first request. The
// very first path ever passed to a fresh Table becomes ID 0, which is why
// the serializer must call IDFor(entryPath) before any other path.
func (t *Table) IDFor(path string) int {
	if id, ok := t.byPath[path]; ok {
		return id
	}
	id := t.next
	t.next++
	t.byPath[path] = id
	t.order = append(t.order, path)
	return id
}

// PathFor is the inverse of IDFor, for diagnostics that name a module by
// the ID a runtime error references.
func (t *Table) PathFor(id int) (string, bool) {
	if id < 0 || id >= len(t.order) {
		return "", false
	}
	return t.order[id], true
}

// MustIDFor returns a *bungerr.GraphError if path was never assigned an
// ID; used by the serializer at points where the graph invariant (every
// dependency resolved path is a graph member) guarantees the ID already
// exists, so a miss means a real bug upstream.
func (t *Table) MustIDFor(path string) (int, error) {
	id, ok := t.byPath[path]
	if !ok {
		return 0, &bungerr.GraphError{Message: "requested module ID for path not yet in table: " + path}
	}
	return id, nil
}
