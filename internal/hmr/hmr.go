// Package hmr computes hot-module-replacement update records: on a source
// change, retransform only the changed module and its direct dependents,
// diff the dependency set to find newly added and now-orphaned modules, and
// produce the added/modified/deleted record the dev server's WebSocket
// transport (internal/devserver) forwards verbatim. Every unaffected
// module's id and code stay byte-identical across an update; only the
// touched slice of the graph is recomputed.
package hmr

import (
	"bungae.dev/bungae/internal/bungerr"
	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/logger"
	"bungae.dev/bungae/internal/module"
	"bungae.dev/bungae/internal/resolve"
	"bungae.dev/bungae/internal/serialize"
	"bungae.dev/bungae/internal/transform"
)

// ModuleUpdate is one [id, code] pair of the wire protocol. Code already
// contains the __d(...) wrapper statement, so evaluating it on the client
// re-registers the module under its existing id.
type ModuleUpdate struct {
	ID        int
	Code      string
	SourceURL string
}

// Payload is the body of one "update" frame.
type Payload struct {
	Added    []ModuleUpdate
	Modified []ModuleUpdate
	Deleted  []int
}

// Session tracks one dev build's live graph and module-ID assignment so
// that later updates reuse existing IDs rather than renumbering.
type Session struct {
	fsys        fs.FS
	cfg         config.Config
	transformer *transform.Transformer
	resolver    *resolve.Resolver
	log         *logger.Log

	graph  *module.Graph
	ids    map[string]int
	nextID int
}

// NewSession adopts the graph and module-ID assignment produced by a full
// build (bundle.Result.Graph and bundle.Result.Bundle.ModuleIDs) as the
// baseline subsequent updates are computed against.
func NewSession(fsys fs.FS, cfg config.Config, g *module.Graph, moduleIDs map[string]int, log *logger.Log) *Session {
	ids := make(map[string]int, len(moduleIDs))
	next := 0
	for path, id := range moduleIDs {
		ids[path] = id
		if id >= next {
			next = id + 1
		}
	}
	return &Session{
		fsys:        fsys,
		cfg:         cfg,
		transformer: transform.New(fsys, cfg),
		resolver:    resolve.New(fsys, cfg),
		log:         log,
		graph:       g,
		ids:         ids,
		nextID:      next,
	}
}

// Update retransforms changedPath and its direct dependents (modules whose
// dependency list references it), resolves any newly introduced
// dependencies (recursively transforming them, since a brand new import can
// itself pull in further new modules), and retires any previous dependency
// of changedPath that nothing in the graph still reaches.
func (s *Session) Update(changedPath string) (*Payload, error) {
	if _, ok := s.graph.Modules[changedPath]; !ok {
		return nil, ErrUnknownModule
	}

	payload := &Payload{}
	added := map[string]bool{}

	changed, err := s.retransform(changedPath)
	if err != nil {
		return nil, err
	}
	previousDeps := resolvedPaths(s.graph.Modules[changedPath])
	s.graph.Modules[changedPath] = changed

	if err := s.resolveNewDependencies(changed, payload, added); err != nil {
		return nil, err
	}
	payload.Modified = append(payload.Modified, s.moduleUpdate(changedPath, changed))

	for path, m := range s.graph.Modules {
		if path == changedPath || added[path] {
			continue
		}
		if !dependsOn(m, changedPath) {
			continue
		}
		retransformed, err := s.retransform(path)
		if err != nil {
			return nil, err
		}
		s.graph.Modules[path] = retransformed
		payload.Modified = append(payload.Modified, s.moduleUpdate(path, retransformed))
	}

	s.pruneOrphans(previousDeps, changed, payload)

	return payload, nil
}

func (s *Session) retransform(path string) (*module.Transformed, error) {
	t, err := s.transformer.Transform(path, transform.Options{
		Dev:      true,
		Platform: s.cfg.Platform,
		Root:     s.cfg.ProjectRoot,
	})
	if err != nil {
		return nil, err
	}
	for i := range t.Dependencies {
		dep := &t.Dependencies[i]
		res, err := s.resolver.Resolve(path, dep.Specifier)
		if err != nil {
			if s.log != nil {
				s.log.AddWarning(&logger.Location{File: path}, err.Error())
			}
			continue
		}
		if res == nil {
			continue
		}
		dep.ResolvedPath = res.Path
	}
	return t, nil
}

// resolveNewDependencies recursively transforms any dependency of m not
// already present in the session's graph, assigning each a fresh ID and
// recording it as "added".
func (s *Session) resolveNewDependencies(m *module.Transformed, payload *Payload, added map[string]bool) error {
	for _, dep := range m.Dependencies {
		if dep.ResolvedPath == "" || added[dep.ResolvedPath] {
			continue
		}
		if _, exists := s.graph.Modules[dep.ResolvedPath]; exists {
			continue
		}
		added[dep.ResolvedPath] = true

		t, err := s.retransform(dep.ResolvedPath)
		if err != nil {
			return err
		}
		s.graph.Modules[dep.ResolvedPath] = t
		s.graph.Order = append(s.graph.Order, dep.ResolvedPath)
		payload.Added = append(payload.Added, s.moduleUpdate(dep.ResolvedPath, t))

		if err := s.resolveNewDependencies(t, payload, added); err != nil {
			return err
		}
	}
	return nil
}

// pruneOrphans retires any path changed used to depend on that it no longer
// does, provided no other module in the graph still reaches it.
func (s *Session) pruneOrphans(previousDeps map[string]bool, changed *module.Transformed, payload *Payload) {
	stillUsed := resolvedPaths(changed)
	for path := range previousDeps {
		if stillUsed[path] {
			continue
		}
		if s.reachableFromAnyOther(path) {
			continue
		}
		id, ok := s.ids[path]
		if !ok {
			continue
		}
		delete(s.graph.Modules, path)
		delete(s.ids, path)
		s.graph.Order = removeFromOrder(s.graph.Order, path)
		payload.Deleted = append(payload.Deleted, id)
	}
}

func (s *Session) reachableFromAnyOther(path string) bool {
	for _, m := range s.graph.Modules {
		if dependsOn(m, path) {
			return true
		}
	}
	return false
}

// idFor returns path's session-wide module ID, assigning the next free one
// on first sight. Dependencies of a just-added module go through here too,
// so a dependency that is itself new gets its ID before its importer's
// dependencyMap is emitted rather than silently mapping to 0.
func (s *Session) idFor(path string) int {
	id, ok := s.ids[path]
	if !ok {
		id = s.nextID
		s.nextID++
		s.ids[path] = id
	}
	return id
}

func (s *Session) moduleUpdate(path string, t *module.Transformed) ModuleUpdate {
	id := s.idFor(path)
	depIDs := make([]int, len(t.Dependencies))
	for i, dep := range t.Dependencies {
		if dep.ResolvedPath == "" {
			depIDs[i] = -1
			continue
		}
		depIDs[i] = s.idFor(dep.ResolvedPath)
	}
	return ModuleUpdate{
		ID:        id,
		Code:      serialize.EmitModule(t.Code, id, depIDs),
		SourceURL: path,
	}
}

func resolvedPaths(t *module.Transformed) map[string]bool {
	out := map[string]bool{}
	if t == nil {
		return out
	}
	for _, dep := range t.Dependencies {
		if dep.ResolvedPath != "" {
			out[dep.ResolvedPath] = true
		}
	}
	return out
}

func dependsOn(m *module.Transformed, path string) bool {
	for _, dep := range m.Dependencies {
		if dep.ResolvedPath == path {
			return true
		}
	}
	return false
}

func removeFromOrder(order []string, path string) []string {
	out := order[:0]
	for _, p := range order {
		if p != path {
			out = append(out, p)
		}
	}
	return out
}

// ErrUnknownModule is returned by Session.Update for a path this session
// has never seen, e.g. a change notification for a file outside the graph.
var ErrUnknownModule = &bungerr.GraphError{Message: "change notification for a path outside the current graph"}
