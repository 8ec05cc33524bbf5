// Package graph crawls the import graph concurrently from an entry point,
// producing a deterministic DFS ordering for stable module IDs, with an
// optional tree-shaking pass. The crawl runs one errgroup goroutine per
// enqueued path, with a semaphore bounding how many transforms run at once;
// a visited set guarded by a mutex keeps each path transformed at most once.
package graph

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"bungae.dev/bungae/internal/bungerr"
	"bungae.dev/bungae/internal/cache"
	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/logger"
	"bungae.dev/bungae/internal/module"
	"bungae.dev/bungae/internal/pkgjson"
	"bungae.dev/bungae/internal/resolve"
	"bungae.dev/bungae/internal/transform"
)

// Progress reports crawl progress as (modules transformed so far, total
// paths enqueued so far).
type Progress func(transformed, totalEnqueued int)

type Builder struct {
	fsys        fs.FS
	cfg         config.Config
	resolver    *resolve.Resolver
	transformer *transform.Transformer
	cache       *cache.Cache
	pkgs        *pkgjson.Cache
	log         *logger.Log
}

func New(fsys fs.FS, cfg config.Config, log *logger.Log) *Builder {
	return &Builder{
		fsys:        fsys,
		cfg:         cfg,
		resolver:    resolve.New(fsys, cfg),
		transformer: transform.New(fsys, cfg),
		cache:       cache.New(cfg.CacheDir),
		pkgs:        pkgjson.NewCache(fsys),
		log:         log,
	}
}

type crawlState struct {
	mu          sync.Mutex
	seen        map[string]bool
	modules     map[string]*module.Transformed
	enqueued    int
	transformed int
}

// Build crawls transitively from entryPath (plus any configured
// run-before-main roots), transforms every reachable file concurrently, and
// returns the graph in canonical DFS order. Workers observe ctx between
// dequeues; cancelling it abandons the crawl with ctx's error.
func (b *Builder) Build(ctx context.Context, entryPath string, progress Progress) (*module.Graph, error) {
	entryPath, err := b.fsys.Abs(entryPath)
	if err != nil {
		return nil, &bungerr.IoError{Path: entryPath, Err: err}
	}

	runBeforeMain := make([]string, 0, len(b.cfg.RunBeforeMain))
	for _, p := range b.cfg.RunBeforeMain {
		abs, err := b.fsys.Abs(p)
		if err != nil {
			return nil, &bungerr.IoError{Path: p, Err: err}
		}
		runBeforeMain = append(runBeforeMain, abs)
	}

	state := &crawlState{
		seen:    map[string]bool{},
		modules: map[string]*module.Transformed{},
	}

	workers := b.cfg.ConcurrentWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	// Running goroutines call enqueue (and so g.Go) themselves, which blocks
	// forever under g.SetLimit once every slot is taken; sem bounds the
	// transforms in flight instead.
	sem := make(chan struct{}, workers)

	var enqueue func(path string)
	enqueue = func(path string) {
		state.mu.Lock()
		if state.seen[path] {
			state.mu.Unlock()
			return
		}
		state.seen[path] = true
		state.enqueued++
		total := state.enqueued
		state.mu.Unlock()
		if progress != nil {
			progress(state.snapshotTransformed(), total)
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			t, err := b.transformOne(path)
			<-sem
			if err != nil {
				return err
			}

			state.mu.Lock()
			state.modules[path] = t
			state.transformed++
			state.mu.Unlock()
			if progress != nil {
				progress(state.snapshotTransformed(), state.snapshotEnqueued())
			}

			for i := range t.Dependencies {
				dep := &t.Dependencies[i]
				if dep.ResolvedPath == "" {
					continue
				}
				enqueue(dep.ResolvedPath)
			}
			return nil
		})
	}

	enqueue(entryPath)
	for _, p := range runBeforeMain {
		enqueue(p)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	b.cache.Wait()
	cache.Reap(b.cfg.CacheDir, 10000)

	if _, ok := state.modules[entryPath]; !ok {
		return nil, &bungerr.GraphError{Message: "entry module missing after crawl: " + entryPath}
	}

	order := dfsOrder(entryPath, state.modules, b.log)

	return &module.Graph{
		EntryPath:     entryPath,
		Modules:       state.modules,
		Order:         order,
		RunBeforeMain: runBeforeMain,
	}, nil
}

func (s *crawlState) snapshotTransformed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transformed
}

func (s *crawlState) snapshotEnqueued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueued
}

// transformOne resolves and transforms exactly one path, consulting the
// transform cache first and refining the transformer's HasSideEffects
// default against the nearest enclosing package.json.
func (b *Builder) transformOne(path string) (*module.Transformed, error) {
	mtime, _, ok := b.fsys.Stat(path)
	if !ok {
		return nil, &bungerr.IoError{Path: path, Err: errNotFound(path)}
	}

	var contentHash string
	if !b.cfg.IsAssetExt(fs.Ext(path)) {
		contents, err := b.fsys.ReadFile(path)
		if err != nil {
			return nil, &bungerr.IoError{Path: path, Err: err}
		}
		contentHash = fs.ContentHash(contents)
	} else {
		contentHash = mtime.String()
	}

	key := cache.Key{
		Path:        path,
		MtimeUnixNs: mtime.UnixNano(),
		ContentHash: contentHash,
		Platform:    b.cfg.Platform,
		Dev:         b.cfg.Dev,
	}
	if cached, ok := b.cache.Get(key); ok {
		return b.resolveAndRefine(cached)
	}

	t, err := b.transformer.Transform(path, transform.Options{
		Dev:      b.cfg.Dev,
		Platform: b.cfg.Platform,
		Root:     b.cfg.ProjectRoot,
	})
	if err != nil {
		return nil, err
	}

	t, err = b.resolveAndRefine(t)
	if err != nil {
		return nil, err
	}

	b.cache.Put(key, t)
	return t, nil
}

// resolveAndRefine resolves every dependency specifier to an absolute path
// and refines HasSideEffects against package.json. A resolution failure is
// tolerated in dev (stub the dependency, warn) and fatal in production.
func (b *Builder) resolveAndRefine(t *module.Transformed) (*module.Transformed, error) {
	out := *t
	out.Dependencies = make([]module.Dependency, len(t.Dependencies))
	copy(out.Dependencies, t.Dependencies)

	for i := range out.Dependencies {
		dep := &out.Dependencies[i]
		if dep.ResolvedPath != "" {
			continue
		}
		res, err := b.resolver.Resolve(t.Path, dep.Specifier)
		if err != nil {
			if b.cfg.Dev {
				if b.log != nil {
					b.log.AddWarning(&logger.Location{File: t.Path}, err.Error())
				}
				continue // ResolvedPath stays empty: a tolerated, stub-only dependency
			}
			return nil, err
		}
		if res == nil {
			continue // browser:false-disabled target; intentionally unresolved
		}
		dep.ResolvedPath = res.Path
	}

	out.HasSideEffects = t.HasSideEffects && b.sideEffectsAllowed(t.Path)
	return &out, nil
}

// sideEffectsAllowed walks package.json's sideEffects field: true (has
// side effects) when the field is absent, a path-matching glob, or a
// non-false non-array value; false when the field is the literal false or
// an array whose globs don't match this path.
func (b *Builder) sideEffectsAllowed(path string) bool {
	dir := fs.Dir(path)
	pkg, pkgDir := b.pkgs.Nearest(dir)
	if pkg == nil {
		return true
	}
	patterns, allFalse, ok := pkg.SideEffects()
	if !ok {
		return true
	}
	if allFalse {
		return false
	}
	if patterns == nil {
		return true // the literal true: no glob list to match against
	}
	rel, err := fs.Rel(pkgDir, path)
	if err != nil {
		return true
	}
	for _, pattern := range patterns {
		if globMatch(pattern, rel) {
			return true
		}
	}
	return false
}

type notFoundError struct{ path string }

func (e *notFoundError) Error() string { return "no such file: " + e.path }

func errNotFound(path string) error { return &notFoundError{path: path} }
