// Package bundle ties the resolver, transformer, graph builder, and
// serializer together into one full build: a thin orchestration layer that
// lets each phase stay independently testable.
package bundle

import (
	"context"

	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/graph"
	"bungae.dev/bungae/internal/logger"
	"bungae.dev/bungae/internal/module"
	"bungae.dev/bungae/internal/pkgjson"
	"bungae.dev/bungae/internal/serialize"
	"bungae.dev/bungae/internal/transform"
)

// Result is everything one build call produces: the composed bundle and its
// side outputs, plus the graph itself (the dev orchestrator keeps this
// around to compute the next HMR update against it).
type Result struct {
	Graph  *module.Graph
	Bundle *serialize.Result
	Log    *logger.Log
}

// Options configures one build end to end. It is a strict superset of
// config.Config's fields that only the serializer (not the graph/transform
// layer) needs.
type Options struct {
	Config config.Config

	// PolyfillPaths are resolved as ordinary source files but never entered
	// into the module graph or wrapped in __d; their transformed code runs
	// at top level in the prelude.
	PolyfillPaths []string

	IncludeSourceMap bool
	SourceMapURL     string

	// SourceMapFile fills the composed map's "file" field.
	SourceMapFile string

	// IgnoreSource marks matching sources in the map's x_google_ignoreList.
	IgnoreSource func(source string) bool
}

// Build runs the full pipeline: crawl from entryPath (plus configured
// run-before-main roots), optionally tree-shake, then serialize. The
// returned Log carries every warning collected along the way even when the
// build itself succeeds (e.g. a tolerated dev-mode resolution failure).
// Cancelling ctx abandons the crawl; the cross-session on-disk transform
// cache keeps whatever was written before the cancel.
func Build(ctx context.Context, fsys fs.FS, entryPath string, opts Options) (*Result, error) {
	cfg := opts.Config.WithDefaults()
	log := logger.New(logger.LevelWarning)

	g, err := graph.New(fsys, cfg, log).Build(ctx, entryPath, nil)
	if err != nil {
		return nil, err
	}

	if cfg.TreeShake && !cfg.Dev {
		g = graph.ShakeTree(g, cfg, pkgjson.NewCache(fsys))
	}

	polyfills, err := transformPolyfills(fsys, cfg, opts.PolyfillPaths)
	if err != nil {
		return nil, err
	}

	res, err := serialize.Serialize(g, polyfills, serialize.Options{
		Dev:                        cfg.Dev,
		Platform:                   cfg.Platform,
		ProjectRoot:                cfg.ProjectRoot,
		ExtraPreludeVars:           cfg.ExtraPreludeVars,
		RequireCycleIgnorePatterns: cfg.RequireCycleIgnorePatterns,
		AssetExtensions:            cfg.AssetExtensions,
		IncludeSourceMap:           opts.IncludeSourceMap,
		SourceMapURL:               opts.SourceMapURL,
		SourceMapFile:              opts.SourceMapFile,
		IgnoreSource:               opts.IgnoreSource,
	})
	if err != nil {
		return nil, err
	}

	return &Result{Graph: g, Bundle: res, Log: log}, nil
}

func transformPolyfills(fsys fs.FS, cfg config.Config, paths []string) ([]*module.Transformed, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	tr := transform.New(fsys, cfg)
	out := make([]*module.Transformed, 0, len(paths))
	for _, p := range paths {
		abs, err := fsys.Abs(p)
		if err != nil {
			return nil, err
		}
		t, err := tr.Transform(abs, transform.Options{
			Dev:      cfg.Dev,
			Platform: cfg.Platform,
			Root:     cfg.ProjectRoot,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
