// Package transform is the per-file pipeline: parse, strip types, inline
// build constants, lower JSX and classes, and rewrite the module system.
// It drives esbuild's single-file api.Transform as the parse/lower engine;
// everything Transform doesn't cover (the rewrite into
// require(dependencyMap[i]), the asset stub, and dependency-list
// extraction) is this package's own code.
package transform

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"

	"bungae.dev/bungae/internal/asset"
	"bungae.dev/bungae/internal/bungerr"
	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/helpers"
	"bungae.dev/bungae/internal/module"
	"bungae.dev/bungae/internal/sourcemap"
)

type Options struct {
	Dev      bool
	Platform config.Platform
	Root     string
}

type Transformer struct {
	fsys fs.FS
	cfg  config.Config
}

func New(fsys fs.FS, cfg config.Config) *Transformer {
	return &Transformer{fsys: fsys, cfg: cfg}
}

// Transform runs the full per-file pipeline.
func (t *Transformer) Transform(p string, opts Options) (*module.Transformed, error) {
	ext := fs.Ext(p)

	if t.cfg.IsAssetExt(ext) {
		return t.transformAsset(p, ext, opts)
	}

	contents, err := t.fsys.ReadFile(p)
	if err != nil {
		return nil, &bungerr.IoError{Path: p, Err: err}
	}

	if ext == ".json" {
		return t.transformJSON(p, contents)
	}

	loader, ok := loaderForExt(ext)
	if !ok {
		return nil, &bungerr.TransformError{Path: p, Phase: "parse", Message: "unrecognized extension " + ext}
	}

	nodeEnv := "production"
	if opts.Dev {
		nodeEnv = "development"
	}

	result := api.Transform(string(contents), api.TransformOptions{
		Loader:          loader,
		Format:          api.FormatCommonJS,
		Platform:        api.PlatformNeutral,
		Target:          api.ES2015, // lowers public/private class fields to constructor assignments; class syntax itself runs natively on Hermes
		TsconfigRaw:     `{"compilerOptions":{"useDefineForClassFields":false}}`,
		Sourcefile:      p,
		Sourcemap:       api.SourceMapExternal,
		JSX:             api.JSXAutomatic,
		JSXImportSource: "react",
		MinifySyntax:    !opts.Dev, // dead-branch elimination only; no whitespace/identifier minification
		Define: map[string]string{
			"__DEV__":              boolLiteral(opts.Dev),
			"Platform.OS":          string(helpers.QuoteForJSON(string(opts.Platform))),
			"process.env.NODE_ENV": string(helpers.QuoteForJSON(nodeEnv)),
		},
	})

	if len(result.Errors) > 0 {
		first := result.Errors[0]
		line, col := 0, 0
		if first.Location != nil {
			line, col = first.Location.Line, first.Location.Column
		}
		return nil, &bungerr.TransformError{Path: p, Phase: "parse", Line: line, Column: col, Message: first.Text}
	}

	code, deps := rewriteRequires(string(result.Code))

	rawMap, _, err := sourcemap.Decode(string(result.Map))
	if err != nil {
		return nil, &bungerr.TransformError{Path: p, Phase: "sourcemap", Message: err.Error()}
	}

	exportInfo := ScanExportedNames(code)
	exports := exportInfo.Names
	if exportInfo.HasStarReexport {
		exports = append(exports, "*")
	}

	return &module.Transformed{
		Path:           p,
		Code:           code,
		Map:            rawMap,
		Dependencies:   deps,
		Exports:        exports,
		HasSideEffects: true, // refined by the graph builder against package.json
		OriginalSource: string(contents),
	}, nil
}

func (t *Transformer) transformJSON(p string, contents []byte) (*module.Transformed, error) {
	code := fmt.Sprintf("module.exports = %s;", string(contents))
	return &module.Transformed{
		Path:           p,
		Code:           code,
		HasSideEffects: false,
		OriginalSource: string(contents),
	}, nil
}

func (t *Transformer) transformAsset(p, ext string, opts Options) (*module.Transformed, error) {
	contents, err := t.fsys.ReadFile(p)
	if err != nil {
		return nil, &bungerr.IoError{Path: p, Err: err}
	}
	meta, err := asset.Describe(t.fsys, p, ext, contents)
	if err != nil {
		return nil, &bungerr.TransformError{Path: p, Phase: "asset", Message: err.Error()}
	}
	code := asset.StubCode(opts.Root, p, meta)
	return &module.Transformed{
		Path:           p,
		Code:           code,
		IsAsset:        true,
		AssetMeta:      meta,
		HasSideEffects: true,
	}, nil
}

func loaderForExt(ext string) (api.Loader, bool) {
	switch ext {
	case ".ts":
		return api.LoaderTS, true
	case ".tsx":
		return api.LoaderTSX, true
	case ".js", ".jsx", ".mjs", ".cjs":
		// RN source mixes JSX and Flow-style type annotations into plain
		// .js; the JS/JSX loaders reject type syntax outright, so these go
		// through the TSX loader, which parses and erases it.
		return api.LoaderTSX, true
	default:
		return api.LoaderJS, false
	}
}

func boolLiteral(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
