// Command bungae is the CLI wrapper around the core build: it owns
// argument parsing and a minimal bungae.config.json reader, and otherwise
// only calls into internal/bundle and internal/devserver.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"bungae.dev/bungae/internal/bundle"
	"bungae.dev/bungae/internal/bungerr"
	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/devserver"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/helpers"
	"bungae.dev/bungae/internal/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "build":
		return runBuild(args[1:])
	case "serve":
		return runServe(args[1:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "bungae: unknown command %q\n\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage:
  bungae build [options] <entry>
  bungae serve [options] <entry>

Options:
  -platform=ios|android|web   Target platform (default ios)
  -dev                        Dev build: keep __DEV__ branches, skip tree-shaking
  -project-root=DIR           Root source paths are made relative to (default entry's dir)
  -config=FILE                Read defaults from a bungae.config.json file
  -sourcemap                  Emit a source map
  -polyfill=FILE              Prepend FILE as raw top-level code (repeatable)
  -out=FILE                   Write the bundle to FILE instead of stdout (build only)
  -host=HOST                  Bind address for serve (default 127.0.0.1)
  -port=PORT                  Bind port for serve (default 8081)
  -debug                      Print a Go stack trace alongside the first fatal error
`)
}

// fileConfig is the handful of bungae.config.json fields cmd/bungae knows
// how to read. Values are flat; there is no deep merge.
type fileConfig struct {
	Platform              string            `json:"platform"`
	ProjectRoot           string            `json:"projectRoot"`
	TreeShake             bool              `json:"treeShake"`
	TreeShakeCrossPackage bool              `json:"treeShakeCrossPackage"`
	RunBeforeMain         []string          `json:"runBeforeMain"`
	RequireCycleIgnore    []string          `json:"requireCycleIgnorePatterns"`
	ExtraPreludeVars      map[string]string `json:"extraPreludeVars"`
	CacheDir              string            `json:"cacheDir"`
}

func readFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := json.Unmarshal(raw, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

type polyfillList []string

func (p *polyfillList) String() string { return fmt.Sprint([]string(*p)) }
func (p *polyfillList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func commonFlags(fset *flag.FlagSet) (platform *string, dev *bool, root *string, cfgPath *string, sourcemap *bool, polyfills *polyfillList, debug *bool) {
	platform = fset.String("platform", "ios", "target platform: ios, android, or web")
	dev = fset.Bool("dev", false, "dev build")
	root = fset.String("project-root", "", "project root for relative source paths")
	cfgPath = fset.String("config", "", "path to a bungae.config.json")
	sourcemap = fset.Bool("sourcemap", false, "emit a source map")
	debug = fset.Bool("debug", false, "print a Go stack trace alongside the first fatal error")
	polyfills = &polyfillList{}
	fset.Var(polyfills, "polyfill", "prepend a raw top-level polyfill file (repeatable)")
	return
}

func buildConfig(platform string, dev bool, root string, fc fileConfig) config.Config {
	p := config.Platform(platform)
	if fc.Platform != "" && platform == "ios" {
		// the file value applies whenever the flag holds its default "ios",
		// including an explicit -platform=ios; any other flag value wins.
		p = config.Platform(fc.Platform)
	}
	if root == "" {
		root = fc.ProjectRoot
	}
	return config.Config{
		ProjectRoot:                root,
		Platform:                   p,
		Dev:                        dev,
		RunBeforeMain:              fc.RunBeforeMain,
		TreeShake:                  fc.TreeShake && !dev,
		TreeShakeCrossPackage:      fc.TreeShakeCrossPackage,
		RequireCycleIgnorePatterns: fc.RequireCycleIgnore,
		ExtraPreludeVars:           fc.ExtraPreludeVars,
		CacheDir:                   fc.CacheDir,
	}
}

func runBuild(args []string) int {
	fset := flag.NewFlagSet("build", flag.ContinueOnError)
	platform, dev, root, cfgPath, sourcemap, polyfills, debug := commonFlags(fset)
	out := fset.String("out", "", "write the bundle to this file instead of stdout")
	if err := fset.Parse(args); err != nil {
		return 1
	}
	if fset.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "bungae build: exactly one entry point is required")
		return 1
	}
	entry := fset.Arg(0)

	fc, err := readFileConfig(*cfgPath)
	if err != nil {
		return fail(err, *debug)
	}

	fsys := fs.NewRealFS()
	absEntry, err := fsys.Abs(entry)
	if err != nil {
		return fail(err, *debug)
	}

	cfg := buildConfig(*platform, *dev, *root, fc)
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = fs.Dir(absEntry)
	}

	buildOpts := bundle.Options{
		Config:           cfg,
		PolyfillPaths:    []string(*polyfills),
		IncludeSourceMap: *sourcemap,
	}
	if *sourcemap && *out != "" {
		// A file target gets a sibling .map and a relative trailing comment
		// instead of the inline data: URL used for stdout output.
		buildOpts.SourceMapFile = fs.Base(*out)
		buildOpts.SourceMapURL = fs.Base(*out) + ".map"
	}

	res, err := bundle.Build(context.Background(), fsys, absEntry, buildOpts)
	if err != nil {
		return fail(err, *debug)
	}

	res.Log.PrintTo(os.Stderr)
	if res.Log.HasErrors() {
		return 1
	}

	if *out == "" {
		fmt.Print(res.Bundle.Code)
		return 0
	}
	if err := os.WriteFile(*out, []byte(res.Bundle.Code), 0o644); err != nil {
		return fail(err, *debug)
	}
	if *sourcemap {
		if err := os.WriteFile(*out+".map", []byte(res.Bundle.Map), 0o644); err != nil {
			return fail(err, *debug)
		}
	}
	return 0
}

func runServe(args []string) int {
	fset := flag.NewFlagSet("serve", flag.ContinueOnError)
	platform, dev, root, cfgPath, sourcemap, polyfills, debug := commonFlags(fset)
	host := fset.String("host", "127.0.0.1", "bind address")
	port := fset.String("port", "8081", "bind port")
	if err := fset.Parse(args); err != nil {
		return 1
	}
	if fset.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "bungae serve: exactly one entry point is required")
		return 1
	}
	entry := fset.Arg(0)

	fc, err := readFileConfig(*cfgPath)
	if err != nil {
		return fail(err, *debug)
	}

	fsys := fs.NewRealFS()
	absEntry, err := fsys.Abs(entry)
	if err != nil {
		return fail(err, *debug)
	}

	// serve is always a dev build; -dev is accepted for flag-surface
	// symmetry with build but has no effect here.
	*dev = true
	cfg := buildConfig(*platform, *dev, *root, fc)
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = fs.Dir(absEntry)
	}

	log := logger.New(logger.LevelWarning)
	srv, err := devserver.New(context.Background(), fsys, absEntry, bundle.Options{
		Config:           cfg,
		PolyfillPaths:    []string(*polyfills),
		IncludeSourceMap: *sourcemap,
	}, log)
	if err != nil {
		return fail(err, *debug)
	}

	stop := make(chan struct{})
	go srv.Watch(stop)
	defer close(stop)

	addr := *host + ":" + *port
	fmt.Fprintf(os.Stderr, "bungae: serving %s on http://%s (hot reload at ws://%s/hot)\n", entry, addr, addr)

	if err := http.ListenAndServe(addr, srv.Mux()); err != nil {
		return fail(err, *debug)
	}
	return 0
}

func fail(err error, debugTrace bool) int {
	printFatal(err)
	if debugTrace {
		fmt.Fprintln(os.Stderr, helpers.PrettyPrintedStack())
	}
	return 1
}

// printFatal renders a fatal error the same way collected build warnings
// print: one block with path, line/column, the offending source line, and
// a caret under the column when the error carries a location. Errors with
// no location fall back to plain text.
func printFatal(err error) {
	var te *bungerr.TransformError
	if !errors.As(err, &te) {
		fmt.Fprintln(os.Stderr, "bungae: "+err.Error())
		return
	}
	log := logger.New(logger.LevelError)
	log.AddMsg(logger.Msg{
		Kind: logger.KindError,
		Text: te.Message + " (" + te.Phase + ")",
		Location: &logger.Location{
			File:     te.Path,
			Line:     te.Line,
			Column:   te.Column,
			LineText: sourceLine(te.Path, te.Line),
		},
	})
	log.PrintTo(os.Stderr)
}

// sourceLine reads the 1-based line of a file for the caret rendering,
// returning "" when the file or line is gone (the caret is then omitted).
func sourceLine(path string, line int) string {
	if line <= 0 {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(raw), "\n")
	if line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}
