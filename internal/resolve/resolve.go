// Package resolve is platform-aware module resolution: React-Native
// extension precedence (".<platform>.<ext>" before ".native.<ext>" before
// ".<ext>"), directory index fallback, and monorepo node_modules traversal
// with package.json main-field handling.
package resolve

import (
	"strings"
	"sync"

	"bungae.dev/bungae/internal/bungerr"
	"bungae.dev/bungae/internal/config"
	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/pkgjson"
)

type Resolver struct {
	fsys    fs.FS
	cfg     config.Config
	pkgs    *pkgjson.Cache
	dirMu   sync.Mutex
	dirKind map[string]bool // memoized: true if a candidate path is a directory
}

func New(fsys fs.FS, cfg config.Config) *Resolver {
	return &Resolver{
		fsys:    fsys,
		cfg:     cfg,
		pkgs:    pkgjson.NewCache(fsys),
		dirKind: map[string]bool{},
	}
}

// Result is what the resolver found for a specifier.
type Result struct {
	Path    string
	IsAsset bool
}

// Resolve maps (importer, specifier) to an absolute path. A nil result and
// nil error means the specifier was a disabled/ignored target (browser
// field false); a nil result and non-nil *bungerr.ResolutionError means the
// caller must decide whether that's tolerated.
func (r *Resolver) Resolve(importer, specifier string) (*Result, error) {
	if isRelative(specifier) {
		base := fs.Join(fs.Dir(importer), specifier)
		return r.resolveCandidates(importer, specifier, base)
	}
	return r.resolvePackage(importer, specifier)
}

func isRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// resolveCandidates applies the four-tier candidate precedence against a
// resolved base path (no extension assumed yet): platform-suffixed source
// extensions, then .native, then bare extensions, then the same ladder
// against <base>/index when base is a directory.
func (r *Resolver) resolveCandidates(importer, specifier, base string) (*Result, error) {
	var tried []string

	// A specifier already carrying its extension ("./img.png",
	// "./data.json") names the file directly; the candidate ladder only
	// applies when the extension is left off.
	if ext := fs.Ext(base); ext != "" && r.isFile(base) {
		if r.cfg.IsAssetExt(ext) {
			return &Result{Path: base, IsAsset: true}, nil
		}
		for _, se := range r.cfg.SourceExtensions {
			if ext == se {
				return &Result{Path: base}, nil
			}
		}
	}

	tryTier := func(base string) (*Result, bool) {
		// Tier 1: <base>.<platform>.<ext>
		for _, ext := range r.cfg.SourceExtensions {
			cand := base + "." + string(r.cfg.Platform) + ext
			tried = append(tried, cand)
			if r.isFile(cand) {
				return &Result{Path: cand}, true
			}
		}
		// Tier 2: <base>.native.<ext>, platform != web, when enabled
		if r.cfg.PreferNativePlatform && r.cfg.Platform != config.PlatformWeb {
			for _, ext := range r.cfg.SourceExtensions {
				cand := base + ".native" + ext
				tried = append(tried, cand)
				if r.isFile(cand) {
					return &Result{Path: cand}, true
				}
			}
		}
		// Tier 3: <base>.<ext>
		for _, ext := range r.cfg.SourceExtensions {
			cand := base + ext
			tried = append(tried, cand)
			if r.isFile(cand) {
				return &Result{Path: cand}, true
			}
		}
		// Asset extensions terminate resolution immediately when matched.
		for _, ext := range r.cfg.AssetExtensions {
			cand := base + ext
			tried = append(tried, cand)
			if r.isFile(cand) {
				return &Result{Path: cand, IsAsset: true}, true
			}
		}
		return nil, false
	}

	if res, ok := tryTier(base); ok {
		return res, nil
	}
	// Tier 4: <base> is a directory -> repeat against <base>/index
	if r.isDir(base) {
		if res, ok := tryTier(fs.Join(base, "index")); ok {
			return res, nil
		}
	}

	return nil, &bungerr.ResolutionError{Importer: importer, Specifier: specifier, TriedPaths: tried}
}

// resolvePackage walks upward from the importer's directory looking for
// node_modules/<packageHead>, also trying each configured extra
// node_modules path, then resolves the package's main-field entry.
func (r *Resolver) resolvePackage(importer, specifier string) (*Result, error) {
	head, rest := splitPackageSpecifier(specifier)
	var tried []string

	search := func(nodeModulesDir string) (*Result, bool) {
		pkgDir := fs.Join(nodeModulesDir, head)
		if !r.isDir(pkgDir) {
			tried = append(tried, pkgDir)
			return nil, false
		}
		if rest != "" {
			// Deep import into the package, e.g. "lodash/fp" — resolve the
			// subpath itself through the normal candidate ladder.
			if res, err := r.resolveCandidates(importer, specifier, fs.Join(pkgDir, rest)); err == nil {
				return res, true
			}
			tried = append(tried, fs.Join(pkgDir, rest))
			return nil, false
		}

		entry, disabled := r.mainFieldEntry(pkgDir)
		if disabled {
			return nil, true // browser:false — caller treats as resolved-but-ignored
		}
		if res, err := r.resolveCandidates(importer, specifier, fs.Join(pkgDir, entry)); err == nil {
			return res, true
		}
		tried = append(tried, fs.Join(pkgDir, entry))
		return nil, false
	}

	for _, dir := range upwardNodeModulesDirs(fs.Dir(importer)) {
		if res, ok := search(dir); ok {
			return res, nil
		}
	}
	for _, dir := range r.cfg.NodeModulesPaths {
		if res, ok := search(dir); ok {
			return res, nil
		}
	}

	return nil, &bungerr.ResolutionError{Importer: importer, Specifier: specifier, TriedPaths: tried}
}

// mainFieldEntry reads package.json in pkgDir and returns the entry point
// chosen per the react-native > browser > main > index.js precedence.
func (r *Resolver) mainFieldEntry(pkgDir string) (entry string, disabled bool) {
	pkg := r.pkgs.Load(fs.Join(pkgDir, "package.json"))
	if pkg == nil {
		return "index.js", false
	}
	for _, field := range []string{"react-native", "browser", "main"} {
		if field == "browser" && strings.TrimSpace(string(pkg.Browser)) == "false" {
			return "", true // the JSON boolean, which MainField's string read skips
		}
		if v, ok := pkg.MainField(field); ok {
			if v == "" {
				continue
			}
			if v == "false" && field == "browser" {
				return "", true
			}
			return v, false
		}
	}
	return "index.js", false
}

// splitPackageSpecifier splits "lodash/fp/flow" into ("lodash", "fp/flow")
// and "@scope/pkg/sub" into ("@scope/pkg", "sub").
func splitPackageSpecifier(specifier string) (head, rest string) {
	parts := strings.SplitN(specifier, "/", 2)
	if strings.HasPrefix(specifier, "@") && len(parts) == 2 {
		scopedParts := strings.SplitN(parts[1], "/", 2)
		head = parts[0] + "/" + scopedParts[0]
		if len(scopedParts) == 2 {
			rest = scopedParts[1]
		}
		return head, rest
	}
	head = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return head, rest
}

// upwardNodeModulesDirs yields <dir>/node_modules, <parent>/node_modules,
// ... up to the filesystem root, matching monorepo package hoisting.
func upwardNodeModulesDirs(dir string) []string {
	var dirs []string
	for {
		dirs = append(dirs, fs.Join(dir, "node_modules"))
		parent := fs.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return dirs
}

func (r *Resolver) isFile(path string) bool {
	_, isDir, ok := r.fsys.Stat(path)
	return ok && !isDir
}

func (r *Resolver) isDir(path string) bool {
	r.dirMu.Lock()
	if v, ok := r.dirKind[path]; ok {
		r.dirMu.Unlock()
		return v
	}
	r.dirMu.Unlock()

	_, isDir, ok := r.fsys.Stat(path)
	result := ok && isDir

	r.dirMu.Lock()
	r.dirKind[path] = result
	r.dirMu.Unlock()
	return result
}
