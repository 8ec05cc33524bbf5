package serialize

import (
	"encoding/base64"
	"encoding/json"

	"bungae.dev/bungae/internal/module"
)

// extractAssets builds the asset manifest. An asset module only belongs in
// it if some surviving importer's code actually still contains a
// require(dependencyMap[i]) call at that dependency's index, rather than
// trusting graph reachability alone (graph reachability includes branches
// dead-code elimination may since have stripped, e.g. a __DEV__-only
// require). dependencyMap indices are local to each module's own factory,
// so this must be checked per importer rather than against the
// concatenated bundle text.
func extractAssets(g *module.Graph, order []string, opts Options) []module.AssetRecord {
	var assets []module.AssetRecord
	seen := map[string]bool{}

	for _, path := range order {
		m := g.Modules[path]
		if m == nil {
			continue
		}
		for i, dep := range m.Dependencies {
			if dep.ResolvedPath == "" || seen[dep.ResolvedPath] {
				continue
			}
			target := g.Modules[dep.ResolvedPath]
			if target == nil || !target.IsAsset || target.AssetMeta == nil {
				continue
			}
			if !requiresLocalIndex(m.Code, i) {
				continue
			}
			seen[dep.ResolvedPath] = true
			assets = append(assets, module.AssetRecord{
				FilePath:           dep.ResolvedPath,
				HTTPServerLocation: httpServerLocation(opts.ProjectRoot, dep.ResolvedPath),
				Name:               target.AssetMeta.Name,
				Type:               target.AssetMeta.Type,
				Width:              target.AssetMeta.Width,
				Height:             target.AssetMeta.Height,
				Scales:             target.AssetMeta.Scales,
			})
		}
	}
	return assets
}

func requiresLocalIndex(code string, index int) bool {
	for _, m := range reRequireCall.FindAllStringSubmatch(code, -1) {
		if atoiSafe(m[1]) == index {
			return true
		}
	}
	return false
}

func httpServerLocation(root, path string) string {
	rel := relSource(root, path)
	for i := len(rel) - 1; i >= 0; i-- {
		if rel[i] == '/' {
			return "/assets/" + rel[:i]
		}
	}
	return "/assets"
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// mapWire mirrors the jsonMap shape sourcemap.Decode consumes, so a composed
// map round-trips through the exact same standard source-map JSON shape the
// transform step's own per-file maps arrived in, plus the outer-map-only
// "file" and "x_google_ignoreList" fields.
type mapWire struct {
	Version           int      `json:"version"`
	File              string   `json:"file,omitempty"`
	Sources           []string `json:"sources"`
	SourcesContent    []string `json:"sourcesContent"`
	Names             []string `json:"names"`
	Mappings          string   `json:"mappings"`
	XGoogleIgnoreList []int    `json:"x_google_ignoreList,omitempty"`
}

func encodeMap(mappings string, sources, sourcesContent, names []string, opts Options) (string, error) {
	wire := mapWire{
		Version:        3,
		File:           opts.SourceMapFile,
		Sources:        sources,
		SourcesContent: sourcesContent,
		Names:          names,
		Mappings:       mappings,
	}
	if opts.IgnoreSource != nil {
		for i, src := range sources {
			if opts.IgnoreSource(src) {
				wire.XGoogleIgnoreList = append(wire.XGoogleIgnoreList, i)
			}
		}
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func stubMap() string {
	return `{"version":3,"sources":[],"sourcesContent":[],"names":[],"mappings":""}`
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
