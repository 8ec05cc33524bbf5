// Package module holds the data model shared by every subsystem: the
// resolver produces resolved paths, the transformer produces Transformed
// values keyed by path, the graph builder assembles them into a Graph, and
// the serializer consumes the graph. The module record does not change
// shape between phases, so one small shared package is enough.
package module

// DependencyKind distinguishes a statically-required import, which the
// runtime must be able to __r() synchronously, from a dynamic import().
type DependencyKind uint8

const (
	KindStatic DependencyKind = iota
	KindAsyncRequire
)

// Dependency is one entry in a module's dependency list, in source order.
// ResolvedPath is empty when the specifier could not be resolved but the
// failure was tolerated (an optional dependency in dev mode).
type Dependency struct {
	Specifier    string
	ResolvedPath string
	Kind         DependencyKind
}

// SegmentTuple is one raw source map segment: 2, 4, or 5 elements
// ([genLine, genCol], +[srcLine, srcCol], +[nameIdx]).
type SegmentTuple []int

// RawSourceMap is a per-file, unencoded list of segments; VLQ encoding and
// cross-module line-offsetting happen only once, in the serializer.
type RawSourceMap struct {
	Segments []SegmentTuple
	Names    []string
}

// AssetMeta carries the metadata an image (or other binary) asset stub
// registers with the runtime's AssetRegistry.
type AssetMeta struct {
	Name   string
	Type   string
	Width  int
	Height int
	Scales []float64
}

// AssetRecord is the serializer's output-facing asset manifest entry. A
// module only becomes one of these once the serializer has proven it is
// actually reachable from an __r() call in the emitted bundle.
type AssetRecord struct {
	FilePath           string
	HTTPServerLocation string
	Name               string
	Type               string
	Width              int
	Height             int
	Scales             []float64
}

// Transformed is the output of the transform pipeline for exactly one file.
type Transformed struct {
	Path           string
	Code           string
	Map            RawSourceMap
	Dependencies   []Dependency
	Exports        []string // exported names; a single "*" entry means "namespace re-export, all used"
	Imports        []string // names imported from this module's own dependencies, for diagnostics only
	HasSideEffects bool
	IsAsset        bool
	AssetMeta      *AssetMeta

	// OriginalSource is the pre-transform file text (the TS/JSX/Flow source
	// as the author wrote it), empty for a binary asset. The serializer's
	// source-map composition uses this, not Code, for sourcesContent so the
	// map carries the original rather than the rewritten output.
	OriginalSource string
}

// Graph is the result of crawling from an entry point: every reachable
// module plus the canonical, deterministic DFS order the serializer walks.
type Graph struct {
	EntryPath string
	Modules   map[string]*Transformed
	Order     []string // DFS order from the entry only, entry first; each path appears exactly once

	// RunBeforeMain holds the resolved paths of the configured
	// "run-before-main" modules, in configured order. They are crawled as
	// additional roots and are present in Modules, but are excluded from
	// Order, which contains exactly the paths reachable from the entry
	// through static dependencies. The serializer assigns their IDs and
	// __r() calls separately.
	RunBeforeMain []string
}
