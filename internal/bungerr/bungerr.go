// Package bungerr defines the five error kinds the bundler distinguishes,
// each with its own propagation policy. The policy itself (recover-with-stub
// vs. abort the build) lives in the caller — resolver, graph builder, and
// serializer — not here; this package only gives each kind a distinct,
// inspectable Go type so callers can type-switch on it.
package bungerr

import "fmt"

// ResolutionError is raised when the resolver cannot turn a specifier into a
// path. Recovered (a stub module is emitted) in dev; fatal in production.
type ResolutionError struct {
	Importer   string
	Specifier  string
	TriedPaths []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %q from %q (tried %d candidates)", e.Specifier, e.Importer, len(e.TriedPaths))
}

// TransformError always surfaces and aborts the build.
type TransformError struct {
	Path    string
	Phase   string // "parse", "strip-types", "inline-constants", "jsx", "classes", "module-rewrite", "dce", "asset"
	Line    int
	Column  int
	Message string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s (%s)", e.Path, e.Line, e.Column, e.Message, e.Phase)
}

// GraphError indicates an invariant violation — a bug, not a user mistake.
// Always fatal.
type GraphError struct {
	Message string
}

func (e *GraphError) Error() string {
	return "internal graph invariant violated: " + e.Message
}

// IoError wraps a filesystem error. fs.RealFS has already retried a
// transient read twice with backoff before the error surfaces; callers
// return the IoError as is, and nothing converts it to a ResolutionError
// or TransformError.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("i/o error reading %q: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// ProtocolError is an HMR-only error: a malformed client frame. It is
// logged and the frame dropped; the websocket connection stays open.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "malformed HMR frame: " + e.Reason
}
