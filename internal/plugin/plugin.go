// Package plugin declares the external collaborator surface the Module
// Loader drives: resolveId/load/transform/resolveDynamicImport/watchChange.
// Concrete hook bodies (talking to a file system, a network fetch, a real
// parser) are out of scope for the graph core; this package only pins down
// the interface, and concrete drivers own the I/O.
package plugin

import "github.com/gobundle/graphcore/internal/gmodule"

// ResolveIDResult is the normalized outcome of calling the resolveId hook
// for a single import specifier. A nil result means "fall through to the
// default unresolved-import rule".
type ResolveIDResult struct {
	ID       string
	External bool
}

// LoadResult is the outcome of the load hook: either a successful load
// carrying source text (and an optional marker that disables the
// persistent-cache fast path) or an error.
type LoadResult struct {
	Code               string
	HasCustomTransform bool
}

// DynamicImportResult represents what resolveDynamicImport produced: either
// nothing (leave the call site unresolved; legal, handled downstream by
// codegen), a string target (resolved exactly like a static import), or an
// opaque pre-parsed fragment attached directly without going through
// fetchModule again.
type DynamicImportResult struct {
	Unresolved bool
	Target     string
	HasTarget  bool
	Fragment   gmodule.AST
}

// Driver is the first-wins plugin dispatcher. Every method iterates
// registered plugins in registration order and returns the first non-nil
// result; watchChange is broadcast to every plugin instead.
type Driver interface {
	// ResolveID resolves a raw import specifier written in `importer` to a
	// module id. A nil result (no matching plugin, or every plugin passed)
	// means "unresolved"; the Loader applies the default rule.
	ResolveID(specifier string, importer string) (*ResolveIDResult, error)

	// Load fetches the source text for a resolved, non-external id.
	Load(id string) (LoadResult, error)

	// Transform turns loaded source text into a parsed module. This is the
	// sole place the out-of-scope parser is invoked from.
	Transform(id string, code string) (gmodule.ParsedModule, error)

	// ResolveDynamicImport resolves a `import()` expression. Errors here are
	// swallowed by the Loader and only surfaced as a
	// debug log line.
	ResolveDynamicImport(expression string, importer string) (DynamicImportResult, error)

	// WatchChange notifies plugins that a file changed. Best effort, never
	// awaited by the graph core itself.
	WatchChange(id string)
}
