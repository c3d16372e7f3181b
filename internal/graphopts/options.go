// Package graphopts holds the build configuration: a flat options struct,
// normalized once up front by Normalize rather than re-checked ad hoc
// throughout the core. The "boolean or detailed object" treeshake setting is
// carried as a TreeshakeOptions struct with an Enabled flag; MaybeBool is a
// tri-state helper that no Options field uses.
package graphopts

// MaybeBool is a tri-state flag: "unset" lets a later default win, instead of forcing
// every call site to special-case a zero value that is also a legal false.
type MaybeBool uint8

const (
	Unset MaybeBool = iota
	False
	True
)

func (b MaybeBool) OrDefault(def bool) bool {
	switch b {
	case True:
		return true
	case False:
		return false
	default:
		return def
	}
}

// TreeshakeOptions is the detailed form of the "treeshake" config value
// ("boolean or {annotations, propertyReadSideEffects,
// pureExternalModules}").
type TreeshakeOptions struct {
	Enabled                 bool
	Annotations             bool
	PropertyReadSideEffects bool
	PureExternalModules     bool
}

var DefaultTreeshake = TreeshakeOptions{
	Enabled:                 true,
	Annotations:             true,
	PropertyReadSideEffects: true,
}

// ModuleContextFunc supplies a per-module `this` context value; returning
// "" falls back to Options.Context.
type ModuleContextFunc func(id string) string

// Options is the normalized configuration recognized by the Graph core.
// `Input` is resolved by the caller into EntryPoints before
// reaching the Loader; this struct only carries the options that shape
// behavior once entries are known.
type Options struct {
	Treeshake                 TreeshakeOptions
	PreserveModules           bool
	InlineDynamicImports      bool
	Context                   string
	ModuleContext             ModuleContextFunc
	ShimMissingExports        bool
	ExperimentalTopLevelAwait bool

	// ExperimentalCacheExpiry is the number of builds a plugin-cache entry
	// may go unused before eviction.
	ExperimentalCacheExpiry int
}

// Normalize fills in defaults once, when graph.New creates the Graph, never re-checked per call
// site downstream. Callers that want tree-shaking on (the common case) set
// Treeshake to DefaultTreeshake themselves; an explicit zero-value
// TreeshakeOptions is honored as "disabled", not silently upgraded.
func Normalize(o Options) Options {
	if o.ExperimentalCacheExpiry <= 0 {
		o.ExperimentalCacheExpiry = 10
	}
	return o
}
