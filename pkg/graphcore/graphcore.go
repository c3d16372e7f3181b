// Package graphcore exposes the Graph core's Build operation for
// integrating it into other tools as a library: a thin public façade in
// front of the internal packages, where the heavy lifting stays
// (internal/graph, internal/loader, internal/linker, internal/treeshake,
// internal/chunker).
//
// Example usage:
//
//	package main
//
//	import (
//	    "fmt"
//
//	    "github.com/gobundle/graphcore/pkg/graphcore"
//	)
//
//	func main() {
//	    result, err := graphcore.Build(graphcore.BuildOptions{
//	        EntryPoints: []graphcore.EntryPoint{{Alias: "main", Specifier: "./src/index"}},
//	        Driver:      myPluginDriver{},
//	    })
//	    if err != nil {
//	        panic(err)
//	    }
//	    fmt.Printf("%d chunks, %d warnings\n", len(result.Chunks), len(result.Warnings))
//	}
package graphcore

import (
	"github.com/gobundle/graphcore/internal/cache"
	"github.com/gobundle/graphcore/internal/chunker"
	"github.com/gobundle/graphcore/internal/graph"
	"github.com/gobundle/graphcore/internal/graphopts"
	"github.com/gobundle/graphcore/internal/logger"
	"github.com/gobundle/graphcore/internal/plugin"
)

// Driver is re-exported so callers implement one interface against this
// package without reaching into internal/plugin directly.
type Driver = plugin.Driver

// ExternalPredicate is consulted for every import specifier before the
// resolveId hook runs; a true result makes the specifier external under its
// raw id, without a warning.
type ExternalPredicate = func(id string, importer string, isResolved bool) bool

// TreeshakeOptions is the detailed form of the "treeshake" build option.
type TreeshakeOptions = graphopts.TreeshakeOptions

// Chunk is one output partition, as produced by the Chunker.
type Chunk = chunker.Chunk

// Warning is one collected diagnostic (never fatal).
type Warning = logger.Msg

// ModuleCache lets a caller thread a previous build's cache into the next
// one.
type ModuleCache = cache.ModuleCache

// NewModuleCache creates an empty cache a caller can populate and reuse
// across builds.
func NewModuleCache() *ModuleCache { return cache.NewModuleCache() }

// PluginCache is the per-plugin key/value cache with access-count
// eviction. Hand it to your plugin hooks and thread it
// back into the next build via BuildOptions.PluginCache.
type PluginCache = cache.PluginCache

// NewPluginCache creates an empty plugin cache.
func NewPluginCache() *PluginCache { return cache.NewPluginCache() }

// EntryPoint names one build root: Alias labels it (e.g. for chunk/output
// naming); Specifier is the raw string passed to the resolveId hook.
//
// A plain slice, not a map: Go map iteration order is randomized, which
// would break the declaration-order tie-breaking entry alias assignment
// relies on, and with it deterministic output. Callers that think in terms
// of a map can range over it in their own preferred deterministic order to
// build this slice.
type EntryPoint struct {
	Alias     string
	Specifier string
}

// BuildOptions is the recognized configuration, flattened into the shape
// this package's Build function consumes directly.
type BuildOptions struct {
	// EntryPoints lists every build root, in declaration order.
	EntryPoints []EntryPoint

	// ManualChunks groups named specifiers under a caller-chosen alias,
	// overriding automatic entry-point colouring for them.
	ManualChunks map[string][]string

	Driver   Driver
	External ExternalPredicate

	Treeshake                 TreeshakeOptions
	PreserveModules           bool
	InlineDynamicImports      bool
	Context                   string
	ShimMissingExports        bool
	ExperimentalTopLevelAwait bool
	ExperimentalCacheExpiry   int

	// OnWarn, when set, intercepts every warning instead of the default
	// dedup-and-collect handler.
	OnWarn func(Warning)

	// Cache threads a previous build's module cache back in; nil starts
	// cold.
	Cache *ModuleCache

	// PluginCache threads a previous build's plugin cache back in; nil
	// starts cold. The same cache (post-eviction) comes back on
	// BuildResult.
	PluginCache *PluginCache
}

// BuildResult is what Build returns on success.
type BuildResult struct {
	Chunks      []*Chunk
	Warnings    []Warning
	PluginCache *PluginCache
}

// Build resolves every entry point, fetches and links the whole reachable
// module graph, tree-shakes it to a fixpoint, and partitions the survivors
// into output chunks.
func Build(opts BuildOptions) (*BuildResult, error) {
	inputs := make([]graph.Input, len(opts.EntryPoints))
	for i, e := range opts.EntryPoints {
		inputs[i] = graph.Input{Alias: e.Alias, Specifier: e.Specifier}
	}

	g := graph.New(opts.Driver, opts.External, graphopts.Options{
		Treeshake:                 opts.Treeshake,
		PreserveModules:           opts.PreserveModules,
		InlineDynamicImports:      opts.InlineDynamicImports,
		Context:                   opts.Context,
		ShimMissingExports:        opts.ShimMissingExports,
		ExperimentalTopLevelAwait: opts.ExperimentalTopLevelAwait,
		ExperimentalCacheExpiry:   opts.ExperimentalCacheExpiry,
	}, opts.OnWarn, opts.Cache, opts.PluginCache)

	result, err := g.Build(inputs, opts.ManualChunks)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Chunks: result.Chunks, Warnings: result.Warnings, PluginCache: result.PluginCache}, nil
}
