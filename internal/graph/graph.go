// Package graph implements the Graph facade: the single-use orchestrator
// that runs the four sequential phases, discovery, linking, marking and
// chunk generation, and owns the caches threaded through them.
//
// Build folds the plugin-driven scan and the synchronous analysis passes
// into one call; together they are the whole of this module's scope.
package graph

import (
	"github.com/gobundle/graphcore/internal/cache"
	"github.com/gobundle/graphcore/internal/chunker"
	"github.com/gobundle/graphcore/internal/diag"
	"github.com/gobundle/graphcore/internal/gmodule"
	"github.com/gobundle/graphcore/internal/graphopts"
	"github.com/gobundle/graphcore/internal/helpers"
	"github.com/gobundle/graphcore/internal/linker"
	"github.com/gobundle/graphcore/internal/loader"
	"github.com/gobundle/graphcore/internal/logger"
	"github.com/gobundle/graphcore/internal/order"
	"github.com/gobundle/graphcore/internal/plugin"
	"github.com/gobundle/graphcore/internal/treeshake"
)

// Input names one entry point. Alias is empty for the bare string/array
// input forms; no alias is generated then, and the Chunker seeds the
// entry's colouring from its resolved id instead.
type Input struct {
	Alias     string
	Specifier string
}

// BuildResult is what Build returns on success: the ordered chunk sequence,
// every warning collected along the way, and the plugin
// cache after end-of-build eviction, ready for the caller to serialize and
// thread into the next build.
type BuildResult struct {
	Chunks      []*chunker.Chunk
	Warnings    []logger.Msg
	PluginCache *cache.PluginCache
}

// Graph owns a single build's module tables and caches. It is consumed by Build: calling Build
// twice on the same Graph is a programming error, enforced by the
// `finished` flag.
type Graph struct {
	driver   plugin.Driver
	external loader.ExternalPredicate
	opts     graphopts.Options
	log      *logger.Log
	timer    *helpers.Timer

	moduleCache *cache.ModuleCache
	pluginCache *cache.PluginCache

	finished bool
}

// New creates a Graph ready for one Build call. moduleCache and pluginCache
// may be nil (no warm cache from a previous build).
func New(driver plugin.Driver, external loader.ExternalPredicate, opts graphopts.Options, onWarn func(logger.Msg), moduleCache *cache.ModuleCache, pluginCache *cache.PluginCache) *Graph {
	if moduleCache == nil {
		moduleCache = cache.NewModuleCache()
	}
	if pluginCache == nil {
		pluginCache = cache.NewPluginCache()
	}
	return &Graph{
		driver:      driver,
		external:    external,
		opts:        graphopts.Normalize(opts),
		log:         logger.NewLog(onWarn),
		timer:       &helpers.Timer{},
		moduleCache: moduleCache,
		pluginCache: pluginCache,
	}
}

// PluginCache exposes the Graph's plugin cache so a caller can hand it to
// its plugin hooks before Build runs.
func (g *Graph) PluginCache() *cache.PluginCache { return g.pluginCache }

// Log exposes the Graph's diagnostic log, readable once Build has returned
// (or failed) to inspect every collected Msg.
func (g *Graph) Log() *logger.Log { return g.log }

// Build runs discovery, linking, marking and chunk generation, in that
// order, against entries and any
// manual chunk groupings, returning the ordered chunk sequence. The Graph
// must not be reused afterward.
func (g *Graph) Build(entries []Input, manualChunks map[string][]string) (*BuildResult, error) {
	if g.finished {
		return nil, diag.NewError(diag.CodeInternalError, "Graph.Build called more than once")
	}
	g.finished = true

	// Phase 1: discovery.
	g.timer.Begin("Discovery")
	ld := loader.New(g.driver, g.external, g.opts.ShimMissingExports, g.log, g.moduleCache)

	specs := make([]loader.EntrySpecifier, len(entries))
	for i, e := range entries {
		specs[i] = loader.EntrySpecifier{Alias: e.Alias, Specifier: e.Specifier}
	}

	entryDone, entryResult := ld.AddEntryModules(specs)
	<-entryDone
	if entryResult.Err != nil {
		return nil, entryResult.Err
	}

	if len(manualChunks) > 0 {
		manualDone, manualResult := ld.AddManualChunks(manualChunks)
		<-manualDone
		if manualResult.Err != nil {
			return nil, manualResult.Err
		}
	}
	g.timer.End("Discovery")

	modules := ld.Modules()
	modulesByID := g.modulesByID(ld)
	entryModules := entryResult.EntryModules
	manualChunkModules := ld.ManualChunkModules()

	if g.opts.InlineDynamicImports && len(entryModules) > 1 {
		return nil, diag.NewError(diag.CodeInternalError,
			"inlineDynamicImports requires exactly one entry module")
	}

	// Phase 2: linking.
	g.timer.Begin("Linking")
	lk := linker.New(g.log, g.opts.ShimMissingExports)
	if err := lk.Link(modules, modulesByID); err != nil {
		return nil, err
	}
	g.timer.End("Linking")

	// Execution order & cycle analysis feeds both marking and chunking.
	entryModulesOnly := make([]*gmodule.Module, len(entryModules))
	for i, ref := range entryModules {
		entryModulesOnly[i] = ref.Module
	}
	ordered := order.Compute(entryModulesOnly, modules, modulesByID, g.log)

	// Phase 3: marking (tree-shaking).
	g.timer.Begin("Marking")
	treeshake.IncludeMarked(ordered, entryModulesOnly, g.opts.Treeshake.Enabled)
	g.timer.End("Marking")

	// Phase 4: chunk generation.
	g.timer.Begin("Chunking")
	chunks, err := g.generateChunks(ordered, entryModules, manualChunkModules, modulesByID)
	if err != nil {
		return nil, err
	}
	g.timer.End("Chunking")

	g.pluginCache.EvictStale(g.opts.ExperimentalCacheExpiry)
	g.timer.Log(g.log)

	return &BuildResult{Chunks: chunks, Warnings: g.log.Warnings(), PluginCache: g.pluginCache}, nil
}

func (g *Graph) modulesByID(ld *loader.Loader) map[string]gmodule.Entity {
	byID := make(map[string]gmodule.Entity)
	for _, m := range ld.Modules() {
		byID[m.ID] = m
	}
	for _, m := range ld.ExternalModules() {
		byID[m.ID] = m
	}
	return byID
}

// generateChunks dispatches between
// preserveModules, inlineDynamicImports, and ordinary entry-point colouring.
func (g *Graph) generateChunks(ordered []*gmodule.Module, entryModules []loader.EntryModuleRef, manualChunkModules map[string][]*gmodule.Module, modulesByID map[string]gmodule.Entity) ([]*chunker.Chunk, error) {
	if g.opts.PreserveModules {
		chunks := chunker.PreserveModules(ordered, entryModules)
		for _, chunk := range chunks {
			chunker.GenerateEntryExportsOrMarkAsTainted(chunk)
		}
		return chunks, nil
	}

	if g.opts.InlineDynamicImports {
		chunk, err := chunker.InlineDynamicImports(ordered, entryModules)
		if err != nil {
			return nil, err
		}
		return []*chunker.Chunk{chunk}, nil
	}

	chunker.Colour(ordered, entryModules, manualChunkModules, modulesByID)
	chunker.AssignEntryAliases(entryModules)

	chunks := chunker.Partition(ordered, entryModules)
	for alias := range manualChunkModules {
		for _, chunk := range chunks {
			for _, mod := range chunk.OrderedModules {
				if mod.ChunkAlias != nil && *mod.ChunkAlias == alias {
					chunk.IsManualChunk = true
					chunk.ManualAlias = alias
				}
			}
		}
	}

	chunks = chunker.SynthesizeFacades(chunks, entryModules)
	chunker.Link(chunks, modulesByID)
	chunks = chunker.FilterEmpty(chunks)

	for _, chunk := range chunks {
		if len(chunk.EntryModules) > 0 {
			chunker.GenerateEntryExportsOrMarkAsTainted(chunk)
		}
	}

	return chunks, nil
}
