// Package loader implements the Module Loader: it drives the plugin Driver
// to resolve, load and transform every module reachable from a set of entry
// specifiers or manual-chunk specifiers, and builds the
// Module/ExternalModule table the Linker later binds.
//
// Discovery runs as a fan-out: a single control goroutine owns the module
// table and a "remaining" counter, seeds initial fetches, then drains a
// result channel fed by per-module worker goroutines, spawning further
// fetches as each
// worker reports back. No step ever mutates shared state from more than one
// goroutine at a time; only the Load/Transform hook calls themselves run
// concurrently, on the workers, while ResolveID and ResolveDynamicImport
// are called from the control goroutine.
package loader

import (
	"fmt"
	"sync"

	"github.com/gobundle/graphcore/internal/cache"
	"github.com/gobundle/graphcore/internal/diag"
	"github.com/gobundle/graphcore/internal/future"
	"github.com/gobundle/graphcore/internal/gmodule"
	"github.com/gobundle/graphcore/internal/logger"
	"github.com/gobundle/graphcore/internal/plugin"
)

// ExternalPredicate implements the "is this id external" test: consulted
// pre-resolution, before the resolveId hook runs, and a match makes the
// specifier external under its raw id with no warning.
type ExternalPredicate func(id string, importer string, isResolved bool) bool

// EntrySpecifier is one entry named in an AddEntryModules call. Alias is
// empty for the positional-array input form; no alias is generated in that
// case (the Chunker colours such an entry by its resolved id).
type EntrySpecifier struct {
	Alias     string
	Specifier string
}

// EntryModuleRef pairs a resolved entry module with the alias it was named
// under.
type EntryModuleRef struct {
	Alias  string
	Module *gmodule.Module
}

// AddEntryModulesResult is the settled value behind the channel
// AddEntryModules returns (future.ThenValue's typed result).
type AddEntryModulesResult struct {
	EntryModules []EntryModuleRef
	Err          error
}

// AddManualChunksResult is the settled value behind AddManualChunks' channel.
type AddManualChunksResult struct {
	ChunkModules map[string][]*gmodule.Module
	Err          error
}

// Loader owns the shared module table and drives discovery. One Loader is
// created per Graph.Build call (a Graph's tables belong to that Graph
// alone).
type Loader struct {
	driver             plugin.Driver
	external           ExternalPredicate
	shimMissingExports bool
	log                *logger.Log
	moduleCache        *cache.ModuleCache

	chain *future.Chain

	mu              sync.Mutex
	modulesByID     map[string]gmodule.Entity
	modules         []*gmodule.Module // in fetch-completion order
	externalModules []*gmodule.ExternalModule
	entryModules    []EntryModuleRef
	manualChunks    map[string][]*gmodule.Module
}

// New creates a Loader. external supplies the pre-resolution external test
// (see ExternalPredicate); the Driver supplies every plugin hook.
func New(driver plugin.Driver, external ExternalPredicate, shimMissingExports bool, log *logger.Log, moduleCache *cache.ModuleCache) *Loader {
	return &Loader{
		driver:             driver,
		external:           external,
		shimMissingExports: shimMissingExports,
		log:                log,
		moduleCache:        moduleCache,
		chain:              future.New(),
		modulesByID:        make(map[string]gmodule.Entity),
	}
}

// Modules returns every internal module discovered so far, in
// fetch-completion order.
func (l *Loader) Modules() []*gmodule.Module {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*gmodule.Module, len(l.modules))
	copy(out, l.modules)
	return out
}

// ExternalModules returns every external module discovered so far.
func (l *Loader) ExternalModules() []*gmodule.ExternalModule {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*gmodule.ExternalModule, len(l.externalModules))
	copy(out, l.externalModules)
	return out
}

// ManualChunkModules returns the manual-chunk alias -> module-set map
// accumulated so far.
func (l *Loader) ManualChunkModules() map[string][]*gmodule.Module {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string][]*gmodule.Module, len(l.manualChunks))
	for k, v := range l.manualChunks {
		cp := make([]*gmodule.Module, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// AddEntryModules resolves and fetches every specifier, recursively
// discovering their whole static (and, non-fatally, dynamic) dependency
// graph. The returned channel closes once this call and every call
// scheduled before it on the same Loader have both completed; the returned
// pointer is stable to read only after that channel closes.
func (l *Loader) AddEntryModules(specs []EntrySpecifier) (<-chan struct{}, *AddEntryModulesResult) {
	return future.ThenValue(l.chain, func() AddEntryModulesResult {
		return *l.addEntryModulesSync(specs)
	})
}

// AddManualChunks resolves every specifier named in a manual-chunks map to
// its module set, fetching anything not already reachable from an entry.
// Join semantics match AddEntryModules.
func (l *Loader) AddManualChunks(chunks map[string][]string) (<-chan struct{}, *AddManualChunksResult) {
	return future.ThenValue(l.chain, func() AddManualChunksResult {
		return *l.addManualChunksSync(chunks)
	})
}

type parseOutcome struct {
	mod *gmodule.Module
	err error
}

// driveState is the per-call control state: only the goroutine running
// addEntryModulesSync/addManualChunksSync ever touches it, so it needs no
// locking of its own (the Loader's own mu still guards modulesByID/modules,
// since those are shared across overlapping calls via the chain).
type driveState struct {
	remaining int
	resultCh  chan parseOutcome
	firstErr  error
}

func (l *Loader) addEntryModulesSync(specs []EntrySpecifier) *AddEntryModulesResult {
	st := &driveState{resultCh: make(chan parseOutcome)}
	refs := make([]EntryModuleRef, 0, len(specs))
	seen := make(map[*gmodule.Module]bool)

	for _, spec := range specs {
		resolved, err := l.driver.ResolveID(spec.Specifier, "")
		if err != nil {
			st.fail(diag.NewError(diag.CodeUnresolvedEntry,
				fmt.Sprintf("Could not resolve entry module %q: %s", spec.Specifier, err)))
			continue
		}
		if resolved == nil {
			st.fail(diag.NewError(diag.CodeUnresolvedEntry,
				fmt.Sprintf("Could not resolve entry module %q", spec.Specifier)))
			continue
		}
		if resolved.External {
			st.fail(diag.NewError(diag.CodeUnresolvedEntry,
				fmt.Sprintf("Entry module %q cannot be external", spec.Specifier)))
			continue
		}

		mod := l.beginFetch(resolved.ID, "", st)
		if seen[mod] {
			st.fail(diag.NewError(diag.CodeDuplicateEntryPoints,
				fmt.Sprintf("Duplicate entry point %q", resolved.ID)))
			continue
		}
		seen[mod] = true
		mod.IsEntryPoint = true
		refs = append(refs, EntryModuleRef{Alias: spec.Alias, Module: mod})
	}

	l.drain(st)

	if st.firstErr != nil {
		return &AddEntryModulesResult{Err: st.firstErr}
	}

	l.mu.Lock()
	l.entryModules = append(l.entryModules, refs...)
	l.mu.Unlock()

	return &AddEntryModulesResult{EntryModules: refs}
}

func (l *Loader) addManualChunksSync(chunks map[string][]string) *AddManualChunksResult {
	st := &driveState{resultCh: make(chan parseOutcome)}
	result := make(map[string][]*gmodule.Module, len(chunks))

	for alias, specs := range chunks {
		mods := make([]*gmodule.Module, 0, len(specs))
		for _, specifier := range specs {
			resolved, err := l.driver.ResolveID(specifier, "")
			if err != nil || resolved == nil || resolved.External {
				st.fail(diag.NewError(diag.CodeUnresolvedEntry,
					fmt.Sprintf("Could not resolve manual chunk member %q in chunk %q", specifier, alias)))
				continue
			}
			mods = append(mods, l.beginFetch(resolved.ID, "", st))
		}
		result[alias] = mods
	}

	l.drain(st)

	if st.firstErr != nil {
		return &AddManualChunksResult{Err: st.firstErr}
	}

	l.mu.Lock()
	if l.manualChunks == nil {
		l.manualChunks = make(map[string][]*gmodule.Module)
	}
	for alias, mods := range result {
		l.manualChunks[alias] = mods
	}
	l.mu.Unlock()

	return &AddManualChunksResult{ChunkModules: result}
}

func (st *driveState) fail(err error) {
	if st.firstErr == nil {
		st.firstErr = err
	}
}

// beginFetch inserts (or finds) the placeholder Module for id and, if this
// is the first time id has been seen, spawns a worker goroutine to
// load+transform it. Only ever called from the single control goroutine of
// one addEntryModulesSync/addManualChunksSync invocation.
func (l *Loader) beginFetch(id string, importer string, st *driveState) *gmodule.Module {
	l.mu.Lock()
	if existing, ok := l.modulesByID[id]; ok {
		l.mu.Unlock()
		if mod, ok := existing.(*gmodule.Module); ok {
			return mod
		}
		st.fail(diag.NewError(diag.CodeInternalError,
			fmt.Sprintf("%q was already resolved as an external module", id)))
		return gmodule.NewModule(id)
	}
	mod := gmodule.NewModule(id)
	l.modulesByID[id] = mod
	l.mu.Unlock()

	st.remaining++
	go func() {
		err := l.loadAndParse(mod, importer)
		st.resultCh <- parseOutcome{mod: mod, err: err}
	}()
	return mod
}

// loadAndParse runs the load/transform hooks (consulting the persistent
// module cache first) and fills in the Module's static facts. It does not fetch dependencies; that happens back on the control
// goroutine once the result is drained, so that modulesByID is only ever
// written from one goroutine at a time.
func (l *Loader) loadAndParse(mod *gmodule.Module, importer string) error {
	result, err := l.driver.Load(mod.ID)
	if err != nil {
		if importer != "" {
			return diag.NewError(diag.CodeBadLoader,
				fmt.Sprintf("Could not load %q (imported by %q): %s", mod.ID, importer, err))
		}
		return diag.NewError(diag.CodeBadLoader,
			fmt.Sprintf("Could not load %q: %s", mod.ID, err))
	}
	mod.CustomTransformCache = result.HasCustomTransform

	// The module cache is shared by every worker, so it is only touched
	// under l.mu. It keeps the whole ParsedModule, so a hit restores the
	// module's imports and exports along with its AST.
	l.mu.Lock()
	entry, hit := l.moduleCache.Lookup(mod.ID, result.Code)
	l.mu.Unlock()
	if hit {
		if parsed, ok := entry.AST.(gmodule.ParsedModule); ok && parsed.AST != nil {
			mod.ApplyParsed(result.Code, parsed)
			mod.TransformAssets = entry.TransformAssets
			return nil
		}
	}

	parsed, err := l.driver.Transform(mod.ID, result.Code)
	if err != nil {
		return diag.NewError(diag.CodeBadLoader,
			fmt.Sprintf("Could not transform %q: %s", mod.ID, err))
	}
	mod.ApplyParsed(result.Code, parsed)

	l.mu.Lock()
	l.moduleCache.Store(cache.ModuleCacheEntry{
		ID:                 mod.ID,
		OriginalCode:       result.Code,
		HasCustomTransform: result.HasCustomTransform,
		AST:                parsed,
		TransformAssets:    mod.TransformAssets,
	})
	l.mu.Unlock()
	return nil
}

// drain runs the control loop: seed goroutines have already been started by
// beginFetch calls made before drain runs; this loop reacts to each
// completed parse by resolving its static sources (spawning further
// fetches) and scheduling its dynamic imports, until remaining reaches
// zero.
func (l *Loader) drain(st *driveState) {
	for st.remaining > 0 {
		res := <-st.resultCh
		st.remaining--

		if res.err != nil {
			st.fail(res.err)
			continue
		}

		l.resolveStaticSources(res.mod, st)
		l.resolveDynamicImports(res.mod, st)

		l.mu.Lock()
		l.modules = append(l.modules, res.mod)
		l.mu.Unlock()
		res.mod.IsExecuted = true
	}

	if st.firstErr == nil {
		l.computeExportsAll()
	}
}

// resolveStaticSources walks mod.Sources in declaration order, resolving
// each one via the plugin Driver with the default-rule fallback, then
// either records it as external
// or kicks off beginFetch for a new internal module.
func (l *Loader) resolveStaticSources(mod *gmodule.Module, st *driveState) {
	for _, src := range mod.Sources {
		resolved, isFatal, err := l.resolveOne(src, mod.ID)
		if err != nil {
			if isFatal {
				st.fail(err)
			}
			continue
		}
		mod.ResolvedIDs[src] = resolved

		if resolved.External {
			if _, err := l.getOrCreateExternal(resolved.ID); err != nil {
				st.fail(err)
			}
			continue
		}
		l.beginFetch(resolved.ID, mod.ID, st)
	}
}

// resolveOne applies the resolution rules for a single raw
// specifier: the ExternalPredicate is consulted first, pre-resolution, and
// a match short-circuits the hook with no warning; otherwise a hook result
// wins outright; otherwise the default rule is a fatal UNRESOLVED_IMPORT
// for relative specifiers and a non-fatal external fallback (with a
// warning) for bare ones.
func (l *Loader) resolveOne(specifier, importer string) (gmodule.ResolvedID, bool, error) {
	if l.external != nil && l.external(specifier, importer, false) {
		return gmodule.ResolvedID{ID: specifier, External: true}, false, nil
	}

	hookResult, err := l.driver.ResolveID(specifier, importer)
	if err != nil {
		return gmodule.ResolvedID{}, true, diag.NewError(diag.CodeUnresolvedImport,
			fmt.Sprintf("Could not resolve %q from %q: %s", specifier, importer, err))
	}
	if hookResult != nil {
		return gmodule.ResolvedID{ID: hookResult.ID, External: hookResult.External}, false, nil
	}

	if isRelativeSpecifier(specifier) {
		return gmodule.ResolvedID{}, true, diag.NewError(diag.CodeUnresolvedImport,
			fmt.Sprintf("Could not resolve %q from %q", specifier, importer))
	}

	l.log.AddWarning(diag.CodeUnresolvedImportW, "", nil,
		fmt.Sprintf("%q is imported by %q but could not be resolved, and is being treated as external", specifier, importer))
	return gmodule.ResolvedID{ID: specifier, External: true}, false, nil
}

func isRelativeSpecifier(specifier string) bool {
	return len(specifier) > 0 && (specifier[0] == '.' || specifier[0] == '/')
}

// getOrCreateExternal registers id as external. An id already loaded as an
// internal Module cannot also become external: that would break the
// one-entity-per-id invariant, so it is an INVALID_EXTERNAL_ID error.
func (l *Loader) getOrCreateExternal(id string) (*gmodule.ExternalModule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.modulesByID[id]; ok {
		if ext, ok := existing.(*gmodule.ExternalModule); ok {
			return ext, nil
		}
		return nil, diag.NewError(diag.CodeInvalidExternalID,
			fmt.Sprintf("%q was resolved as external but is already loaded as an internal module", id))
	}
	ext := gmodule.NewExternalModule(id)
	l.modulesByID[id] = ext
	l.externalModules = append(l.externalModules, ext)
	return ext, nil
}

// resolveDynamicImports resolves every `import()` call site found in mod,
// strictly after its static sources are done. Failures here never abort
// the build: they are logged at debug level only.
func (l *Loader) resolveDynamicImports(mod *gmodule.Module, st *driveState) {
	for _, di := range mod.DynamicImports {
		result, err := l.driver.ResolveDynamicImport(di.Expression, mod.ID)
		if err != nil {
			l.log.AddDebug(fmt.Sprintf("dynamic import %q from %q failed to resolve: %s", di.Expression, mod.ID, err))
			continue
		}
		if result.Unresolved {
			continue
		}
		if result.Fragment != nil {
			di.Fragment = result.Fragment
			di.IsResolved = true
			continue
		}
		if !result.HasTarget {
			continue
		}

		resolved, _, err := l.resolveOne(result.Target, mod.ID)
		if err != nil {
			l.log.AddDebug(fmt.Sprintf("dynamic import target %q from %q failed to resolve: %s", result.Target, mod.ID, err))
			continue
		}
		di.Resolved = resolved
		di.IsResolved = true

		if resolved.External {
			if _, err := l.getOrCreateExternal(resolved.ID); err != nil {
				l.log.AddDebug(fmt.Sprintf("dynamic import target %q from %q: %s", result.Target, mod.ID, err))
				di.IsResolved = false
			}
			continue
		}
		l.beginFetch(resolved.ID, mod.ID, st)
	}
}

// computeExportsAll merges each module's own export names with its
// `export *` sources' own ExportsAll maps, first-seen wins, warning once
// per conflicting name. Export-star cycles make a single
// ordered pass potentially incomplete, so this iterates to a fixpoint
// (bounded by the module count, since each pass that makes progress adds at
// least one mapping somewhere).
func (l *Loader) computeExportsAll() {
	l.mu.Lock()
	mods := make([]*gmodule.Module, len(l.modules))
	copy(mods, l.modules)
	l.mu.Unlock()

	byID := make(map[string]*gmodule.Module, len(mods))
	for _, m := range mods {
		byID[m.ID] = m
	}

	reported := make(map[string]bool)
	maxPasses := len(mods) + 1
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for _, m := range mods {
			for name := range m.Exports {
				if _, ok := m.ExportsAll[name]; !ok {
					m.ExportsAll[name] = m.ID
					changed = true
				}
			}
			for _, src := range m.ExportAllSources {
				resolved, ok := m.ResolvedIDs[src]
				if !ok || resolved.External {
					continue
				}
				other, ok := byID[resolved.ID]
				if !ok {
					continue
				}
				for name, owner := range other.ExportsAll {
					if name == "default" {
						continue // `export *` never re-exports a default export
					}
					if existingOwner, ok := m.ExportsAll[name]; ok {
						if existingOwner != owner {
							key := m.ID + "\x00" + name
							if !reported[key] {
								reported[key] = true
								l.log.AddWarning(diag.CodeNamespaceConflict, "", nil,
									fmt.Sprintf("%q re-exports %q from both %q and %q; the first is used", m.ID, name, existingOwner, owner))
							}
						}
						continue
					}
					m.ExportsAll[name] = owner
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
}
