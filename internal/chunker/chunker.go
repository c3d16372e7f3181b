// Package chunker implements the Chunker: entry-point colouring
// by XOR'd fingerprint, partitioning surviving modules into Chunks, facade
// synthesis for entries that share a chunk with another module's code, and
// chunk-to-chunk linking.
//
// Two modules belong in the same chunk exactly when the same set of entry
// points reaches both. Rather than tracking that set explicitly, each entry
// XORs a fingerprint seeded from its name into every module it can reach:
// XOR commutes, so equal fingerprints mean equal reachability sets, and the
// seeds are wide enough that accidental collisions are negligible.
// Part/symbol-level codegen stays with the out-of-scope AST.
package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"

	"github.com/gobundle/graphcore/internal/diag"
	"github.com/gobundle/graphcore/internal/gmodule"
	"github.com/gobundle/graphcore/internal/loader"
)

// EntryModuleRef re-exports the loader's entry-reference shape so callers of
// this package don't need to import loader just to build a Chunk slice.
type EntryModuleRef = loader.EntryModuleRef

// Chunk is one output partition.
type Chunk struct {
	OrderedModules []*gmodule.Module
	EntryModules   []EntryModuleRef
	IsManualChunk  bool
	ManualAlias    string

	// FacadeModule is set when this chunk represents an entry module via
	// facade synthesis, or when exactly one entry module dominates a
	// non-facade chunk it shares with shared code.
	FacadeModule *gmodule.Module
	IsFacade     bool

	// Tainted is true when this chunk's entry exports cannot be rendered
	// verbatim because other entries' code also lives here; a facade chunk
	// exists to cover for it.
	Tainted bool

	// ImportsFrom/ExportsTo are populated by Link: which other chunks this
	// chunk needs bindings from, and which local names this chunk must
	// expose for cross-chunk imports to bind against.
	ImportsFrom map[*Chunk]bool
	ExportsTo   map[string]bool

	hashHex string
}

// seedHash derives the 10-byte cryptographic-hash-prefix seed for one entry
// or manual-chunk key.
func seedHash(key string) [10]byte {
	sum := sha1.Sum([]byte(key))
	var out [10]byte
	copy(out[:], sum[:10])
	return out
}

func xorInto(dst *[10]byte, seed [10]byte) {
	for i := range dst {
		dst[i] ^= seed[i]
	}
}

// Colour computes every internal module's EntryPointsHash: each entry's seed is XOR'd into every module statically reachable
// from it, then manual-chunk overrides XOR their own seed into exactly the
// modules they name and pin those modules' ChunkAlias.
func Colour(orderedModules []*gmodule.Module, entries []EntryModuleRef, manualChunkModules map[string][]*gmodule.Module, modulesByID map[string]gmodule.Entity) {
	for _, mod := range orderedModules {
		mod.EntryPointsHash = [10]byte{}
	}

	for _, ref := range entries {
		key := ref.Module.ID
		if ref.Alias != "" {
			key = ref.Alias
		}
		seed := seedHash(key)
		visitReachable(ref.Module, modulesByID, make(map[string]bool), func(m *gmodule.Module) {
			xorInto(&m.EntryPointsHash, seed)
		})
	}

	for alias, mods := range manualChunkModules {
		seed := seedHash(alias)
		for _, mod := range mods {
			xorInto(&mod.EntryPointsHash, seed)
			aliasCopy := alias
			mod.ChunkAlias = &aliasCopy
		}
	}
}

// visitReachable walks every module statically reachable from mod
// (inclusive), following ResolvedIDs and skipping externals, calling visit
// exactly once per reached module.
func visitReachable(mod *gmodule.Module, modulesByID map[string]gmodule.Entity, seen map[string]bool, visit func(*gmodule.Module)) {
	if seen[mod.ID] {
		return
	}
	seen[mod.ID] = true
	visit(mod)

	for _, src := range mod.Sources {
		resolved, ok := mod.ResolvedIDs[src]
		if !ok || resolved.External {
			continue
		}
		entity, ok := modulesByID[resolved.ID]
		if !ok {
			continue
		}
		if dep, ok := entity.(*gmodule.Module); ok {
			visitReachable(dep, modulesByID, seen, visit)
		}
	}
}

// AssignEntryAliases stamps each entry module with its declared alias, walking
// entries in reverse declaration order so the first-declared entry's alias
// wins when multiple entries share an underlying Module.
func AssignEntryAliases(entries []EntryModuleRef) {
	for i := len(entries) - 1; i >= 0; i-- {
		alias := entries[i].Alias
		entries[i].Module.ChunkAlias = &alias
	}
}

// Partition groups orderedModules by identical EntryPointsHash, preserving execution order both within each group and
// across the returned Chunk slice (chunks are emitted in the order their
// hash group was first encountered).
func Partition(orderedModules []*gmodule.Module, entries []EntryModuleRef) []*Chunk {
	entryByModule := make(map[*gmodule.Module]EntryModuleRef, len(entries))
	for _, ref := range entries {
		entryByModule[ref.Module] = ref
	}

	var order []string
	groups := make(map[string]*Chunk)

	for _, mod := range orderedModules {
		key := hex.EncodeToString(mod.EntryPointsHash[:])
		chunk, ok := groups[key]
		if !ok {
			chunk = &Chunk{hashHex: key, ImportsFrom: make(map[*Chunk]bool), ExportsTo: make(map[string]bool)}
			groups[key] = chunk
			order = append(order, key)
		}
		chunk.OrderedModules = append(chunk.OrderedModules, mod)
		if ref, isEntry := entryByModule[mod]; isEntry {
			chunk.EntryModules = append(chunk.EntryModules, ref)
		}
	}

	chunks := make([]*Chunk, 0, len(order))
	for _, key := range order {
		chunk := groups[key]
		assignFacade(chunk)
		chunks = append(chunks, chunk)
	}
	return chunks
}

// assignFacade picks the single entry module that dominates a chunk's
// rendering (facade synthesis assumes at most one dominant facade module
// per chunk): the first of the chunk's EntryModules, which Partition lists
// in execution order, not entry declaration order. A chunk with no entry
// module gets no FacadeModule.
func assignFacade(chunk *Chunk) {
	if len(chunk.EntryModules) == 0 {
		return
	}
	for i := len(chunk.EntryModules) - 1; i >= 0; i-- {
		chunk.FacadeModule = chunk.EntryModules[i].Module
	}
}

// SynthesizeFacades covers entries displaced from their own chunk: every entry
// module whose containing chunk's FacadeModule isn't itself gets an empty
// facade chunk appended after the main partition.
func SynthesizeFacades(chunks []*Chunk, entries []EntryModuleRef) []*Chunk {
	containing := make(map[*gmodule.Module]*Chunk, len(entries))
	for _, chunk := range chunks {
		for _, ref := range chunk.EntryModules {
			containing[ref.Module] = chunk
		}
	}

	var facades []*Chunk
	for _, ref := range entries {
		chunk, ok := containing[ref.Module]
		if !ok || chunk.FacadeModule == ref.Module {
			continue
		}
		facades = append(facades, &Chunk{
			EntryModules: []EntryModuleRef{ref},
			FacadeModule: ref.Module,
			IsFacade:     true,
			Tainted:      false,
			ImportsFrom:  make(map[*Chunk]bool),
			ExportsTo:    make(map[string]bool),
		})
	}
	return append(chunks, facades...)
}

// Link wires chunks to each other: for every bound import whose
// target module lives in a different chunk, record the dependency on the
// importing chunk and the required export name on the target chunk.
// Per-symbol rename bookkeeping is owned by codegen.
func Link(chunks []*Chunk, modulesByID map[string]gmodule.Entity) {
	chunkByModuleID := make(map[string]*Chunk)
	for _, chunk := range chunks {
		for _, mod := range chunk.OrderedModules {
			chunkByModuleID[mod.ID] = chunk
		}
	}

	for _, chunk := range chunks {
		for _, mod := range chunk.OrderedModules {
			for _, imp := range mod.ImportDescriptions {
				if !imp.IsBound || imp.Resolved.External {
					continue
				}
				if _, ok := modulesByID[imp.Resolved.ID]; !ok {
					continue
				}
				target, ok := chunkByModuleID[imp.Resolved.ID]
				if !ok || target == chunk {
					continue
				}
				chunk.ImportsFrom[target] = true
				target.ExportsTo[imp.Name] = true
			}
			// A pure `export {x} from 'y'` pulls x across chunks just like
			// an import would, without any local import descriptor.
			for _, re := range mod.Reexports {
				if re.Resolved.External {
					continue
				}
				if _, ok := modulesByID[re.Resolved.ID]; !ok {
					continue
				}
				target, ok := chunkByModuleID[re.Resolved.ID]
				if !ok || target == chunk {
					continue
				}
				chunk.ImportsFrom[target] = true
				target.ExportsTo[re.LocalName] = true
			}
		}
	}
}

// GenerateEntryExportsOrMarkAsTainted decides whether the chunk's entry
// exports can be rendered verbatim: they can only when the chunk holds no
// other entry's code. preserveModules chunks (exactly one module each) are
// never tainted.
func GenerateEntryExportsOrMarkAsTainted(chunk *Chunk) {
	if len(chunk.EntryModules) <= 1 {
		chunk.Tainted = false
		return
	}
	chunk.Tainted = true
}

// FilterEmpty drops chunks that are empty, have no entry modules, and
// aren't manual.
func FilterEmpty(chunks []*Chunk) []*Chunk {
	out := chunks[:0]
	for _, chunk := range chunks {
		if len(chunk.OrderedModules) == 0 && len(chunk.EntryModules) == 0 && !chunk.IsManualChunk {
			continue
		}
		out = append(out, chunk)
	}
	return out
}

// PreserveModules implements the preserveModules shortcut: every module
// becomes its own Chunk of one module.
func PreserveModules(orderedModules []*gmodule.Module, entries []EntryModuleRef) []*Chunk {
	entryByModule := make(map[*gmodule.Module]EntryModuleRef, len(entries))
	for _, ref := range entries {
		entryByModule[ref.Module] = ref
	}
	chunks := make([]*Chunk, 0, len(orderedModules))
	for _, mod := range orderedModules {
		chunk := &Chunk{
			OrderedModules: []*gmodule.Module{mod},
			ImportsFrom:    make(map[*Chunk]bool),
			ExportsTo:      make(map[string]bool),
		}
		if ref, ok := entryByModule[mod]; ok {
			chunk.EntryModules = []EntryModuleRef{ref}
			chunk.FacadeModule = mod
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// InlineDynamicImports implements the inlineDynamicImports shortcut:
// requires exactly one entry module, resolving dynamic imports statically
// into a single output chunk. More than one entry is fatal.
func InlineDynamicImports(orderedModules []*gmodule.Module, entries []EntryModuleRef) (*Chunk, error) {
	if len(entries) != 1 {
		return nil, diag.NewError(diag.CodeInternalError,
			"inlineDynamicImports requires exactly one entry module")
	}
	chunk := &Chunk{
		OrderedModules: orderedModules,
		EntryModules:   entries,
		FacadeModule:   entries[0].Module,
		ImportsFrom:    make(map[*Chunk]bool),
		ExportsTo:      make(map[string]bool),
	}
	return chunk, nil
}

// SortByHashForTest exposes a stable ordering helper for table-driven tests
// that want to compare chunk sets independent of map iteration order.
func SortByHashForTest(chunks []*Chunk) {
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].hashHex < chunks[j].hashHex })
}
