package gmodule

// ResolvedID is the normalized outcome of resolving one import specifier.
type ResolvedID struct {
	ID       string
	External bool
}

// ImportDescription records one `import {name as local} from 'source'`
// clause, keyed by its local name on the owning Module.
type ImportDescription struct {
	Name   string // the imported name, or "*" for a namespace import
	Source string // the raw specifier as written, e.g. "./util.js"
	Start  int    // byte offset, for diagnostics

	// Resolved is populated once the Linker's linkDependencies pass runs.
	Resolved  ResolvedID
	IsBound   bool // true once bindReferences has matched this import to a concrete export
	IsMissing bool // true if linking could not find the named export (NON_EXISTENT_EXPORT)
}

// ReexportDescription records one `export {name as alias} from 'source'`
// clause.
type ReexportDescription struct {
	LocalName string
	Source    string
	Resolved  ResolvedID
}

// DynamicImport records one `import()` call site.
type DynamicImport struct {
	Expression string // source text of the argument, for diagnostics/logging only
	Alias      string

	Resolved   ResolvedID
	IsResolved bool // false until resolveDynamicImport settles (never retried)
	Fragment   AST  // set when resolveDynamicImport returned a pre-parsed fragment directly
}

// SideEffectsKind classifies why a module is believed to have, or lack,
// side effects.
type SideEffectsKind uint8

const (
	HasSideEffects SideEffectsKind = iota
	NoSideEffectsDeclared
)

// Module is the parsed-module record owned exclusively by the Graph that
// created it. It is created empty and inserted into
// the Graph's module table before being loaded, so that cyclic imports
// terminate on re-entry.
type Module struct {
	ID string

	OriginalCode string // the exact source text passed to transform, used as the cache key
	AST          AST    // nil until Attach is called

	// Sources holds the raw import specifiers as written in source, in
	// first-occurrence order.
	Sources []string

	// ResolvedIDs maps each entry of Sources to its resolved id. Populated
	// incrementally as the Loader resolves each one; must be fully
	// populated before linking begins.
	ResolvedIDs map[string]ResolvedID

	// ImportDescriptions maps a local binding name to the import clause
	// that introduced it.
	ImportDescriptions map[string]*ImportDescription

	// Exports is the set of names this module exports directly (not
	// counting `export *`).
	Exports map[string]bool

	// Reexports holds `export {x} from 'y'` / `export {x as z} from 'y'`
	// clauses, keyed by the exported alias.
	Reexports map[string]*ReexportDescription

	// ExportAllSources holds the raw specifiers of every `export * from`
	// statement, in source order.
	ExportAllSources []string

	// ExportsAll maps an exported name to the id of the module that
	// actually declares it, merged from this module's own exports plus
	// each `export *` source's own ExportsAll.
	ExportsAll map[string]string

	DynamicImports []*DynamicImport

	IsEntryPoint bool
	IsExecuted   bool

	// ChunkAlias is set by the Chunker: either to a manual-chunk alias, or
	// to an entry's declared alias when this module is an entry module.
	ChunkAlias *string

	// EntryPointsHash is the 10-byte colouring fingerprint computed by the
	// Chunker: modules with identical hashes share a chunk.
	EntryPointsHash [10]byte

	SideEffects SideEffectsKind

	// CustomTransformCache marks a module whose Load/Transform cycle wrote
	// a marker disqualifying it from the persistent-cache fast path.
	CustomTransformCache bool

	// TransformAssets are opaque byproducts of a prior transform (e.g.
	// extracted source maps) that the persistent cache re-emits verbatim
	// on a cache hit instead of re-running transform.
	TransformAssets [][]byte
}

// NewModule creates the empty placeholder Module inserted into the Graph's
// module table before loading starts.
func NewModule(id string) *Module {
	return &Module{
		ID:                 id,
		ResolvedIDs:        make(map[string]ResolvedID),
		ImportDescriptions: make(map[string]*ImportDescription),
		Exports:            make(map[string]bool),
		Reexports:          make(map[string]*ReexportDescription),
		ExportsAll:         make(map[string]string),
	}
}

// ApplyParsed records the loaded/parsed representation on a previously-empty
// Module: the AST, its static sources, and every
// import/export/reexport/dynamic-import fact the Linker and Tree-shaker
// will need. Sources are resolved separately, by the Loader.
func (m *Module) ApplyParsed(originalCode string, parsed ParsedModule) {
	m.OriginalCode = originalCode
	m.AST = parsed.AST
	m.Sources = parsed.Sources()
	m.SideEffects = parsed.SideEffects

	for _, imp := range parsed.Imports {
		m.ImportDescriptions[imp.LocalName] = &ImportDescription{
			Name:   imp.ImportedName,
			Source: imp.Source,
			Start:  imp.Start,
		}
	}
	for _, name := range parsed.Exports {
		m.Exports[name] = true
	}
	for _, re := range parsed.Reexports {
		m.Reexports[re.ExportedAs] = &ReexportDescription{
			LocalName: re.ImportedName,
			Source:    re.Source,
		}
	}
	m.ExportAllSources = parsed.ExportAllSources
	for _, d := range parsed.DynamicImports {
		m.DynamicImports = append(m.DynamicImports, &DynamicImport{
			Expression: d.Expression,
			Alias:      d.Alias,
		})
	}
}

func (m *Module) EntityID() string { return m.ID }

// ExternalModule marks an id whose contents are never loaded; every
// reference to it becomes an import statement in generated output (out of
// scope here, but the flag is what downstream codegen would key off of).
type ExternalModule struct {
	ID               string
	ExportsNamespace bool

	// UsedImports tracks which named imports were actually referenced, for
	// a plugin/consumer that wants to know what to keep in the emitted
	// `import {...} from` clause. The graph core itself never prunes these.
	UsedImports map[string]bool
}

func NewExternalModule(id string) *ExternalModule {
	return &ExternalModule{ID: id, UsedImports: make(map[string]bool)}
}

func (m *ExternalModule) EntityID() string { return m.ID }

// Entity is the tagged Module-or-ExternalModule variant stored in the
// Graph's module table. Use a type switch to recover the concrete kind.
type Entity interface {
	EntityID() string
}
