package gmodule

// ImportClause is one `import {name as local} from 'source'` (or
// `import local from 'source'`, or `import * as local from 'source'` with
// ImportedName == "*") binding, as produced by the out-of-scope parser.
type ImportClause struct {
	LocalName    string
	ImportedName string // "*" for a namespace import
	Source       string
	Start        int
}

// ReexportClause is one `export {name as alias} from 'source'` binding.
type ReexportClause struct {
	ImportedName string
	ExportedAs   string
	Source       string
}

// DynamicImportSite is one `import()` call site found during parsing.
type DynamicImportSite struct {
	Expression string
	Alias      string
}

// ParsedModule is what the external transform hook hands back: every static
// fact the Loader/Linker need, and the opaque AST the Tree-shaker later
// drives.
type ParsedModule struct {
	AST AST

	Imports          []ImportClause
	Exports          []string
	Reexports        []ReexportClause
	ExportAllSources []string
	DynamicImports   []DynamicImportSite

	SideEffects SideEffectsKind
}

// Sources returns every raw import specifier this module statically depends
// on (imports, reexports, and `export *` sources), deduplicated in
// first-occurrence order. This is the set the Loader resolves and fetches.
func (p ParsedModule) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, imp := range p.Imports {
		add(imp.Source)
	}
	for _, re := range p.Reexports {
		add(re.Source)
	}
	for _, s := range p.ExportAllSources {
		add(s)
	}
	return out
}
