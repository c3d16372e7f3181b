// Package gmodule holds the Graph's data model: Module, ExternalModule,
// ResolvedID and their supporting record types. The parser and the AST's
// own tree-shaking rules are out-of-scope external collaborators, so the
// parsed representation a Module carries is reduced here
// to the minimal AST interface the Linker and Tree-shaker actually need to
// drive: binding imports to exports and running one monotone include pass.
package gmodule

// AST is the out-of-scope parsed-module representation. A real
// implementation would be backed by a concrete parser's syntax tree; this
// interface only names the operations the Graph core invokes on it.
type AST interface {
	// ExportedNames returns every name this module exports directly (not
	// counting `export *` sources, which the Module tracks separately).
	ExportedNames() []string

	// BindImport points the local name `localName` (imported from `source`
	// as `importedName`) at its binding in `target`. Called once per import
	// descriptor during the Linker's bindReferences pass.
	BindImport(localName string, target AST, importedName string)

	// BindNamespace points a `* as ns` import at the (possibly external)
	// module it imports. Namespace imports are always satisfiable, so this
	// never fails.
	BindNamespace(localName string, target AST)

	// IncludeAllExports marks every export of this module as reachable. It
	// is called once per entry module before the fixpoint loop starts
	// or is implied by IncludeAllInBundle (mode 2).
	IncludeAllExports()

	// Include runs one tree-shaking pass over this module's statements.
	// requestAnotherPass must be invoked whenever this pass discovers that
	// some OTHER module's binding just became needed, so the Tree-shaker
	// schedules at least one more global pass.
	Include(requestAnotherPass func())

	// IncludeAllInBundle marks every statement live unconditionally (tree-
	// shaking disabled) but still resolves namespace-import bindings.
	IncludeAllInBundle()
}
