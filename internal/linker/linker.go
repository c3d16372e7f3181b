// Package linker implements the two-pass Linker: linkDependencies
// resolves every import/reexport to a concrete Module or ExternalModule, and
// bindReferences matches each one against the target's declared exports,
// binding the out-of-scope AST or reporting NON_EXISTENT_EXPORT.
//
// The two passes stay separate on purpose: every clause gets a concrete
// module reference first, so binding can then run over the whole graph
// without re-deriving resolution. Codegen and chunk responsibilities belong
// to the chunker package instead.
package linker

import (
	"fmt"

	"github.com/gobundle/graphcore/internal/diag"
	"github.com/gobundle/graphcore/internal/gmodule"
	"github.com/gobundle/graphcore/internal/logger"
)

// Linker binds every module's imports/reexports to their targets.
type Linker struct {
	log                *logger.Log
	shimMissingExports bool
}

func New(log *logger.Log, shimMissingExports bool) *Linker {
	return &Linker{log: log, shimMissingExports: shimMissingExports}
}

// Link runs both passes over every internal module. modulesByID must
// contain every Module and ExternalModule referenced by any ResolvedID in
// the set, keyed by its id (the Graph's own module table).
func (lk *Linker) Link(modules []*gmodule.Module, modulesByID map[string]gmodule.Entity) error {
	lk.linkDependencies(modules)
	return lk.bindReferences(modules, modulesByID)
}

// linkDependencies copies each static dependency's already-resolved id
// (populated by the Loader while fetching) onto the specific import/reexport
// clause that requested it, so bindReferences has a single ResolvedID to
// work from per clause instead of re-deriving it from the raw specifier.
func (lk *Linker) linkDependencies(modules []*gmodule.Module) {
	for _, mod := range modules {
		for _, imp := range mod.ImportDescriptions {
			imp.Resolved = mod.ResolvedIDs[imp.Source]
		}
		for _, re := range mod.Reexports {
			re.Resolved = mod.ResolvedIDs[re.Source]
		}
		for _, di := range mod.DynamicImports {
			if !di.IsResolved {
				continue
			}
			// Dynamic imports already carry their own Resolved field, set
			// directly by the Loader (they aren't keyed through Sources).
		}
	}
}

// bindReferences matches every import and reexport against its target's
// declared export set. A target that is itself a Module must have finished
// computeExportsAll (the Loader guarantees this: linking only starts after
// discovery fully joins). A missing export is either shimmed in place
// or reported as NON_EXISTENT_EXPORT and
// left unbound.
func (lk *Linker) bindReferences(modules []*gmodule.Module, modulesByID map[string]gmodule.Entity) error {
	for _, mod := range modules {
		for localName, imp := range mod.ImportDescriptions {
			lk.bindOne(imp.Name, imp.Resolved, modulesByID, func(targetAST gmodule.AST) {
				if imp.Name == "*" {
					mod.AST.BindNamespace(localName, targetAST)
				} else {
					mod.AST.BindImport(localName, targetAST, imp.Name)
				}
				imp.IsBound = true
			}, func() {
				imp.IsMissing = true
				lk.log.AddWarning(diag.CodeNonExistentExport, "", nil,
					fmt.Sprintf("%q imports %q from %q, but that export does not exist", mod.ID, imp.Name, imp.Resolved.ID))
			})
		}
		for alias, re := range mod.Reexports {
			lk.bindOne(re.LocalName, re.Resolved, modulesByID, func(targetAST gmodule.AST) {
				mod.AST.BindImport(alias, targetAST, re.LocalName)
			}, func() {
				lk.log.AddWarning(diag.CodeNonExistentExport, "", nil,
					fmt.Sprintf("%q re-exports %q from %q, but that export does not exist", mod.ID, re.LocalName, re.Resolved.ID))
			})
		}
	}
	return nil
}

// bindOne resolves a single name against target, calling onBound with the
// target's AST when the export exists (or is external, where existence
// can't be checked), and onMissing otherwise (after shimming, if enabled).
// The caller owns the missing-export warning so each clause kind can word
// it for what was written in source; bindOne itself never logs.
func (lk *Linker) bindOne(name string, resolved gmodule.ResolvedID, modulesByID map[string]gmodule.Entity, onBound func(gmodule.AST), onMissing func()) {
	entity, ok := modulesByID[resolved.ID]
	if !ok {
		return // unresolved import already reported fatally by the Loader
	}

	if ext, ok := entity.(*gmodule.ExternalModule); ok {
		if name != "*" {
			ext.UsedImports[name] = true
		} else {
			ext.ExportsNamespace = true
		}
		onBound(nil)
		return
	}

	target, ok := entity.(*gmodule.Module)
	if !ok {
		return
	}

	if name == "*" {
		onBound(target.AST)
		return
	}

	if name == "default" && !target.Exports["default"] {
		if lk.shimMissingExports {
			target.Exports["default"] = true
			target.ExportsAll["default"] = target.ID
			onBound(target.AST)
			return
		}
	}

	if _, ok := target.ExportsAll[name]; ok {
		onBound(target.AST)
		return
	}

	if lk.shimMissingExports {
		target.Exports[name] = true
		target.ExportsAll[name] = target.ID
		onBound(target.AST)
		return
	}

	onMissing()
}
