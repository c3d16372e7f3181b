// Package treeshake implements the monotone fixpoint inclusion pass:
// IncludeMarked drives each module's AST-level Include() repeatedly,
// in execution order, until a full pass makes no further progress.
//
// The loop owns only control flow; which statements a pass actually
// includes is the AST's business, and part/symbol bookkeeping belongs to
// the out-of-scope AST collaborator.
package treeshake

import "github.com/gobundle/graphcore/internal/gmodule"

// IncludeMarked runs the inclusion fixpoint loop. When
// enabled is true (mode 1), every entry module's exports are marked live up
// front and then each executed module's Include() runs until a pass sets no
// further needsAnotherPass flag. When enabled is false (mode 2), every
// module is fully included via IncludeAllInBundle instead, but the pass
// still runs once so namespace-import bindings resolve.
func IncludeMarked(orderedModules []*gmodule.Module, entryModules []*gmodule.Module, enabled bool) {
	if !enabled {
		for _, mod := range orderedModules {
			mod.AST.IncludeAllInBundle()
		}
		return
	}

	for _, entry := range entryModules {
		entry.AST.IncludeAllExports()
	}

	for {
		needsAnotherPass := false
		requestAnotherPass := func() { needsAnotherPass = true }

		for _, mod := range orderedModules {
			if !mod.IsExecuted {
				continue
			}
			mod.AST.Include(requestAnotherPass)
		}

		if !needsAnotherPass {
			break
		}
	}
}
