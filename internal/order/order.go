// Package order computes the deterministic module execution order: a
// dependency-first (post-order) traversal from the entry modules, the same
// ordering rule ES module evaluation itself uses. Cycles are tolerated (a
// module already in progress is skipped rather than revisited) and
// reported once per distinct cycle.
package order

import (
	"strings"

	"github.com/gobundle/graphcore/internal/diag"
	"github.com/gobundle/graphcore/internal/gmodule"
	"github.com/gobundle/graphcore/internal/logger"
)

const (
	unvisited = 0
	visiting  = 1
	done      = 2
)

// Compute returns every internal module reachable from entryModules, in
// dependency-first order: a module never appears before all of its
// non-cyclic static dependencies. Modules unreachable from any entry (would
// only happen if the Loader discovered a module some other way) are
// appended afterward in modules' original order, so the result always
// contains exactly the same set as modules.
func Compute(entryModules []*gmodule.Module, modules []*gmodule.Module, modulesByID map[string]gmodule.Entity, log *logger.Log) []*gmodule.Module {
	state := make(map[string]int, len(modules))
	var ordered []*gmodule.Module
	var stack []string
	reportedCycles := make(map[string]bool)

	var visit func(mod *gmodule.Module)
	visit = func(mod *gmodule.Module) {
		switch state[mod.ID] {
		case done:
			return
		case visiting:
			reportCycle(log, reportedCycles, stack, mod.ID)
			return
		}
		state[mod.ID] = visiting
		stack = append(stack, mod.ID)

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
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		state[mod.ID] = done
		ordered = append(ordered, mod)
	}

	for _, ref := range entryModules {
		visit(ref)
	}
	for _, mod := range modules {
		visit(mod)
	}

	return ordered
}

// reportCycle emits one CIRCULAR_DEPENDENCY warning naming the cycle path,
// deduplicated so the same cycle (reached from different entry points)
// isn't reported twice.
func reportCycle(log *logger.Log, reported map[string]bool, stack []string, closingID string) {
	start := -1
	for i, id := range stack {
		if id == closingID {
			start = i
			break
		}
	}
	if start == -1 {
		return
	}
	cycle := append(append([]string{}, stack[start:]...), closingID)
	key := strings.Join(cycle, "\x00")
	if reported[key] {
		return
	}
	reported[key] = true

	log.AddWarning(diag.CodeCircularDependency, "", nil,
		"Circular dependency: "+strings.Join(cycle, " -> "))
}
