package loader

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gobundle/graphcore/internal/cache"
	"github.com/gobundle/graphcore/internal/gmodule"
	"github.com/gobundle/graphcore/internal/logger"
	"github.com/gobundle/graphcore/internal/plugin"
)

// fakeAST is a minimal gmodule.AST stand-in; the loader never inspects it,
// it only needs something non-nil to attach.
type fakeAST struct{ id string }

func (a *fakeAST) ExportedNames() []string                { return nil }
func (a *fakeAST) BindImport(string, gmodule.AST, string) {}
func (a *fakeAST) BindNamespace(string, gmodule.AST) {}
func (a *fakeAST) IncludeAllExports() {}
func (a *fakeAST) Include(func()) {}
func (a *fakeAST) IncludeAllInBundle() {}

// fixture describes one fake module's static shape, keyed by id in a flat
// namespace (ids double as specifiers for test simplicity).
type fixture struct {
	imports          []gmodule.ImportClause
	exports          []string
	reexports        []gmodule.ReexportClause
	exportAllSources []string
	dynamicImports   []string
}

type fakeDriver struct {
	fixtures map[string]fixture
	external map[string]bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{fixtures: make(map[string]fixture), external: make(map[string]bool)}
}

func (d *fakeDriver) add(id string, f fixture) { d.fixtures[id] = f }

func (d *fakeDriver) ResolveID(specifier, importer string) (*plugin.ResolveIDResult, error) {
	if d.external[specifier] {
		return &plugin.ResolveIDResult{ID: specifier, External: true}, nil
	}
	if _, ok := d.fixtures[specifier]; ok {
		return &plugin.ResolveIDResult{ID: specifier, External: false}, nil
	}
	return nil, nil
}

func (d *fakeDriver) Load(id string) (plugin.LoadResult, error) {
	if _, ok := d.fixtures[id]; !ok {
		return plugin.LoadResult{}, fmt.Errorf("no such module %q", id)
	}
	return plugin.LoadResult{Code: id}, nil
}

func (d *fakeDriver) Transform(id string, code string) (gmodule.ParsedModule, error) {
	f := d.fixtures[id]
	parsed := gmodule.ParsedModule{
		AST:              &fakeAST{id: id},
		Imports:          f.imports,
		Exports:          f.exports,
		Reexports:        f.reexports,
		ExportAllSources: f.exportAllSources,
	}
	for _, expr := range f.dynamicImports {
		parsed.DynamicImports = append(parsed.DynamicImports, gmodule.DynamicImportSite{Expression: expr})
	}
	return parsed, nil
}

// ResolveDynamicImport treats the literal expression text as the target,
// the way a real driver would for a string-literal import() argument.
func (d *fakeDriver) ResolveDynamicImport(expression, importer string) (plugin.DynamicImportResult, error) {
	if expression == "" {
		return plugin.DynamicImportResult{Unresolved: true}, nil
	}
	return plugin.DynamicImportResult{Target: expression, HasTarget: true}, nil
}

func (d *fakeDriver) WatchChange(id string) {}

func namespaceImport(local, source string) gmodule.ImportClause {
	return gmodule.ImportClause{LocalName: local, ImportedName: "*", Source: source}
}

func moduleIDs(mods []*gmodule.Module) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.ID
	}
	return out
}

func TestAddEntryModulesFetchesTransitiveDependencies(t *testing.T) {
	d := newFakeDriver()
	d.add("a", fixture{imports: []gmodule.ImportClause{namespaceImport("b", "b")}})
	d.add("b", fixture{imports: []gmodule.ImportClause{namespaceImport("c", "c")}})
	d.add("c", fixture{})

	log := logger.NewLog(nil)
	l := New(d, nil, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "main", Specifier: "a"}})
	<-done
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	mods := l.Modules()
	if len(mods) != 3 {
		t.Fatalf("expected 3 modules fetched, got %d: %v", len(mods), moduleIDs(mods))
	}
	if !result.EntryModules[0].Module.IsEntryPoint {
		t.Fatalf("expected the fetched entry module to be flagged IsEntryPoint")
	}
}

func TestAddEntryModulesCoalescesSharedDependency(t *testing.T) {
	d := newFakeDriver()
	d.add("shared", fixture{})
	d.add("x", fixture{imports: []gmodule.ImportClause{namespaceImport("s", "shared")}})
	d.add("y", fixture{imports: []gmodule.ImportClause{namespaceImport("s", "shared")}})

	log := logger.NewLog(nil)
	l := New(d, nil, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "x", Specifier: "x"}, {Alias: "y", Specifier: "y"}})
	<-done
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	mods := l.Modules()
	if len(mods) != 3 {
		t.Fatalf("expected exactly 3 distinct modules (shared coalesced), got %d: %v", len(mods), moduleIDs(mods))
	}
}

func TestAddEntryModulesRejectsDuplicateEntry(t *testing.T) {
	d := newFakeDriver()
	d.add("a", fixture{})

	log := logger.NewLog(nil)
	l := New(d, nil, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "one", Specifier: "a"}, {Alias: "two", Specifier: "a"}})
	<-done
	if result.Err == nil {
		t.Fatalf("expected DUPLICATE_ENTRY_POINTS error")
	}
	if !strings.Contains(result.Err.Error(), "Duplicate entry point") {
		t.Fatalf("got error %v, want duplicate entry point message", result.Err)
	}
}

// An unresolvable relative import is fatal, even when the external
// predicate declines it.
func TestUnresolvedRelativeImportIsFatal(t *testing.T) {
	d := newFakeDriver()
	d.add("a", fixture{imports: []gmodule.ImportClause{namespaceImport("m", "./missing")}})

	log := logger.NewLog(nil)
	l := New(d, func(string, string, bool) bool { return false }, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "main", Specifier: "a"}})
	<-done
	if result.Err == nil {
		t.Fatalf("expected a fatal UNRESOLVED_IMPORT error")
	}
	if !strings.Contains(result.Err.Error(), "./missing") {
		t.Fatalf("got error %v, want it to name the missing specifier", result.Err)
	}
}

// Bare unresolved specifiers fall back to external with a warning instead
// of failing the build.
func TestUnresolvedBareImportBecomesExternalWithWarning(t *testing.T) {
	d := newFakeDriver()
	d.add("a", fixture{imports: []gmodule.ImportClause{namespaceImport("dep", "left-pad")}})

	log := logger.NewLog(nil)
	l := New(d, nil, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "main", Specifier: "a"}})
	<-done
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	ext := l.ExternalModules()
	if len(ext) != 1 || ext[0].ID != "left-pad" {
		t.Fatalf("expected left-pad to be registered external, got %v", ext)
	}

	var sawWarning bool
	for _, msg := range log.Msgs() {
		if msg.Kind == logger.Warning {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Fatalf("expected an UNRESOLVED_IMPORT warning")
	}
}

// A specifier the external predicate claims pre-resolution becomes external
// under its raw id without consulting the resolveId hook and without any
// warning.
func TestExternalPredicateShortCircuitsWithoutWarning(t *testing.T) {
	d := newFakeDriver()
	d.add("a", fixture{imports: []gmodule.ImportClause{namespaceImport("fs", "fs")}})
	d.add("fs", fixture{}) // would resolve internally if the hook were asked

	log := logger.NewLog(nil)
	l := New(d, func(id, importer string, isResolved bool) bool { return id == "fs" }, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "main", Specifier: "a"}})
	<-done
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	ext := l.ExternalModules()
	if len(ext) != 1 || ext[0].ID != "fs" {
		t.Fatalf("expected fs to be registered external, got %v", ext)
	}
	for _, msg := range log.Msgs() {
		if msg.Kind == logger.Warning {
			t.Fatalf("expected no warning, got %q", msg.Data.Text)
		}
	}
}

// A dynamic import resolving to an external id registers the ExternalModule
// under that id; the importer must never end up in the module table under
// the external's id.
func TestDynamicImportExternalRegistersExternalModule(t *testing.T) {
	d := newFakeDriver()
	d.add("a", fixture{dynamicImports: []string{"heavy"}})
	d.external["heavy"] = true

	log := logger.NewLog(nil)
	l := New(d, nil, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "main", Specifier: "a"}})
	<-done
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	ext := l.ExternalModules()
	if len(ext) != 1 || ext[0].ID != "heavy" {
		t.Fatalf("expected heavy to be registered external, got %v", ext)
	}
	for _, m := range l.Modules() {
		if m.ID == "heavy" {
			t.Fatalf("heavy must not also exist as an internal module")
		}
	}

	var a *gmodule.Module
	for _, m := range l.Modules() {
		if m.ID == "a" {
			a = m
		}
	}
	if a == nil || len(a.DynamicImports) != 1 {
		t.Fatalf("module a with one dynamic import not found")
	}
	di := a.DynamicImports[0]
	if !di.IsResolved || !di.Resolved.External || di.Resolved.ID != "heavy" {
		t.Fatalf("dynamic import not resolved external as heavy: %+v", di)
	}
}

// A dynamic import resolving internally fetches the target module like a
// static dependency. The fetch starts once the importer's static sources
// are resolved; it is not held back until those static fetches finish.
func TestDynamicImportInternalFetchesTarget(t *testing.T) {
	d := newFakeDriver()
	d.add("lazy", fixture{exports: []string{"x"}})
	d.add("a", fixture{dynamicImports: []string{"lazy"}})

	log := logger.NewLog(nil)
	l := New(d, nil, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "main", Specifier: "a"}})
	<-done
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(l.Modules()) != 2 {
		t.Fatalf("expected a and lazy fetched, got %v", moduleIDs(l.Modules()))
	}
}

// a does export * from b and export * from c; both b and c export x.
// Expect one NAMESPACE_CONFLICT warning naming x, b, c; a.ExportsAll["x"]
// binds to the first (b).
func TestComputeExportsAllReportsNamespaceConflictFirstWins(t *testing.T) {
	d := newFakeDriver()
	d.add("b", fixture{exports: []string{"x"}})
	d.add("c", fixture{exports: []string{"x"}})
	d.add("a", fixture{exportAllSources: []string{"b", "c"}})

	log := logger.NewLog(nil)
	l := New(d, nil, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "main", Specifier: "a"}})
	<-done
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	var a *gmodule.Module
	for _, m := range l.Modules() {
		if m.ID == "a" {
			a = m
		}
	}
	if a == nil {
		t.Fatalf("module a not found")
	}
	if a.ExportsAll["x"] != "b" {
		t.Fatalf("expected a.ExportsAll[x] == b (first-seen wins), got %q", a.ExportsAll["x"])
	}

	var conflicts []string
	for _, msg := range log.Msgs() {
		if msg.Code == "NAMESPACE_CONFLICT" {
			conflicts = append(conflicts, msg.Data.Text)
		}
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected exactly one NAMESPACE_CONFLICT warning, got %v", conflicts)
	}
	if !strings.Contains(conflicts[0], "x") || !strings.Contains(conflicts[0], "b") || !strings.Contains(conflicts[0], "c") {
		t.Fatalf("warning %q does not name x, b and c", conflicts[0])
	}
}

// Re-fetching an id that is already in flight or already loaded as a Module
// returns the same pointer rather than duplicating work: entry and mid both
// import shared.
func TestBeginFetchCoalescesInFlightAndCompletedModules(t *testing.T) {
	d := newFakeDriver()
	d.add("shared", fixture{})
	d.add("mid", fixture{imports: []gmodule.ImportClause{namespaceImport("s", "shared")}})
	d.add("entry", fixture{imports: []gmodule.ImportClause{namespaceImport("s", "shared"), namespaceImport("m", "mid")}})

	log := logger.NewLog(nil)
	l := New(d, nil, false, log, cache.NewModuleCache())

	done, result := l.AddEntryModules([]EntrySpecifier{{Alias: "main", Specifier: "entry"}})
	<-done
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	seen := make(map[string]*gmodule.Module)
	for _, m := range l.Modules() {
		if prior, ok := seen[m.ID]; ok {
			t.Fatalf("id %q produced two distinct Module pointers: %p vs %p", m.ID, prior, m)
		}
		seen[m.ID] = m
	}
}
