package cache

import "testing"

func TestModuleCacheRequiresByteIdenticalSource(t *testing.T) {
	c := NewModuleCache()
	c.Store(ModuleCacheEntry{ID: "a", OriginalCode: "const x = 1"})

	if _, ok := c.Lookup("a", "const x = 1"); !ok {
		t.Fatalf("expected a cache hit on byte-identical source")
	}
	if _, ok := c.Lookup("a", "const x = 2"); ok {
		t.Fatalf("expected a cache miss on changed source")
	}
}

func TestModuleCacheRejectsCustomTransform(t *testing.T) {
	c := NewModuleCache()
	c.Store(ModuleCacheEntry{ID: "a", OriginalCode: "x", HasCustomTransform: true})

	if _, ok := c.Lookup("a", "x"); ok {
		t.Fatalf("expected a cache miss when the entry carries a customTransformCache marker")
	}
}

func TestPluginCacheEvictsStaleEntries(t *testing.T) {
	pc := NewPluginCache()
	pc.Set("myplugin", "key", 42)

	// Not touched for 2 builds in a row; with cacheExpiry 2 the second
	// end-of-build pass brings its counter to 2 and evicts it.
	pc.EvictStale(2)
	pc.EvictStale(2)

	if _, ok := pc.Get("myplugin", "key"); ok {
		t.Fatalf("expected entry to be evicted once its counter reached cacheExpiry untouched")
	}
}

func TestPluginCacheGetResetsAccessCounter(t *testing.T) {
	pc := NewPluginCache()
	pc.Set("myplugin", "key", 42)

	pc.EvictStale(3)
	if _, ok := pc.Get("myplugin", "key"); !ok {
		t.Fatalf("entry evicted too early")
	}
	pc.EvictStale(3)
	pc.EvictStale(3)
	if _, ok := pc.Get("myplugin", "key"); !ok {
		t.Fatalf("Get should have reset the access counter, keeping the entry alive")
	}
}
