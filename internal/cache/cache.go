// Package cache implements the two caches the Graph core owns across a
// single build, and across builds when a caller threads a previous build's
// cache back in: the persistent module cache and the plugin cache with its
// per-entry access counter. Actual on-disk (de)serialization is out of
// scope; these types only pin down the shape a caller would serialize.
package cache

import "sync"

// ModuleCacheEntry is one entry of the persistent module cache's
// "modules" array. AST is left opaque (interface{}) because the
// parsed-module representation is itself an out-of-scope collaborator;
// a real implementation would store whatever its parser can round-trip.
type ModuleCacheEntry struct {
	ID                 string
	OriginalCode       string
	HasCustomTransform bool
	AST                interface{}
	TransformAssets    [][]byte
}

// ModuleCache holds the "modules" half of a previous build's cache. A
// module's cached entry is only reused when its OriginalCode matches
// byte-for-byte and it carries no HasCustomTransform marker.
type ModuleCache struct {
	Entries map[string]ModuleCacheEntry
}

func NewModuleCache() *ModuleCache {
	return &ModuleCache{Entries: make(map[string]ModuleCacheEntry)}
}

// Lookup returns the cached entry for id if it is still valid for reuse
// against originalCode.
func (c *ModuleCache) Lookup(id string, originalCode string) (ModuleCacheEntry, bool) {
	if c == nil {
		return ModuleCacheEntry{}, false
	}
	entry, ok := c.Entries[id]
	if !ok || entry.HasCustomTransform || entry.OriginalCode != originalCode {
		return ModuleCacheEntry{}, false
	}
	return entry, true
}

func (c *ModuleCache) Store(entry ModuleCacheEntry) {
	c.Entries[entry.ID] = entry
}

// pluginCacheEntry pairs a cached value with the access counter that
// drives end-of-build eviction.
type pluginCacheEntry struct {
	accessCount int
	value       interface{}
}

// PluginCache namespaces cache entries by plugin name
// ({plugins: {pluginName -> {key -> [accessCount, value]}}}).
type PluginCache struct {
	mu         sync.Mutex
	namespaces map[string]map[string]*pluginCacheEntry
}

func NewPluginCache() *PluginCache {
	return &PluginCache{namespaces: make(map[string]map[string]*pluginCacheEntry)}
}

// Get looks up a cached value and marks it as touched during this build
// (resets its access counter), so EvictStale won't reap it at the end.
func (c *PluginCache) Get(pluginName, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.namespaces[pluginName]
	if !ok {
		return nil, false
	}
	entry, ok := ns[key]
	if !ok {
		return nil, false
	}
	entry.accessCount = 0
	return entry.value, true
}

func (c *PluginCache) Set(pluginName, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.namespaces[pluginName]
	if !ok {
		ns = make(map[string]*pluginCacheEntry)
		c.namespaces[pluginName] = ns
	}
	ns[key] = &pluginCacheEntry{value: value}
}

// EvictStale pre-increments every entry's access counter and evicts any
// entry that reaches cacheExpiry without having been touched (Get'd) during
// the build, then deletes any namespace left empty.
func (c *PluginCache) EvictStale(cacheExpiry int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, ns := range c.namespaces {
		for key, entry := range ns {
			entry.accessCount++
			if entry.accessCount >= cacheExpiry {
				delete(ns, key)
			}
		}
		if len(ns) == 0 {
			delete(c.namespaces, name)
		}
	}
}
