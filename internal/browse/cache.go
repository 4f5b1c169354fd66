// # internal/browse/cache.go
package browse

import (
	"sync"

	"clbr/internal/entity"
)

type cacheEntry struct {
	dict entity.Map
	file string
}

// cache memoizes scan results per module name. It is shared by the
// recursive reads a superclass link phase can trigger, so all access is
// serialized.
type cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newCache() *cache {
	return &cache{entries: make(map[string]cacheEntry)}
}

func (c *cache) Get(module string) (entity.Map, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[module]
	return e.dict, ok
}

func (c *cache) Put(module, file string, dict entity.Map) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[module] = cacheEntry{dict: dict, file: file}
}

func (c *cache) Delete(module string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, module)
}

// DeleteByFile drops every module backed by the given file.
func (c *cache) DeleteByFile(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for module, e := range c.entries {
		if e.file == file {
			delete(c.entries, module)
		}
	}
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
