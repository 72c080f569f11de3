package progressive

import (
	"sync"
	"sync/atomic"
)

// Cache is the "already loaded" set shared by loaders. Entries live until
// Reset; concurrent inserts of the same URL are harmless.
type Cache struct {
	entries sync.Map // url -> *Loaded
	n       atomic.Int64
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{} }

// Has reports whether url finished loading.
func (c *Cache) Has(url string) bool {
	_, ok := c.entries.Load(url)
	return ok
}

// Get returns the loaded image for url.
func (c *Cache) Get(url string) (*Loaded, bool) {
	v, ok := c.entries.Load(url)
	if !ok {
		return nil, false
	}
	return v.(*Loaded), true
}

// Add records l under its URL. The first insert wins.
func (c *Cache) Add(l *Loaded) {
	if _, loaded := c.entries.LoadOrStore(l.URL, l); !loaded {
		c.n.Add(1)
	}
}

// Len returns the number of cached URLs.
func (c *Cache) Len() int { return int(c.n.Load()) }

// URLs returns the cached URLs in no particular order.
func (c *Cache) URLs() []string {
	var out []string
	c.entries.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	return out
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.entries.Range(func(k, _ any) bool {
		c.entries.Delete(k)
		return true
	})
	c.n.Store(0)
}
