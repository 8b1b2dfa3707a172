package render

import (
	"container/list"
	"sync"
)

// blockCache is an LRU of highlighted code blocks keyed by
// (theme, language, source). It keeps memory bounded in long sessions
// while avoiding re-highlighting blocks that did not change.
type blockCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	lruList *list.List
}

type cacheEntry struct {
	key  string
	html string
}

func newBlockCache(maxSize int) *blockCache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	return &blockCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lruList: list.New(),
	}
}

// Get returns the cached HTML for key. A hit moves the entry to the front.
func (c *blockCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lruList.MoveToFront(elem)
		return elem.Value.(*cacheEntry).html, true
	}
	return "", false
}

// Put stores html under key, evicting the least recently used entry when
// the cache is full.
func (c *blockCache) Put(key, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value.(*cacheEntry).html = html
		return
	}

	if c.lruList.Len() >= c.maxSize {
		if oldest := c.lruList.Back(); oldest != nil {
			delete(c.items, oldest.Value.(*cacheEntry).key)
			c.lruList.Remove(oldest)
		}
	}

	c.items[key] = c.lruList.PushFront(&cacheEntry{key: key, html: html})
}

// Clear drops every entry.
func (c *blockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lruList.Init()
}

func (c *blockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
