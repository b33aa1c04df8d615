package index

import "container/list"

// lruCache is a small bounded cache keyed by string, used by the indexers to
// skip a StatusDB read for hot keys (LAST_UP, isUp markers, bucket rows).
// Size 0 disables it entirely: Get always misses, Put is a no-op, so every
// read falls through to the store and indexer behaviour is unaffected by
// whether caching is on.
type lruCache struct {
	size  int
	ll    *list.List
	items map[string]*list.Element
}

type lruEntry struct {
	key   string
	value any
}

func newLRUCache(size int) *lruCache {
	if size <= 0 {
		return &lruCache{}
	}
	return &lruCache{size: size, ll: list.New(), items: make(map[string]*list.Element, size)}
}

func (c *lruCache) enabled() bool { return c.size > 0 }

func (c *lruCache) Get(key string) (any, bool) {
	if !c.enabled() {
		return nil, false
	}
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *lruCache) Put(key string, value any) {
	if !c.enabled() {
		return
	}
	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry).value = value
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruEntry{key: key, value: value})
	c.items[key] = el
	if c.ll.Len() > c.size {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).key)
		}
	}
}

func (c *lruCache) Delete(key string) {
	if !c.enabled() {
		return
	}
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}
