// Package hotcache keeps recently used decoded assets in memory so interactive
// lookups skip the persistent store entirely.
//
// The cache is bounded by an estimated byte cost rather than an item count,
// evicts approximately least-recently-used entries, and applies cost-aware
// admission: an item too large relative to the budget is not worth the entries
// it would displace and is rejected outright. Values are shared handles: Get
// hands back the same reference every caller sees, never a copy, so nothing
// stored here may be mutated after insertion.
package hotcache

import (
	"container/list"
	"sync"

	"aria/internal/cachekey"
)

// admissionDivisor caps a single admissible item at 1/8 of the budget.
// Anything larger would evict too much of the working set to pay off.
const admissionDivisor = 8

// Cache is a byte-cost-bounded approximate-LRU map.
type Cache struct {
	mu      sync.Mutex
	maxCost int64
	cost    int64
	order   *list.List // front = most recently used
	items   map[cachekey.Token]*list.Element

	hits      uint64
	misses    uint64
	evictions uint64
	rejected  uint64
}

type cacheItem struct {
	token cachekey.Token
	value any
	cost  int64
}

// New creates a cache bounded by maxCost estimated bytes.
func New(maxCost int64) *Cache {
	if maxCost <= 0 {
		maxCost = 1
	}
	return &Cache{
		maxCost: maxCost,
		order:   list.New(),
		items:   make(map[cachekey.Token]*list.Element),
	}
}

// Get returns the shared handle stored for token, marking it recently used.
func (c *Cache) Get(token cachekey.Token) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[token]
	if !ok {
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(element)
	c.hits++
	return element.Value.(*cacheItem).value, true
}

// Add inserts value under token with the given cost estimate. It reports
// whether the value was admitted. Re-adding an existing token replaces its
// value and cost.
func (c *Cache) Add(token cachekey.Token, value any, cost int64) bool {
	if cost <= 0 {
		cost = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cost > c.maxCost/admissionDivisor && cost > c.maxCost-c.cost {
		c.rejected++
		return false
	}

	if element, ok := c.items[token]; ok {
		item := element.Value.(*cacheItem)
		c.cost += cost - item.cost
		item.value = value
		item.cost = cost
		c.order.MoveToFront(element)
		c.evictToFit()
		return true
	}

	element := c.order.PushFront(&cacheItem{token: token, value: value, cost: cost})
	c.items[token] = element
	c.cost += cost
	c.evictToFit()
	return true
}

// Remove drops the entry for token if present.
func (c *Cache) Remove(token cachekey.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[token]; ok {
		c.removeElement(element)
	}
}

// RemoveKey drops every kind cached for key.
func (c *Cache) RemoveKey(key cachekey.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for token, element := range c.items {
		if token.Key == key {
			c.removeElement(element)
		}
	}
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[cachekey.Token]*list.Element)
	c.cost = 0
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cost returns the current total cost estimate.
func (c *Cache) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

// Stats summarizes cache effectiveness counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Rejected  uint64
	Entries   int
	Cost      int64
	MaxCost   int64
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Rejected:  c.rejected,
		Entries:   len(c.items),
		Cost:      c.cost,
		MaxCost:   c.maxCost,
	}
}

func (c *Cache) evictToFit() {
	for c.cost > c.maxCost {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.removeElement(back)
		c.evictions++
	}
}

func (c *Cache) removeElement(element *list.Element) {
	item := element.Value.(*cacheItem)
	c.order.Remove(element)
	delete(c.items, item.token)
	c.cost -= item.cost
}
