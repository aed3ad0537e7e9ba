package bufferpool

import (
	"container/list"
	"errors"
	"sync"

	"github.com/tuannm99/pagedb/internal/storage"
)

var (
	ErrCacheFull = errors.New("bufferpool: cache is full")

	// ErrAllPagesDirty is the eviction failure: every cached page is dirty,
	// so under NO-STEAL nothing may be written out to make room.
	ErrAllPagesDirty = errors.New("bufferpool: all pages are dirty")
)

type cacheEntry struct {
	pid  storage.PageID
	page storage.Page
}

// pageCache is the bounded PageID -> Page map with LRU recency order.
// Front of the list is most recently used. The cache only stores; the
// pool decides when to evict and calls Victim for the policy.
type pageCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[storage.PageID]*list.Element
	lru      *list.List
}

func newPageCache(capacity int) *pageCache {
	return &pageCache{
		capacity: capacity,
		entries:  make(map[storage.PageID]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached page and marks it recently used.
func (c *pageCache) Get(pid storage.PageID) (storage.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[pid]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry).page, true
}

// Peek returns the cached page without touching recency. Flush paths use
// it so sweeping the cache does not scramble the LRU order.
func (c *pageCache) Peek(pid storage.PageID) (storage.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[pid]
	if !ok {
		return nil, false
	}
	return elem.Value.(*cacheEntry).page, true
}

// Put stores or replaces the page and marks it recently used. Inserting a
// new page into a full cache is the pool's bug, not a policy decision, so
// it surfaces as ErrCacheFull.
func (c *pageCache) Put(pid storage.PageID, p storage.Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[pid]; ok {
		elem.Value.(*cacheEntry).page = p
		c.lru.MoveToFront(elem)
		return nil
	}
	if len(c.entries) >= c.capacity {
		return ErrCacheFull
	}
	c.entries[pid] = c.lru.PushFront(&cacheEntry{pid: pid, page: p})
	return nil
}

func (c *pageCache) Remove(pid storage.PageID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[pid]; ok {
		delete(c.entries, pid)
		c.lru.Remove(elem)
	}
}

func (c *pageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Victim selects the least recently used clean page. Dirty pages are
// never candidates: evicting one would externalize uncommitted writes.
func (c *pageCache) Victim() (storage.PageID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
		entry := elem.Value.(*cacheEntry)
		if entry.page.DirtiedBy() != nil {
			continue
		}
		return entry.pid, nil
	}
	return storage.PageID{}, ErrAllPagesDirty
}

// PageIDs returns a snapshot of cached page IDs, least recently used first.
func (c *pageCache) PageIDs() []storage.PageID {
	c.mu.Lock()
	defer c.mu.Unlock()

	pids := make([]storage.PageID, 0, len(c.entries))
	for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
		pids = append(pids, elem.Value.(*cacheEntry).pid)
	}
	return pids
}
