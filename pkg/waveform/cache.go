package waveform

import (
	"container/heap"
	"slices"
	"sync"
	"sync/atomic"
)

type cacheEntry struct {
	data     *Data
	inserted uint64
	accessed atomic.Uint64
}

// Cache holds waveform data up to a byte budget and evicts the least recently
// accessed entry first. A budget of 0 means unlimited.
//
// Lookups of resident entries share a read lock and only bump an atomic access
// tick; the eviction heap is ordered lazily and catches up with those ticks
// when an eviction actually happens.
//
// Loads in flight hold a reservation for their path. Remove and Clear revoke
// those reservations, so data decoded before an invalidation is never
// committed after it.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	pending  map[uint64]string
	order    evictionQueue
	used     int64
	maxBytes int64
	clock    atomic.Uint64
}

func NewCache(maxBytes int64) *Cache {
	return &Cache{
		entries:  make(map[string]*cacheEntry),
		pending:  make(map[uint64]string),
		maxBytes: max(maxBytes, 0),
	}
}

// Get returns the resident entry for path and marks it as most recently used.
func (c *Cache) Get(path string) (*Data, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	entry.accessed.Store(c.clock.Add(1))
	return entry.data, true
}

// Contains reports residency without touching recency.
func (c *Cache) Contains(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[path]
	return ok
}

// Remove drops the entry for path and revokes reservations of loads still
// running for it. It reports whether an entry was resident.
func (c *Cache) Remove(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ticket, reserved := range c.pending {
		if reserved == path {
			delete(c.pending, ticket)
		}
	}

	entry, ok := c.entries[path]
	if !ok {
		return false
	}
	c.drop(path, entry)
	c.compact()
	return true
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	clear(c.pending)
	c.order = c.order[:0]
	c.used = 0
}

// Put inserts or replaces the entry for data.Path. Older entries are evicted
// one at a time until the new entry fits. An entry larger than the whole
// budget is still admitted once everything else is gone.
func (c *Cache) Put(data *Data) {
	if data == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(data)
}

// Reserve registers a load of path that is about to start. The ticket is
// passed to PutReserved once the data is ready, or to Release when the load
// fails.
func (c *Cache) Reserve(path string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticket := c.clock.Add(1)
	c.pending[ticket] = path
	return ticket
}

// Release gives up a reservation without committing anything.
func (c *Cache) Release(ticket uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, ticket)
}

// PutReserved inserts data like Put, but only while the reservation is still
// valid. It returns false when path was removed or the cache was cleared
// after Reserve; data is dropped in that case.
func (c *Cache) PutReserved(data *Data, ticket uint64) bool {
	if data == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.pending[ticket]
	delete(c.pending, ticket)
	if !ok || path != data.Path {
		return false
	}
	c.put(data)
	return true
}

// put must be called with mu held.
func (c *Cache) put(data *Data) {
	if old, ok := c.entries[data.Path]; ok {
		c.drop(data.Path, old)
	}

	size := data.SizeBytes()
	for c.maxBytes > 0 && c.used+size > c.maxBytes && len(c.entries) > 0 {
		c.evictOne()
	}

	tick := c.clock.Add(1)
	entry := &cacheEntry{data: data, inserted: tick}
	entry.accessed.Store(tick)

	c.entries[data.Path] = entry
	c.used += size
	heap.Push(&c.order, &queueItem{path: data.Path, entry: entry, tick: tick})
	c.compact()
}

// SetMaxSize changes the budget. Lowering it below the current usage evicts
// right away; a lone oversized entry stays resident.
func (c *Cache) SetMaxSize(maxBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxBytes = max(maxBytes, 0)
	for c.maxBytes > 0 && c.used > c.maxBytes && len(c.entries) > 1 {
		c.evictOne()
	}
}

func (c *Cache) MaxSize() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxBytes
}

// Used returns the summed SizeBytes of all resident entries.
func (c *Cache) Used() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.used
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Paths lists resident paths, least recently used first.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type resident struct {
		path string
		tick uint64
	}
	all := make([]resident, 0, len(c.entries))
	for path, entry := range c.entries {
		all = append(all, resident{path: path, tick: entry.accessed.Load()})
	}
	slices.SortFunc(all, func(a, b resident) int {
		switch {
		case a.tick < b.tick:
			return -1
		case a.tick > b.tick:
			return 1
		}
		return 0
	})

	paths := make([]string, len(all))
	for i, r := range all {
		paths[i] = r.path
	}
	return paths
}

// evictOne must be called with mu held and at least one entry resident.
func (c *Cache) evictOne() {
	for c.order.Len() > 0 {
		item := heap.Pop(&c.order).(*queueItem)

		if c.entries[item.path] != item.entry {
			continue
		}
		if current := item.entry.accessed.Load(); current != item.tick {
			item.tick = current
			heap.Push(&c.order, item)
			continue
		}

		c.drop(item.path, item.entry)
		return
	}
}

func (c *Cache) drop(path string, entry *cacheEntry) {
	delete(c.entries, path)
	c.used -= entry.data.SizeBytes()
}

// compact rebuilds the queue once removed entries dominate it.
func (c *Cache) compact() {
	if len(c.order) <= 2*len(c.entries)+16 {
		return
	}

	live := c.order[:0]
	for _, item := range c.order {
		if c.entries[item.path] == item.entry {
			item.tick = item.entry.accessed.Load()
			live = append(live, item)
		}
	}
	clear(c.order[len(live):])
	c.order = live
	heap.Init(&c.order)
}

type queueItem struct {
	path  string
	entry *cacheEntry
	tick  uint64
}

// evictionQueue is a min-heap on the access tick observed at push time.
// Ticks come from a single monotonic clock, so equal recency never happens and
// insertion order breaks what would otherwise be ties.
type evictionQueue []*queueItem

func (q evictionQueue) Len() int { return len(q) }

func (q evictionQueue) Less(i, j int) bool {
	if q[i].tick != q[j].tick {
		return q[i].tick < q[j].tick
	}
	return q[i].entry.inserted < q[j].entry.inserted
}

func (q evictionQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *evictionQueue) Push(x any) { *q = append(*q, x.(*queueItem)) }

func (q *evictionQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
