// internal/cache/lru.go
//
// Fixed-capacity least-recently-used cache for domain → IP entries.
//
// Context
// -------
// The recency order lives in an arena of slots linked by explicit prev and
// next indices.  The key index maps a domain to a generational handle into
// that arena, so a handle stays valid while other slots are vacated and
// reused.  Get, Put, and Remove are O(1); Entries and Dump are O(n).
//
// Front of the order is the least-recently-used entry (next to be evicted),
// back is the most-recently-used.
//
// Notes
// -----
//   - LRU is not safe for concurrent use.  Callers that share one must hold
//     a single lock across each logical operation.
//   - A handle that does not match its slot means the index and the order
//     disagree.  That is a bug, so it panics instead of serving stale data.
package cache

import (
	"fmt"
	"io"
)

// nilSlot terminates the prev/next chains.
const nilSlot = -1

// Entry is one resident domain → IP association.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type handle struct {
	idx int
	gen uint32
}

type slot struct {
	key  string
	val  string
	prev int
	next int
	gen  uint32
	live bool
}

// LRU is a least-recently-used cache with a capacity fixed at construction.
type LRU struct {
	cap   int
	slots []slot
	free  []int
	head  int // least recently used
	tail  int // most recently used
	index map[string]handle
}

// New returns an empty LRU.  Panics on capacity < 1.
func New(capacity int) *LRU {
	if capacity < 1 {
		panic("cache: capacity must be ≥1")
	}
	return &LRU{
		cap:   capacity,
		slots: make([]slot, 0, capacity),
		head:  nilSlot,
		tail:  nilSlot,
		index: make(map[string]handle, capacity),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU) Get(key string) (string, bool) {
	h, ok := c.index[key]
	if !ok {
		return "", false
	}
	s := c.resolve(key, h)
	c.moveToBack(h.idx)
	return s.val, true
}

// Peek returns the value for key without touching its recency.
func (c *LRU) Peek(key string) (string, bool) {
	h, ok := c.index[key]
	if !ok {
		return "", false
	}
	return c.resolve(key, h).val, true
}

// Put inserts or overwrites key and marks it most recently used.  When a
// new key arrives at a full cache the least-recently-used entry is evicted
// first and returned with ok == true.
func (c *LRU) Put(key, value string) (evicted Entry, ok bool) {
	if h, hit := c.index[key]; hit {
		s := c.resolve(key, h)
		s.val = value
		c.moveToBack(h.idx)
		return Entry{}, false
	}

	if len(c.index) >= c.cap {
		victim := c.slots[c.head]
		evicted = Entry{Key: victim.key, Value: victim.val}
		ok = true
		c.remove(victim.key)
	}

	idx := c.alloc(key, value)
	c.linkBack(idx)
	c.index[key] = handle{idx: idx, gen: c.slots[idx].gen}
	c.check()
	return evicted, ok
}

// Remove deletes key from the cache.  It reports whether key was resident.
func (c *LRU) Remove(key string) bool {
	if _, ok := c.index[key]; !ok {
		return false
	}
	c.remove(key)
	c.check()
	return true
}

// Oldest returns the entry that the next eviction would drop.
func (c *LRU) Oldest() (Entry, bool) {
	if c.head == nilSlot {
		return Entry{}, false
	}
	s := c.slots[c.head]
	return Entry{Key: s.key, Value: s.val}, true
}

// Entries returns a snapshot of the resident entries, oldest first.
func (c *LRU) Entries() []Entry {
	out := make([]Entry, 0, len(c.index))
	for i := c.head; i != nilSlot; i = c.slots[i].next {
		out = append(out, Entry{Key: c.slots[i].key, Value: c.slots[i].val})
	}
	return out
}

// Dump writes one "key = value" line per entry, oldest first.
func (c *LRU) Dump(w io.Writer) error {
	for i := c.head; i != nilSlot; i = c.slots[i].next {
		if _, err := fmt.Fprintf(w, "%s = %s\n", c.slots[i].key, c.slots[i].val); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of resident entries.
func (c *LRU) Len() int { return len(c.index) }

// Cap returns the fixed capacity.
func (c *LRU) Cap() int { return c.cap }

// IsEmpty reports whether nothing is resident.
func (c *LRU) IsEmpty() bool { return len(c.index) == 0 }

/*──────────────────────────── arena helpers ───────────────────────────────*/

// resolve maps a handle to its slot, asserting that both structures agree.
func (c *LRU) resolve(key string, h handle) *slot {
	if h.idx < 0 || h.idx >= len(c.slots) {
		panic(fmt.Sprintf("cache: invariant violated: handle %d out of range for %q", h.idx, key))
	}
	s := &c.slots[h.idx]
	if !s.live || s.gen != h.gen || s.key != key {
		panic(fmt.Sprintf("cache: invariant violated: stale handle for %q", key))
	}
	return s
}

// alloc reuses a vacated slot when one exists.  Reuse bumps the generation
// so handles to the previous occupant no longer resolve.
func (c *LRU) alloc(key, value string) int {
	if n := len(c.free); n > 0 {
		idx := c.free[n-1]
		c.free = c.free[:n-1]
		s := &c.slots[idx]
		s.key, s.val = key, value
		s.prev, s.next = nilSlot, nilSlot
		s.gen++
		s.live = true
		return idx
	}
	c.slots = append(c.slots, slot{key: key, val: value, prev: nilSlot, next: nilSlot, live: true})
	return len(c.slots) - 1
}

func (c *LRU) remove(key string) {
	h := c.index[key]
	s := c.resolve(key, h)
	c.unlink(h.idx)
	delete(c.index, key)
	s.key, s.val = "", ""
	s.live = false
	c.free = append(c.free, h.idx)
}

func (c *LRU) unlink(idx int) {
	s := &c.slots[idx]
	if s.prev != nilSlot {
		c.slots[s.prev].next = s.next
	} else {
		c.head = s.next
	}
	if s.next != nilSlot {
		c.slots[s.next].prev = s.prev
	} else {
		c.tail = s.prev
	}
	s.prev, s.next = nilSlot, nilSlot
}

func (c *LRU) linkBack(idx int) {
	s := &c.slots[idx]
	s.prev = c.tail
	s.next = nilSlot
	if c.tail != nilSlot {
		c.slots[c.tail].next = idx
	} else {
		c.head = idx
	}
	c.tail = idx
}

func (c *LRU) moveToBack(idx int) {
	if c.tail == idx {
		return
	}
	c.unlink(idx)
	c.linkBack(idx)
}

// check is the O(1) membership assertion run after every mutation.
func (c *LRU) check() {
	if live := len(c.slots) - len(c.free); live != len(c.index) {
		panic(fmt.Sprintf("cache: invariant violated: %d live slots, %d indexed keys", live, len(c.index)))
	}
	if len(c.index) > c.cap {
		panic(fmt.Sprintf("cache: invariant violated: %d entries exceed capacity %d", len(c.index), c.cap))
	}
}

// verify walks the whole order and confirms that it holds exactly the
// indexed keys, each reachable through its handle.
func (c *LRU) verify() error {
	seen := make(map[string]struct{}, len(c.index))
	prev := nilSlot
	for i := c.head; i != nilSlot; i = c.slots[i].next {
		s := c.slots[i]
		if !s.live {
			return fmt.Errorf("slot %d linked but vacant", i)
		}
		if s.prev != prev {
			return fmt.Errorf("slot %d has prev %d, want %d", i, s.prev, prev)
		}
		h, ok := c.index[s.key]
		if !ok {
			return fmt.Errorf("key %q in order but not indexed", s.key)
		}
		if h.idx != i || h.gen != s.gen {
			return fmt.Errorf("key %q indexed at %d/%d, found at %d/%d", s.key, h.idx, h.gen, i, s.gen)
		}
		if _, dup := seen[s.key]; dup {
			return fmt.Errorf("key %q appears twice", s.key)
		}
		seen[s.key] = struct{}{}
		prev = i
	}
	if prev != c.tail {
		return fmt.Errorf("tail is %d, order ends at %d", c.tail, prev)
	}
	if len(seen) != len(c.index) {
		return fmt.Errorf("%d keys in order, %d indexed", len(seen), len(c.index))
	}
	return nil
}
