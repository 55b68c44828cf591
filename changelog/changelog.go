// Package changelog implements the per-tree changelog cache: a process-wide
// registry of ChangelogEntry sequences that lets a forester build proof N+1
// off the changelog left behind by proof N within the same tick, without
// re-fetching indexer state.
package changelog

import (
	"sync"

	"github.com/lightprotocol/forester-go/compressedaccount"
)

// Entry records the sibling path after one tree mutation so a proof built
// off stale indexer data can be replayed forward.
type Entry struct {
	PathIndex uint32
	NewLeaf   [32]byte
	Siblings  [][32]byte
}

// perTree is a single tree's changelog plus the mutex enforcing a single
// writer, matching the protocol's "single writer per tree" resource policy.
type perTree struct {
	mu      sync.Mutex
	entries []Entry
}

// Cache is the lazily-initialized, process-wide changelog registry. The
// zero value is ready to use; NewCache is provided for symmetry with the
// rest of the module's constructors.
type Cache struct {
	mu    sync.RWMutex
	trees map[compressedaccount.Pubkey]*perTree
	// maxLen bounds each tree's changelog to 2 * batch_size entries; older
	// entries are dropped once they can no longer influence a future proof.
	maxLen int
}

// NewCache builds an empty cache. maxLen is the per-tree retention bound
// (2 * batch_size per the external-interface contract); 0 means unbounded.
func NewCache(maxLen int) *Cache {
	return &Cache{trees: make(map[compressedaccount.Pubkey]*perTree), maxLen: maxLen}
}

func (c *Cache) treeFor(tree compressedaccount.Pubkey) *perTree {
	c.mu.RLock()
	t, ok := c.trees[tree]
	c.mu.RUnlock()
	if ok {
		return t
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok = c.trees[tree]; ok {
		return t
	}
	if c.trees == nil {
		c.trees = make(map[compressedaccount.Pubkey]*perTree)
	}
	t = &perTree{}
	c.trees[tree] = t
	return t
}

// Get returns a snapshot copy of tree's changelog. Snapshots are cheap
// because changelogs are bounded.
func (c *Cache) Get(tree compressedaccount.Pubkey) []Entry {
	t := c.treeFor(tree)
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Extend atomically appends new entries to tree's changelog. It is the only
// mutator: the forester pipeline calls it once, after every proof in a
// batch-cycle has succeeded, never on partial success.
func (c *Cache) Extend(tree compressedaccount.Pubkey, newEntries []Entry) {
	if len(newEntries) == 0 {
		return
	}
	t := c.treeFor(tree)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, newEntries...)
	if c.maxLen > 0 && len(t.entries) > c.maxLen {
		t.entries = t.entries[len(t.entries)-c.maxLen:]
	}
}

// Len reports how many entries are currently retained for tree.
func (c *Cache) Len(tree compressedaccount.Pubkey) int {
	t := c.treeFor(tree)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
