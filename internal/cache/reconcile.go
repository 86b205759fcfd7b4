// internal/cache/reconcile.go
//
// Resynchronizes resident entries against a fresh authoritative snapshot.
//
// Context
// -------
// Reconcile walks a snapshot of the cache oldest first and, per entry:
//
//   - drops it when the domain no longer exists upstream,
//   - rewrites and promotes it when the upstream IP changed,
//   - leaves it alone when the IP is unchanged.
//
// Domains that exist only upstream are never added.  The cache fills
// through lookups and explicit upserts, not through reconciliation.
package cache

import "fmt"

// Result summarises one reconciliation pass.  Removed and Refreshed list
// keys in the order they were processed.
type Result struct {
	Removed   []string `json:"removed"`
	Refreshed []string `json:"refreshed"`
	Kept      int      `json:"kept"`
}

// Reconcile applies upstream to c and reports what changed.  Refreshed
// entries land at the most-recently-used end in their prior relative
// order; untouched entries keep their positions.
func Reconcile(c *LRU, upstream map[string]string) Result {
	res := Result{}
	for _, e := range c.Entries() {
		v, ok := upstream[e.Key]
		switch {
		case !ok:
			c.Remove(e.Key)
			res.Removed = append(res.Removed, e.Key)
		case v != e.Value:
			c.Put(e.Key, v)
			res.Refreshed = append(res.Refreshed, e.Key)
		default:
			res.Kept++
		}
	}
	if err := c.verify(); err != nil {
		panic(fmt.Sprintf("cache: invariant violated after reconcile: %v", err))
	}
	return res
}
